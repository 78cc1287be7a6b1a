package peer

import (
	"sync"

	"github.com/freelan-go/fscp/internal/wire"
)

// Registry is the read-mostly map of all known peers, keyed by normalized
// endpoint. Lookups take the shared lock; structural changes (insert,
// remove) take the exclusive lock, per §5's resource model.
type Registry struct {
	mu    sync.RWMutex
	peers map[wire.Endpoint]*Peer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[wire.Endpoint]*Peer)}
}

// Lookup returns the Peer for endpoint, if any, using the shared lock.
func (r *Registry) Lookup(endpoint wire.Endpoint) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[endpoint]
	return p, ok
}

// GetOrCreate returns the existing Peer for endpoint, or creates, inserts,
// and returns a new one.
func (r *Registry) GetOrCreate(endpoint wire.Endpoint) *Peer {
	if p, ok := r.Lookup(endpoint); ok {
		return p
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[endpoint]; ok {
		return p
	}
	p := NewPeer(endpoint)
	r.peers[endpoint] = p
	return p
}

// Remove deletes the peer for endpoint, if present, e.g. on administrative
// removal or idle-session expiry.
func (r *Registry) Remove(endpoint wire.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, endpoint)
}

// Each calls fn for a stable snapshot of the current peers, e.g. for
// broadcast fan-out or periodic idle scanning.
func (r *Registry) Each(fn func(*Peer)) {
	r.mu.RLock()
	snapshot := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		snapshot = append(snapshot, p)
	}
	r.mu.RUnlock()
	for _, p := range snapshot {
		fn(p)
	}
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
