package dispatch

import (
	"net"
	"sort"
	"sync"
)

// Route is one CIDR prefix a peer has announced reachability for.
type Route struct {
	Prefix net.IPNet
	Peer   PeerID
}

// Router matches a decrypted IP packet's destination address against the
// longest matching prefix any peer has announced, per §4.7's routing
// mode. The compiled route table is rebuilt lazily, the first time it's
// needed after any peer's announcement changes (grounded on the original
// implementation's lazily-recompiled `routes()` map).
type Router struct {
	mu                   sync.Mutex
	routesByPeer         map[PeerID][]net.IPNet
	groupOf              map[PeerID]string
	clientRoutingEnabled bool

	compiled []Route // sorted by prefix length, longest first
	dirty    bool
}

// NewRouter returns an empty Router.
func NewRouter(clientRoutingEnabled bool) *Router {
	return &Router{
		routesByPeer:         make(map[PeerID][]net.IPNet),
		groupOf:              make(map[PeerID]string),
		clientRoutingEnabled: clientRoutingEnabled,
		dirty:                true,
	}
}

// SetRoutes replaces the set of prefixes peer has announced and marks the
// compiled table dirty. group scopes the peer for client-routing
// suppression: when ClientRoutingEnabled is false, forwarding between two
// peers of the same group is blocked.
func (r *Router) SetRoutes(peerID PeerID, group string, prefixes []net.IPNet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routesByPeer[peerID] = prefixes
	r.groupOf[peerID] = group
	r.dirty = true
}

// RemovePeer drops a peer's announced routes, e.g. on disconnection.
func (r *Router) RemovePeer(peerID PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routesByPeer, peerID)
	delete(r.groupOf, peerID)
	r.dirty = true
}

func (r *Router) compileLocked() {
	if !r.dirty {
		return
	}
	var routes []Route
	for peerID, prefixes := range r.routesByPeer {
		for _, p := range prefixes {
			routes = append(routes, Route{Prefix: p, Peer: peerID})
		}
	}
	sort.SliceStable(routes, func(i, j int) bool {
		li, _ := routes[i].Prefix.Mask.Size()
		lj, _ := routes[j].Prefix.Mask.Size()
		return li > lj
	})
	r.compiled = routes
	r.dirty = false
}

// Resolve decides where an IP packet addressed to dst, arriving from
// source (fromLocal when it came from the local TAP), should go.
// Multicast/solicited-node destinations fan out like a switch broadcast;
// unicast destinations use the longest matching announced prefix.
// Unrecognized traffic (dst == nil) is dropped silently, per §4.7.
func (r *Router) Resolve(dst net.IP, source PeerID, fromLocal bool, known []PeerID) Target {
	if dst == nil {
		return Target{}
	}
	if isMulticastOrSolicitedNode(dst) {
		return r.fanOut(source, fromLocal, known)
	}

	r.mu.Lock()
	r.compileLocked()
	compiled := r.compiled
	sourceGroup := r.groupOf[source]
	r.mu.Unlock()

	for _, route := range compiled {
		if route.Prefix.Contains(dst) {
			if route.Peer == source {
				continue
			}
			if !fromLocal && !r.clientRoutingEnabled && r.groupOf[route.Peer] == sourceGroup {
				continue
			}
			return Target{ToPeers: []PeerID{route.Peer}}
		}
	}
	return Target{}
}

func (r *Router) fanOut(source PeerID, fromLocal bool, known []PeerID) Target {
	r.mu.Lock()
	sourceGroup := r.groupOf[source]
	groups := make(map[PeerID]string, len(r.groupOf))
	for p, g := range r.groupOf {
		groups[p] = g
	}
	r.mu.Unlock()

	t := Target{ToLocal: !fromLocal}
	for _, p := range known {
		if !fromLocal && p == source {
			continue
		}
		if !fromLocal && !r.clientRoutingEnabled && groups[p] == sourceGroup {
			continue
		}
		t.ToPeers = append(t.ToPeers, p)
	}
	return t
}

// isMulticastOrSolicitedNode reports whether dst is an IPv4 multicast
// address or an IPv6 solicited-node multicast address
// (ff02::1:ff00:0/104), matching the original router's is_multicast.
func isMulticastOrSolicitedNode(dst net.IP) bool {
	if v4 := dst.To4(); v4 != nil {
		return v4.IsMulticast()
	}
	_, solicitedNode, _ := net.ParseCIDR("ff02::1:ff00:0/104")
	return solicitedNode.Contains(dst)
}
