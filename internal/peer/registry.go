// Package peer holds the long-lived per-remote-party state: validated
// certificates, the current session, and queued control messages waiting
// for a session to activate, keyed by normalized endpoint (§3).
package peer

import (
	"sync"
	"time"

	"github.com/freelan-go/fscp/internal/identity"
	"github.com/freelan-go/fscp/internal/session"
	"github.com/freelan-go/fscp/internal/wire"
)

// PendingControlMessage is a control-channel message that arrived before a
// session was ready to process it, queued FIFO per §5's ordering
// guarantees.
type PendingControlMessage struct {
	Message    wire.Message
	ReceivedAt time.Time
}

// Peer is the long-lived state for one remote endpoint.
type Peer struct {
	Endpoint wire.Endpoint

	mu              sync.Mutex
	record          *identity.PeerRecord
	lastHostID      session.HostID
	current         *session.Session
	pendingSession  *session.Session
	pendingRequest  *session.PendingRequest
	pendingControls []PendingControlMessage
	lastActivity    time.Time
	consecutiveFailures int
	blacklistedUntil    time.Time

	haveAcceptedSession    bool
	lastAcceptedSessionNum uint32

	helloAcks map[uint32]chan struct{}
}

// NewPeer creates a Peer for endpoint with no record or session yet.
func NewPeer(endpoint wire.Endpoint) *Peer {
	return &Peer{Endpoint: endpoint}
}

// Record returns the currently installed PeerRecord, or nil before any
// PRESENTATION has been accepted.
func (p *Peer) Record() *identity.PeerRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record
}

// SetRecord installs a PeerRecord (new or rekeyed) and clears any prior
// session, per §4.3 step 4.
func (p *Peer) SetRecord(rec *identity.PeerRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record = rec
	p.current = nil
	p.pendingSession = nil
}

// LastHostID returns the most recently observed HostIdentifier from this
// peer, used to detect restarts.
func (p *Peer) LastHostID() session.HostID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHostID
}

// ObserveHostID records the HostID seen on the latest handshake message,
// reporting whether it differs from the last one seen (a restart signal).
func (p *Peer) ObserveHostID(id session.HostID) (restarted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	restarted = p.lastHostID != nil && string(p.lastHostID) != string(id)
	p.lastHostID = id
	return restarted
}

// CurrentSession returns the active/provisional session, if any.
func (p *Peer) CurrentSession() *session.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SetPendingSession stashes a session that has been derived locally (or
// from a received SESSION) but is not yet promoted to current. It becomes
// current via PromotePending once a data packet is authenticated under it
// (invariant 4, §3: "the next session replaces the current atomically").
func (p *Peer) SetPendingSession(s *session.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingSession = s
}

// PendingSession returns the session awaiting promotion, if any.
func (p *Peer) PendingSession() *session.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingSession
}

// PromotePending atomically replaces the current session with the pending
// one, draining any control messages queued while no session was ready.
func (p *Peer) PromotePending() []PendingControlMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingSession == nil {
		return nil
	}
	p.current = p.pendingSession
	p.pendingSession = nil
	drained := p.pendingControls
	p.pendingControls = nil
	return drained
}

// AwaitHelloAck registers interest in the HELLO_RESPONSE matching
// requestID, returning a channel that SignalHelloAck closes when it
// arrives.
func (p *Peer) AwaitHelloAck(requestID uint32) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.helloAcks == nil {
		p.helloAcks = make(map[uint32]chan struct{})
	}
	ch, ok := p.helloAcks[requestID]
	if !ok {
		ch = make(chan struct{})
		p.helloAcks[requestID] = ch
	}
	return ch
}

// SignalHelloAck closes and forgets the channel registered for requestID,
// if any is still pending.
func (p *Peer) SignalHelloAck(requestID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.helloAcks[requestID]
	if !ok {
		return
	}
	close(ch)
	delete(p.helloAcks, requestID)
}

// SetPendingRequest records the local state of a SESSION_REQUEST this node
// just sent, so it can be matched against the SESSION reply.
func (p *Peer) SetPendingRequest(r *session.PendingRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingRequest = r
}

// TakePendingRequest returns and clears the pending local SESSION_REQUEST
// state for sessionNumber, or nil if none matches.
func (p *Peer) TakePendingRequest(sessionNumber uint32) *session.PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingRequest == nil || p.pendingRequest.Number != sessionNumber {
		return nil
	}
	r := p.pendingRequest
	p.pendingRequest = nil
	return r
}

// AcceptSessionNumber reports whether number is strictly greater than the
// last SESSION_REQUEST session number this peer accepted, and if so records
// it as the new high-water mark. A false return means the request is a
// replay or regression and must be ignored (§4.4, §7, Property 5).
func (p *Peer) AcceptSessionNumber(number uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.haveAcceptedSession && number <= p.lastAcceptedSessionNum {
		return false
	}
	p.haveAcceptedSession = true
	p.lastAcceptedSessionNum = number
	return true
}

// QueueControlMessage enqueues a control message received while no session
// is ready to process it.
func (p *Peer) QueueControlMessage(msg wire.Message, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingControls = append(p.pendingControls, PendingControlMessage{Message: msg, ReceivedAt: now})
}

// Touch records activity on the peer, for idle-session expiry.
func (p *Peer) Touch(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastActivity = now
}

// IdleSince returns how long it has been since the peer was last touched.
func (p *Peer) IdleSince(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastActivity.IsZero() {
		return 0
	}
	return now.Sub(p.lastActivity)
}

// RecordHandshakeFailure increments the consecutive-failure counter and,
// once it crosses threshold, blacklists the peer for cooldown (§7: "a peer
// whose handshake repeatedly fails is rate-limited and eventually
// blacklisted for a cool-down period").
func (p *Peer) RecordHandshakeFailure(now time.Time, threshold int, cooldown time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consecutiveFailures++
	if p.consecutiveFailures >= threshold {
		p.blacklistedUntil = now.Add(cooldown)
	}
}

// RecordHandshakeSuccess clears the failure counter and any blacklist.
func (p *Peer) RecordHandshakeSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consecutiveFailures = 0
	p.blacklistedUntil = time.Time{}
}

// Blacklisted reports whether the peer is currently in its cooldown
// period.
func (p *Peer) Blacklisted(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Before(p.blacklistedUntil)
}
