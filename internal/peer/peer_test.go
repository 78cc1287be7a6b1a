package peer

import (
	"net"
	"testing"
	"time"

	"github.com/freelan-go/fscp/internal/session"
	"github.com/freelan-go/fscp/internal/wire"
)

func testEndpoint(port uint16) wire.Endpoint {
	return wire.NewEndpoint(net.ParseIP("203.0.113.1"), port)
}

func TestRegistryGetOrCreateReturnsSameInstance(t *testing.T) {
	r := NewRegistry()
	ep := testEndpoint(1)
	a := r.GetOrCreate(ep)
	b := r.GetOrCreate(ep)
	if a != b {
		t.Fatal("expected GetOrCreate to return the same Peer for the same endpoint")
	}
	if r.Len() != 1 {
		t.Fatalf("got %d peers, want 1", r.Len())
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	ep := testEndpoint(2)
	r.GetOrCreate(ep)
	r.Remove(ep)
	if _, ok := r.Lookup(ep); ok {
		t.Fatal("expected peer to be removed")
	}
}

func TestObserveHostIDDetectsRestart(t *testing.T) {
	p := NewPeer(testEndpoint(3))
	if restarted := p.ObserveHostID(session.HostID{0x01}); restarted {
		t.Fatal("first observation should not be flagged as a restart")
	}
	if restarted := p.ObserveHostID(session.HostID{0x01}); restarted {
		t.Fatal("same HostID should not be flagged as a restart")
	}
	if restarted := p.ObserveHostID(session.HostID{0x02}); !restarted {
		t.Fatal("a changed HostID should be flagged as a restart")
	}
}

func TestPromotePendingDrainsQueuedControlMessages(t *testing.T) {
	p := NewPeer(testEndpoint(4))
	now := time.Unix(0, 0)

	p.QueueControlMessage(wire.Message{Type: wire.TypeHelloRequest}, now)
	if drained := p.PromotePending(); drained != nil {
		t.Fatal("expected no drain without a pending session")
	}

	p.SetPendingSession(&session.Session{})
	drained := p.PromotePending()
	if len(drained) != 1 {
		t.Fatalf("got %d drained messages, want 1", len(drained))
	}
	if p.CurrentSession() == nil {
		t.Fatal("expected current session to be set after promotion")
	}
	if p.PendingSession() != nil {
		t.Fatal("expected pending session to be cleared after promotion")
	}
}

func TestHandshakeFailureBlacklistsAfterThreshold(t *testing.T) {
	p := NewPeer(testEndpoint(5))
	now := time.Unix(1000, 0)
	for i := 0; i < 2; i++ {
		p.RecordHandshakeFailure(now, 3, time.Minute)
		if p.Blacklisted(now) {
			t.Fatalf("should not be blacklisted after %d failures", i+1)
		}
	}
	p.RecordHandshakeFailure(now, 3, time.Minute)
	if !p.Blacklisted(now) {
		t.Fatal("expected peer to be blacklisted after reaching the threshold")
	}
	if p.Blacklisted(now.Add(2 * time.Minute)) {
		t.Fatal("expected blacklist to expire after the cooldown")
	}
}

func TestAcceptSessionNumberRejectsRegression(t *testing.T) {
	p := NewPeer(testEndpoint(7))
	if !p.AcceptSessionNumber(5) {
		t.Fatal("first session number should be accepted")
	}
	if p.AcceptSessionNumber(5) {
		t.Fatal("a repeated session number should be rejected")
	}
	if p.AcceptSessionNumber(3) {
		t.Fatal("a lower session number should be rejected")
	}
	if !p.AcceptSessionNumber(6) {
		t.Fatal("a strictly greater session number should be accepted")
	}
}

func TestRecordHandshakeSuccessClearsBlacklist(t *testing.T) {
	p := NewPeer(testEndpoint(6))
	now := time.Unix(0, 0)
	p.RecordHandshakeFailure(now, 1, time.Minute)
	if !p.Blacklisted(now) {
		t.Fatal("expected peer to be blacklisted")
	}
	p.RecordHandshakeSuccess()
	if p.Blacklisted(now) {
		t.Fatal("expected success to clear the blacklist")
	}
}
