package dispatch

import (
	"encoding/binary"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MAC is a 6-byte Ethernet hardware address.
type MAC [6]byte

func (m MAC) isBroadcast() bool {
	return m == MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

func (m MAC) isMulticast() bool {
	return m[0]&0x01 != 0
}

// Switch learns MAC->peer bindings from decrypted Ethernet frames and
// forwards by destination MAC, per §4.7's bridging mode. Broadcast and
// multicast destinations fan out to every known peer except the source,
// subject to ClientRoutingEnabled.
type Switch struct {
	table               *lru.Cache[MAC, PeerID]
	localMAC            MAC
	clientRoutingEnabled bool
}

// NewSwitch returns a Switch whose MAC table holds at most capacity
// entries, evicting least-recently-used bindings beyond that.
func NewSwitch(capacity int, localMAC MAC, clientRoutingEnabled bool) (*Switch, error) {
	table, err := lru.New[MAC, PeerID](capacity)
	if err != nil {
		return nil, fmt.Errorf("dispatch: new switch table: %w", err)
	}
	return &Switch{table: table, localMAC: localMAC, clientRoutingEnabled: clientRoutingEnabled}, nil
}

// Learn binds srcMAC to source, unless srcMAC is the local TAP's address
// (frames originating locally don't need a binding for themselves).
func (s *Switch) Learn(srcMAC MAC, source PeerID) {
	if srcMAC == s.localMAC {
		return
	}
	s.table.Add(srcMAC, source)
}

// Resolve decides where an Ethernet frame with the given destination MAC
// should go, given it arrived from source (the zero PeerID when it came
// from the local TAP). known lists every currently connected peer, used
// for broadcast/multicast fan-out.
func (s *Switch) Resolve(dstMAC MAC, source PeerID, fromLocal bool, known []PeerID) Target {
	if dstMAC.isBroadcast() || dstMAC.isMulticast() {
		return s.fanOut(source, fromLocal, known)
	}

	if dstMAC == s.localMAC {
		return Target{ToLocal: true}
	}

	if peerID, ok := s.table.Get(dstMAC); ok {
		if !fromLocal && peerID == source {
			// Invariant 5 (§3): never forward back to the originator.
			return Target{}
		}
		if !fromLocal && !s.clientRoutingEnabled {
			// Remote-to-remote forwarding suppressed by policy.
			return Target{}
		}
		return Target{ToPeers: []PeerID{peerID}}
	}

	// Unknown destination: flood, same as an unlearned switch port would.
	return s.fanOut(source, fromLocal, known)
}

// fanOut floods a frame to every other port: the local TAP, when the frame
// didn't originate there, and every known peer but the source, subject to
// ClientRoutingEnabled for peer-to-peer fan-out.
func (s *Switch) fanOut(source PeerID, fromLocal bool, known []PeerID) Target {
	t := Target{ToLocal: !fromLocal}
	for _, p := range known {
		if !fromLocal && p == source {
			continue
		}
		if !fromLocal && !s.clientRoutingEnabled {
			continue
		}
		t.ToPeers = append(t.ToPeers, p)
	}
	return t
}

// EncodeMACFromUint64 is a convenience for tests: it packs the low 48 bits
// of v into a MAC in network order.
func EncodeMACFromUint64(v uint64) MAC {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	var m MAC
	copy(m[:], b[2:])
	return m
}
