// Package dispatch implements the in-process switch (MAC-learning) and
// router (longest-prefix-match) that forward decrypted frames between the
// local TAP and remote peers (§4.7).
package dispatch

import "github.com/freelan-go/fscp/internal/wire"

// PeerID identifies a forwarding target. The dispatch layer never calls
// back into peer.Peer directly so it stays testable in isolation; the
// engine maps PeerID to an actual peer.Peer and, for TargetLocal, to the
// TAP device.
type PeerID wire.Endpoint

// Target is the outcome of a forwarding decision for one frame.
type Target struct {
	// ToLocal is true when the frame should be written to the local TAP
	// (the destination is the local port itself, or a multicast/broadcast
	// fan-out that includes the local port).
	ToLocal bool
	// ToPeers lists the remote peers the frame should be forwarded to.
	// Empty with ToLocal=false means the frame should be dropped.
	ToPeers []PeerID
}
