package engine

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/freelan-go/fscp/internal/dispatch"
	"github.com/freelan-go/fscp/internal/peer"
	"github.com/freelan-go/fscp/internal/session"
	"github.com/freelan-go/fscp/internal/wire"
)

// handleData authenticates and decrypts an inbound DATA_n message, checks
// its replay window, and dispatches the decrypted payload (§4.5). The
// reserved channels each inherit the session's confidentiality and
// authentication but carry their own payload kind: channel 0 is forwarded
// to the TAP/switch/router, channel 1 carries a CONTACT answer, channel 2 a
// CONTACT_REQUEST, and channel 3 (KEEP_ALIVE) carries only the opaque
// payload and has nothing further to do once authenticated.
func (e *Engine) handleData(ctx context.Context, p *peer.Peer, msg wire.Message) {
	sess := p.CurrentSession()
	if sess == nil {
		e.metrics.MalformedDropped.Inc()
		e.log.Debug("data message with no active session", zap.Stringer("from", p.Endpoint))
		return
	}

	channel := msg.Channel
	bodyLen := 4 + len(msg.Data.Sealed)
	ad := wire.AssociatedData(wire.DataType(channel), bodyLen, channel)

	plaintext, err := sess.Inbound.Open(channel, msg.Data.SequenceNumber, ad, msg.Data.Sealed)
	if err != nil {
		e.metrics.MalformedDropped.Inc()
		e.log.Debug("data message failed authentication", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}

	now := e.clk.Now()
	if !sess.AcceptSequence(channel, msg.Data.SequenceNumber, now) {
		e.metrics.ReplayDropped.Inc()
		return
	}

	switch channel {
	case wire.ChannelData:
		e.forwardDecrypted(ctx, dispatch.PeerID(p.Endpoint), plaintext, false)
	case wire.ChannelContactRequest:
		e.handleContactRequest(ctx, p, plaintext)
	case wire.ChannelContact:
		e.handleContact(p, plaintext)
	default:
		// KEEP_ALIVE and any unreserved channel: authentication and replay
		// tracking already happened above; there is no payload to act on.
	}
}

// forwardFromLocal reads a frame off the TAP device and dispatches it by
// switch or router resolution.
func (e *Engine) forwardFromLocal(ctx context.Context, frame []byte) {
	e.forwardDecrypted(ctx, dispatch.PeerID{}, frame, true)
}

// forwardDecrypted resolves a plaintext frame's forwarding target (switch
// or router mode, depending which was selected with UseSwitch/UseRouter)
// and writes it to the TAP and/or seals+sends it to the resolved peers.
func (e *Engine) forwardDecrypted(ctx context.Context, source dispatch.PeerID, frame []byte, fromLocal bool) {
	known := e.knownPeerIDs()

	var target dispatch.Target
	switch {
	case e.sw != nil:
		if len(frame) < 12 {
			e.metrics.MalformedDropped.Inc()
			return
		}
		var dstMAC, srcMAC dispatch.MAC
		copy(dstMAC[:], frame[0:6])
		copy(srcMAC[:], frame[6:12])
		if !fromLocal && !e.cfg.RelayModeEnabled {
			e.sw.Learn(srcMAC, source)
		}
		target = e.sw.Resolve(dstMAC, source, fromLocal, known)
	case e.rt != nil:
		target = e.rt.Resolve(destinationIP(frame), source, fromLocal, known)
	default:
		return
	}

	if target.ToLocal && e.device != nil {
		if _, err := e.device.Write(frame); err != nil {
			e.log.Warn("tap write failed", zap.Error(err))
		} else {
			e.metrics.BytesForwarded.WithLabelValues("to_tap").Add(float64(len(frame)))
		}
	}

	for _, peerID := range target.ToPeers {
		e.sendData(ctx, wire.Endpoint(peerID), frame)
	}
}

// destinationIP recovers the destination address from an IPv4 or IPv6
// packet, or nil if frame is too short or of an unrecognized version.
func destinationIP(frame []byte) net.IP {
	if len(frame) < 1 {
		return nil
	}
	switch frame[0] >> 4 {
	case 4:
		if len(frame) < 20 {
			return nil
		}
		return net.IP(frame[16:20])
	case 6:
		if len(frame) < 40 {
			return nil
		}
		return net.IP(frame[24:40])
	default:
		return nil
	}
}

// sendData seals plaintext under to's current session on the reserved data
// channel and enqueues it for delivery.
func (e *Engine) sendData(ctx context.Context, to wire.Endpoint, plaintext []byte) {
	if e.sendOnChannel(ctx, to, wire.ChannelData, plaintext) {
		e.metrics.BytesForwarded.WithLabelValues("to_peer").Add(float64(len(plaintext)))
	}
}

// sendOnChannel seals plaintext under to's current session on the given
// reserved channel and enqueues it for delivery, reporting whether it was
// sent. A sequence-exhausted session triggers a rekey and drops the frame
// rather than reusing a nonce.
func (e *Engine) sendOnChannel(ctx context.Context, to wire.Endpoint, channel uint8, plaintext []byte) bool {
	p, ok := e.registry.Lookup(to)
	if !ok {
		return false
	}
	sess := p.CurrentSession()
	if sess == nil {
		return false
	}

	now := e.clk.Now()
	seq, err := sess.NextSequence(channel, now)
	if err != nil {
		if errors.Is(err, session.ErrSequenceExhausted) {
			e.metrics.Rekeys.Inc()
			if rerr := e.InitiateSession(ctx, to); rerr != nil {
				e.log.Warn("rekey after sequence exhaustion failed", zap.Stringer("to", to), zap.Error(rerr))
			}
		}
		return false
	}

	bodyLen := 4 + len(plaintext) + sess.Outbound.Overhead()
	ad := wire.AssociatedData(wire.DataType(channel), bodyLen, channel)
	sealed := sess.Outbound.Seal(channel, seq, ad, plaintext)

	msg := wire.Message{
		Type:    wire.DataType(channel),
		Channel: channel,
		Data:    wire.DataBody{SequenceNumber: seq, Sealed: sealed},
	}
	e.queue.enqueue(ctx, to, wire.Encode(msg))
	return true
}
