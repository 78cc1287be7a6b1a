// Package session implements the per-peer FSCP session: the negotiated
// cipher suite and curve, the derived key schedule, outbound sequence
// counters, and inbound replay windows, per §3/§4.4/§4.5.
package session

import (
	"fmt"
	"math"
	"time"

	"github.com/freelan-go/fscp/internal/cryptoutil"
	"github.com/freelan-go/fscp/internal/wire"
)

// State is where a session sits in its lifecycle (§4.4).
type State int

const (
	// StateProvisional is set once both sides have derived the key
	// schedule but before either has authenticated a data packet under it.
	StateProvisional State = iota
	// StateActive is set on the first authenticated data packet sent or
	// received under the session.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateProvisional:
		return "provisional"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// ErrSequenceExhausted is returned by NextSequence when the per-channel
// outbound counter has reached its maximum and a rekey must happen before
// any further data is sent on that channel (§4.5).
var ErrSequenceExhausted = fmt.Errorf("session: outbound sequence number exhausted, rekey required")

// Session holds everything negotiated for one (session number, peer) pair.
type Session struct {
	Number      uint32
	LocalHostID HostID
	RemoteHostID HostID
	CipherSuite wire.CipherSuite
	Curve       wire.EllipticCurve

	LocalKeyPair    *cryptoutil.EphemeralKeyPair
	RemotePublicKey []byte

	Outbound *cryptoutil.AEAD
	Inbound  *cryptoutil.AEAD

	State     State
	CreatedAt time.Time
	touchedAt time.Time

	outboundSeq    [wire.NumChannels]uint32
	outboundIssued [wire.NumChannels]bool
	replayWindows  [wire.NumChannels]ReplayWindow
}

// New derives the key schedule for a negotiated (suite, curve) pair and
// returns a provisional Session.
func New(number uint32, localHostID, remoteHostID HostID, cs wire.CipherSuite, curve wire.EllipticCurve, localKeyPair *cryptoutil.EphemeralKeyPair, remotePublicKey []byte, now time.Time) (*Session, error) {
	sharedSecret, err := localKeyPair.SharedSecret(curve, remotePublicKey)
	if err != nil {
		return nil, fmt.Errorf("session: compute shared secret: %w", err)
	}

	salt := sessionSalt(number, localHostID, remoteHostID)
	schedule, err := cryptoutil.DeriveKeySchedule(cs, sharedSecret, salt, LocalWins(localHostID, remoteHostID))
	if err != nil {
		return nil, fmt.Errorf("session: derive key schedule: %w", err)
	}

	outbound, err := cryptoutil.NewAEAD(schedule.LocalToRemote)
	if err != nil {
		return nil, fmt.Errorf("session: outbound aead: %w", err)
	}
	inbound, err := cryptoutil.NewAEAD(schedule.RemoteToLocal)
	if err != nil {
		return nil, fmt.Errorf("session: inbound aead: %w", err)
	}

	return &Session{
		Number:          number,
		LocalHostID:     localHostID,
		RemoteHostID:    remoteHostID,
		CipherSuite:     cs,
		Curve:           curve,
		LocalKeyPair:    localKeyPair,
		RemotePublicKey: remotePublicKey,
		Outbound:        outbound,
		Inbound:         inbound,
		State:           StateProvisional,
		CreatedAt:       now,
		touchedAt:       now,
	}, nil
}

// sessionSalt binds the key schedule to this exact (session number, pair of
// host identifiers) so a replayed SESSION message from an old negotiation
// cannot be reused to derive the same keys for a new one. The two
// identifiers are ordered by comparison rather than by local/remote role,
// since each side calls this with itself as "local": without a canonical
// order the two sides would concatenate them differently and derive
// different salts for what must be the same key schedule.
func sessionSalt(number uint32, a, b HostID) []byte {
	lower, higher := a, b
	if !LocalWins(a, b) {
		lower, higher = b, a
	}
	salt := make([]byte, 0, 4+len(lower)+len(higher))
	salt = append(salt, byte(number>>24), byte(number>>16), byte(number>>8), byte(number))
	salt = append(salt, lower...)
	salt = append(salt, higher...)
	return salt
}

// Touch records activity, used for idle-session expiry.
func (s *Session) Touch(now time.Time) {
	s.touchedAt = now
}

// LastUsed returns the last time Touch, NextSequence, or AcceptSequence observed
// activity.
func (s *Session) LastUsed() time.Time {
	return s.touchedAt
}

// Activate transitions a provisional session to active, called on the
// first authenticated data packet sent or received.
func (s *Session) Activate() {
	s.State = StateActive
}

// NextSequence allocates the next outbound sequence number for channel,
// marking the session active. It returns ErrSequenceExhausted once the
// counter has issued 2^32-1 (§4.5): the caller must rekey before sending
// further data on that channel.
func (s *Session) NextSequence(channel uint8, now time.Time) (uint32, error) {
	if s.outboundIssued[channel] && s.outboundSeq[channel] == math.MaxUint32 {
		return 0, ErrSequenceExhausted
	}
	seq := s.outboundSeq[channel]
	if s.outboundIssued[channel] {
		seq++
	}
	s.outboundSeq[channel] = seq
	s.outboundIssued[channel] = true
	s.touchedAt = now
	s.Activate()
	return seq, nil
}

// AcceptSequence runs the replay check for an inbound sequence number on
// channel, recording it if accepted.
func (s *Session) AcceptSequence(channel uint8, seq uint32, now time.Time) bool {
	ok := s.replayWindows[channel].Accept(seq)
	if ok {
		s.touchedAt = now
		s.Activate()
	}
	return ok
}
