package session

import (
	"testing"
	"time"

	"github.com/freelan-go/fscp/internal/cryptoutil"
	"github.com/freelan-go/fscp/internal/wire"
)

func TestReplayWindowAcceptsInOrderAndRejectsDuplicates(t *testing.T) {
	var w ReplayWindow
	if !w.Accept(1) {
		t.Fatal("expected first sequence to be accepted")
	}
	if w.Accept(1) {
		t.Fatal("expected duplicate to be rejected")
	}
	if !w.Accept(2) {
		t.Fatal("expected next in-order sequence to be accepted")
	}
	if !w.Accept(0) {
		t.Fatal("expected a slightly-earlier sequence within the window to be accepted")
	}
	if w.Accept(0) {
		t.Fatal("expected the same earlier sequence to be rejected the second time")
	}
}

func TestReplayWindowRejectsOutOfWindow(t *testing.T) {
	var w ReplayWindow
	w.Accept(1000)
	if w.Accept(900) {
		t.Fatal("expected a sequence more than 64 behind the window to be rejected")
	}
}

func TestReplayWindowSlidesForward(t *testing.T) {
	var w ReplayWindow
	w.Accept(10)
	if !w.Accept(200) {
		t.Fatal("expected a large forward jump to be accepted")
	}
	if w.Accept(10) {
		t.Fatal("expected the old sequence to now be outside the window")
	}
}

func TestLocalWinsTieBreakIsLexicographic(t *testing.T) {
	if !LocalWins(HostID{0x01}, HostID{0x02}) {
		t.Fatal("expected lower HostID to win")
	}
	if LocalWins(HostID{0x02}, HostID{0x01}) {
		t.Fatal("expected higher HostID to lose")
	}
}

func TestNewSessionDerivesSymmetricSchedule(t *testing.T) {
	curve := wire.CurveSecp384r1
	aKeys, err := cryptoutil.GenerateEphemeralKeyPair(curve)
	if err != nil {
		t.Fatalf("generate a keys: %v", err)
	}
	bKeys, err := cryptoutil.GenerateEphemeralKeyPair(curve)
	if err != nil {
		t.Fatalf("generate b keys: %v", err)
	}

	now := time.Unix(1000, 0)
	hostA := HostID{0x01}
	hostB := HostID{0x02}

	sessA, err := New(7, hostA, hostB, wire.CipherSuiteECDHE_RSA_AES128_GCM_SHA256, curve, aKeys, bKeys.PublicKeyBytes(), now)
	if err != nil {
		t.Fatalf("new session a: %v", err)
	}
	sessB, err := New(7, hostB, hostA, wire.CipherSuiteECDHE_RSA_AES128_GCM_SHA256, curve, bKeys, aKeys.PublicKeyBytes(), now)
	if err != nil {
		t.Fatalf("new session b: %v", err)
	}

	seq, err := sessA.NextSequence(0, now)
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	ad := wire.AssociatedData(wire.DataType(0), 20, 0)
	sealed := sessA.Outbound.Seal(0, seq, ad, []byte("hello"))

	plaintext, err := sessB.Inbound.Open(0, seq, ad, sealed)
	if err != nil {
		t.Fatalf("expected b to decrypt what a sent: %v", err)
	}
	if string(plaintext) != "hello" {
		t.Fatalf("got %q want %q", plaintext, "hello")
	}

	if !sessB.AcceptSequence(0, seq, now) {
		t.Fatal("expected b's replay window bookkeeping helper to accept the sequence")
	}
	if sessA.State != StateActive {
		t.Fatal("expected session to become active after sending data")
	}
}

func TestNextSequenceReportsExhaustion(t *testing.T) {
	s := &Session{}
	s.outboundSeq[0] = 4294967295
	s.outboundIssued[0] = true
	if _, err := s.NextSequence(0, time.Unix(0, 0)); err != ErrSequenceExhausted {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}
}
