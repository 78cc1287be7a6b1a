package fscperr

import (
	"errors"
	"testing"
)

func TestIsKindMatchesAcrossWrapping(t *testing.T) {
	base := errors.New("socket closed")
	err := New(KindTransport, "send failed", base)
	if !IsKind(err, KindTransport) {
		t.Fatal("expected IsKind to match KindTransport")
	}
	if IsKind(err, KindCrypto) {
		t.Fatal("did not expect IsKind to match an unrelated kind")
	}
}

func TestPolicySentinelMatchesSubKind(t *testing.T) {
	err := NewPolicy(PolicySubKindUntrusted, "certificate does not chain to a trust anchor", nil)
	if !errors.Is(err, PolicySentinel(PolicySubKindUntrusted)) {
		t.Fatal("expected errors.Is to match on policy sub-kind")
	}
	if errors.Is(err, PolicySentinel(PolicySubKindExpired)) {
		t.Fatal("did not expect errors.Is to match a different sub-kind")
	}
	if !errors.Is(err, Sentinel(KindPolicy)) {
		t.Fatal("expected errors.Is to match the bare policy kind")
	}
}

func TestUnwrapReachesUnderlyingError(t *testing.T) {
	base := errors.New("boom")
	err := Malformed("bad frame", base)
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to unwrap to the underlying error")
	}
}
