// Package fscperr defines the typed error taxonomy used across the engine
// so callers can distinguish transport, protocol, crypto, policy, state,
// resource, and timing failures with errors.Is/errors.As (§7).
package fscperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way §7 enumerates them.
type Kind int

const (
	KindTransport Kind = iota
	KindMalformed
	KindCrypto
	KindPolicy
	KindState
	KindResource
	KindTimeout
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindCrypto:
		return "crypto"
	case KindPolicy:
		return "policy"
	case KindState:
		return "state"
	case KindResource:
		return "resource"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PolicySubKind refines KindPolicy failures (§4.3, §7): untrusted
// certificate, expired certificate, subject/issuer mismatch, peer rotation
// disabled, unsolicited presentation.
type PolicySubKind int

const (
	PolicySubKindNone PolicySubKind = iota
	PolicySubKindUntrusted
	PolicySubKindExpired
	PolicySubKindMismatch
	PolicySubKindRotationDisabled
	PolicySubKindUnsolicited
)

// Error is a typed engine error carrying a Kind (and, for policy failures,
// a PolicySubKind) so callers can branch with errors.Is rather than string
// matching.
type Error struct {
	Kind    Kind
	Sub     PolicySubKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, fscperr.Kind(...)) style sentinels by
// comparing Kind and, when set, Sub.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Sub != PolicySubKindNone && t.Sub != e.Sub {
		return false
	}
	return true
}

// New builds an *Error of the given kind wrapping err.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewPolicy builds a KindPolicy *Error with a specific sub-kind.
func NewPolicy(sub PolicySubKind, message string, err error) *Error {
	return &Error{Kind: KindPolicy, Sub: sub, Message: message, Err: err}
}

// Sentinel returns a comparison target for errors.Is(err, fscperr.Sentinel(KindX)).
func Sentinel(kind Kind) error {
	return &Error{Kind: kind}
}

// PolicySentinel returns a comparison target for a specific policy
// sub-kind.
func PolicySentinel(sub PolicySubKind) error {
	return &Error{Kind: KindPolicy, Sub: sub}
}

// HelloTimeout, Replay, etc. name the common failure cases from §7/§4 as
// convenience constructors.
func HelloTimeout(err error) *Error {
	return New(KindTimeout, "hello request timed out", err)
}

func Replay(channel uint8, sequence uint32) *Error {
	return New(KindMalformed, fmt.Sprintf("replayed or out-of-window sequence %d on channel %d", sequence, channel), nil)
}

func Malformed(message string, err error) *Error {
	return New(KindMalformed, message, err)
}

func Cancelled(message string) *Error {
	return New(KindCancelled, message, nil)
}

// IsKind reports whether err (or any error it wraps) carries kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, Sentinel(kind))
}
