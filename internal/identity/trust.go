package identity

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/freelan-go/fscp/internal/cryptoutil"
)

// RejectionKind distinguishes why a certificate was refused, so callers can
// report PresentationRejected with the right sub-kind (§4.3, §7).
type RejectionKind int

const (
	RejectionNone RejectionKind = iota
	RejectionUntrusted
	RejectionExpired
	RejectionKeyUsage
	RejectionMismatch
)

// RejectionError reports a failed certificate validation with its kind.
type RejectionError struct {
	Kind RejectionKind
	Err  error
}

func (e *RejectionError) Error() string { return e.Err.Error() }
func (e *RejectionError) Unwrap() error { return e.Err }

// TrustStore validates remote certificates either by chain-building against
// a pool of trust anchors, or by exact match against a pinned-certificate
// set, per §4.3 step 1.
type TrustStore struct {
	anchors *x509.CertPool
	pinned  map[[32]byte]*x509.Certificate
	now     func() time.Time
}

// NewTrustStore builds a TrustStore from a list of trust anchor
// certificates and an optional list of pinned certificates. A nil or empty
// anchors list with a non-empty pinned list restricts validation to pinning
// only.
func NewTrustStore(anchors, pinned []*x509.Certificate) *TrustStore {
	pool := x509.NewCertPool()
	for _, a := range anchors {
		pool.AddCert(a)
	}
	pinnedSet := make(map[[32]byte]*x509.Certificate, len(pinned))
	for _, p := range pinned {
		pinnedSet[cryptoutil.Fingerprint(p.Raw)] = p
	}
	return &TrustStore{anchors: pool, pinned: pinnedSet, now: time.Now}
}

// Validate checks cert against the trust store (chain-or-pin), validity
// dates, and the required key usage, returning a *RejectionError on
// failure so the caller can recover the sub-kind.
func (t *TrustStore) Validate(cert *x509.Certificate, requiredUsage x509.KeyUsage) error {
	now := t.now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return &RejectionError{Kind: RejectionExpired, Err: fmt.Errorf("identity: certificate %q not valid at %s (window %s..%s)", cert.Subject, now, cert.NotBefore, cert.NotAfter)}
	}

	if cert.KeyUsage != 0 && requiredUsage != 0 && cert.KeyUsage&requiredUsage == 0 {
		return &RejectionError{Kind: RejectionKeyUsage, Err: fmt.Errorf("identity: certificate %q lacks required key usage", cert.Subject)}
	}

	if _, pinned := t.pinned[cryptoutil.Fingerprint(cert.Raw)]; pinned {
		return nil
	}

	if len(t.pinned) > 0 && t.anchors.Equal(x509.NewCertPool()) {
		return &RejectionError{Kind: RejectionUntrusted, Err: fmt.Errorf("identity: certificate %q is not in the pinned set", cert.Subject)}
	}

	opts := x509.VerifyOptions{Roots: t.anchors, CurrentTime: now, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny}}
	if _, err := cert.Verify(opts); err != nil {
		return &RejectionError{Kind: RejectionUntrusted, Err: fmt.Errorf("identity: certificate %q does not chain to a trust anchor: %w", cert.Subject, err)}
	}
	return nil
}
