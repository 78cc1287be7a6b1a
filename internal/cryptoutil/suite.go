// Package cryptoutil wraps the cryptographic primitives spec.md treats
// as a collaborator contract (§6): RSASSA-PSS signing, ECDHE over the
// negotiated curve, AES-GCM AEAD, the session key schedule, and
// certificate fingerprinting. Every primitive used here is either the
// Go standard library (the primitive layer the spec explicitly
// sanctions) or golang.org/x/crypto/hkdf (already part of the
// teacher's dependency closure).
package cryptoutil

import (
	"crypto"
	"errors"

	"github.com/freelan-go/fscp/internal/wire"
)

// ErrCurveUnavailable is returned for a syntactically valid but
// unimplemented curve selection. sect571k1 is a binary (Koblitz, GF(2^m))
// curve; the Go standard library's crypto/ecdh only implements the NIST
// prime-field curves (P-256/P-384/P-521) and X25519, and none of the
// example repositories in this corpus carry a GF(2^m) curve
// implementation either. Rather than vendor one, sect571k1 stays in the
// wire enumeration (so SESSION_REQUEST/SESSION negotiation lists remain
// wire-compatible with the original protocol) but is rejected at
// selection time with this error. See DESIGN.md's Open Questions.
var ErrCurveUnavailable = errors.New("cryptoutil: curve not available in this build")

// Suite bundles the AEAD and hash parameters named by a CipherSuite.
type Suite struct {
	Name      wire.CipherSuite
	KeySize   int        // AES key size in bytes (16 or 32)
	Hash      crypto.Hash
	NonceSize int // AEAD nonce width, always 12 for AES-GCM here
}

var suites = map[wire.CipherSuite]Suite{
	wire.CipherSuiteECDHE_RSA_AES128_GCM_SHA256: {
		Name: wire.CipherSuiteECDHE_RSA_AES128_GCM_SHA256, KeySize: 16, Hash: crypto.SHA256, NonceSize: 12,
	},
	wire.CipherSuiteECDHE_RSA_AES256_GCM_SHA384: {
		Name: wire.CipherSuiteECDHE_RSA_AES256_GCM_SHA384, KeySize: 32, Hash: crypto.SHA384, NonceSize: 12,
	},
}

// LookupSuite resolves a wire cipher suite code, reporting whether it
// is known.
func LookupSuite(cs wire.CipherSuite) (Suite, bool) {
	s, ok := suites[cs]
	return s, ok
}

// NegotiateSuite picks the first suite in local's preference order that
// also appears in remote, matching §4.4 ("picks the first acceptable
// pair in its own preference order").
func NegotiateSuite(local, remote []wire.CipherSuite) (wire.CipherSuite, bool) {
	remoteSet := make(map[wire.CipherSuite]struct{}, len(remote))
	for _, r := range remote {
		remoteSet[r] = struct{}{}
	}
	for _, l := range local {
		if _, ok := suites[l]; !ok {
			continue
		}
		if _, ok := remoteSet[l]; ok {
			return l, true
		}
	}
	return wire.CipherSuiteUnsupported, false
}

// NegotiateCurve picks the first curve in local's preference order that
// also appears in remote and is actually available in this build.
func NegotiateCurve(local, remote []wire.EllipticCurve) (wire.EllipticCurve, bool) {
	remoteSet := make(map[wire.EllipticCurve]struct{}, len(remote))
	for _, r := range remote {
		remoteSet[r] = struct{}{}
	}
	for _, l := range local {
		if !CurveAvailable(l) {
			continue
		}
		if _, ok := remoteSet[l]; ok {
			return l, true
		}
	}
	return wire.CurveUnsupported, false
}

