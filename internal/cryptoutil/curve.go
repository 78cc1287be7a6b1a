package cryptoutil

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"github.com/freelan-go/fscp/internal/wire"
)

func ecdhCurveFor(c wire.EllipticCurve) (ecdh.Curve, error) {
	switch c {
	case wire.CurveSecp384r1:
		return ecdh.P384(), nil
	case wire.CurveSecp521r1:
		return ecdh.P521(), nil
	case wire.CurveSect571k1:
		return nil, fmt.Errorf("%w: sect571k1", ErrCurveUnavailable)
	default:
		return nil, fmt.Errorf("%w: curve code 0x%02x", ErrCurveUnavailable, uint8(c))
	}
}

// CurveAvailable reports whether this build can actually perform ECDHE
// on c (as opposed to merely being able to name it on the wire).
func CurveAvailable(c wire.EllipticCurve) bool {
	_, err := ecdhCurveFor(c)
	return err == nil
}

// EphemeralKeyPair is a freshly generated ECDHE key pair on a
// negotiated curve.
type EphemeralKeyPair struct {
	curve   ecdh.Curve
	private *ecdh.PrivateKey
}

// GenerateEphemeralKeyPair creates a new ephemeral key pair for curve.
func GenerateEphemeralKeyPair(curve wire.EllipticCurve) (*EphemeralKeyPair, error) {
	ec, err := ecdhCurveFor(curve)
	if err != nil {
		return nil, err
	}
	priv, err := ec.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: generate ephemeral key: %w", err)
	}
	return &EphemeralKeyPair{curve: ec, private: priv}, nil
}

// PublicKeyBytes returns the uncompressed point encoding for the wire.
func (kp *EphemeralKeyPair) PublicKeyBytes() []byte {
	return kp.private.PublicKey().Bytes()
}

// SharedSecret computes the ECDH shared secret against a peer's
// encoded public key on the same curve.
func (kp *EphemeralKeyPair) SharedSecret(curve wire.EllipticCurve, peerPubKey []byte) ([]byte, error) {
	ec, err := ecdhCurveFor(curve)
	if err != nil {
		return nil, err
	}
	peerKey, err := ec.NewPublicKey(peerPubKey)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: decode peer ephemeral public key: %w", err)
	}
	secret, err := kp.private.ECDH(peerKey)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: ecdh: %w", err)
	}
	return secret, nil
}
