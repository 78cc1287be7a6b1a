package cryptoutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256" // register crypto.SHA256
	_ "crypto/sha512" // register crypto.SHA384
	"fmt"

	"github.com/freelan-go/fscp/internal/wire"
)

// Sign produces a detached RSASSA-PSS signature over payload, salt
// length equal to the suite's digest length, per §4.4.
func Sign(priv *rsa.PrivateKey, cs wire.CipherSuite, payload []byte) ([]byte, error) {
	suite, ok := LookupSuite(cs)
	if !ok {
		return nil, fmt.Errorf("cryptoutil: sign: unknown cipher suite 0x%02x", uint8(cs))
	}
	digest, err := digestFor(suite.Hash, payload)
	if err != nil {
		return nil, err
	}
	sig, err := rsa.SignPSS(rand.Reader, priv, suite.Hash, digest, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       suite.Hash,
	})
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: rsa-pss sign: %w", err)
	}
	return sig, nil
}

// Verify checks a detached RSASSA-PSS signature produced by Sign.
func Verify(pub *rsa.PublicKey, cs wire.CipherSuite, payload, signature []byte) error {
	suite, ok := LookupSuite(cs)
	if !ok {
		return fmt.Errorf("cryptoutil: verify: unknown cipher suite 0x%02x", uint8(cs))
	}
	digest, err := digestFor(suite.Hash, payload)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPSS(pub, suite.Hash, digest, signature, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       suite.Hash,
	}); err != nil {
		return fmt.Errorf("cryptoutil: rsa-pss verify: %w", err)
	}
	return nil
}

func digestFor(h crypto.Hash, payload []byte) ([]byte, error) {
	if !h.Available() {
		return nil, fmt.Errorf("cryptoutil: hash %v not linked into binary", h)
	}
	hasher := h.New()
	hasher.Write(payload)
	return hasher.Sum(nil), nil
}
