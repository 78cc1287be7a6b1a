package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// DirectionKeys is one direction's AEAD key and nonce prefix, derived
// from the ECDHE shared secret (§3: "two symmetric key schedules").
type DirectionKeys struct {
	Key         []byte
	NoncePrefix []byte
}

// AEAD wraps a DirectionKeys into a cipher.AEAD ready to seal/open
// DATA_n bodies.
type AEAD struct {
	aead        cipher.AEAD
	noncePrefix []byte
}

func NewAEAD(dk DirectionKeys) (*AEAD, error) {
	block, err := aes.NewCipher(dk.Key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: aes key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: gcm: %w", err)
	}
	return &AEAD{aead: gcm, noncePrefix: dk.NoncePrefix}, nil
}

// nonce builds nonce_prefix || channel(1) || sequence(4 BE), padded to
// the AEAD's nonce width with zeros, per §4.5.
func (a *AEAD) nonce(channel uint8, sequence uint32) []byte {
	n := make([]byte, a.aead.NonceSize())
	copy(n, a.noncePrefix)
	off := len(a.noncePrefix)
	if off < len(n) {
		n[off] = channel
		off++
	}
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], sequence)
	copy(n[off:], seq[:])
	return n
}

// Overhead returns the number of bytes Seal adds beyond the plaintext
// length, so a caller can compute the sealed length (and thus the
// associated-data length field) before calling Seal.
func (a *AEAD) Overhead() int {
	return a.aead.Overhead()
}

// Seal encrypts plaintext for (channel, sequence), authenticating
// associatedData (the 4-byte header plus channel byte, per §4.5).
func (a *AEAD) Seal(channel uint8, sequence uint32, associatedData, plaintext []byte) []byte {
	nonce := a.nonce(channel, sequence)
	return a.aead.Seal(nil, nonce, plaintext, associatedData)
}

// Open decrypts and authenticates a sealed DATA_n payload.
func (a *AEAD) Open(channel uint8, sequence uint32, associatedData, sealed []byte) ([]byte, error) {
	nonce := a.nonce(channel, sequence)
	plaintext, err := a.aead.Open(nil, nonce, sealed, associatedData)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: aead open: %w", err)
	}
	return plaintext, nil
}
