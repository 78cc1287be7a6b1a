package cryptoutil

import (
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/freelan-go/fscp/internal/wire"
)

// NoncePrefixSize leaves room for channel(1) + sequence(4) in a
// 12-byte AES-GCM nonce.
const NoncePrefixSize = 7

// KeySchedule holds the four keys/nonce-prefixes derived from one
// ECDHE shared secret: local-to-remote and remote-to-local, per §3.
type KeySchedule struct {
	LocalToRemote  DirectionKeys
	RemoteToLocal  DirectionKeys
}

// infoKeyA2B/infoNonceA2B and infoKeyB2A/infoNonceB2A are HKDF info strings. Using
// the lower HostID as the "initiator" anchor keeps both sides deriving
// the same pair of directional schedules without ambiguity about which
// side is "local".
const (
	infoKeyA2B    = "fscp-data-key-a-to-b"
	infoNonceA2B  = "fscp-data-nonce-a-to-b"
	infoKeyB2A    = "fscp-data-key-b-to-a"
	infoNonceB2A  = "fscp-data-nonce-b-to-a"
)

// DeriveKeySchedule expands the ECDH shared secret into a key schedule
// via HKDF using the suite's hash. localIsLower (whether the local HostID
// sorts lower) orders the two directions deterministically:
// the side whose HostID sorts lower derives "AtoB" as its
// local-to-remote schedule.
func DeriveKeySchedule(cs wire.CipherSuite, sharedSecret, salt []byte, localIsLower bool) (KeySchedule, error) {
	suite, ok := LookupSuite(cs)
	if !ok {
		return KeySchedule{}, fmt.Errorf("cryptoutil: derive key schedule: unknown cipher suite 0x%02x", uint8(cs))
	}

	keyA2B, err := expand(suite, sharedSecret, salt, infoKeyA2B, suite.KeySize)
	if err != nil {
		return KeySchedule{}, err
	}
	nonceA2B, err := expand(suite, sharedSecret, salt, infoNonceA2B, NoncePrefixSize)
	if err != nil {
		return KeySchedule{}, err
	}
	keyB2A, err := expand(suite, sharedSecret, salt, infoKeyB2A, suite.KeySize)
	if err != nil {
		return KeySchedule{}, err
	}
	nonceB2A, err := expand(suite, sharedSecret, salt, infoNonceB2A, NoncePrefixSize)
	if err != nil {
		return KeySchedule{}, err
	}

	aToB := DirectionKeys{Key: keyA2B, NoncePrefix: nonceA2B}
	bToA := DirectionKeys{Key: keyB2A, NoncePrefix: nonceB2A}

	if localIsLower {
		return KeySchedule{LocalToRemote: aToB, RemoteToLocal: bToA}, nil
	}
	return KeySchedule{LocalToRemote: bToA, RemoteToLocal: aToB}, nil
}

func expand(suite Suite, secret, salt []byte, info string, size int) ([]byte, error) {
	r := hkdf.New(suite.Hash.New, secret, salt, []byte(info))
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("cryptoutil: hkdf expand %q: %w", info, err)
	}
	return out, nil
}
