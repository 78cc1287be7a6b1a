package cryptoutil

import "crypto/sha256"

// Fingerprint is the SHA-256 digest of a DER-encoded certificate,
// matching the original implementation's get_certificate_hash and used
// for CONTACT_REQUEST/CONTACT (§4.6).
func Fingerprint(certDER []byte) [32]byte {
	return sha256.Sum256(certDER)
}
