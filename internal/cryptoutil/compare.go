package cryptoutil

import "crypto/subtle"

// ConstantTimeEqual reports whether a and b are equal in time
// independent of their contents, as required for comparing anything
// derived from secret key material (§6).
func ConstantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
