package session

import (
	"github.com/freelan-go/fscp/internal/cryptoutil"
	"github.com/freelan-go/fscp/internal/wire"
)

// PendingRequest is the local state kept between sending a SESSION_REQUEST
// and receiving the matching SESSION: the session number proposed and the
// ephemeral key pair generated for it, so the shared secret can be derived
// once the peer's ephemeral public key arrives.
type PendingRequest struct {
	Number  uint32
	KeyPair *cryptoutil.EphemeralKeyPair
	Suite   wire.CipherSuite
	Curve   wire.EllipticCurve
}
