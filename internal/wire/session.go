package wire

import (
	"bytes"
	"fmt"
)

const (
	maxSuiteList = 16
	maxCurveList = 16
	maxHostID    = 32
	maxSig       = 512 // RSA-4096 PSS signature upper bound
	maxPubKey    = 256 // uncompressed P-521 point plus headroom
)

// SessionRequest is the initiator's proposal for a new session (§4.4).
// Alongside its capability lists it carries its own ephemeral public key:
// since either side may initiate, and both sides must end up with the same
// ECDH shared secret, the initiator's ephemeral key has to travel on the
// wire exactly like the responder's does in SESSION.
type SessionRequest struct {
	SessionNumber   uint32
	HostID          []byte // 32 bytes
	CipherSuites    []CipherSuite
	Curves          []EllipticCurve
	EphemeralPubKey []byte
	Signature       []byte // detached PSS signature over the fields above
}

// SignedPayload returns the bytes the signature in a SessionRequest
// covers: session number, host id, cipher suite list, curve list, and the
// sender's ephemeral public key.
func (s SessionRequest) SignedPayload() []byte {
	var b bytes.Buffer
	writeUint32(&b, s.SessionNumber)
	writeBlob(&b, s.HostID)
	writeByte(&b, byte(len(s.CipherSuites)))
	for _, cs := range s.CipherSuites {
		writeByte(&b, byte(cs))
	}
	writeByte(&b, byte(len(s.Curves)))
	for _, c := range s.Curves {
		writeByte(&b, byte(c))
	}
	writeBlob(&b, s.EphemeralPubKey)
	return b.Bytes()
}

func EncodeSessionRequest(s SessionRequest) []byte {
	var b bytes.Buffer
	b.Write(s.SignedPayload())
	writeBlob(&b, s.Signature)
	return b.Bytes()
}

func DecodeSessionRequest(body []byte) (SessionRequest, error) {
	r := bytes.NewReader(body)
	sessionNumber, err := readUint32(r)
	if err != nil {
		return SessionRequest{}, err
	}
	hostID, err := readBlob(r, maxHostID)
	if err != nil {
		return SessionRequest{}, err
	}
	if len(hostID) != maxHostID {
		return SessionRequest{}, fmt.Errorf("%w: host id must be %d bytes, got %d", ErrMalformed, maxHostID, len(hostID))
	}
	nSuites, err := readByte(r)
	if err != nil {
		return SessionRequest{}, err
	}
	if int(nSuites) > maxSuiteList {
		return SessionRequest{}, fmt.Errorf("%w: too many cipher suites (%d)", ErrMalformed, nSuites)
	}
	suites := make([]CipherSuite, nSuites)
	for i := range suites {
		v, err := readByte(r)
		if err != nil {
			return SessionRequest{}, err
		}
		suites[i] = CipherSuite(v)
	}
	nCurves, err := readByte(r)
	if err != nil {
		return SessionRequest{}, err
	}
	if int(nCurves) > maxCurveList {
		return SessionRequest{}, fmt.Errorf("%w: too many curves (%d)", ErrMalformed, nCurves)
	}
	curves := make([]EllipticCurve, nCurves)
	for i := range curves {
		v, err := readByte(r)
		if err != nil {
			return SessionRequest{}, err
		}
		curves[i] = EllipticCurve(v)
	}
	pub, err := readBlob(r, maxPubKey)
	if err != nil {
		return SessionRequest{}, err
	}
	sig, err := readBlob(r, maxSig)
	if err != nil {
		return SessionRequest{}, err
	}
	if r.Len() != 0 {
		return SessionRequest{}, fmt.Errorf("%w: trailing bytes in session_request body", ErrMalformed)
	}
	return SessionRequest{
		SessionNumber:   sessionNumber,
		HostID:          hostID,
		CipherSuites:    suites,
		Curves:          curves,
		EphemeralPubKey: pub,
		Signature:       sig,
	}, nil
}

// Session is the responder's accept of a SessionRequest (§4.4).
type Session struct {
	SessionNumber   uint32
	HostID          []byte
	CipherSuite     CipherSuite
	Curve           EllipticCurve
	EphemeralPubKey []byte
	Signature       []byte
}

func (s Session) SignedPayload() []byte {
	var b bytes.Buffer
	writeUint32(&b, s.SessionNumber)
	writeBlob(&b, s.HostID)
	writeByte(&b, byte(s.CipherSuite))
	writeByte(&b, byte(s.Curve))
	writeBlob(&b, s.EphemeralPubKey)
	return b.Bytes()
}

func EncodeSession(s Session) []byte {
	var b bytes.Buffer
	b.Write(s.SignedPayload())
	writeBlob(&b, s.Signature)
	return b.Bytes()
}

func DecodeSession(body []byte) (Session, error) {
	r := bytes.NewReader(body)
	sessionNumber, err := readUint32(r)
	if err != nil {
		return Session{}, err
	}
	hostID, err := readBlob(r, maxHostID)
	if err != nil {
		return Session{}, err
	}
	if len(hostID) != maxHostID {
		return Session{}, fmt.Errorf("%w: host id must be %d bytes, got %d", ErrMalformed, maxHostID, len(hostID))
	}
	suite, err := readByte(r)
	if err != nil {
		return Session{}, err
	}
	curve, err := readByte(r)
	if err != nil {
		return Session{}, err
	}
	pub, err := readBlob(r, maxPubKey)
	if err != nil {
		return Session{}, err
	}
	sig, err := readBlob(r, maxSig)
	if err != nil {
		return Session{}, err
	}
	if r.Len() != 0 {
		return Session{}, fmt.Errorf("%w: trailing bytes in session body", ErrMalformed)
	}
	return Session{
		SessionNumber:   sessionNumber,
		HostID:          hostID,
		CipherSuite:     CipherSuite(suite),
		Curve:           EllipticCurve(curve),
		EphemeralPubKey: pub,
		Signature:       sig,
	}, nil
}
