package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HelloRequest carries a sender-chosen request id that a HelloResponse
// must echo back (§4.2).
type HelloRequest struct {
	RequestID uint32
}

func EncodeHelloRequest(h HelloRequest) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.RequestID)
	return b[:]
}

func DecodeHelloRequest(body []byte) (HelloRequest, error) {
	if len(body) != 4 {
		return HelloRequest{}, fmt.Errorf("%w: hello request body must be 4 bytes, got %d", ErrMalformed, len(body))
	}
	return HelloRequest{RequestID: binary.BigEndian.Uint32(body)}, nil
}

// HelloResponse echoes the request id from the HelloRequest it answers.
type HelloResponse struct {
	RequestID uint32
}

func EncodeHelloResponse(h HelloResponse) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.RequestID)
	return b[:]
}

func DecodeHelloResponse(body []byte) (HelloResponse, error) {
	if len(body) != 4 {
		return HelloResponse{}, fmt.Errorf("%w: hello response body must be 4 bytes, got %d", ErrMalformed, len(body))
	}
	return HelloResponse{RequestID: binary.BigEndian.Uint32(body)}, nil
}

// maxCertificateLength bounds a single DER certificate blob so a
// malicious peer cannot force unbounded allocation from a length prefix.
const maxCertificateLength = 1 << 16

// Presentation carries the sender's signing certificate and, if
// distinct, its encryption certificate (§4.3).
type Presentation struct {
	SigningCertificateDER    []byte
	EncryptionCertificateDER []byte // empty if same as signing
}

func EncodePresentation(p Presentation) []byte {
	var b bytes.Buffer
	writeBlob(&b, p.SigningCertificateDER)
	writeBlob(&b, p.EncryptionCertificateDER)
	return b.Bytes()
}

func DecodePresentation(body []byte) (Presentation, error) {
	r := bytes.NewReader(body)
	sig, err := readBlob(r, maxCertificateLength)
	if err != nil {
		return Presentation{}, err
	}
	enc, err := readBlob(r, maxCertificateLength)
	if err != nil {
		return Presentation{}, err
	}
	if r.Len() != 0 {
		return Presentation{}, fmt.Errorf("%w: trailing bytes in presentation body", ErrMalformed)
	}
	return Presentation{SigningCertificateDER: sig, EncryptionCertificateDER: enc}, nil
}
