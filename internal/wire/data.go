package wire

import (
	"encoding/binary"
	"fmt"
)

// DataBody is sequence_number(4 BE) | ciphertext | auth_tag (§4.5). The
// engine treats ciphertext||auth_tag as one opaque blob handed to the
// AEAD; this package only peels off the sequence number.
type DataBody struct {
	SequenceNumber uint32
	Sealed         []byte // ciphertext + auth tag
}

func EncodeDataBody(d DataBody) []byte {
	out := make([]byte, 4+len(d.Sealed))
	binary.BigEndian.PutUint32(out[:4], d.SequenceNumber)
	copy(out[4:], d.Sealed)
	return out
}

func DecodeDataBody(body []byte) (DataBody, error) {
	if len(body) < 4 {
		return DataBody{}, fmt.Errorf("%w: data body shorter than sequence number field", ErrMalformed)
	}
	return DataBody{
		SequenceNumber: binary.BigEndian.Uint32(body[:4]),
		Sealed:         body[4:],
	}, nil
}

// KeepAliveOpaquePayload is the well-known opaque payload a keep-alive
// carries on ChannelKeepAlive (DATA_3), before AEAD sealing.
var KeepAliveOpaquePayload = []byte("fscp-keep-alive")
