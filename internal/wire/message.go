// Package wire implements the FSCP datagram framing described in the
// protocol's message-framing and data-message sections: a 4-byte header
// followed by a type-specific body, and the tagged union that represents
// a fully parsed message.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Version is the only FSCP wire version this engine speaks.
const Version uint8 = 3

// HeaderLength is the size in bytes of version(1) | type(1) | length(2).
const HeaderLength = 4

// Type identifies the kind of an FSCP message.
type Type uint8

const (
	TypeHelloRequest    Type = 0x00
	TypeHelloResponse   Type = 0x01
	TypePresentation    Type = 0x02
	TypeSessionRequest  Type = 0x03
	TypeSession         Type = 0x04
	TypeData0           Type = 0x10
	TypeData1           Type = 0x11
	TypeData2           Type = 0x12
	TypeData3           Type = 0x13
	TypeData15          Type = 0x1F
	TypeContactRequest  Type = 0x30
	TypeContact         Type = 0x31
)

// Reserved channel numbers, per §4.1.
const (
	ChannelData           = 0
	ChannelContact        = 1
	ChannelContactRequest = 2
	ChannelKeepAlive      = 3
)

// NumChannels is the number of independent per-channel sequence/replay
// streams multiplexed over one session.
const NumChannels = 16

func (t Type) String() string {
	switch {
	case t == TypeHelloRequest:
		return "HELLO_REQUEST"
	case t == TypeHelloResponse:
		return "HELLO_RESPONSE"
	case t == TypePresentation:
		return "PRESENTATION"
	case t == TypeSessionRequest:
		return "SESSION_REQUEST"
	case t == TypeSession:
		return "SESSION"
	case t == TypeContactRequest:
		return "CONTACT_REQUEST"
	case t == TypeContact:
		return "CONTACT"
	case IsDataType(t):
		return fmt.Sprintf("DATA_%d", ChannelOf(t))
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(t))
	}
}

// IsDataType reports whether t is one of the 16 DATA_n message types.
func IsDataType(t Type) bool {
	return t >= TypeData0 && t <= TypeData15
}

// ChannelOf recovers a channel number from a DATA_n message type by
// masking the low 4 bits, mirroring the original implementation's
// to_channel_number.
func ChannelOf(t Type) uint8 {
	return uint8(t) & 0x0F
}

// DataType constructs the DATA_n message type for a channel number,
// mirroring to_data_message_type. channel must be in [0,15].
func DataType(channel uint8) Type {
	return TypeData0 + Type(channel&0x0F)
}

// Frame is a parsed-but-not-decoded datagram: header plus raw body.
type Frame struct {
	Type Type
	Body []byte
}

// ErrMalformed is returned (wrapped) for any header/body layout violation.
var ErrMalformed = fmt.Errorf("fscp: malformed message")

// ParseFrame validates and splits the 4-byte header from a raw UDP
// payload. It does not interpret the body.
func ParseFrame(datagram []byte) (Frame, error) {
	if len(datagram) < HeaderLength {
		return Frame{}, fmt.Errorf("%w: datagram shorter than header (%d bytes)", ErrMalformed, len(datagram))
	}
	version := datagram[0]
	if version != Version {
		return Frame{}, fmt.Errorf("%w: unsupported version %d", ErrMalformed, version)
	}
	typ := Type(datagram[1])
	length := binary.BigEndian.Uint16(datagram[2:4])
	body := datagram[HeaderLength:]
	if int(length) > len(body) {
		return Frame{}, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrMalformed, length, len(body))
	}
	return Frame{Type: typ, Body: body[:length]}, nil
}

// WriteFrame serializes a header+body into dst, reusing its storage when
// the capacity allows (dst may be nil), returning the full datagram.
func WriteFrame(dst []byte, typ Type, body []byte) []byte {
	dst = append(dst[:0], Version, uint8(typ), 0, 0)
	binary.BigEndian.PutUint16(dst[2:4], uint16(len(body)))
	dst = append(dst, body...)
	return dst
}

// AssociatedData returns the 4-byte FSCP header plus the channel number
// byte, used as AEAD associated data for DATA messages (§4.5).
func AssociatedData(typ Type, length int, channel uint8) []byte {
	var ad [HeaderLength + 1]byte
	ad[0] = Version
	ad[1] = uint8(typ)
	binary.BigEndian.PutUint16(ad[2:4], uint16(length))
	ad[4] = channel
	return ad[:]
}
