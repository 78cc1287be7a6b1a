package wire

import "fmt"

// Message is the tagged union produced by Parse: exactly one of the
// typed fields is populated, selected by Type. This replaces a
// dynamic-downcast-over-message-kinds pattern with a single sum type,
// per the engine's design notes.
type Message struct {
	Type Type

	HelloRequest   HelloRequest
	HelloResponse  HelloResponse
	Presentation   Presentation
	SessionRequest SessionRequest
	Session        Session
	Data           DataBody
	ContactRequest ContactRequest
	Contact        Contact

	// Channel is populated (from Type) whenever Type is a DATA_n type.
	Channel uint8
}

// Parse parses a full FSCP datagram into the header-identified Frame
// and then decodes the type-specific body into a Message.
func Parse(datagram []byte) (Message, error) {
	frame, err := ParseFrame(datagram)
	if err != nil {
		return Message{}, err
	}
	return ParseBody(frame.Type, frame.Body)
}

// ParseBody decodes a frame body already split from its header.
func ParseBody(typ Type, body []byte) (Message, error) {
	msg := Message{Type: typ}
	switch {
	case typ == TypeHelloRequest:
		v, err := DecodeHelloRequest(body)
		if err != nil {
			return Message{}, err
		}
		msg.HelloRequest = v
	case typ == TypeHelloResponse:
		v, err := DecodeHelloResponse(body)
		if err != nil {
			return Message{}, err
		}
		msg.HelloResponse = v
	case typ == TypePresentation:
		v, err := DecodePresentation(body)
		if err != nil {
			return Message{}, err
		}
		msg.Presentation = v
	case typ == TypeSessionRequest:
		v, err := DecodeSessionRequest(body)
		if err != nil {
			return Message{}, err
		}
		msg.SessionRequest = v
	case typ == TypeSession:
		v, err := DecodeSession(body)
		if err != nil {
			return Message{}, err
		}
		msg.Session = v
	case typ == TypeContactRequest:
		v, err := DecodeContactRequest(body)
		if err != nil {
			return Message{}, err
		}
		msg.ContactRequest = v
	case typ == TypeContact:
		v, err := DecodeContact(body)
		if err != nil {
			return Message{}, err
		}
		msg.Contact = v
	case IsDataType(typ):
		v, err := DecodeDataBody(body)
		if err != nil {
			return Message{}, err
		}
		msg.Data = v
		msg.Channel = ChannelOf(typ)
	default:
		return Message{}, fmt.Errorf("%w: unknown message type 0x%02x", ErrMalformed, uint8(typ))
	}
	return msg, nil
}

// Encode serializes msg back into a full datagram, the inverse of Parse.
func Encode(msg Message) []byte {
	var body []byte
	switch {
	case msg.Type == TypeHelloRequest:
		body = EncodeHelloRequest(msg.HelloRequest)
	case msg.Type == TypeHelloResponse:
		body = EncodeHelloResponse(msg.HelloResponse)
	case msg.Type == TypePresentation:
		body = EncodePresentation(msg.Presentation)
	case msg.Type == TypeSessionRequest:
		body = EncodeSessionRequest(msg.SessionRequest)
	case msg.Type == TypeSession:
		body = EncodeSession(msg.Session)
	case msg.Type == TypeContactRequest:
		body = EncodeContactRequest(msg.ContactRequest)
	case msg.Type == TypeContact:
		body = EncodeContact(msg.Contact)
	case IsDataType(msg.Type):
		body = EncodeDataBody(msg.Data)
	}
	return WriteFrame(nil, msg.Type, body)
}
