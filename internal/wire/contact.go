package wire

import (
	"bytes"
	"fmt"
	"net"
)

// ContactRequest lists the certificate fingerprints the requester would
// like endpoint hints for (§4.6).
type ContactRequest struct {
	Fingerprints [][32]byte
}

func EncodeContactRequest(c ContactRequest) []byte {
	var b bytes.Buffer
	writeByte(&b, byte(len(c.Fingerprints)))
	for _, fp := range c.Fingerprints {
		b.Write(fp[:])
	}
	return b.Bytes()
}

func DecodeContactRequest(body []byte) (ContactRequest, error) {
	r := bytes.NewReader(body)
	n, err := readByte(r)
	if err != nil {
		return ContactRequest{}, err
	}
	fps := make([][32]byte, n)
	for i := range fps {
		if _, err := r.Read(fps[i][:]); err != nil {
			return ContactRequest{}, fmt.Errorf("%w: fingerprint %d: %v", ErrMalformed, i, err)
		}
	}
	if r.Len() != 0 {
		return ContactRequest{}, fmt.Errorf("%w: trailing bytes in contact_request body", ErrMalformed)
	}
	return ContactRequest{Fingerprints: fps}, nil
}

// ContactEntry pairs a fingerprint with the endpoint the responder
// currently has it reachable at.
type ContactEntry struct {
	Fingerprint [32]byte
	IP          net.IP
	Port        uint16
}

// Contact answers a ContactRequest with (fingerprint, endpoint) tuples
// for peers the responder is connected to and permitted to disclose.
type Contact struct {
	Entries []ContactEntry
}

func EncodeContact(c Contact) []byte {
	var b bytes.Buffer
	writeByte(&b, byte(len(c.Entries)))
	for _, e := range c.Entries {
		b.Write(e.Fingerprint[:])
		ip4 := e.IP.To4()
		if ip4 != nil {
			writeByte(&b, 4)
			b.Write(ip4)
		} else {
			writeByte(&b, 6)
			b.Write(e.IP.To16())
		}
		var port [2]byte
		port[0] = byte(e.Port >> 8)
		port[1] = byte(e.Port)
		b.Write(port[:])
	}
	return b.Bytes()
}

func DecodeContact(body []byte) (Contact, error) {
	r := bytes.NewReader(body)
	n, err := readByte(r)
	if err != nil {
		return Contact{}, err
	}
	entries := make([]ContactEntry, n)
	for i := range entries {
		var fp [32]byte
		if _, err := r.Read(fp[:]); err != nil {
			return Contact{}, fmt.Errorf("%w: fingerprint %d: %v", ErrMalformed, i, err)
		}
		family, err := readByte(r)
		if err != nil {
			return Contact{}, err
		}
		var ipLen int
		switch family {
		case 4:
			ipLen = 4
		case 6:
			ipLen = 16
		default:
			return Contact{}, fmt.Errorf("%w: unknown address family %d", ErrMalformed, family)
		}
		ipBytes := make([]byte, ipLen)
		if _, err := r.Read(ipBytes); err != nil {
			return Contact{}, fmt.Errorf("%w: ip %d: %v", ErrMalformed, i, err)
		}
		var portBytes [2]byte
		if _, err := r.Read(portBytes[:]); err != nil {
			return Contact{}, fmt.Errorf("%w: port %d: %v", ErrMalformed, i, err)
		}
		entries[i] = ContactEntry{
			Fingerprint: fp,
			IP:          net.IP(ipBytes),
			Port:        uint16(portBytes[0])<<8 | uint16(portBytes[1]),
		}
	}
	if r.Len() != 0 {
		return Contact{}, fmt.Errorf("%w: trailing bytes in contact body", ErrMalformed)
	}
	return Contact{Entries: entries}, nil
}
