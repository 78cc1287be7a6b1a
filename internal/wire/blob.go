package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// writeBlob/readBlob follow the teacher's length-prefixed blob
// convention (u32 big-endian length || bytes), reused here for every
// variable-length field in a message body.

func writeBlob(w *bytes.Buffer, b []byte) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
	w.Write(hdr[:])
	w.Write(b)
}

func readBlob(r *bytes.Reader, maxLen int) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: blob length: %v", ErrMalformed, err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if maxLen > 0 && int(n) > maxLen {
		return nil, fmt.Errorf("%w: blob length %d exceeds limit %d", ErrMalformed, n, maxLen)
	}
	if int(n) > r.Len() {
		return nil, fmt.Errorf("%w: blob length %d exceeds remaining %d bytes", ErrMalformed, n, r.Len())
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: blob body: %v", ErrMalformed, err)
	}
	return b, nil
}

func writeByte(w *bytes.Buffer, b byte) {
	w.WriteByte(b)
}

func readByte(r *bytes.Reader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: expected byte: %v", ErrMalformed, err)
	}
	return b, nil
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: expected uint32: %v", ErrMalformed, err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: expected uint64: %v", ErrMalformed, err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
