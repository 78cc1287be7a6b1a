// Package bufpool bounds receive-loop allocation churn with a pool of
// fixed-size datagram buffers and a heap fallback for oversized requests
// (§5: "the memory pool... bounds allocation churn in the receive loop").
package bufpool

import pool "github.com/libp2p/go-buffer-pool"

// DatagramSize is large enough for any FSCP datagram over a standard
// Ethernet-bound path (header + largest body, §4.1/§6).
const DatagramSize = 2048

// Get returns a buffer of at least size bytes, drawn from the pool when
// size fits within DatagramSize and allocated directly otherwise.
func Get(size int) []byte {
	if size <= DatagramSize {
		return pool.Get(DatagramSize)[:size]
	}
	return make([]byte, size)
}

// Put returns buf to the pool. Buffers not obtained from Get (e.g. the
// heap-fallback path, or slices grown beyond DatagramSize) are silently
// dropped rather than pooled.
func Put(buf []byte) {
	if cap(buf) == DatagramSize {
		pool.Put(buf[:cap(buf)])
	}
}
