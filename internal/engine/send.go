package engine

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/freelan-go/fscp/internal/wire"
)

// outboundDatagram is one write request for the serialized send queue.
type outboundDatagram struct {
	to   wire.Endpoint
	data []byte
}

// sendQueue serializes all writes to the single-owner UDP socket (§5:
// "writes are serialized via an internal send queue").
type sendQueue struct {
	conn  *net.UDPConn
	queue chan outboundDatagram
	log   *zap.Logger
}

func newSendQueue(conn *net.UDPConn, log *zap.Logger) *sendQueue {
	return &sendQueue{conn: conn, queue: make(chan outboundDatagram, 1024), log: log}
}

func (q *sendQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case dg := <-q.queue:
			if _, err := q.conn.WriteToUDP(dg.data, dg.to.UDPAddr()); err != nil {
				q.log.Warn("udp write failed", zap.Stringer("to", dg.to), zap.Error(err))
			}
		}
	}
}

// enqueue schedules a write, dropping it if ctx is done first.
func (q *sendQueue) enqueue(ctx context.Context, to wire.Endpoint, data []byte) {
	select {
	case q.queue <- outboundDatagram{to: to, data: data}:
	case <-ctx.Done():
	}
}
