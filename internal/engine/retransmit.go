package engine

import (
	"context"
	"time"

	"github.com/freelan-go/fscp/internal/clock"
	"github.com/freelan-go/fscp/internal/fscperr"
)

// retransmit resends by calling send repeatedly at backoff intervals,
// doubling each time, until ack fires, attempts are exhausted, or ctx is
// cancelled. It backs HELLO_REQUEST (§4.2); SESSION_REQUEST and SESSION
// are sent once and are not retransmitted.
//
// ack is a channel closed (or sent to) when the expected reply arrives;
// the caller is responsible for wiring it to the actual message dispatch.
func retransmit(ctx context.Context, clk clock.Clock, attempts int, backoff time.Duration, send func(), ack <-chan struct{}) error {
	if attempts <= 0 {
		attempts = 1
	}
	send()
	delay := backoff
	for i := 1; i < attempts; i++ {
		timer := clk.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fscperr.Cancelled("retransmit cancelled")
		case <-ack:
			timer.Stop()
			return nil
		case <-timer.C():
			send()
			delay *= 2
		}
	}

	timer := clk.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fscperr.Cancelled("retransmit cancelled")
	case <-ack:
		return nil
	case <-timer.C():
		return fscperr.New(fscperr.KindTimeout, "retransmission exhausted", nil)
	}
}
