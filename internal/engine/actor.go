// Package engine ties the wire codec, identity/trust validation, session
// handshake, AEAD data framing, and switch/router dispatch into the single
// UDP-socket FSCP engine described in §4/§5.
package engine

import "context"

// actor gives one peer a single-threaded region: every protocol decision
// for that peer runs serially through its inbox, so the session table and
// replay windows need no internal locking (§5).
type actor struct {
	inbox chan func()
}

func newActor() *actor {
	return &actor{inbox: make(chan func(), 256)}
}

// run drains the inbox until ctx is cancelled, executing each submitted
// function to completion before the next.
func (a *actor) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-a.inbox:
			fn()
		}
	}
}

// submit enqueues fn to run on the actor's goroutine. It drops fn rather
// than blocking forever if the actor's inbox is full and ctx is done.
func (a *actor) submit(ctx context.Context, fn func()) {
	select {
	case a.inbox <- fn:
	case <-ctx.Done():
	}
}
