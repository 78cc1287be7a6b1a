// Package clock abstracts time so retransmission back-off, replay-window,
// and session-idle logic can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of time-related operations the engine needs.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) Timer
}

// Timer mirrors time.Timer's Stop/Reset surface so fakes can control
// firing without a real scheduler.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// System is the production Clock backed by the time package.
type System struct{}

func (System) Now() time.Time                         { return time.Now() }
func (System) After(d time.Duration) <-chan time.Time  { return time.After(d) }
func (System) NewTimer(d time.Duration) Timer          { return &systemTimer{t: time.NewTimer(d)} }

type systemTimer struct {
	t *time.Timer
}

func (s *systemTimer) C() <-chan time.Time       { return s.t.C }
func (s *systemTimer) Stop() bool                { return s.t.Stop() }
func (s *systemTimer) Reset(d time.Duration) bool { return s.t.Reset(d) }
