package core

import "time"

// Clock abstracts wall-clock time and one-shot timers so the retry and
// grace-window machinery is testable without sleeping.
type Clock interface {
	Now() time.Time
	// AfterFunc arms a one-shot timer and returns its cancel func.
	AfterFunc(d time.Duration, fn func()) func()
}

type realClock struct{}

// RealClock returns the process wall clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
