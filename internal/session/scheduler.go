package session

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled callback. Safe to call more than once.
type CancelFunc func()

// Scheduler abstracts the periodic timers that drive the clock, the
// checkpoint loop, the compliance probe and the violation cooldown. The
// monitor never touches time.Ticker directly so tests can drive every timer
// by hand.
type Scheduler interface {
	// Every invokes fn repeatedly at the given interval until cancelled.
	Every(interval time.Duration, fn func()) CancelFunc
	// After invokes fn once after the given delay unless cancelled first.
	After(delay time.Duration, fn func()) CancelFunc
}

// TickerScheduler is the production Scheduler backed by the wall clock.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(stop) })
	}
}

func (TickerScheduler) After(delay time.Duration, fn func()) CancelFunc {
	timer := time.AfterFunc(delay, fn)
	return func() { timer.Stop() }
}
