// Package clock provides the time source and scheduled ticks used by the engine.
// Production code uses Real; tests drive a Fake to advance virtual time.
package clock

import (
	"sync"
	"time"
)

// Stopper cancels a scheduled tick. Stop is safe to call more than once.
type Stopper interface {
	Stop()
}

// Clock is the time capability injected into trackers and monitors.
type Clock interface {
	Now() time.Time
	// Every runs fn once per interval d until the returned Stopper is stopped.
	Every(d time.Duration, fn func()) Stopper
}

type realClock struct{}

// Real returns a Clock backed by the wall clock.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Every(d time.Duration, fn func()) Stopper {
	t := &realTicker{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.loop(fn)
	return t
}

type realTicker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *realTicker) loop(fn func()) {
	for {
		select {
		case <-t.ticker.C:
			fn()
		case <-t.done:
			return
		}
	}
}

func (t *realTicker) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
