package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Callbacks run synchronously inside Advance,
// on the caller's goroutine, in due-time order.
type Fake struct {
	mu        sync.Mutex
	now       time.Time
	schedules map[int]*fakeSchedule
	nextID    int
}

type fakeSchedule struct {
	id       int
	interval time.Duration
	next     time.Time
	fn       func()
	fake     *Fake
}

// NewFake creates a fake clock positioned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{
		now:       start,
		schedules: make(map[int]*fakeSchedule),
	}
}

// Now returns the current virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Every registers a virtual ticker.
func (f *Fake) Every(d time.Duration, fn func()) Stopper {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	s := &fakeSchedule{
		id:       f.nextID,
		interval: d,
		next:     f.now.Add(d),
		fn:       fn,
		fake:     f,
	}
	f.schedules[s.id] = s
	return s
}

// Active returns the number of schedules that have not been stopped.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.schedules)
}

// Advance moves virtual time forward by d, firing every due tick.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		due := f.nextDue(target)
		if due == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = due.next
		due.next = due.next.Add(due.interval)
		fn := due.fn
		f.mu.Unlock()

		fn()
	}
}

// nextDue returns the earliest schedule due at or before target. Caller holds mu.
func (f *Fake) nextDue(target time.Time) *fakeSchedule {
	var due []*fakeSchedule
	for _, s := range f.schedules {
		if !s.next.After(target) {
			due = append(due, s)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}

func (s *fakeSchedule) Stop() {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	delete(s.fake.schedules, s.id)
}
