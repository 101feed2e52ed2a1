// Package analytics carries the engine's fire-and-forget event stream.
// Delivery is best-effort: sinks never return errors to callers.
package analytics

import (
	"context"
	"sync"
	"time"
)

// Event names emitted by the engine and by banner UI callbacks.
const (
	EventABTestAssignment           = "ab_test_assignment"
	EventABTestConversion           = "ab_test_conversion"
	EventABTestInteraction          = "ab_test_interaction"
	EventRestrictionHit             = "restriction_hit"
	EventEngagementStageProgression = "engagement_stage_progression"
	EventGuestInteraction           = "guest_interaction"
	EventBannerDismiss              = "banner_dismiss"
	EventBannerSignupClick          = "banner_signup_click"
	EventBannerUpgradeClick         = "banner_upgrade_click"
)

// Sink receives analytics events.
type Sink interface {
	Track(ctx context.Context, name string, props map[string]interface{})
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, name string, props map[string]interface{})

// Track implements Sink.
func (f SinkFunc) Track(ctx context.Context, name string, props map[string]interface{}) {
	f(ctx, name, props)
}

// Nop discards every event.
var Nop Sink = SinkFunc(func(context.Context, string, map[string]interface{}) {})

// Event is a recorded analytics event.
type Event struct {
	Name       string
	Properties map[string]interface{}
	Timestamp  time.Time
}

// Recorder keeps events in memory. It is used by tests and debugging endpoints.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Track implements Sink.
func (r *Recorder) Track(_ context.Context, name string, props map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, Properties: props, Timestamp: time.Now()})
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
