package engagement

import (
	"context"
	"sync"
	"time"

	"github.com/pocketbudget/entitlement-engine/pkg/analytics"
	"github.com/pocketbudget/entitlement-engine/pkg/clock"
	"github.com/pocketbudget/entitlement-engine/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// TickInterval is how often time spent advances while the tracker is active.
const TickInterval = time.Second

// Snapshot is a consistent view of the tracker counters.
type Snapshot struct {
	Active           bool  `json:"active"`
	TimeSpentSeconds int   `json:"timeSpentSeconds"`
	InteractionCount int   `json:"interactionCount"`
	Stage            Stage `json:"stage"`
	PendingTriggers  int   `json:"pendingTriggers"`
}

// Tracker counts time and interactions while restricted mode is active and
// advances the engagement stage. The stage never regresses during an activation;
// Stop resets everything back to StageInitial.
type Tracker struct {
	mu         sync.Mutex
	clock      clock.Clock
	sink       analytics.Sink
	thresholds Thresholds
	sessionID  string

	ticker     clock.Stopper
	generation int
	active     bool

	timeSpent    int
	interactions int
	stage        Stage
	fired        map[string]bool
	queue        []string
}

// NewTracker creates an inactive tracker.
func NewTracker(clk clock.Clock, sink analytics.Sink, thresholds Thresholds, sessionID string) *Tracker {
	if sink == nil {
		sink = analytics.Nop
	}
	return &Tracker{
		clock:      clk,
		sink:       sink,
		thresholds: thresholds,
		sessionID:  sessionID,
		fired:      make(map[string]bool),
	}
}

// Start activates the tracker and schedules the 1 Hz tick. Calling Start on an
// active tracker does nothing, so there is never more than one schedule.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		return
	}
	t.active = true
	t.generation++
	gen := t.generation
	t.ticker = t.clock.Every(TickInterval, func() { t.tick(gen) })

	logrus.Debugf("engagement tracker started for session %s", t.sessionID)
}

// Stop cancels the tick and resets all counters.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	t.ticker.Stop()
	t.ticker = nil
	t.active = false
	t.reset()

	logrus.Debugf("engagement tracker stopped for session %s", t.sessionID)
}

func (t *Tracker) reset() {
	t.timeSpent = 0
	t.interactions = 0
	t.stage = StageInitial
	t.fired = make(map[string]bool)
	t.queue = nil
}

// Active reports whether the tracker is counting.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Tracker) tick(gen int) {
	t.mu.Lock()
	if !t.active || gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.timeSpent++
	progression := t.evaluate()
	t.mu.Unlock()

	t.emit(context.Background(), progression)
}

// RecordInteraction counts a user interaction. It returns false when the tracker is inactive.
func (t *Tracker) RecordInteraction(ctx context.Context, interactionType string, details map[string]interface{}) bool {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return false
	}
	t.interactions++
	count := t.interactions
	progression := t.evaluate()
	stage := t.stage
	t.mu.Unlock()

	props := map[string]interface{}{
		"sessionId":        t.sessionID,
		"interactionType":  interactionType,
		"interactionCount": count,
		"stage":            stage.String(),
	}
	for k, v := range details {
		if _, reserved := props[k]; !reserved {
			props[k] = v
		}
	}
	t.sink.Track(ctx, analytics.EventGuestInteraction, props)
	t.emit(ctx, progression)
	return true
}

// ConsumeTrigger pops the oldest pending trigger token.
func (t *Tracker) ConsumeTrigger() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.queue) == 0 {
		return "", false
	}
	token := t.queue[0]
	t.queue = t.queue[1:]
	return token, true
}

// Enqueue appends an externally produced trigger token once per activation.
func (t *Tracker) Enqueue(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active || t.fired[token] {
		return false
	}
	t.fired[token] = true
	t.queue = append(t.queue, token)
	return true
}

// Snapshot returns the counters as one consistent value.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Active:           t.active,
		TimeSpentSeconds: t.timeSpent,
		InteractionCount: t.interactions,
		Stage:            t.stage,
		PendingTriggers:  len(t.queue),
	}
}

// Config returns the messaging config for the current stage.
func (t *Tracker) Config() Config {
	return ConfigFor(t.Snapshot().Stage)
}

// Restore loads counters from a persisted snapshot into an active tracker.
// Triggers already implied by the counters are marked fired without being queued.
func (t *Tracker) Restore(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	t.timeSpent = s.TimeSpentSeconds
	t.interactions = s.InteractionCount
	t.stage = maxStage(s.Stage, t.thresholds.StageFor(s.TimeSpentSeconds, s.InteractionCount))
	for _, token := range t.reached() {
		t.fired[token] = true
	}
}

type progression struct {
	previous     Stage
	next         Stage
	timeSpent    int
	interactions int
	triggers     []string
}

// evaluate fires newly reached triggers and advances the stage. Caller holds mu.
func (t *Tracker) evaluate() *progression {
	var newTriggers []string
	for _, token := range t.reached() {
		if t.fired[token] {
			continue
		}
		t.fired[token] = true
		t.queue = append(t.queue, token)
		newTriggers = append(newTriggers, token)
	}

	next := maxStage(t.stage, t.thresholds.StageFor(t.timeSpent, t.interactions))
	if next == t.stage {
		return nil
	}

	p := &progression{
		previous:     t.stage,
		next:         next,
		timeSpent:    t.timeSpent,
		interactions: t.interactions,
		triggers:     newTriggers,
	}
	t.stage = next
	return p
}

// reached lists tokens whose boundary the counters are at or past. Caller holds mu.
func (t *Tracker) reached() []string {
	var tokens []string
	for _, th := range t.thresholds.TimeSeconds {
		if th.Token != "" && t.timeSpent >= th.At {
			tokens = append(tokens, th.Token)
		}
	}
	for _, th := range t.thresholds.Interactions {
		if th.Token != "" && t.interactions >= th.At {
			tokens = append(tokens, th.Token)
		}
	}
	return tokens
}

func (t *Tracker) emit(ctx context.Context, p *progression) {
	if p == nil {
		return
	}

	metrics.StageProgressions.WithLabelValues(p.previous.String(), p.next.String()).Inc()
	logrus.Infof("session %s engagement stage %s -> %s (time=%ds, interactions=%d)",
		t.sessionID, p.previous, p.next, p.timeSpent, p.interactions)

	triggers := p.triggers
	if triggers == nil {
		triggers = []string{}
	}
	t.sink.Track(ctx, analytics.EventEngagementStageProgression, map[string]interface{}{
		"sessionId":        t.sessionID,
		"previousStage":    p.previous.String(),
		"newStage":         p.next.String(),
		"timeSpent":        p.timeSpent,
		"interactionCount": p.interactions,
		"triggers":         triggers,
	})
}
