package session

import (
	"context"
	"sync"
	"time"

	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/analytics"
	"github.com/pocketbudget/entitlement-engine/pkg/banner"
	"github.com/pocketbudget/entitlement-engine/pkg/clock"
	"github.com/pocketbudget/entitlement-engine/pkg/engagement"
	"github.com/pocketbudget/entitlement-engine/pkg/experiment"
	"github.com/pocketbudget/entitlement-engine/pkg/policy"
	"github.com/pocketbudget/entitlement-engine/pkg/restriction"
	"github.com/pocketbudget/entitlement-engine/pkg/store"
	"github.com/pocketbudget/entitlement-engine/pkg/usage"
	"github.com/sirupsen/logrus"
)

// Evaluation is one consistent view of every engine output for a session.
type Evaluation struct {
	SessionID        string                   `json:"sessionId"`
	AccountClass     account.Class            `json:"accountClass"`
	ElapsedMinutes   float64                  `json:"elapsedMinutes"`
	RestrictionHits  int                      `json:"restrictionHits"`
	ActiveTier       string                   `json:"activeTier,omitempty"`
	Config           policy.RestrictionConfig `json:"config"`
	Usage            usage.Counts             `json:"usage"`
	Engagement       engagement.Snapshot      `json:"engagement"`
	EngagementConfig engagement.Config        `json:"engagementConfig"`
	Banner           *banner.Banner           `json:"banner,omitempty"`
	Assignments      map[string]string        `json:"assignments"`
	Dismissed        []string                 `json:"dismissed"`
	UrgentPrompt     bool                     `json:"urgentPrompt"`
}

// Session is the engine state of one app load. All methods are safe for
// concurrent use; every output is computed under one lock so counts, elapsed
// time and engagement always come from the same snapshot.
type Session struct {
	mu sync.Mutex

	id             string
	seed           string
	installationID string
	startedAt      time.Time
	lastSeen       time.Time

	deps     Deps
	selector *banner.Selector

	account         account.State
	usage           usage.Counts
	restrictionHits int

	tracker     *engagement.Tracker
	experiments *experiment.Service
	dismissed   *banner.Dismissals

	monitor      clock.Stopper
	urgentPrompt bool
	closed       bool
}

func newSession(id, seed, installationID string, startedAt time.Time, deps Deps) *Session {
	s := &Session{
		id:             id,
		seed:           seed,
		installationID: installationID,
		startedAt:      startedAt,
		lastSeen:       startedAt,
		deps:           deps,
		tracker:        engagement.NewTracker(deps.Clock, deps.Sink, deps.Thresholds, id),
		experiments:    experiment.NewService(seed, deps.Tests, deps.Sink),
		dismissed:      banner.NewDismissals(),
	}
	if deps.Banners != nil {
		s.selector = banner.NewSelector(deps.Banners)
	}
	return s
}

// New starts a session at the current clock time. Usage is applied before the
// account so the first evaluation already sees the reported counts.
func New(ctx context.Context, id, seed string, deps Deps, req CreateRequest) *Session {
	deps = deps.withDefaults()
	s := newSession(id, seed, req.InstallationID, deps.Clock.Now(), deps)
	s.UpdateUsage(req.Usage)
	s.experiments.Initialize(ctx)
	s.UpdateAccount(ctx, req.Account)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns the immutable session start time.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.lastSeen = s.deps.Clock.Now()
}

// input builds the restriction input. Caller holds mu.
func (s *Session) input() restriction.Input {
	return restriction.Input{
		Account:        s.account,
		ElapsedMinutes: s.deps.Clock.Now().Sub(s.startedAt).Minutes(),
		Interactions:   s.restrictionHits,
	}
}

// Evaluate computes the restriction config, engagement state, experiment
// assignments and active banner from one snapshot.
func (s *Session) Evaluate() Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	in := s.input()
	class := in.Account.Class()
	cfg := s.deps.Checker.Config(in)
	snap := s.tracker.Snapshot()

	eval := Evaluation{
		SessionID:        s.id,
		AccountClass:     class,
		ElapsedMinutes:   in.ElapsedMinutes,
		RestrictionHits:  in.Interactions,
		ActiveTier:       s.deps.Resolver.ActiveTier(class, in.ElapsedMinutes, in.Interactions),
		Config:           cfg,
		Usage:            s.usage,
		Engagement:       snap,
		EngagementConfig: engagement.ConfigFor(snap.Stage),
		Assignments:      s.experiments.Assignments(),
		Dismissed:        s.dismissed.IDs(),
		UrgentPrompt:     s.urgentPrompt,
	}

	if s.selector != nil {
		bin := banner.Input{
			Account:      s.account,
			Restrictions: cfg,
			Usage:        s.usage,
			Engagement:   snap,
			Assignments:  eval.Assignments,
		}
		if b, ok := s.selector.Active(bin, s.dismissed, s.experiments.Variants()); ok {
			eval.Banner = &b
		}
	}
	return eval
}

// Check gates action at the given usage. A nil usage is allowed for count-based actions.
func (s *Session) Check(action restriction.Action, currentUsage *int) restriction.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.deps.Checker.Check(s.input(), action, currentUsage)
}

// Config returns the currently resolved restriction config.
func (s *Session) Config() policy.RestrictionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Checker.Config(s.input())
}

// TrackRestrictionHit counts a blocked action towards guest tightening and
// emits restriction_hit.
func (s *Session) TrackRestrictionHit(ctx context.Context, action restriction.Action) int {
	s.mu.Lock()
	s.touch()
	s.restrictionHits++
	in := s.input()
	tier := s.deps.Resolver.ActiveTier(in.Account.Class(), in.ElapsedMinutes, in.Interactions)
	s.mu.Unlock()

	s.deps.Sink.Track(ctx, analytics.EventRestrictionHit, map[string]interface{}{
		"sessionId":        s.id,
		"action":           string(action),
		"accountType":      in.Account.Label(),
		"interactionCount": in.Interactions,
		"elapsedMinutes":   in.ElapsedMinutes,
		"tier":             tier,
	})
	return in.Interactions
}

// RecordInteraction feeds the engagement tracker. It returns false outside guest mode.
func (s *Session) RecordInteraction(ctx context.Context, interactionType string, details map[string]interface{}) bool {
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
	return s.tracker.RecordInteraction(ctx, interactionType, details)
}

// ConsumeTrigger pops the next engagement trigger.
func (s *Session) ConsumeTrigger() (string, bool) {
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
	return s.tracker.ConsumeTrigger()
}

// UpdateAccount replaces the account snapshot. Entering guest or demo mode
// starts the tracker and progression monitor; leaving it stops and resets them.
func (s *Session) UpdateAccount(_ context.Context, acct account.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.account = acct
	if s.closed {
		return
	}
	if acct.Class() == account.ClassGuestOrDemo {
		s.startRestrictedMode()
	} else {
		s.stopRestrictedMode()
	}
}

// Account returns the current account snapshot.
func (s *Session) Account() account.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// UpdateUsage replaces the category and transaction counts.
func (s *Session) UpdateUsage(c usage.Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.usage = c
}

// startRestrictedMode is idempotent. Caller holds mu.
func (s *Session) startRestrictedMode() {
	s.tracker.Start()
	if s.monitor == nil {
		s.monitor = s.deps.Clock.Every(s.deps.MonitorInterval, s.checkProgression)
	}
}

// stopRestrictedMode is idempotent. Caller holds mu.
func (s *Session) stopRestrictedMode() {
	s.tracker.Stop()
	if s.monitor != nil {
		s.monitor.Stop()
		s.monitor = nil
	}
	s.urgentPrompt = false
}

// checkProgression runs on the monitor interval.
func (s *Session) checkProgression() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.monitor == nil {
		return
	}
	due := s.urgentDue()
	if due && !s.urgentPrompt {
		if s.tracker.Enqueue(TriggerUrgentProgression) {
			logrus.Infof("session %s urgent progression prompt is due", s.id)
		}
	}
	s.urgentPrompt = due
}

// urgentDue reports whether the urgent prompt should show. Caller holds mu.
func (s *Session) urgentDue() bool {
	if !s.account.IsGuestOrDemo() {
		return false
	}
	snap := s.tracker.Snapshot()
	if snap.Stage == engagement.StageUrgent {
		return true
	}
	if s.deps.Checker.Config(s.input()).TimeBasedRestrictions {
		return true
	}
	if after, ok := earlyPromptAfter(s.experiments); ok && snap.TimeSpentSeconds >= after {
		return true
	}
	return false
}

// earlyPromptAfter reads the paywall timing variant's prompt delay, if any.
func earlyPromptAfter(svc *experiment.Service) (int, bool) {
	v, ok := svc.Variant(paywallTimingTest)
	if !ok {
		return 0, false
	}
	switch after := v.Config["prompt_after_seconds"].(type) {
	case int:
		return after, true
	case int64:
		return int(after), true
	case float64:
		return int(after), true
	}
	return 0, false
}

// DismissBanner adds a dismissible banner to the dismissed set and emits banner_dismiss.
func (s *Session) DismissBanner(ctx context.Context, bannerID string) error {
	b, err := s.lookupBanner(bannerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.touch()
	ok := s.dismissed.Dismiss(b)
	stage := s.tracker.Snapshot().Stage
	s.mu.Unlock()
	if !ok {
		return ErrNotDismissible
	}

	s.deps.Sink.Track(ctx, analytics.EventBannerDismiss, map[string]interface{}{
		"sessionId": s.id,
		"bannerId":  b.ID,
		"stage":     stage.String(),
	})
	if b.CopyTest != "" {
		s.experiments.TrackInteraction(ctx, b.CopyTest, "banner_dismiss", map[string]interface{}{"bannerId": b.ID})
	}
	return nil
}

// ClickBanner records a CTA press and returns the banner's CTA.
func (s *Session) ClickBanner(ctx context.Context, bannerID string) (banner.CTA, error) {
	b, err := s.lookupBanner(bannerID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.touch()
	stage := s.tracker.Snapshot().Stage
	label := s.account.Label()
	s.mu.Unlock()

	event := analytics.EventBannerSignupClick
	if b.CTA == banner.CTAUpgrade {
		event = analytics.EventBannerUpgradeClick
	}
	s.deps.Sink.Track(ctx, event, map[string]interface{}{
		"sessionId":   s.id,
		"bannerId":    b.ID,
		"stage":       stage.String(),
		"accountType": label,
	})
	if b.CopyTest != "" {
		s.experiments.TrackConversion(ctx, b.CopyTest, event, nil)
	}
	return b.CTA, nil
}

func (s *Session) lookupBanner(id string) (banner.Banner, error) {
	if s.deps.Banners == nil {
		return banner.Banner{}, ErrBannerNotFound
	}
	b, ok := s.deps.Banners.Get(id)
	if !ok {
		return banner.Banner{}, ErrBannerNotFound
	}
	return b, nil
}

// Assign returns the session's variant for testID.
func (s *Session) Assign(ctx context.Context, testID string) (experiment.Variant, bool) {
	return s.experiments.Assign(ctx, testID)
}

// TrackConversion forwards to the experiment service.
func (s *Session) TrackConversion(ctx context.Context, testID, conversionType string, value *float64) bool {
	return s.experiments.TrackConversion(ctx, testID, conversionType, value)
}

// TrackExperimentInteraction forwards to the experiment service.
func (s *Session) TrackExperimentInteraction(ctx context.Context, testID, interactionType string, details map[string]interface{}) bool {
	return s.experiments.TrackInteraction(ctx, testID, interactionType, details)
}

// Record snapshots the session for persistence.
func (s *Session) Record() *store.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &store.SessionRecord{
		ID:              s.id,
		Seed:            s.seed,
		InstallationID:  s.installationID,
		StartedAt:       s.startedAt,
		UpdatedAt:       s.lastSeen,
		Account:         s.account,
		Usage:           s.usage,
		RestrictionHits: s.restrictionHits,
		Engagement:      s.tracker.Snapshot(),
		Assignments:     s.experiments.Assignments(),
		Dismissed:       s.dismissed.IDs(),
	}
}

// Close stops every scheduled tick. A closed session keeps answering reads.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stopRestrictedMode()
	s.closed = true
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
