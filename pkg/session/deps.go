// Package session ties the engine components together for one app load.
package session

import (
	"errors"
	"time"

	"github.com/pocketbudget/entitlement-engine/pkg/analytics"
	"github.com/pocketbudget/entitlement-engine/pkg/banner"
	"github.com/pocketbudget/entitlement-engine/pkg/clock"
	"github.com/pocketbudget/entitlement-engine/pkg/engagement"
	"github.com/pocketbudget/entitlement-engine/pkg/experiment"
	"github.com/pocketbudget/entitlement-engine/pkg/policy"
	"github.com/pocketbudget/entitlement-engine/pkg/restriction"
)

// DefaultMonitorInterval is how often the progression monitor re-evaluates
// whether the urgent prompt should show.
const DefaultMonitorInterval = 30 * time.Second

// TriggerUrgentProgression is queued once when the urgent prompt becomes due.
const TriggerUrgentProgression = "urgent_progression"

const paywallTimingTest = "paywall_timing"

var (
	// ErrSessionNotFound is returned for unknown or closed sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrBannerNotFound is returned for banner ids missing from the registry.
	ErrBannerNotFound = errors.New("banner not found")
	// ErrNotDismissible is returned when dismissing a non-dismissible banner.
	ErrNotDismissible = errors.New("banner is not dismissible")
)

// Deps are the shared components every session is built from.
type Deps struct {
	Clock           clock.Clock
	Sink            analytics.Sink
	Resolver        *policy.Resolver
	Checker         *restriction.Checker
	Thresholds      engagement.Thresholds
	Tests           []experiment.Test
	Banners         *banner.Registry
	MonitorInterval time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Sink == nil {
		d.Sink = analytics.Nop
	}
	if d.Resolver == nil {
		d.Resolver = policy.NewResolver(policy.DefaultTable())
	}
	if d.Checker == nil {
		d.Checker = restriction.NewChecker(d.Resolver)
	}
	if d.Thresholds.TimeSeconds == nil && d.Thresholds.Interactions == nil {
		d.Thresholds = engagement.DefaultThresholds()
	}
	if d.MonitorInterval <= 0 {
		d.MonitorInterval = DefaultMonitorInterval
	}
	return d
}
