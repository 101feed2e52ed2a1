// Package restriction answers allow/deny questions for gated budget actions.
package restriction

import (
	"fmt"
	"strconv"

	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/metrics"
	"github.com/pocketbudget/entitlement-engine/pkg/policy"
	"github.com/sirupsen/logrus"
)

// Action identifies a gated capability.
type Action string

const (
	ActionCategoryLimit    Action = "category_limit"
	ActionTransactionLimit Action = "transaction_limit"
	ActionExportAllowed    Action = "export_allowed"
	ActionAnalyticsAllowed Action = "analytics_allowed"
	ActionSyncAllowed      Action = "sync_allowed"
)

// Actions lists every known action.
var Actions = []Action{
	ActionCategoryLimit,
	ActionTransactionLimit,
	ActionExportAllowed,
	ActionAnalyticsAllowed,
	ActionSyncAllowed,
}

// Known reports whether a is one of the defined actions.
func (a Action) Known() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// unknownActionLabel is the metric label shared by every undefined action.
const unknownActionLabel = "unknown"

// metricLabel bounds the action label to the defined set.
func (a Action) metricLabel() string {
	if !a.Known() {
		return unknownActionLabel
	}
	return string(a)
}

// IsCountBased reports whether the action is gated by a usage count.
func (a Action) IsCountBased() bool {
	return a == ActionCategoryLimit || a == ActionTransactionLimit
}

const (
	guestUpgradePrompt = "Create a free account to save your budget and unlock higher limits."
	freeUpgradePrompt  = "Upgrade to Premium for unlimited categories, transactions and cloud sync."
)

// Input is the consistent snapshot a check is evaluated against.
type Input struct {
	Account        account.State
	ElapsedMinutes float64
	Interactions   int
}

// Decision is the outcome of a check.
type Decision struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason,omitempty"`
	UpgradePrompt string `json:"upgradePrompt,omitempty"`
}

// Checker evaluates actions against the resolved policy.
type Checker struct {
	resolver *policy.Resolver
}

// NewChecker creates a checker backed by the resolver.
func NewChecker(resolver *policy.Resolver) *Checker {
	return &Checker{resolver: resolver}
}

// Config returns the resolved restriction config for the input.
func (c *Checker) Config(in Input) policy.RestrictionConfig {
	return c.resolver.Resolve(in.Account.Class(), in.ElapsedMinutes, in.Interactions)
}

// Check decides whether action is allowed. currentUsage may be nil for count-based
// actions when the count is not known yet; that is treated as allowed.
// Unknown actions are allowed.
func (c *Checker) Check(in Input, action Action, currentUsage *int) Decision {
	decision := c.check(in, action, currentUsage)
	metrics.RestrictionChecks.WithLabelValues(action.metricLabel(), strconv.FormatBool(decision.Allowed)).Inc()
	return decision
}

func (c *Checker) check(in Input, action Action, currentUsage *int) Decision {
	if in.Account.Class() == account.ClassAdmin {
		return Decision{Allowed: true}
	}
	if !action.Known() {
		logrus.Debugf("unknown restriction action %q, allowing", action)
		return Decision{Allowed: true}
	}
	if action.IsCountBased() && currentUsage == nil {
		return Decision{Allowed: true}
	}

	cfg := c.Config(in)

	var allowed bool
	switch action {
	case ActionCategoryLimit:
		allowed = cfg.CategoryLimit.Allows(*currentUsage)
	case ActionTransactionLimit:
		allowed = cfg.TransactionLimit.Allows(*currentUsage)
	case ActionExportAllowed:
		allowed = cfg.ExportAllowed
	case ActionAnalyticsAllowed:
		allowed = cfg.AnalyticsAllowed
	case ActionSyncAllowed:
		allowed = cfg.SyncAllowed
	}

	if allowed {
		return Decision{Allowed: true}
	}

	return Decision{
		Allowed:       false,
		Reason:        denialReason(action, cfg, in.Account.Label()),
		UpgradePrompt: upgradePrompt(in.Account),
	}
}

func denialReason(action Action, cfg policy.RestrictionConfig, label string) string {
	switch action {
	case ActionCategoryLimit:
		return fmt.Sprintf("You've reached the limit of %s categories for %s accounts.", cfg.CategoryLimit, label)
	case ActionTransactionLimit:
		return fmt.Sprintf("You've reached the limit of %s transactions for %s accounts.", cfg.TransactionLimit, label)
	case ActionExportAllowed:
		return fmt.Sprintf("Data export is not available for %s accounts.", label)
	case ActionAnalyticsAllowed:
		return fmt.Sprintf("Advanced analytics are not available for %s accounts.", label)
	case ActionSyncAllowed:
		return fmt.Sprintf("Cloud sync is not available for %s accounts.", label)
	}
	return ""
}

func upgradePrompt(state account.State) string {
	if state.IsGuestOrDemo() {
		return guestUpgradePrompt
	}
	return freeUpgradePrompt
}
