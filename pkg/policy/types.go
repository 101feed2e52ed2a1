package policy

import "strconv"

// Limit is a count limit. Unlimited is represented by -1.
type Limit int

// Unlimited marks a limit with no ceiling.
const Unlimited Limit = -1

// IsUnlimited reports whether the limit has no ceiling.
func (l Limit) IsUnlimited() bool {
	return l < 0
}

// Allows reports whether one more item may be added at the given usage.
func (l Limit) Allows(usage int) bool {
	return l.IsUnlimited() || usage < int(l)
}

// Reached reports whether usage is at or above the limit.
func (l Limit) Reached(usage int) bool {
	return !l.Allows(usage)
}

// AtMost reports whether l is not looser than other.
func (l Limit) AtMost(other Limit) bool {
	if other.IsUnlimited() {
		return true
	}
	if l.IsUnlimited() {
		return false
	}
	return l <= other
}

func (l Limit) String() string {
	if l.IsUnlimited() {
		return "unlimited"
	}
	return strconv.Itoa(int(l))
}

// RestrictionConfig is the resolved set of limits and feature gates.
// It is recomputed on demand and never persisted.
type RestrictionConfig struct {
	CategoryLimit         Limit `json:"categoryLimit" yaml:"category_limit"`
	TransactionLimit      Limit `json:"transactionLimit" yaml:"transaction_limit"`
	ExportAllowed         bool  `json:"exportAllowed" yaml:"export_allowed"`
	AnalyticsAllowed      bool  `json:"analyticsAllowed" yaml:"analytics_allowed"`
	SyncAllowed           bool  `json:"syncAllowed" yaml:"sync_allowed"`
	TimeBasedRestrictions bool  `json:"timeBasedRestrictions" yaml:"time_based_restrictions"`
}

// Unrestricted returns the config used for admin and subscribed accounts. Every
// capability is open; TimeBasedRestrictions stays false since no tightening applies.
func Unrestricted() RestrictionConfig {
	return RestrictionConfig{
		CategoryLimit:    Unlimited,
		TransactionLimit: Unlimited,
		ExportAllowed:    true,
		AnalyticsAllowed: true,
		SyncAllowed:      true,
	}
}

// Override sets a subset of RestrictionConfig fields. Nil fields are left untouched.
type Override struct {
	CategoryLimit         *Limit `yaml:"category_limit,omitempty"`
	TransactionLimit      *Limit `yaml:"transaction_limit,omitempty"`
	ExportAllowed         *bool  `yaml:"export_allowed,omitempty"`
	AnalyticsAllowed      *bool  `yaml:"analytics_allowed,omitempty"`
	SyncAllowed           *bool  `yaml:"sync_allowed,omitempty"`
	TimeBasedRestrictions *bool  `yaml:"time_based_restrictions,omitempty"`
}

// Apply returns cfg with the override's fields written over it.
func (o Override) Apply(cfg RestrictionConfig) RestrictionConfig {
	if o.CategoryLimit != nil {
		cfg.CategoryLimit = *o.CategoryLimit
	}
	if o.TransactionLimit != nil {
		cfg.TransactionLimit = *o.TransactionLimit
	}
	if o.ExportAllowed != nil {
		cfg.ExportAllowed = *o.ExportAllowed
	}
	if o.AnalyticsAllowed != nil {
		cfg.AnalyticsAllowed = *o.AnalyticsAllowed
	}
	if o.SyncAllowed != nil {
		cfg.SyncAllowed = *o.SyncAllowed
	}
	if o.TimeBasedRestrictions != nil {
		cfg.TimeBasedRestrictions = *o.TimeBasedRestrictions
	}
	return cfg
}

// Tier is one tightening stage of the guest policy.
// It matches when either signal reaches its threshold.
type Tier struct {
	ID                string   `yaml:"id"`
	MinElapsedMinutes float64  `yaml:"min_elapsed_minutes"`
	MinInteractions   int      `yaml:"min_interactions"`
	Override          Override `yaml:"override"`
}

// Matches reports whether the tier applies at the given elapsed time and interaction count.
func (t Tier) Matches(elapsedMinutes float64, interactionCount int) bool {
	return elapsedMinutes >= t.MinElapsedMinutes || interactionCount >= t.MinInteractions
}

// LimitPtr and BoolPtr help build overrides.
func LimitPtr(l Limit) *Limit { return &l }

func BoolPtr(b bool) *bool { return &b }
