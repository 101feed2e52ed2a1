// Package banner picks the single active upgrade banner for a session.
package banner

import (
	"sort"
	"sync"
)

// CTA is the action a banner's button performs.
type CTA string

const (
	CTASignup  CTA = "signup"
	CTAUpgrade CTA = "upgrade"
)

// Banner is a candidate definition and, once selected, the rendered banner.
type Banner struct {
	ID          string `yaml:"id" json:"id"`
	Priority    int    `yaml:"priority" json:"priority"`
	Title       string `yaml:"title" json:"title"`
	Message     string `yaml:"message" json:"message"`
	CTALabel    string `yaml:"cta_label" json:"ctaLabel"`
	CTA         CTA    `yaml:"cta" json:"cta"`
	Dismissible bool   `yaml:"dismissible" json:"dismissible"`
	// Condition is a CEL expression deciding whether the banner applies.
	// An empty condition always applies.
	Condition string `yaml:"condition" json:"-"`
	// CopyTest names an experiment whose variant config overrides the copy.
	CopyTest string `yaml:"copy_test,omitempty" json:"-"`

	TestID    string `yaml:"-" json:"testId,omitempty"`
	VariantID string `yaml:"-" json:"variantId,omitempty"`
}

// Dismissals is a session's set of dismissed banner ids. It only grows.
type Dismissals struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewDismissals creates an empty set.
func NewDismissals(ids ...string) *Dismissals {
	d := &Dismissals{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		d.ids[id] = struct{}{}
	}
	return d
}

// Dismiss adds b to the set. Non-dismissible banners are refused.
func (d *Dismissals) Dismiss(b Banner) bool {
	if !b.Dismissible {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[b.ID] = struct{}{}
	return true
}

// Has reports whether id was dismissed.
func (d *Dismissals) Has(id string) bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[id]
	return ok
}

// IDs returns the dismissed ids in sorted order.
func (d *Dismissals) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.ids))
	for id := range d.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Select returns the highest priority candidate that is not dismissed.
// Ties go to the earliest candidate.
func Select(candidates []Banner, dismissed *Dismissals) (Banner, bool) {
	var (
		best  Banner
		found bool
	)
	for _, c := range candidates {
		if c.Dismissible && dismissed.Has(c.ID) {
			continue
		}
		if !found || c.Priority > best.Priority {
			best = c
			found = true
		}
	}
	return best, found
}

// Defaults returns the built-in candidates in declaration order.
func Defaults() []Banner {
	return []Banner{
		{
			ID:        "guest_category_limit",
			Priority:  90,
			Title:     "Category limit reached",
			Message:   "Guest budgets can hold a limited number of categories. Create a free account to add more.",
			CTALabel:  "Create Free Account",
			CTA:       CTASignup,
			Condition: `account.guest && usage.category_limit_reached`,
			CopyTest:  "banner_copy_v1",
		},
		{
			ID:        "guest_transaction_limit",
			Priority:  85,
			Title:     "Transaction limit reached",
			Message:   "You've logged the maximum transactions for a guest budget. Sign up to keep tracking.",
			CTALabel:  "Sign Up Free",
			CTA:       CTASignup,
			Condition: `account.guest && usage.transaction_limit_reached`,
			CopyTest:  "banner_copy_v1",
		},
		{
			ID:        "free_category_limit",
			Priority:  80,
			Title:     "You're out of categories",
			Message:   "Premium removes the category limit and syncs your budget across devices.",
			CTALabel:  "Upgrade to Premium",
			CTA:       CTAUpgrade,
			Condition: `account.class == "registered_free" && usage.category_limit_reached`,
		},
		{
			ID:        "free_transaction_limit",
			Priority:  75,
			Title:     "You're out of transactions",
			Message:   "Premium gives you unlimited transactions and cloud sync.",
			CTALabel:  "Upgrade to Premium",
			CTA:       CTAUpgrade,
			Condition: `account.class == "registered_free" && usage.transaction_limit_reached`,
		},
		{
			ID:          "guest_urgent",
			Priority:    70,
			Title:       "Don't lose your work",
			Message:     "Guest data is temporary. Create an account to keep your budget safe.",
			CTALabel:    "Save My Budget",
			CTA:         CTASignup,
			Dismissible: true,
			Condition:   `account.guest && engagement.stage == "urgent"`,
			CopyTest:    "banner_copy_v1",
		},
		{
			ID:          "guest_time_restrictions",
			Priority:    60,
			Title:       "Guest features are now limited",
			Message:     "Exports and analytics are paused for guest sessions. Sign up to unlock them again.",
			CTALabel:    "Unlock Features",
			CTA:         CTASignup,
			Dismissible: true,
			Condition:   `account.guest && restrictions.time_based_restrictions`,
		},
		{
			ID:          "guest_welcome",
			Priority:    30,
			Title:       "You're in guest mode",
			Message:     "Try everything out. Create a free account whenever you want to keep your budget.",
			CTALabel:    "Create Account",
			CTA:         CTASignup,
			Dismissible: true,
			Condition:   `account.guest`,
		},
		{
			ID:          "free_upgrade",
			Priority:    20,
			Title:       "Go Premium",
			Message:     "Unlimited categories, unlimited transactions and cloud sync.",
			CTALabel:    "See Premium",
			CTA:         CTAUpgrade,
			Dismissible: true,
			Condition:   `account.class == "registered_free"`,
		},
	}
}
