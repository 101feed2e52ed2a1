package policy

import "fmt"

// Table is the full policy definition for restricted account classes.
type Table struct {
	RegisteredFree RestrictionConfig `yaml:"registered_free"`
	GuestBase      RestrictionConfig `yaml:"guest_base"`
	GuestTiers     []Tier            `yaml:"guest_tiers"`
}

// DefaultTable returns the built-in policy.
func DefaultTable() Table {
	return Table{
		RegisteredFree: RestrictionConfig{
			CategoryLimit:    3,
			TransactionLimit: 15,
			ExportAllowed:    true,
			AnalyticsAllowed: true,
			SyncAllowed:      false,
		},
		GuestBase: RestrictionConfig{
			CategoryLimit:    2,
			TransactionLimit: 8,
			ExportAllowed:    true,
			AnalyticsAllowed: true,
			SyncAllowed:      true,
		},
		GuestTiers: []Tier{
			{
				ID:                "tier_1",
				MinElapsedMinutes: 5,
				MinInteractions:   3,
				Override: Override{
					TransactionLimit: LimitPtr(5),
				},
			},
			{
				ID:                "tier_2",
				MinElapsedMinutes: 10,
				MinInteractions:   6,
				Override: Override{
					CategoryLimit:    LimitPtr(1),
					TransactionLimit: LimitPtr(3),
					ExportAllowed:    BoolPtr(false),
				},
			},
			{
				ID:                "tier_3",
				MinElapsedMinutes: 15,
				MinInteractions:   10,
				Override: Override{
					AnalyticsAllowed:      BoolPtr(false),
					TimeBasedRestrictions: BoolPtr(true),
				},
			},
		},
	}
}

// Validate checks that tiers are ordered by non-decreasing thresholds and
// that no tier loosens what the tiers before it resolved to.
func (t Table) Validate() error {
	prev := t.GuestBase
	for i, tier := range t.GuestTiers {
		if tier.ID == "" {
			return fmt.Errorf("guest tier %d has empty ID", i)
		}
		if tier.MinElapsedMinutes <= 0 || tier.MinInteractions <= 0 {
			return fmt.Errorf("guest tier %s needs positive thresholds", tier.ID)
		}
		if i > 0 {
			last := t.GuestTiers[i-1]
			if tier.MinElapsedMinutes < last.MinElapsedMinutes || tier.MinInteractions < last.MinInteractions {
				return fmt.Errorf("guest tier %s thresholds are lower than tier %s", tier.ID, last.ID)
			}
		}

		next := tier.Override.Apply(prev)
		if !next.CategoryLimit.AtMost(prev.CategoryLimit) || !next.TransactionLimit.AtMost(prev.TransactionLimit) {
			return fmt.Errorf("guest tier %s loosens a limit", tier.ID)
		}
		if (next.ExportAllowed && !prev.ExportAllowed) ||
			(next.AnalyticsAllowed && !prev.AnalyticsAllowed) ||
			(next.SyncAllowed && !prev.SyncAllowed) {
			return fmt.Errorf("guest tier %s re-enables a feature", tier.ID)
		}
		prev = next
	}
	return nil
}
