package policy

import (
	"testing"

	"github.com/pocketbudget/entitlement-engine/pkg/account"
)

func TestResolver_UnrestrictedClasses(t *testing.T) {
	r := NewResolver(DefaultTable())

	for _, class := range []account.Class{account.ClassAdmin, account.ClassSubscribed} {
		cfg := r.Resolve(class, 60, 100)
		if cfg != Unrestricted() {
			t.Errorf("Resolve(%s) = %+v, expected unrestricted", class, cfg)
		}
		if !cfg.CategoryLimit.IsUnlimited() || !cfg.TransactionLimit.IsUnlimited() {
			t.Errorf("Resolve(%s) limits should be unlimited", class)
		}
		if !cfg.ExportAllowed || !cfg.AnalyticsAllowed || !cfg.SyncAllowed {
			t.Errorf("Resolve(%s) should open every capability, got %+v", class, cfg)
		}
		if cfg.TimeBasedRestrictions {
			t.Errorf("Resolve(%s) should not report time-based restrictions", class)
		}
	}
}

func TestResolver_RegisteredFreeIgnoresSignals(t *testing.T) {
	r := NewResolver(DefaultTable())

	expected := RestrictionConfig{
		CategoryLimit:    3,
		TransactionLimit: 15,
		ExportAllowed:    true,
		AnalyticsAllowed: true,
		SyncAllowed:      false,
	}
	for _, in := range []struct {
		elapsed      float64
		interactions int
	}{{0, 0}, {30, 0}, {0, 50}} {
		if got := r.Resolve(account.ClassRegisteredFree, in.elapsed, in.interactions); got != expected {
			t.Errorf("Resolve(free, %v, %d) = %+v, expected %+v", in.elapsed, in.interactions, got, expected)
		}
	}
}

func TestResolver_GuestTiers(t *testing.T) {
	r := NewResolver(DefaultTable())

	tests := []struct {
		name         string
		elapsed      float64
		interactions int
		expected     RestrictionConfig
		expectedTier string
	}{
		{
			name:     "base just under first tier",
			elapsed:  4.99,
			expected: RestrictionConfig{CategoryLimit: 2, TransactionLimit: 8, ExportAllowed: true, AnalyticsAllowed: true, SyncAllowed: true},
		},
		{
			name:         "first tier at exactly five minutes",
			elapsed:      5,
			expected:     RestrictionConfig{CategoryLimit: 2, TransactionLimit: 5, ExportAllowed: true, AnalyticsAllowed: true, SyncAllowed: true},
			expectedTier: "tier_1",
		},
		{
			name:         "first tier by interactions",
			interactions: 3,
			expected:     RestrictionConfig{CategoryLimit: 2, TransactionLimit: 5, ExportAllowed: true, AnalyticsAllowed: true, SyncAllowed: true},
			expectedTier: "tier_1",
		},
		{
			name:         "second tier",
			elapsed:      10,
			expected:     RestrictionConfig{CategoryLimit: 1, TransactionLimit: 3, ExportAllowed: false, AnalyticsAllowed: true, SyncAllowed: true},
			expectedTier: "tier_2",
		},
		{
			name:         "third tier by time",
			elapsed:      15,
			expected:     RestrictionConfig{CategoryLimit: 1, TransactionLimit: 3, ExportAllowed: false, AnalyticsAllowed: false, SyncAllowed: true, TimeBasedRestrictions: true},
			expectedTier: "tier_3",
		},
		{
			name:         "third tier by interactions alone",
			interactions: 10,
			expected:     RestrictionConfig{CategoryLimit: 1, TransactionLimit: 3, ExportAllowed: false, AnalyticsAllowed: false, SyncAllowed: true, TimeBasedRestrictions: true},
			expectedTier: "tier_3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(account.ClassGuestOrDemo, tt.elapsed, tt.interactions)
			if got != tt.expected {
				t.Errorf("Resolve() = %+v, expected %+v", got, tt.expected)
			}
			if tier := r.ActiveTier(account.ClassGuestOrDemo, tt.elapsed, tt.interactions); tier != tt.expectedTier {
				t.Errorf("ActiveTier() = %q, expected %q", tier, tt.expectedTier)
			}
		})
	}
}

func TestLimit_Allows(t *testing.T) {
	if !Unlimited.Allows(1_000_000) {
		t.Error("unlimited should allow any usage")
	}
	if !Limit(2).Allows(1) {
		t.Error("limit 2 should allow usage 1")
	}
	if Limit(2).Allows(2) {
		t.Error("limit 2 should deny usage 2")
	}
	if !Limit(2).Reached(2) {
		t.Error("limit 2 should be reached at 2")
	}
	if Unlimited.String() != "unlimited" || Limit(3).String() != "3" {
		t.Errorf("unexpected String() output: %s %s", Unlimited, Limit(3))
	}
}

func TestTable_Validate(t *testing.T) {
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("default table should validate: %v", err)
	}

	loosening := DefaultTable()
	loosening.GuestTiers[1].Override.TransactionLimit = LimitPtr(20)
	if err := loosening.Validate(); err == nil {
		t.Error("expected error for a tier that loosens a limit")
	}

	reenabling := DefaultTable()
	reenabling.GuestTiers[2].Override.ExportAllowed = BoolPtr(true)
	if err := reenabling.Validate(); err == nil {
		t.Error("expected error for a tier that re-enables export")
	}

	unordered := DefaultTable()
	unordered.GuestTiers[0], unordered.GuestTiers[1] = unordered.GuestTiers[1], unordered.GuestTiers[0]
	if err := unordered.Validate(); err == nil {
		t.Error("expected error for unordered thresholds")
	}

	zero := DefaultTable()
	zero.GuestTiers[0].MinInteractions = 0
	if err := zero.Validate(); err == nil {
		t.Error("expected error for a zero threshold")
	}
}
