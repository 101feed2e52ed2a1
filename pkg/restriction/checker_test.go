package restriction

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/metrics"
	"github.com/pocketbudget/entitlement-engine/pkg/policy"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func intPtr(i int) *int { return &i }

func newChecker() *Checker {
	return NewChecker(policy.NewResolver(policy.DefaultTable()))
}

func TestChecker_GuestCategoryLimit(t *testing.T) {
	c := newChecker()
	in := Input{Account: account.State{IsGuest: true}}

	if d := c.Check(in, ActionCategoryLimit, intPtr(1)); !d.Allowed {
		t.Errorf("expected 1 category to be allowed, got %+v", d)
	}

	d := c.Check(in, ActionCategoryLimit, intPtr(2))
	if d.Allowed {
		t.Fatal("expected adding past 2 categories to be denied")
	}
	if !strings.Contains(d.Reason, "2 categories") {
		t.Errorf("reason %q should mention 2 categories", d.Reason)
	}
	if !strings.Contains(d.Reason, "guest") {
		t.Errorf("reason %q should name the guest account label", d.Reason)
	}
	if !strings.Contains(d.UpgradePrompt, "free account") {
		t.Errorf("upgrade prompt %q should offer a free account", d.UpgradePrompt)
	}
	if strings.Contains(strings.ToLower(d.UpgradePrompt), "premium") {
		t.Errorf("guest upgrade prompt %q should not mention premium", d.UpgradePrompt)
	}
}

func TestChecker_DemoLabel(t *testing.T) {
	c := newChecker()
	in := Input{Account: account.State{IsDemo: true}}

	d := c.Check(in, ActionTransactionLimit, intPtr(8))
	if d.Allowed {
		t.Fatal("expected transaction 9 to be denied for demo accounts")
	}
	if !strings.Contains(d.Reason, "8 transactions for demo accounts") {
		t.Errorf("unexpected reason %q", d.Reason)
	}
}

func TestChecker_RegisteredFree(t *testing.T) {
	c := newChecker()
	in := Input{Account: account.State{UserID: "u1"}}

	d := c.Check(in, ActionSyncAllowed, nil)
	if d.Allowed {
		t.Fatal("expected sync to be denied for free accounts")
	}
	if !strings.Contains(d.Reason, "free accounts") {
		t.Errorf("reason %q should name the free label", d.Reason)
	}
	if !strings.Contains(d.UpgradePrompt, "Premium") {
		t.Errorf("free upgrade prompt %q should offer premium", d.UpgradePrompt)
	}

	if d := c.Check(in, ActionTransactionLimit, intPtr(14)); !d.Allowed {
		t.Errorf("expected transaction 15 to be allowed, got %+v", d)
	}
	if d := c.Check(in, ActionTransactionLimit, intPtr(15)); d.Allowed {
		t.Error("expected transaction 16 to be denied")
	}
}

func TestChecker_OmittedUsageIsAllowed(t *testing.T) {
	c := newChecker()
	in := Input{Account: account.State{IsGuest: true}, ElapsedMinutes: 60, Interactions: 50}

	for _, action := range []Action{ActionCategoryLimit, ActionTransactionLimit} {
		if d := c.Check(in, action, nil); !d.Allowed {
			t.Errorf("Check(%s, nil) = %+v, expected allowed", action, d)
		}
	}
}

func TestChecker_BooleanGatesTighten(t *testing.T) {
	c := newChecker()
	guest := account.State{IsGuest: true}

	if d := c.Check(Input{Account: guest}, ActionExportAllowed, nil); !d.Allowed {
		t.Error("export should be allowed at the base tier")
	}
	if d := c.Check(Input{Account: guest, ElapsedMinutes: 10}, ActionExportAllowed, nil); d.Allowed {
		t.Error("export should be denied from the second tier")
	}
	if d := c.Check(Input{Account: guest, Interactions: 10}, ActionAnalyticsAllowed, nil); d.Allowed {
		t.Error("analytics should be denied at the third tier")
	}
}

func TestChecker_UnknownActionIsAllowed(t *testing.T) {
	c := newChecker()
	in := Input{Account: account.State{IsGuest: true}, ElapsedMinutes: 60}

	if d := c.Check(in, Action("delete_everything"), intPtr(1000)); !d.Allowed {
		t.Errorf("unknown action should be allowed, got %+v", d)
	}
}

func TestChecker_UnknownActionsShareOneMetricLabel(t *testing.T) {
	c := newChecker()
	in := Input{Account: account.State{IsGuest: true}}

	before := testutil.CollectAndCount(metrics.RestrictionChecks)
	for i := 0; i < 50; i++ {
		c.Check(in, Action(fmt.Sprintf("made_up_%d", i)), nil)
	}
	if got := testutil.CollectAndCount(metrics.RestrictionChecks); got > before+1 {
		t.Errorf("unknown actions added %d series, expected at most 1", got-before)
	}
	if got := testutil.ToFloat64(metrics.RestrictionChecks.WithLabelValues(unknownActionLabel, "true")); got < 50 {
		t.Errorf("unknown action checks = %v, expected >= 50", got)
	}
}

func TestAction_IsCountBased(t *testing.T) {
	for _, a := range Actions {
		want := a == ActionCategoryLimit || a == ActionTransactionLimit
		if got := a.IsCountBased(); got != want {
			t.Errorf("%s.IsCountBased() = %v, expected %v", a, got, want)
		}
	}
	if Action("made_up").IsCountBased() {
		t.Error("unknown actions are not count based")
	}
}

func TestChecker_SubscribedUnlimited(t *testing.T) {
	c := newChecker()
	in := Input{Account: account.State{IsSubscribed: true}}

	if d := c.Check(in, ActionCategoryLimit, intPtr(10_000)); !d.Allowed {
		t.Errorf("subscribed accounts should be unlimited, got %+v", d)
	}
}
