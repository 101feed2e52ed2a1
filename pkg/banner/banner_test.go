package banner

import (
	"testing"

	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/engagement"
	"github.com/pocketbudget/entitlement-engine/pkg/experiment"
	"github.com/pocketbudget/entitlement-engine/pkg/policy"
	"github.com/pocketbudget/entitlement-engine/pkg/usage"
)

func TestSelect_PriorityAndDismissal(t *testing.T) {
	candidates := []Banner{
		{ID: "a", Priority: 30, Dismissible: true},
		{ID: "b", Priority: 90, Dismissible: true},
	}
	dismissed := NewDismissals()

	got, ok := Select(candidates, dismissed)
	if !ok || got.ID != "b" {
		t.Fatalf("expected b, got %+v", got)
	}

	if !dismissed.Dismiss(got) {
		t.Fatal("b should be dismissible")
	}
	got, ok = Select(candidates, dismissed)
	if !ok || got.ID != "a" {
		t.Errorf("expected a after dismissing b, got %+v", got)
	}

	dismissed.Dismiss(got)
	if _, ok := Select(candidates, dismissed); ok {
		t.Error("expected no banner once every candidate is dismissed")
	}
}

func TestSelect_TiesGoToFirstDeclared(t *testing.T) {
	candidates := []Banner{
		{ID: "first", Priority: 50},
		{ID: "second", Priority: 50},
		{ID: "low", Priority: 10},
	}
	got, _ := Select(candidates, nil)
	if got.ID != "first" {
		t.Errorf("expected first declared banner to win the tie, got %s", got.ID)
	}
}

func TestDismissals_RefuseNonDismissible(t *testing.T) {
	d := NewDismissals()
	sticky := Banner{ID: "guest_category_limit", Priority: 90}

	if d.Dismiss(sticky) {
		t.Fatal("non-dismissible banner was dismissed")
	}
	if d.Has(sticky.ID) {
		t.Error("non-dismissible banner must not enter the set")
	}

	got, ok := Select([]Banner{sticky, {ID: "other", Priority: 10, Dismissible: true}}, d)
	if !ok || got.ID != sticky.ID {
		t.Errorf("non-dismissible banner should stay selected, got %+v", got)
	}
}

func TestDismissals_IDs(t *testing.T) {
	d := NewDismissals("z")
	d.Dismiss(Banner{ID: "a", Dismissible: true})
	d.Dismiss(Banner{ID: "a", Dismissible: true})

	ids := d.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "z" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func newDefaultSelector(t *testing.T) *Selector {
	t.Helper()
	conds, err := NewConditions()
	if err != nil {
		t.Fatalf("NewConditions() error = %v", err)
	}
	reg := NewRegistry(conds)
	for _, b := range Defaults() {
		if err := reg.Register(b); err != nil {
			t.Fatalf("Register(%s) error = %v", b.ID, err)
		}
	}
	return NewSelector(reg)
}

func guestInput(categories, transactions int) Input {
	r := policy.NewResolver(policy.DefaultTable())
	return Input{
		Account:      account.State{IsGuest: true},
		Restrictions: r.Resolve(account.ClassGuestOrDemo, 0, 0),
		Usage:        usage.Counts{Categories: categories, Transactions: transactions},
		Engagement:   engagement.Snapshot{Active: true},
	}
}

func TestSelector_DefaultBanners(t *testing.T) {
	s := newDefaultSelector(t)
	free := policy.DefaultTable().RegisteredFree

	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"fresh guest", guestInput(0, 0), "guest_welcome"},
		{"guest at category limit", guestInput(2, 0), "guest_category_limit"},
		{"guest at transaction limit", guestInput(1, 8), "guest_transaction_limit"},
		{"guest at both limits", guestInput(2, 8), "guest_category_limit"},
		{
			"urgent guest",
			Input{
				Account:      account.State{IsDemo: true},
				Restrictions: guestInput(0, 0).Restrictions,
				Engagement:   engagement.Snapshot{Active: true, Stage: engagement.StageUrgent},
			},
			"guest_urgent",
		},
		{
			"free user at category limit",
			Input{Account: account.State{UserID: "u"}, Restrictions: free, Usage: usage.Counts{Categories: 3}},
			"free_category_limit",
		},
		{
			"free user under limits",
			Input{Account: account.State{UserID: "u"}, Restrictions: free, Usage: usage.Counts{Categories: 1}},
			"free_upgrade",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Active(tt.in, NewDismissals(), nil)
			if !ok {
				t.Fatalf("expected %s, got no banner", tt.want)
			}
			if got.ID != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.ID)
			}
		})
	}
}

func TestSelector_NoBannerForUnrestricted(t *testing.T) {
	s := newDefaultSelector(t)

	admin := Input{Account: account.State{Role: account.RoleAdmin, IsGuest: true}, Restrictions: policy.Unrestricted()}
	if b, ok := s.Active(admin, NewDismissals(), nil); ok {
		t.Errorf("admin should never see a banner, got %s", b.ID)
	}

	subscribed := Input{Account: account.State{UserID: "u", IsSubscribed: true}, Restrictions: policy.Unrestricted()}
	if b, ok := s.Active(subscribed, NewDismissals(), nil); ok {
		t.Errorf("subscribed user should see no banner, got %s", b.ID)
	}
}

func TestSelector_DismissFallsThrough(t *testing.T) {
	s := newDefaultSelector(t)
	dismissed := NewDismissals()

	in := guestInput(0, 0)
	in.Engagement.Stage = engagement.StageUrgent

	first, _ := s.Active(in, dismissed, nil)
	if first.ID != "guest_urgent" {
		t.Fatalf("expected guest_urgent, got %s", first.ID)
	}
	dismissed.Dismiss(first)

	second, _ := s.Active(in, dismissed, nil)
	if second.ID != "guest_welcome" {
		t.Errorf("expected guest_welcome after dismissal, got %s", second.ID)
	}
}

func TestSelector_ExperimentCopy(t *testing.T) {
	s := newDefaultSelector(t)
	variants := map[string]experiment.Variant{
		"banner_copy_v1": {ID: "urgency", Config: map[string]interface{}{
			"title": "Don't lose your budget",
			"cta":   "Save It Now",
		}},
	}

	got, ok := s.Active(guestInput(2, 0), NewDismissals(), variants)
	if !ok {
		t.Fatal("expected a banner")
	}
	if got.Title != "Don't lose your budget" || got.CTALabel != "Save It Now" {
		t.Errorf("copy override not applied: %+v", got)
	}
	if got.Priority != 90 || got.Dismissible {
		t.Errorf("copy experiment must not change priority or dismissibility: %+v", got)
	}
	if got.TestID != "banner_copy_v1" || got.VariantID != "urgency" {
		t.Errorf("expected experiment attribution, got %+v", got)
	}
}

func TestSelector_ExperimentCondition(t *testing.T) {
	conds, _ := NewConditions()
	reg := NewRegistry(conds)
	reg.Register(Banner{ID: "early", Priority: 10, CTA: CTASignup, Condition: `"paywall_timing" in experiments && experiments["paywall_timing"] == "early"`})
	reg.Register(Banner{ID: "broken", Priority: 99, CTA: CTASignup, Condition: `experiments["missing"] == "x"`})
	s := NewSelector(reg)

	in := guestInput(0, 0)
	if _, ok := s.Active(in, NewDismissals(), nil); ok {
		t.Error("no banner should apply without an assignment")
	}

	in.Assignments = map[string]string{"paywall_timing": "early"}
	got, ok := s.Active(in, NewDismissals(), nil)
	if !ok || got.ID != "early" {
		t.Errorf("expected early banner, got %+v", got)
	}
}

func TestRegistry_Register(t *testing.T) {
	conds, _ := NewConditions()
	reg := NewRegistry(conds)

	if err := reg.Register(Banner{ID: "a", CTA: CTASignup, Condition: "account.guest"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		b    Banner
	}{
		{"duplicate", Banner{ID: "a", CTA: CTASignup}},
		{"missing id", Banner{CTA: CTASignup}},
		{"unknown cta", Banner{ID: "b", CTA: "buy"}},
		{"syntax error", Banner{ID: "c", CTA: CTASignup, Condition: "account.guest &&"}},
		{"non boolean", Banner{ID: "d", CTA: CTASignup, Condition: `"guest"`}},
		{"unknown variable", Banner{ID: "e", CTA: CTASignup, Condition: "profile.guest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := reg.Register(tt.b); err == nil {
				t.Error("expected error")
			}
		})
	}

	if got := len(reg.All()); got != 1 {
		t.Errorf("expected 1 registered banner, got %d", got)
	}
	if _, ok := reg.Get("a"); !ok {
		t.Error("expected to find banner a")
	}
}
