package banner

import (
	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/experiment"
	"github.com/pocketbudget/entitlement-engine/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Selector evaluates registered candidates against a session snapshot.
type Selector struct {
	registry *Registry
}

// NewSelector creates a selector over registry.
func NewSelector(registry *Registry) *Selector {
	return &Selector{registry: registry}
}

// Applicable returns the candidates whose conditions hold, in declaration order.
// A condition that fails to evaluate counts as not applicable.
func (s *Selector) Applicable(in Input) []Banner {
	vars := in.Vars()
	conditions := s.registry.Conditions()

	var out []Banner
	for _, b := range s.registry.All() {
		ok, err := conditions.Eval(b.Condition, vars)
		if err != nil {
			logrus.Debugf("banner %s condition not applicable: %v", b.ID, err)
			continue
		}
		if ok {
			out = append(out, b)
		}
	}
	return out
}

// Active returns the banner to show, if any. Admins never see a banner.
// variants supplies experiment copy overrides keyed by test id.
func (s *Selector) Active(in Input, dismissed *Dismissals, variants map[string]experiment.Variant) (Banner, bool) {
	if in.Account.Class() == account.ClassAdmin {
		return Banner{}, false
	}

	b, ok := Select(s.Applicable(in), dismissed)
	if !ok {
		return Banner{}, false
	}
	b = ApplyCopy(b, variants)

	metrics.BannerSelections.WithLabelValues(b.ID).Inc()
	return b, true
}

// ApplyCopy overrides title, message and cta label from the variant assigned
// to the banner's copy test. Priority and dismissibility never change.
func ApplyCopy(b Banner, variants map[string]experiment.Variant) Banner {
	if b.CopyTest == "" {
		return b
	}
	v, ok := variants[b.CopyTest]
	if !ok {
		return b
	}

	b.TestID = b.CopyTest
	b.VariantID = v.ID
	if title, ok := v.Config["title"].(string); ok && title != "" {
		b.Title = title
	}
	if message, ok := v.Config["message"].(string); ok && message != "" {
		b.Message = message
	}
	if cta, ok := v.Config["cta"].(string); ok && cta != "" {
		b.CTALabel = cta
	}
	return b
}
