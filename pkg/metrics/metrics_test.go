package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectors_Register(t *testing.T) {
	registry := prometheus.NewRegistry()
	for _, c := range Collectors() {
		if err := registry.Register(c); err != nil {
			t.Fatalf("failed to register collector: %v", err)
		}
	}

	RestrictionChecks.WithLabelValues("category_limit", "false").Inc()
	if got := testutil.ToFloat64(RestrictionChecks.WithLabelValues("category_limit", "false")); got < 1 {
		t.Errorf("restriction checks = %v, expected >= 1", got)
	}
}
