package experiment

import (
	"context"
	"sync"

	"github.com/pocketbudget/entitlement-engine/pkg/analytics"
	"github.com/pocketbudget/entitlement-engine/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Service holds the variant assignments of one session. Assignments are
// computed once per test and never re-randomized for the same seed.
type Service struct {
	mu          sync.RWMutex
	seed        string
	tests       []Test
	byID        map[string]Test
	assignments map[string]Variant
	sink        analytics.Sink
}

// NewService creates a service bucketing by seed.
func NewService(seed string, tests []Test, sink analytics.Sink) *Service {
	if sink == nil {
		sink = analytics.Nop
	}
	byID := make(map[string]Test, len(tests))
	for _, t := range tests {
		byID[t.ID] = t
	}
	return &Service{
		seed:        seed,
		tests:       tests,
		byID:        byID,
		assignments: make(map[string]Variant),
		sink:        sink,
	}
}

// Seed returns the bucketing seed.
func (s *Service) Seed() string {
	return s.seed
}

// Initialize assigns every active test.
func (s *Service) Initialize(ctx context.Context) {
	for _, t := range s.tests {
		if t.Active {
			s.Assign(ctx, t.ID)
		}
	}
}

// Assign returns the variant for testID, bucketing on first use.
// Unknown and inactive tests are not assigned.
func (s *Service) Assign(ctx context.Context, testID string) (Variant, bool) {
	s.mu.Lock()
	if v, ok := s.assignments[testID]; ok {
		s.mu.Unlock()
		return v, true
	}
	test, ok := s.byID[testID]
	if !ok || !test.Active {
		s.mu.Unlock()
		return Variant{}, false
	}
	v, ok := Bucket(s.seed, test)
	if !ok {
		s.mu.Unlock()
		return Variant{}, false
	}
	s.assignments[testID] = v
	s.mu.Unlock()

	metrics.ExperimentAssignments.WithLabelValues(testID, v.ID).Inc()
	logrus.Debugf("assigned test %s variant %s", testID, v.ID)
	s.sink.Track(ctx, analytics.EventABTestAssignment, map[string]interface{}{
		"testId":      testID,
		"variantId":   v.ID,
		"variantName": v.Name,
	})
	return v, true
}

// Variant returns the cached assignment without bucketing.
func (s *Service) Variant(testID string) (Variant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.assignments[testID]
	return v, ok
}

// Assignments returns testID -> variantID for every assigned test.
func (s *Service) Assignments() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.assignments))
	for testID, v := range s.assignments {
		out[testID] = v.ID
	}
	return out
}

// Variants returns the assigned variants keyed by test id.
func (s *Service) Variants() map[string]Variant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Variant, len(s.assignments))
	for testID, v := range s.assignments {
		out[testID] = v
	}
	return out
}

// Restore reinstates previously persisted assignments. Unknown tests and
// variants are ignored.
func (s *Service) Restore(assignments map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for testID, variantID := range assignments {
		test, ok := s.byID[testID]
		if !ok {
			continue
		}
		for _, v := range test.Variants {
			if v.ID == variantID {
				s.assignments[testID] = v
				break
			}
		}
	}
}

// TrackConversion emits ab_test_conversion for the assigned variant.
// It is a no-op when testID has no assignment.
func (s *Service) TrackConversion(ctx context.Context, testID, conversionType string, value *float64) bool {
	v, ok := s.Variant(testID)
	if !ok {
		return false
	}
	props := map[string]interface{}{
		"testId":         testID,
		"variantId":      v.ID,
		"variantName":    v.Name,
		"conversionType": conversionType,
	}
	if value != nil {
		props["value"] = *value
	}
	s.sink.Track(ctx, analytics.EventABTestConversion, props)
	return true
}

// TrackInteraction emits ab_test_interaction for the assigned variant.
// It is a no-op when testID has no assignment.
func (s *Service) TrackInteraction(ctx context.Context, testID, interactionType string, details map[string]interface{}) bool {
	v, ok := s.Variant(testID)
	if !ok {
		return false
	}
	props := map[string]interface{}{
		"testId":          testID,
		"variantId":       v.ID,
		"variantName":     v.Name,
		"interactionType": interactionType,
	}
	for k, val := range details {
		if _, reserved := props[k]; !reserved {
			props[k] = val
		}
	}
	s.sink.Track(ctx, analytics.EventABTestInteraction, props)
	return true
}
