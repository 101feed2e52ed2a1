// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/analytics"
	"github.com/pocketbudget/entitlement-engine/pkg/banner"
	"github.com/pocketbudget/entitlement-engine/pkg/catalog"
	"github.com/pocketbudget/entitlement-engine/pkg/clock"
	"github.com/pocketbudget/entitlement-engine/pkg/restriction"
	"github.com/pocketbudget/entitlement-engine/pkg/session"
)

func TestInitEngine_DefaultCatalog(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	deps, err := InitEngine(catalog.Default(), analytics.Nop, fake)
	if err != nil {
		t.Fatalf("InitEngine() error = %v", err)
	}

	if got := len(deps.Banners.All()); got != len(banner.Defaults()) {
		t.Errorf("registered %d banners, expected %d", got, len(banner.Defaults()))
	}
	if len(deps.Tests) != 2 {
		t.Errorf("expected 2 experiments, got %d", len(deps.Tests))
	}

	s := session.New(context.Background(), "s1", "s1", deps, session.CreateRequest{Account: account.State{IsGuest: true}})
	defer s.Close()

	d := s.Check(restriction.ActionTransactionLimit, intPtr(8))
	if d.Allowed {
		t.Error("guest should be denied at the base transaction limit")
	}
}

func TestInitEngine_CustomPolicy(t *testing.T) {
	cat, err := catalog.Parse([]byte(`
policy:
  registered_free:
    category_limit: 10
    transaction_limit: -1
    export_allowed: true
    analytics_allowed: true
    sync_allowed: true
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	deps, err := InitEngine(cat, nil, clock.Real())
	if err != nil {
		t.Fatalf("InitEngine() error = %v", err)
	}

	s := session.New(context.Background(), "s2", "s2", deps, session.CreateRequest{Account: account.State{UserID: "u1"}})
	defer s.Close()

	if !s.Check(restriction.ActionTransactionLimit, intPtr(1000)).Allowed {
		t.Error("unlimited transactions should be allowed")
	}
	if s.Check(restriction.ActionCategoryLimit, intPtr(10)).Allowed {
		t.Error("category limit of 10 should deny the 11th category")
	}
}

func TestInitBannerRegistry_InvalidCondition(t *testing.T) {
	_, err := InitBannerRegistry([]banner.Banner{{
		ID:        "broken",
		CTA:       banner.CTASignup,
		Condition: "account.guest &&",
	}})
	if err == nil {
		t.Fatal("expected compile error")
	}
}

func TestInitAnalytics_RedisStream(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := InitAnalytics(client, AnalyticsConfig{Stream: "test:events", RateLimit: 100})
	sink.Track(context.Background(), analytics.EventBannerDismiss, map[string]interface{}{"bannerId": "guest_welcome"})
	sink.Track(context.Background(), analytics.EventBannerDismiss, map[string]interface{}{"bannerId": "guest_urgent"})

	n, err := client.XLen(context.Background(), "test:events").Result()
	if err != nil {
		t.Fatalf("XLen() error = %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 stream entries, got %d", n)
	}
}

func TestInitAnalytics_WithoutRedis(t *testing.T) {
	sink := InitAnalytics(nil, AnalyticsConfig{})
	sink.Track(context.Background(), analytics.EventRestrictionHit, nil)
}

func intPtr(i int) *int { return &i }
