// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"fmt"

	"github.com/pocketbudget/entitlement-engine/pkg/analytics"
	"github.com/pocketbudget/entitlement-engine/pkg/banner"
	"github.com/pocketbudget/entitlement-engine/pkg/catalog"
	"github.com/pocketbudget/entitlement-engine/pkg/clock"
	"github.com/pocketbudget/entitlement-engine/pkg/policy"
	"github.com/pocketbudget/entitlement-engine/pkg/restriction"
	"github.com/pocketbudget/entitlement-engine/pkg/session"
	"github.com/sirupsen/logrus"
)

// InitEngine builds the shared session dependencies from a validated catalog.
//
// The engine is built in this order:
// Policy Resolver → Restriction Checker → Banner Registry → session.Deps
func InitEngine(cat *catalog.Catalog, sink analytics.Sink, clk clock.Clock) (session.Deps, error) {
	resolver := policy.NewResolver(cat.Policy)
	logrus.Infof("initialized policy resolver with %d guest tiers", len(cat.Policy.GuestTiers))

	checker := restriction.NewChecker(resolver)

	registry, err := InitBannerRegistry(cat.Banners)
	if err != nil {
		return session.Deps{}, err
	}

	active := 0
	for _, t := range cat.Experiments {
		if t.Active {
			active++
		}
	}
	logrus.Infof("loaded %d experiments (%d active)", len(cat.Experiments), active)

	return session.Deps{
		Clock:      clk,
		Sink:       sink,
		Resolver:   resolver,
		Checker:    checker,
		Thresholds: cat.Engagement,
		Tests:      cat.Experiments,
		Banners:    registry,
	}, nil
}

// InitBannerRegistry compiles every banner condition into a registry.
func InitBannerRegistry(banners []banner.Banner) (*banner.Registry, error) {
	conds, err := banner.NewConditions()
	if err != nil {
		return nil, fmt.Errorf("failed to create banner condition environment: %w", err)
	}

	registry := banner.NewRegistry(conds)
	for _, b := range banners {
		if err := registry.Register(b); err != nil {
			return nil, fmt.Errorf("failed to register banner %s: %w", b.ID, err)
		}
	}
	logrus.Infof("registered %d banners", len(banners))

	return registry, nil
}
