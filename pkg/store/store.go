// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package store persists session snapshots and installation seeds.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/engagement"
	"github.com/pocketbudget/entitlement-engine/pkg/usage"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// SessionRecord is the persisted snapshot of one engine session.
type SessionRecord struct {
	ID              string              `json:"id"`
	Seed            string              `json:"seed"`
	InstallationID  string              `json:"installationId,omitempty"`
	StartedAt       time.Time           `json:"startedAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	Account         account.State       `json:"account"`
	Usage           usage.Counts        `json:"usage"`
	RestrictionHits int                 `json:"restrictionHits"`
	Engagement      engagement.Snapshot `json:"engagement"`
	Assignments     map[string]string   `json:"assignments,omitempty"`
	Dismissed       []string            `json:"dismissed,omitempty"`
}

// SessionStore defines access to persisted session snapshots.
type SessionStore interface {
	Load(ctx context.Context, id string) (*SessionRecord, error)
	Save(ctx context.Context, rec *SessionRecord) error
	Delete(ctx context.Context, id string) error
}

// InstallationStore maps a client installation id to a durable bucketing seed.
type InstallationStore interface {
	Resolve(ctx context.Context, installationID string) (string, error)
}
