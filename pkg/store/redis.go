// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Options configures the Redis connection.
type Options struct {
	Host       string
	Port       string
	Password   string
	MaxRetries int
	RetryDelay time.Duration
}

// Connect creates a Redis client and pings it with exponential backoff.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	addr := opts.Host + ":" + opts.Port
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     opts.Password,
		DB:           0, // use default DB
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	b := backoff.NewExponentialBackOff()
	if opts.RetryDelay > 0 {
		b.InitialInterval = opts.RetryDelay
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if _, err := client.Ping(ctx).Result(); err != nil {
			logrus.Warnf("Redis connection to %s failed (attempt %d): %v, retrying...", addr, attempt, err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s after %d attempts: %w", addr, attempt, err)
	}

	logrus.Infof("connected to Redis at %s (attempt %d)", addr, attempt)
	return client, nil
}

const (
	// sessionStoreDefaultTTL bounds how long an idle session snapshot survives.
	sessionStoreDefaultTTL = 24 * time.Hour
	// sessionStoreKeyPrefix is the prefix for all session keys
	sessionStoreKeyPrefix = "entitlement_engine:session:"
	// installationKeyPrefix is the prefix for installation seed keys
	installationKeyPrefix = "entitlement_engine:installation:"
)

// RedisSessionStore implements SessionStore using Redis JSON values with a TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	cfg    RedisSessionStoreConfig
}

// RedisSessionStoreConfig tunes the Redis session store.
type RedisSessionStoreConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// NewRedisSessionStore creates a new Redis-backed session store.
func NewRedisSessionStore(client redis.UniversalClient, cfg RedisSessionStoreConfig) *RedisSessionStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = sessionStoreKeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = sessionStoreDefaultTTL
	}
	return &RedisSessionStore{client: client, cfg: cfg}
}

func (r *RedisSessionStore) key(id string) string {
	return fmt.Sprintf("%s%s", r.cfg.KeyPrefix, id)
}

// Load retrieves a session snapshot. Missing sessions return ErrNotFound.
func (r *RedisSessionStore) Load(ctx context.Context, id string) (*SessionRecord, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		logrus.Errorf("failed to get session %s: %v", id, err)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		logrus.Errorf("failed to unmarshal session %s: %v", id, err)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	logrus.Debugf("retrieved session %s", id)
	return &rec, nil
}

// Save writes a session snapshot and refreshes its TTL.
func (r *RedisSessionStore) Save(ctx context.Context, rec *SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(rec.ID), data, r.cfg.TTL).Err(); err != nil {
		logrus.Errorf("failed to set session %s: %v", rec.ID, err)
		return fmt.Errorf("failed to set session: %w", err)
	}

	logrus.Debugf("saved session %s with TTL %v", rec.ID, r.cfg.TTL)
	return nil
}

// Delete removes a session snapshot.
func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		logrus.Errorf("failed to delete session %s: %v", id, err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// RedisInstallationStore binds installation ids to seeds with SETNX so that
// concurrent first requests agree on one seed.
type RedisInstallationStore struct {
	client    redis.UniversalClient
	keyPrefix string
	newSeed   func() string
}

// NewRedisInstallationStore creates a Redis-backed installation store.
func NewRedisInstallationStore(client redis.UniversalClient, newSeed func() string) *RedisInstallationStore {
	return &RedisInstallationStore{
		client:    client,
		keyPrefix: installationKeyPrefix,
		newSeed:   newSeed,
	}
}

// Resolve returns the seed for installationID, creating it on first use.
func (r *RedisInstallationStore) Resolve(ctx context.Context, installationID string) (string, error) {
	key := r.keyPrefix + installationID
	if _, err := r.client.SetNX(ctx, key, r.newSeed(), 0).Result(); err != nil {
		return "", fmt.Errorf("failed to reserve installation seed: %w", err)
	}
	seed, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read installation seed: %w", err)
	}
	return seed, nil
}
