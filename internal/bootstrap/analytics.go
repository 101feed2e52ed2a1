// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"github.com/go-redis/redis/v8"
	"github.com/pocketbudget/entitlement-engine/pkg/analytics"
	"github.com/sirupsen/logrus"
)

// AnalyticsConfig selects the analytics sinks.
type AnalyticsConfig struct {
	// Stream is the Redis stream events are appended to when a client is given.
	Stream string
	// RateLimit caps events per second sent to the stream. Zero disables throttling.
	RateLimit float64
}

// InitAnalytics builds the sink chain: every event is logged and counted, and
// also appended to a Redis stream when a client is available. The chain never
// lets a sink failure reach the engine.
func InitAnalytics(client redis.UniversalClient, cfg AnalyticsConfig) analytics.Sink {
	sinks := analytics.Multi{analytics.LogSink{}, analytics.MetricsSink{}}

	if client != nil {
		var stream analytics.Sink = analytics.NewRedisStreamSink(client, analytics.RedisStreamSinkConfig{
			Stream: cfg.Stream,
		})
		if cfg.RateLimit > 0 {
			stream = analytics.NewThrottledSink(stream, cfg.RateLimit, max(1, int(cfg.RateLimit)))
		}
		sinks = append(sinks, analytics.Safe(stream))
		logrus.Infof("publishing analytics events to redis stream %q", cfg.Stream)
	}

	return analytics.Safe(sinks)
}
