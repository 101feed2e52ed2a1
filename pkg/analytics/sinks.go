package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/pocketbudget/entitlement-engine/pkg/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// LogSink writes events to logrus at debug level.
type LogSink struct{}

// Track implements Sink.
func (LogSink) Track(_ context.Context, name string, props map[string]interface{}) {
	logrus.WithField("event", name).WithFields(logrus.Fields(props)).Debug("analytics event")
}

// MetricsSink counts events per name.
type MetricsSink struct{}

// Track implements Sink.
func (MetricsSink) Track(_ context.Context, name string, _ map[string]interface{}) {
	metrics.AnalyticsEvents.WithLabelValues(name).Inc()
}

// Multi fans an event out to every sink in order.
type Multi []Sink

// Track implements Sink.
func (m Multi) Track(ctx context.Context, name string, props map[string]interface{}) {
	for _, s := range m {
		s.Track(ctx, name, props)
	}
}

// Safe wraps a sink so that a panicking sink cannot reach the caller.
func Safe(sink Sink) Sink {
	return SinkFunc(func(ctx context.Context, name string, props map[string]interface{}) {
		defer func() {
			if r := recover(); r != nil {
				metrics.AnalyticsDropped.WithLabelValues("panic").Inc()
				logrus.Warnf("analytics sink panicked on %s: %v", name, r)
			}
		}()
		sink.Track(ctx, name, props)
	})
}

// ThrottledSink drops events once the rate limit is exhausted.
type ThrottledSink struct {
	next    Sink
	limiter *rate.Limiter
}

// NewThrottledSink allows eventsPerSecond sustained with the given burst.
func NewThrottledSink(next Sink, eventsPerSecond float64, burst int) *ThrottledSink {
	return &ThrottledSink{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
	}
}

// Track implements Sink.
func (t *ThrottledSink) Track(ctx context.Context, name string, props map[string]interface{}) {
	if !t.limiter.Allow() {
		metrics.AnalyticsDropped.WithLabelValues("throttled").Inc()
		logrus.Debugf("analytics event %s dropped by throttle", name)
		return
	}
	t.next.Track(ctx, name, props)
}

// RedisStreamSink appends events to a Redis stream for downstream consumers.
type RedisStreamSink struct {
	client redis.UniversalClient
	cfg    RedisStreamSinkConfig
}

// RedisStreamSinkConfig configures the stream sink.
type RedisStreamSinkConfig struct {
	Stream string
	MaxLen int64
}

// NewRedisStreamSink creates a stream sink.
func NewRedisStreamSink(client redis.UniversalClient, cfg RedisStreamSinkConfig) *RedisStreamSink {
	if cfg.Stream == "" {
		cfg.Stream = "entitlement_engine:analytics"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 100_000
	}
	return &RedisStreamSink{
		client: client,
		cfg:    cfg,
	}
}

// Track implements Sink. Failures are logged and dropped.
func (r *RedisStreamSink) Track(ctx context.Context, name string, props map[string]interface{}) {
	if err := r.publish(ctx, name, props); err != nil {
		metrics.AnalyticsDropped.WithLabelValues("redis").Inc()
		logrus.Warnf("failed to publish analytics event %s: %v", name, err)
	}
}

func (r *RedisStreamSink) publish(ctx context.Context, name string, props map[string]interface{}) error {
	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.cfg.Stream,
		MaxLen: r.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event":      name,
			"properties": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", r.cfg.Stream, err)
	}
	return nil
}
