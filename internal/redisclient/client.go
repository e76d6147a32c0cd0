package redisclient

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client wraps a Redis client with OpenTelemetry tracing
type Client struct {
	cmdable redis.Cmdable
}

// NewClient creates a new traced Redis client for single Redis instance
func NewClient(client *redis.Client) *Client {
	return &Client{cmdable: client}
}

// startSpan opens a span for a single command; finish must be called with the command error.
func startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs,
		attribute.String("redis.operation", operation),
		attribute.String("redis.client", "league-api"),
	)
	ctx, span := otel.Tracer("redis").Start(ctx, "redis."+operation, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		duration := time.Since(start)
		span.SetAttributes(
			attribute.Int64("redis.duration_ms", duration.Milliseconds()),
			attribute.String("redis.duration", duration.String()),
		)
		if err != nil && !errors.Is(err, redis.Nil) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("redis.error", err.Error()))
		} else {
			span.SetStatus(codes.Ok, "success")
		}
		span.End()
	}
}

// Del wraps Redis Del with tracing
func (c *Client) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	ctx, finish := startSpan(ctx, "del",
		attribute.StringSlice("redis.keys", keys),
		attribute.Int("redis.key_count", len(keys)),
	)
	cmd := c.cmdable.Del(ctx, keys...)
	finish(cmd.Err())
	return cmd
}

// Ping wraps Redis Ping with tracing
func (c *Client) Ping(ctx context.Context) *redis.StatusCmd {
	ctx, finish := startSpan(ctx, "ping")
	cmd := c.cmdable.Ping(ctx)
	finish(cmd.Err())
	return cmd
}

// HGetAll wraps Redis HGetAll with tracing
func (c *Client) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	ctx, finish := startSpan(ctx, "hgetall",
		attribute.String("redis.key", key),
		attribute.String("redis.type", "hash"),
	)
	cmd := c.cmdable.HGetAll(ctx, key)
	finish(cmd.Err())
	return cmd
}

// HSetWithExpireAt writes hash fields and sets an absolute expiry in one transaction
func (c *Client) HSetWithExpireAt(ctx context.Context, key string, expireAt time.Time, values ...interface{}) error {
	ctx, finish := startSpan(ctx, "hset_expireat",
		attribute.String("redis.key", key),
		attribute.String("redis.type", "hash"),
		attribute.String("redis.expire_at", expireAt.Format(time.RFC3339)),
	)
	_, err := c.cmdable.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values...)
		pipe.PExpireAt(ctx, key, expireAt)
		return nil
	})
	finish(err)
	return err
}

// HIncrBy wraps Redis HIncrBy with tracing
func (c *Client) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	ctx, finish := startSpan(ctx, "hincrby",
		attribute.String("redis.key", key),
		attribute.String("redis.field", field),
		attribute.String("redis.type", "hash"),
	)
	cmd := c.cmdable.HIncrBy(ctx, key, field, incr)
	finish(cmd.Err())
	return cmd
}
