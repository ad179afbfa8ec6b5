package gate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStatsSink mirrors a gate's statistics snapshot into Redis so
// fleet-wide counters can be aggregated across instances. Publishing is
// pull-based and side-effect free for the gate: decisions never read
// anything back.
type RedisStatsSink struct {
	client *redis.Client
	key    string
}

// NewRedisStatsSink connects a sink to Redis. key namespaces the hash,
// typically one per deployment (e.g. "aegis:stats:prod").
func NewRedisStatsSink(addr, password string, db int, key string) *RedisStatsSink {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStatsSink{client: rdb, key: key}
}

// Publish writes the snapshot as a Redis hash, one field per counter.
func (s *RedisStatsSink) Publish(ctx context.Context, snap StatisticsSnapshot) error {
	fields := map[string]interface{}{
		"checks":              snap.Checks,
		"intent_checks":       snap.IntentChecks,
		"allowed":             snap.Allowed,
		"allowed_with_repair": snap.AllowedWithRepair,
		"rejected":            snap.Rejected,
		"escalated":           snap.Escalated,
		"repair_attempts":     snap.RepairAttempts,
		"repair_successes":    snap.RepairSuccesses,
		"detector_failures":   snap.DetectorFailures,
	}
	if err := s.client.HSet(ctx, s.key, fields).Err(); err != nil {
		return fmt.Errorf("publish stats: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStatsSink) Close() error {
	return s.client.Close()
}
