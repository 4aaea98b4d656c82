package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"logscrub/internal/constants"
)

// MarkerRepository tracks which (tenant_id, log_id) pairs already have
// a durable record. It is an optimization layer over the store: losing
// a marker only costs a redundant reprocess, never correctness.
type MarkerRepository interface {
	Seen(ctx context.Context, tenantID, logID string) (bool, error)
	Mark(ctx context.Context, tenantID, logID string, ttl time.Duration) error
}

type RedisMarkerRepository struct {
	client *redis.Client
}

func NewMarkerRepository(client *redis.Client) MarkerRepository {
	return &RedisMarkerRepository{client: client}
}

func markerKey(tenantID, logID string) string {
	return constants.MarkerKeyPrefix + tenantID + ":" + logID
}

func (r *RedisMarkerRepository) Seen(ctx context.Context, tenantID, logID string) (bool, error) {
	n, err := r.client.Exists(ctx, markerKey(tenantID, logID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis EXISTS failed: %w", err)
	}
	return n > 0, nil
}

// Mark uses SETNX so a concurrent duplicate delivery cannot refresh
// the TTL of an existing marker.
func (r *RedisMarkerRepository) Mark(ctx context.Context, tenantID, logID string, ttl time.Duration) error {
	if err := r.client.SetNX(ctx, markerKey(tenantID, logID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("redis SETNX failed: %w", err)
	}
	return nil
}
