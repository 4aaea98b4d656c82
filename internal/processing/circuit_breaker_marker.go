package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"logscrub/internal/config"
	"logscrub/pkg/circuitbreaker"
)

// CircuitBreakerMarkerRepository shields the worker from a degraded
// Redis. When the breaker is open, marker lookups fail fast and the
// worker falls back to the idempotent store write.
type CircuitBreakerMarkerRepository struct {
	repo MarkerRepository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerMarkerRepository(repo MarkerRepository, cfg config.CircuitBreakerConfig) *CircuitBreakerMarkerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerMarkerRepository{
			repo: repo,
			cb:   nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig("redis-marker")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerMarkerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(cbConfig),
	}
}

func (r *CircuitBreakerMarkerRepository) Seen(ctx context.Context, tenantID, logID string) (bool, error) {
	if r.cb == nil {
		return r.repo.Seen(ctx, tenantID, logID)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.repo.Seen(ctx, tenantID, logID)
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		if r.cb.IsOpen() {
			return false, fmt.Errorf("circuit breaker is open for redis-marker: %w", err)
		}
		return false, err
	}

	seen, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("marker repository returned invalid result type")
	}

	return seen, nil
}

func (r *CircuitBreakerMarkerRepository) Mark(ctx context.Context, tenantID, logID string, ttl time.Duration) error {
	if r.cb == nil {
		return r.repo.Mark(ctx, tenantID, logID, ttl)
	}

	_, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, r.repo.Mark(ctx, tenantID, logID, ttl)
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		if r.cb.IsOpen() {
			return fmt.Errorf("circuit breaker is open for redis-marker: %w", err)
		}
		return err
	}

	return nil
}

func (r *CircuitBreakerMarkerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}

func (r *CircuitBreakerMarkerRepository) IsOpen() bool {
	if r.cb == nil {
		return false
	}
	return r.cb.IsOpen()
}
