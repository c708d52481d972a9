package deduplication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"surveyflow/internal/config"
	"surveyflow/pkg/circuitbreaker"
	"surveyflow/pkg/metrics"
)

type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig, m *metrics.Metrics) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{
			repo: repo,
			cb:   nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig("redis-dedup")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		cbConfig.FailureRatio = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		cbConfig.MinRequests = cfg.MinRequests
	}

	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(cbConfig, m),
	}
}

func (r *CircuitBreakerRepository) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if r.cb == nil {
		return r.repo.SetNX(ctx, key, value, ttl)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.repo.SetNX(ctx, key, value, ttl)
	})
	if err != nil {
		if r.cb.IsOpen() {
			return false, fmt.Errorf("circuit breaker is open for redis-dedup: %w", err)
		}
		return false, err
	}

	success, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("repository returned invalid result type")
	}

	return success, nil
}

func (r *CircuitBreakerRepository) Del(ctx context.Context, key string) error {
	if r.cb == nil {
		return r.repo.Del(ctx, key)
	}

	_, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, r.repo.Del(ctx, key)
	})
	return err
}

func (r *CircuitBreakerRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.cb == nil {
		return r.repo.Set(ctx, key, value, ttl)
	}

	_, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, r.repo.Set(ctx, key, value, ttl)
	})
	return err
}

// Get does not count a missing key as a breaker failure.
func (r *CircuitBreakerRepository) Get(ctx context.Context, key string) (string, error) {
	if r.cb == nil {
		return r.repo.Get(ctx, key)
	}

	missing := false
	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		val, err := r.repo.Get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			missing = true
			return "", nil
		}
		return val, err
	})
	if err != nil {
		return "", err
	}
	if missing {
		return "", ErrKeyNotFound
	}

	val, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("repository returned invalid result type")
	}
	return val, nil
}
