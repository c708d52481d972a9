package deduplication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"surveyflow/internal/config"
	"surveyflow/internal/constants"
	"surveyflow/internal/logger"
	apperrors "surveyflow/pkg/errors"
	"surveyflow/pkg/metrics"
	"surveyflow/pkg/models"
)

// GenerationKey holds the current claim generation. Claims are namespaced by
// it, so rotating it forgets every earlier claim at once.
const GenerationKey = constants.CacheKeyPrefixDedup + "generation"

// Guard decides whether a delivery may be appended. A redelivered message
// (same topic, partition and offset) is claimed only once.
type Guard interface {
	Claim(ctx context.Context, raw models.RawMessage) (bool, error)
	// Release forgets a claim so a redelivery after a failed append is processed again.
	Release(ctx context.Context, raw models.RawMessage) error
	// Reset forgets every claim. It must run whenever the store is emptied.
	Reset(ctx context.Context) error
}

type NoopGuard struct{}

func (NoopGuard) Claim(context.Context, models.RawMessage) (bool, error) { return true, nil }

func (NoopGuard) Release(context.Context, models.RawMessage) error { return nil }

func (NoopGuard) Reset(context.Context) error { return nil }

type RedisGuard struct {
	repo    Repository
	ttl     time.Duration
	onError string
	logger  logger.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	generation string
}

func NewGuard(cfg config.DeduplicationConfig, repo Repository, log logger.Logger, m *metrics.Metrics) Guard {
	if cfg.Mode != constants.DedupModeRedis || repo == nil {
		return NoopGuard{}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = constants.DefaultDedupTTL
	}
	onError := cfg.OnRedisError
	if onError == "" {
		onError = constants.DedupOnErrorAllow
	}

	return &RedisGuard{
		repo:    repo,
		ttl:     ttl,
		onError: onError,
		logger:  log,
		metrics: m,
	}
}

// Key is the claim key of raw within a generation.
func Key(generation string, raw models.RawMessage) string {
	return constants.CacheKeyPrefixDedup + generation + ":" + raw.IdempotencyKey()
}

// Reset starts a new generation. Earlier claims stay in Redis until their TTL
// expires but no longer match any delivery.
func (g *RedisGuard) Reset(ctx context.Context) error {
	generation := uuid.NewString()
	if err := g.repo.Set(ctx, GenerationKey, generation, 0); err != nil {
		return apperrors.Wrap(fmt.Errorf("failed to reset claims: %w", err), apperrors.ErrUnavailable)
	}

	g.mu.Lock()
	g.generation = generation
	g.mu.Unlock()

	g.logger.InfowCtx(ctx, "Deduplication claims reset", "generation", generation)
	return nil
}

// currentGeneration loads the generation once and creates one if none exists.
func (g *RedisGuard) currentGeneration(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generation != "" {
		return g.generation, nil
	}

	generation, err := g.repo.Get(ctx, GenerationKey)
	if errors.Is(err, ErrKeyNotFound) {
		candidate := uuid.NewString()
		created, serr := g.repo.SetNX(ctx, GenerationKey, candidate, 0)
		if serr != nil {
			return "", serr
		}
		if created {
			generation, err = candidate, nil
		} else {
			generation, err = g.repo.Get(ctx, GenerationKey)
		}
	}
	if err != nil {
		return "", err
	}

	g.generation = generation
	return generation, nil
}

func (g *RedisGuard) Claim(ctx context.Context, raw models.RawMessage) (bool, error) {
	claimed, key, err := g.claim(ctx, raw)
	if err != nil {
		g.metrics.IncDedupClaim("error")
		if g.onError == constants.DedupOnErrorAllow {
			g.logger.WarnwCtx(ctx, "Deduplication unavailable, appending without claim",
				"idempotency_key", raw.IdempotencyKey(),
				"error", err,
			)
			return true, nil
		}
		return false, apperrors.Wrap(fmt.Errorf("failed to claim %s: %w", raw.IdempotencyKey(), err), apperrors.ErrUnavailable)
	}

	if !claimed {
		g.metrics.IncDedupClaim("duplicate")
		g.logger.DebugwCtx(ctx, "Claim already held", "key", key)
		return false, nil
	}

	g.metrics.IncDedupClaim("claimed")
	return true, nil
}

func (g *RedisGuard) claim(ctx context.Context, raw models.RawMessage) (bool, string, error) {
	generation, err := g.currentGeneration(ctx)
	if err != nil {
		return false, "", err
	}
	key := Key(generation, raw)
	claimed, err := g.repo.SetNX(ctx, key, time.Now().Unix(), g.ttl)
	return claimed, key, err
}

func (g *RedisGuard) Release(ctx context.Context, raw models.RawMessage) error {
	generation, err := g.currentGeneration(ctx)
	if err != nil {
		return fmt.Errorf("failed to release %s: %w", raw.IdempotencyKey(), err)
	}
	if err := g.repo.Del(ctx, Key(generation, raw)); err != nil {
		return fmt.Errorf("failed to release %s: %w", raw.IdempotencyKey(), err)
	}
	return nil
}
