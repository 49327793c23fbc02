package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/telecare/telemed-api/internal/model"
	"github.com/telecare/telemed-api/internal/repository"
	"github.com/telecare/telemed-api/pkg/circuitbreaker"
	"github.com/telecare/telemed-api/pkg/metrics"
)

const (
	doctorsKeyPrefix = "directory:doctors:"
	specialtiesKey   = "directory:specialties"
)

// Service serves the public doctor directory. Reads go through a redis
// read-through cache with an in-process fallback; only a failure of the
// database itself surfaces to the caller. All operations are read-only.
type Service struct {
	repo    repository.UserRepository
	redis   *redis.Client
	local   *gocache.Cache
	cb      *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zerolog.Logger
}

func NewService(repo repository.UserRepository, redisClient *redis.Client, ttl time.Duration, m *metrics.Metrics, logger *zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		redis: redisClient,
		local: gocache.New(ttl, 2*ttl),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "directory-redis",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

// ListDoctors returns active doctors, optionally narrowed to one
// specialty, sorted by (specialty, name). No match is an empty slice.
func (s *Service) ListDoctors(ctx context.Context, specialty string) ([]model.Doctor, error) {
	key := doctorsKeyPrefix + specialty

	var doctors []model.Doctor
	if s.cacheGet(ctx, key, &doctors) {
		return doctors, nil
	}

	doctors, err := s.repo.ListDoctors(ctx, specialty)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	s.cacheSet(ctx, key, doctors)
	return doctors, nil
}

// ListSpecialties returns the distinct, non-blank specialties of active
// doctors, sorted ascending.
func (s *Service) ListSpecialties(ctx context.Context) ([]string, error) {
	var specialties []string
	if s.cacheGet(ctx, specialtiesKey, &specialties) {
		return specialties, nil
	}

	specialties, err := s.repo.ListSpecialties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list specialties: %w", err)
	}

	s.cacheSet(ctx, specialtiesKey, specialties)
	return specialties, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if cached, ok := s.local.Get(key); ok {
		if raw, ok := cached.([]byte); ok && json.Unmarshal(raw, out) == nil {
			s.metrics.DirectoryCacheHits.WithLabelValues("local").Inc()
			return true
		}
	}
	s.metrics.DirectoryCacheMisses.WithLabelValues("local").Inc()

	if s.redis == nil {
		return false
	}

	var raw []byte
	miss := false
	err := s.cb.Execute(func() error {
		b, err := s.redis.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// A miss is a normal outcome, not a breaker failure.
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		raw = b
		return nil
	})
	if err != nil || miss {
		if err != nil && err != circuitbreaker.ErrOpen {
			s.logger.Warn().Err(err).Str("key", key).Msg("redis cache read failed")
		}
		s.metrics.DirectoryCacheMisses.WithLabelValues("redis").Inc()
		return false
	}
	if json.Unmarshal(raw, out) != nil {
		return false
	}

	s.metrics.DirectoryCacheHits.WithLabelValues("redis").Inc()
	s.local.Set(key, raw, gocache.DefaultExpiration)
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.local.Set(key, raw, gocache.DefaultExpiration)

	if s.redis == nil {
		return
	}
	if err := s.cb.Execute(func() error {
		return s.redis.Set(ctx, key, raw, s.ttl).Err()
	}); err != nil && err != circuitbreaker.ErrOpen {
		s.logger.Warn().Err(err).Str("key", key).Msg("redis cache write failed")
	}
}
