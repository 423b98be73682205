package reliability

import (
	"context"
	"errors"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	"huddle/pkg/cache"
	"huddle/pkg/circuitbreaker"
	"huddle/pkg/retry"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "conference:"

// ConferenceStoreWrapper wraps a ConferenceRepository with retry logic, a
// circuit breaker, and a short-TTL read cache. Lookups on the join path hit
// the store once per TTL instead of once per connection; write failures are
// retried with backoff before they surface to the caller.
type ConferenceStoreWrapper struct {
	inner    ports.ConferenceRepository
	retryCfg retry.Config
	breaker  *circuitbreaker.CircuitBreaker
	reads    *cache.CacheWithFallback
	readTTL  time.Duration
	logger   *zap.SugaredLogger
}

// WrapperConfig tunes the wrapper. Zero values fall back to defaults.
type WrapperConfig struct {
	Retry   retry.Config
	Breaker circuitbreaker.Config
	ReadTTL time.Duration
}

// DefaultWrapperConfig returns the configuration used by the server binary.
func DefaultWrapperConfig() WrapperConfig {
	return WrapperConfig{
		Retry:   retry.DefaultConfig(),
		Breaker: circuitbreaker.DefaultConfig(),
		ReadTTL: 2 * time.Second,
	}
}

// NewConferenceStoreWrapper wraps repo with retry, circuit breaking, and
// cached reads.
func NewConferenceStoreWrapper(repo ports.ConferenceRepository, cfg WrapperConfig, logger *zap.SugaredLogger) *ConferenceStoreWrapper {
	if cfg.ReadTTL <= 0 {
		cfg.ReadTTL = 2 * time.Second
	}

	w := &ConferenceStoreWrapper{
		inner:    repo,
		retryCfg: cfg.Retry,
		breaker:  circuitbreaker.New(cfg.Breaker),
		reads:    cache.NewCacheWithFallback(cfg.ReadTTL),
		readTTL:  cfg.ReadTTL,
		logger:   logger,
	}

	w.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("conference store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return w
}

// execute runs op through the breaker with retries, stopping early on domain
// sentinel errors that retrying cannot fix.
func (w *ConferenceStoreWrapper) execute(ctx context.Context, op func() error) error {
	var permanent error

	err := retry.Do(ctx, w.retryCfg, func() error {
		return w.breaker.Execute(func() error {
			err := op()
			if errors.Is(err, domain.ErrConferenceNotFound) || errors.Is(err, domain.ErrConferenceExists) {
				permanent = err
				return nil
			}
			return err
		})
	})
	if permanent != nil {
		return permanent
	}
	return err
}

// Create stores a new conference record.
func (w *ConferenceStoreWrapper) Create(ctx context.Context, conf *domain.Conference) error {
	err := w.execute(ctx, func() error {
		return w.inner.Create(ctx, conf)
	})
	if err == nil {
		w.reads.Delete(cacheKeyPrefix + string(conf.ID))
	}
	return err
}

// GetByID returns a conference record, served from the read cache when a
// fresh copy is available.
func (w *ConferenceStoreWrapper) GetByID(ctx context.Context, id domain.RoomID) (*domain.Conference, error) {
	value, err := w.reads.GetOrSet(ctx, cacheKeyPrefix+string(id), func(ctx context.Context) (interface{}, error) {
		var conf *domain.Conference
		err := w.execute(ctx, func() error {
			var err error
			conf, err = w.inner.GetByID(ctx, id)
			return err
		})
		return conf, err
	}, w.readTTL)
	if err != nil {
		return nil, err
	}
	return value.(*domain.Conference), nil
}

// Update replaces a conference record and invalidates its cached read.
func (w *ConferenceStoreWrapper) Update(ctx context.Context, conf *domain.Conference) error {
	err := w.execute(ctx, func() error {
		return w.inner.Update(ctx, conf)
	})
	if err == nil {
		w.reads.Delete(cacheKeyPrefix + string(conf.ID))
	}
	return err
}

// Delete removes a conference record and invalidates its cached read.
func (w *ConferenceStoreWrapper) Delete(ctx context.Context, id domain.RoomID) error {
	err := w.execute(ctx, func() error {
		return w.inner.Delete(ctx, id)
	})
	if err == nil {
		w.reads.Delete(cacheKeyPrefix + string(id))
	}
	return err
}

// ListActive returns active conference records. Listings are not cached;
// they back the dashboard and the backup scheduler, both of which want
// current data.
func (w *ConferenceStoreWrapper) ListActive(ctx context.Context) ([]*domain.Conference, error) {
	var confs []*domain.Conference
	err := w.execute(ctx, func() error {
		var err error
		confs, err = w.inner.ListActive(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return confs, nil
}

// Close stops the cache eviction goroutine.
func (w *ConferenceStoreWrapper) Close() {
	w.reads.Stop()
}
