// README: Weather service: validation, cache, per-key request sharing and bounded retry.
package weather

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"locater/internal/metrics"
	"locater/internal/types"
)

// fetchTimeout bounds one shared lookup, retries included.
const fetchTimeout = 30 * time.Second

type Options struct {
	Attempts int
	// Backoff is the base delay; the wait before attempt n+1 is Backoff * 2^n.
	Backoff time.Duration
}

type Service struct {
	provider Provider
	cache    Cache
	opts     Options
	log      zerolog.Logger
	group    singleflight.Group
}

func NewService(provider Provider, cache Cache, opts Options, log zerolog.Logger) *Service {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &Service{provider: provider, cache: cache, opts: opts, log: log}
}

// Fetch returns current conditions at p. Concurrent calls for the same point
// share one upstream lookup.
func (s *Service) Fetch(ctx context.Context, p types.Point) (Report, error) {
	if !p.Valid() {
		metrics.WeatherErrorsTotal.WithLabelValues(reason(ErrInvalidLocation)).Inc()
		return Report{}, ErrInvalidLocation
	}
	key := p.Key()

	r, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("weather cache read failed")
	}
	if ok {
		metrics.WeatherCacheTotal.WithLabelValues("hit").Inc()
		return r, nil
	}
	metrics.WeatherCacheTotal.WithLabelValues("miss").Inc()

	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.fetch(fctx, key, p)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Report{}, res.Err
		}
		return res.Val.(Report), nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

func (s *Service) fetch(ctx context.Context, key string, p types.Point) (Report, error) {
	attempt := 0
	r, err := backoff.RetryNotifyWithData(func() (Report, error) {
		attempt++
		r, err := s.provider.Current(ctx, p)
		if errors.Is(err, ErrInvalidLocation) {
			return Report{}, backoff.Permanent(err)
		}
		return r, err
	}, s.retryPolicy(ctx), func(err error, delay time.Duration) {
		s.log.Debug().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("weather lookup failed")
	})
	if err != nil {
		metrics.WeatherErrorsTotal.WithLabelValues(reason(err)).Inc()
		s.log.Warn().Err(err).Str("key", key).Int("attempts", attempt).Msg("weather lookup gave up")
		return Report{}, err
	}

	if err := s.cache.Set(ctx, key, r); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("weather cache write failed")
	}
	return r, nil
}

// retryPolicy waits Backoff*2, then Backoff*4, and so on, for at most
// Attempts calls in total. It stops early when ctx ends.
func (s *Service) retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * s.opts.Backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.Attempts-1)), ctx)
}
