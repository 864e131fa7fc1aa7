package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breaker around a provider.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig trips after 60% of at least 3 calls fail and lets a trial
// call through again after 30 seconds.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  3,
	}
}

// Breaker wraps a Provider so that a failing backend is short-circuited
// instead of being retried on every question.
type Breaker struct {
	next   Provider
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreaker decorates p with a circuit breaker.
func NewBreaker(p Provider, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Breaker{next: p, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			switch {
			case err == nil, errors.Is(err, ErrEmbeddingsUnsupported), errors.Is(err, context.Canceled):
				return true
			case errors.As(err, &apiErr):
				// A malformed request does not count against the provider.
				return apiErr.StatusCode == http.StatusBadRequest
			}
			return false
		},
	})
	return b
}

// Chat implements Provider.
func (b *Breaker) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Chat(ctx, req)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return v.(*ChatResponse), nil
}

// Embed implements Provider.
func (b *Breaker) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Embed(ctx, texts)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return v.([][]float32), nil
}

// State reports the breaker state: "closed", "half-open" or "open".
func (b *Breaker) State() string { return b.cb.State().String() }

func (b *Breaker) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", b.cb.Name(), err)
	}
	return err
}
