// Package collector gathers fact records for a question from the web, LLM
// APIs and local documents.
package collector

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/brunobiangulo/goknow/learner"
)

// Source produces fact records for a query.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Collect returns at most max records for query.
	Collect(ctx context.Context, query string, max int) ([]learner.Record, error)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jitter returns base plus a random duration in [0, spread).
func jitter(base, spread time.Duration) time.Duration {
	if spread <= 0 {
		return base
	}
	return base + rand.N(spread)
}
