// Package readiness blocks startup until the store, the cache and the broker
// all answer in the same attempt.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

const (
	DefaultAttempts     = 5
	DefaultInterval     = 5 * time.Second
	defaultCheckTimeout = 5 * time.Second
)

// Check is one named dependency probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Probe struct {
	checks       []Check
	attempts     int
	interval     time.Duration
	checkTimeout time.Duration
	logger       logging.Logger
}

// New builds a probe that tries up to attempts times, interval apart.
// Non-positive values fall back to the defaults.
func New(checks []Check, attempts int, interval time.Duration, l logging.Logger) *Probe {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Probe{
		checks:       checks,
		attempts:     attempts,
		interval:     interval,
		checkTimeout: defaultCheckTimeout,
		logger:       l.With("module", "readiness"),
	}
}

// WaitUntilReady returns nil once every check passes in a single attempt.
// When attempts run out, or ctx ends, the error wraps common.ErrNotReady.
func (p *Probe) WaitUntilReady(ctx context.Context) error {
	attempt := 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, p.runChecks(ctx, attempt)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.interval)),
		backoff.WithMaxTries(uint(p.attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn(ctx, "dependencies not ready, retrying", "attempt", attempt, "retry_in", next.String())
		}),
	)
	if err != nil {
		p.logger.Error(ctx, "dependencies never became ready", "attempts", attempt, "error", err)
		return fmt.Errorf("%w after %d attempt(s): %w", common.ErrNotReady, attempt, err)
	}

	p.logger.Info(ctx, "all dependencies ready", "attempts", attempt)
	return nil
}

// runChecks runs every check concurrently and waits for all of them.
func (p *Probe) runChecks(ctx context.Context, attempt int) error {
	errs := make([]error, len(p.checks))

	var g errgroup.Group
	for i, c := range p.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, p.checkTimeout)
			defer cancel()

			if err := c.Fn(cctx); err != nil {
				p.logger.Warn(ctx, "dependency check failed", "dependency", c.Name, "attempt", attempt, "error", err)
				errs[i] = fmt.Errorf("%s: %w", c.Name, err)
				return nil
			}
			p.logger.Debug(ctx, "dependency check passed", "dependency", c.Name, "attempt", attempt)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
