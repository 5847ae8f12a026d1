// Package poll drives the database probe on a fixed
// interval, forever. A failing iteration is logged and
// followed by a shorter backoff sleep; the loop itself
// only ends when its context is cancelled.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/appstack-tools/metering-sidecar/binding"
	"github.com/appstack-tools/metering-sidecar/probe"
)

// Default sleep durations between iterations.
const (
	DefaultInterval = 300 * time.Second
	DefaultBackoff  = 60 * time.Second
)

// Loop repeatedly resolves credentials and probes the
// database. Zero durations fall back to the defaults.
type Loop struct {
	// Resolve produces connection parameters for one
	// iteration.
	Resolve func() (binding.ConnectionParameters, error)

	// Fetch runs the database probe.
	Fetch func(
		ctx context.Context,
		params binding.ConnectionParameters,
	) ([][]interface{}, probe.Outcome)

	// Interval is the sleep after a successful
	// iteration.
	Interval time.Duration

	// Backoff is the shorter sleep after a failed
	// iteration.
	Backoff time.Duration
}

// Run executes iterations until ctx is cancelled. Each
// iteration's failure, including a panic, is contained
// at the iteration boundary.
func (l *Loop) Run(ctx context.Context) {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	backoff := l.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			slog.Info("poll loop stopped")

			return
		}

		slog.Info("poll iteration", "n", iteration)

		err := l.iterate(ctx)

		sleep := interval

		if err != nil && ctx.Err() == nil {
			slog.Error(
				"poll iteration failed",
				"n", iteration,
				"error", err,
			)

			sleep = backoff
		}

		if !sleepCtx(ctx, sleep) {
			slog.Info("poll loop stopped")

			return
		}
	}
}

// iterate runs one resolve-and-fetch cycle. A recovered
// panic is converted to an error so the loop survives.
func (l *Loop) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf(
				"iteration panic: %v", r,
			)
		}
	}()

	params, err := l.Resolve()
	if err != nil {
		return err
	}

	rows, outcome := l.Fetch(ctx, params)
	if outcome != probe.OutcomeOK {
		return fmt.Errorf(
			"probe: %s", outcome,
		)
	}

	if len(rows) == 0 {
		slog.Warn("no rows found")

		return nil
	}

	slog.Info("fetched rows", "count", len(rows))

	for i, row := range rows {
		slog.Info("row", "n", i+1, "values", row)
	}

	return nil
}

// sleepCtx sleeps for d or until ctx is cancelled. It
// returns false when the sleep was cut short.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
