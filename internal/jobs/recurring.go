package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Recurring runs a job body at a fixed interval. The body is a plain
// function so tests can invoke a single cycle directly.
type Recurring struct {
	name     string
	interval time.Duration
	body     func(ctx context.Context)
	log      zerolog.Logger
}

func NewRecurring(name string, interval time.Duration, body func(ctx context.Context), log zerolog.Logger) *Recurring {
	return &Recurring{name: name, interval: interval, body: body, log: log}
}

// RunOnce executes a single cycle.
func (r *Recurring) RunOnce(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("job", r.name).Interface("panic", rec).Msg("recurring job panicked")
		}
	}()
	r.body(ctx)
}

// Run executes one cycle immediately and then on every tick until ctx
// is cancelled.
func (r *Recurring) Run(ctx context.Context) {
	r.log.Info().Str("job", r.name).Dur("interval", r.interval).Msg("recurring job started")
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Str("job", r.name).Msg("recurring job stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}
