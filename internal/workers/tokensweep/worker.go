package tokensweep

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/baechuer/pension-service/internal/logger"
)

var (
	sweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pension_service",
			Name:      "token_sweep_runs_total",
			Help:      "Validation token sweep runs by outcome.",
		},
		[]string{"outcome"},
	)
	sweepDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pension_service",
			Name:      "token_sweep_deleted_total",
			Help:      "Expired validation tokens deleted by the sweep.",
		},
	)
)

// Sweeper deletes expired validation tokens and reports how many went.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Worker periodically removes expired validation tokens.
type Worker struct {
	store      Sweeper
	interval   time.Duration
	runTimeout time.Duration
	log        zerolog.Logger
}

func New(store Sweeper, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{
		store:      store,
		interval:   interval,
		runTimeout: 30 * time.Second,
		log:        logger.Component("token_sweep"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// It blocks; start it in its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Errors are logged and swallowed.
func (w *Worker) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	start := time.Now()
	n, err := w.store.Sweep(ctx)
	if err != nil {
		sweepRunsTotal.WithLabelValues("error").Inc()
		w.log.Warn().Err(err).Msg("token sweep failed")
		return 0
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepDeletedTotal.Add(float64(n))
	if n > 0 {
		w.log.Info().
			Int64("deleted", n).
			Dur("duration", time.Since(start)).
			Msg("expired validation tokens removed")
	}
	return n
}
