package pipeline

import (
	"context"
	"sync"
	"time"

	"chronolog/internal/logging"
)

// Runner is the concrete scheduler a StoryPipeline needs but does not
// implement itself: one goroutine driving a collect ticker and an extract
// ticker, per spec §5's "one sequencer thread per pipeline" model. Stop is
// cooperative: it cancels the context, waits for the loop to exit, and
// then finalizes the pipeline.
type Runner struct {
	pipeline        *StoryPipeline
	collectInterval time.Duration
	extractInterval time.Duration
	clock           func() time.Time
	logger          *logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRunner constructs a Runner for pipeline. clock defaults to time.Now
// when nil, which tests override for deterministic decay timing.
func NewRunner(p *StoryPipeline, collectInterval, extractInterval time.Duration, clock func() time.Time, logger *logging.Logger) *Runner {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = logging.L()
	}
	return &Runner{
		pipeline:        p,
		collectInterval: collectInterval,
		extractInterval: extractInterval,
		clock:           clock,
		logger:          logger,
		done:            make(chan struct{}),
	}
}

// Start launches the background goroutine driving collect and extract
// cycles until ctx is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.loop(runCtx)
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	collectTicker := time.NewTicker(r.collectInterval)
	defer collectTicker.Stop()
	extractTicker := time.NewTicker(r.extractInterval)
	defer extractTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-collectTicker.C:
			if err := r.pipeline.Collect(); err != nil {
				r.logger.Error("collect cycle failed", logging.Error(err))
			}
		case <-extractTicker.C:
			if err := r.pipeline.ExtractDecayed(r.clock()); err != nil {
				r.logger.Error("extract cycle failed", logging.Error(err))
			}
		}
	}
}

// Stop cancels the background loop, waits for it to exit, and finalizes
// the pipeline. Safe to call multiple times.
func (r *Runner) Stop() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
		r.pipeline.Finalize()
	})
}
