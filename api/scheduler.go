/*
scheduler.go - Automated invalidation retry scheduler

PURPOSE:
  An override write commits before its cache sweep runs. When the sweep
  fails, the scope is recorded as a failed invalidation run and its cached
  values may be stale. This scheduler periodically retries those runs until
  they complete.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick calls OverrideService.RetryFailed, which re-sweeps every
    failed scope and records the new outcome
  - Sweeps are idempotent, so a retry racing a manual resync is harmless

CONFIGURATION:
  - CheckInterval: How often to check (default: 5 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRetryScheduler(handler.Overrides, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RetryInvalidations endpoint (manual retry)
  - compensation/overrides.go: RetryFailed
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/plantao-engine/compensation"
)

// DefaultRetryInterval is the check interval of a new RetryScheduler.
const DefaultRetryInterval = 5 * time.Minute

// RetryScheduler re-runs failed cache invalidations in the background.
type RetryScheduler struct {
	Service       *compensation.OverrideService
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRetryScheduler(service *compensation.OverrideService, logger *zap.Logger) *RetryScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryScheduler{
		Service:       service,
		Logger:        logger,
		CheckInterval: DefaultRetryInterval,
		Enabled:       true,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a no-op.
func (rs *RetryScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("retry scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(ctx, rs.ticker, rs.stop)

	rs.Logger.Info("retry scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight retry to return.
func (rs *RetryScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	rs.cancel()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.Logger.Info("retry scheduler stopped")
}

func (rs *RetryScheduler) run(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndRetry(ctx)

	for {
		select {
		case <-ticker.C:
			rs.checkAndRetry(ctx)
		case <-stop:
			return
		}
	}
}

func (rs *RetryScheduler) checkAndRetry(ctx context.Context) int {
	completed, err := rs.Service.RetryFailed(ctx)
	if err != nil {
		rs.Logger.Warn("invalidation retry failed", zap.Error(err))
		return completed
	}
	if completed > 0 {
		rs.Logger.Info("invalidation retry completed", zap.Int("scopes", completed))
	}
	return completed
}

// RunNow triggers an immediate check and returns how many scopes completed.
func (rs *RetryScheduler) RunNow(ctx context.Context) int {
	return rs.checkAndRetry(ctx)
}
