package listings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher re-fetches the listing projection on a fixed schedule so cached
// snapshots track ledger writes made by other participants, which produce no
// invalidation signal of their own.
type Refresher struct {
	cron     *cron.Cron
	service  *Service
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewRefresher creates a refresher around the listing projection service.
func NewRefresher(service *Service, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		cron:     cron.New(cron.WithSeconds()),
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the background refresh loop. The first refresh runs
// immediately so the projection is warm before the first request.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("refresher already running")
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info("Starting projection refresher", zap.Duration("interval", r.interval))

	r.refresh(ctx)

	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		r.refresh(ctx)
	}); err != nil {
		return fmt.Errorf("scheduling projection refresh: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the refresh loop and waits for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.logger.Info("Stopping projection refresher")
	done := r.cron.Stop()
	<-done.Done()
	r.running = false
}

func (r *Refresher) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := r.service.RefreshAll(refreshCtx); err != nil {
		// The prior snapshot stays served; the next tick tries again.
		r.logger.Warn("Background projection refresh failed", zap.Error(err))
	}
}
