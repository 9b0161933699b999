// Package cleanup enforces session and task retention in the background.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/triad-ai/triad/pkg/observability"
	"github.com/triad-ai/triad/pkg/session"
)

// DefaultInterval is how often the sweep runs when no interval is given.
const DefaultInterval = 10 * time.Minute

// Service periodically sweeps the session registry:
//   - drops sessions idle past their expiry
//   - abandons tasks (and their pending asks) that outlived the task expiry
//
// Busy sessions are always skipped, so a running slice is never swept out
// from under its goroutine.
type Service struct {
	mgr      *session.Manager
	metrics  *observability.Metrics
	logger   *slog.Logger
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates the sweeper. Metrics may be nil. A non-positive
// interval falls back to DefaultInterval.
func NewService(mgr *session.Manager, metrics *observability.Metrics, logger *slog.Logger, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		mgr:      mgr,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
	}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("cleanup service started", "interval", s.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	sessions, tasks := s.mgr.Sweep()
	if sessions > 0 || tasks > 0 {
		s.logger.Info("retention sweep", "sessions_removed", sessions, "tasks_expired", tasks)
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.mgr.Count()))
	}
}
