package status

import (
	"context"
	"time"

	"wagateway/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically evicts stale status records so long-running
// processes do not accumulate entries indefinitely
type Sweeper struct {
	tracker  *Tracker
	interval time.Duration
	ttl      time.Duration
	logger   *logrus.Logger
	stopCh   chan struct{}
}

// NewSweeper creates a sweeper with the given check interval and record TTL
func NewSweeper(tracker *Tracker, interval, ttl time.Duration, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		tracker:  tracker,
		interval: interval,
		ttl:      ttl,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is called
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"interval": s.interval,
		"ttl":      s.ttl,
	}).Info("Starting status sweeper")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Status sweeper context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Status sweeper stop signal received, stopping")
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

// Stop stops the sweep loop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) runSweep() {
	removed := s.tracker.Sweep(time.Now().Add(-s.ttl))
	metrics.SetGauge("status_records_evicted", float64(removed), nil,
		"Status records evicted in the last sweep")
	if removed > 0 {
		s.logger.WithField("removed", removed).Debug("Evicted stale status records")
	}
}
