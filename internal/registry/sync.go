package registry

import (
	"context"
	"time"

	"wagateway/internal/constants"
	"wagateway/internal/models"

	"github.com/sirupsen/logrus"
)

// Sync keeps the device registry consistent with the session config
// store. A passive watcher debounces config change notifications and
// runs a full reconciliation pass afterwards.
type Sync struct {
	configs  *ConfigRegistry
	devices  *DeviceRegistry
	debounce time.Duration
	logger   *logrus.Logger
	stopCh   chan struct{}
}

// NewSync creates a registry sync with the given debounce quiet period
func NewSync(configs *ConfigRegistry, devices *DeviceRegistry, debounce time.Duration, logger *logrus.Logger) *Sync {
	if debounce <= 0 {
		debounce = constants.DefaultSyncDebounceMs * time.Millisecond
	}
	return &Sync{
		configs:  configs,
		devices:  devices,
		debounce: debounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Ensure reconciles the device registry entry for one session. The
// upsert only happens when token, name, webhook URL, or tracking URL
// differ; repeated calls with unchanged config are no-ops. A session
// with neither an existing entry nor a configured token never gets an
// entry.
func (s *Sync) Ensure(ctx context.Context, sessionID string) error {
	cfg := s.configs.Get(ctx, sessionID)

	existing, err := s.devices.FindBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	if existing == nil && cfg.Token == "" {
		return nil
	}

	if existing != nil && existing.Matches(cfg.Token, cfg.Name, cfg.WebhookURL, cfg.TrackingURL) {
		return nil
	}

	record := models.DeviceRecord{
		Token:       cfg.Token,
		SessionID:   sessionID,
		Name:        cfg.Name,
		WebhookURL:  cfg.WebhookURL,
		TrackingURL: cfg.TrackingURL,
	}
	if existing != nil {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = time.Now().UTC()
	}

	s.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"created": existing == nil,
	}).Info("Device registry entry updated")

	return s.devices.Upsert(ctx, record)
}

// ReconcileAll runs Ensure for every configured session
func (s *Sync) ReconcileAll(ctx context.Context) error {
	configs, err := s.configs.All(ctx)
	if err != nil {
		return err
	}

	for sessionID := range configs {
		if err := s.Ensure(ctx, sessionID); err != nil {
			s.logger.WithField("session", sessionID).WithError(err).
				Error("Failed to reconcile device registry entry")
		}
	}
	return nil
}

// Start runs the debounced change watcher until the context is
// cancelled or Stop is called
func (s *Sync) Start(ctx context.Context) {
	changes := s.configs.Changes()

	s.logger.WithField("debounce", s.debounce).Info("Registry sync watcher started")

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Registry sync watcher context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Registry sync watcher stop signal received, stopping")
			return
		case sessionID := <-changes:
			s.logger.WithField("session", sessionID).Debug("Session config changed")
			if timer == nil {
				timer = time.NewTimer(s.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			if err := s.ReconcileAll(ctx); err != nil {
				s.logger.WithError(err).Error("Registry reconciliation failed")
			}
		}
	}
}

// Stop stops the watcher
func (s *Sync) Stop() {
	close(s.stopCh)
}
