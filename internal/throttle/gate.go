package throttle

import (
	"context"
	"time"

	"wagateway/internal/constants"
	"wagateway/internal/metrics"
	"wagateway/internal/models"
	"wagateway/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ConfigSource resolves the pacing settings for a session
type ConfigSource interface {
	AntiSpam(ctx context.Context, sessionID string) models.AntiSpamSettings
}

// Gate applies delay-based anti-spam pacing before outbound sends.
// Acquire only waits, it never rejects; the sole error is context
// cancellation. Callers needing bounded latency wrap Acquire with their
// own timeout and treat expiry as "still queued".
type Gate struct {
	configs ConfigSource
	store   Store
	logger  *logrus.Logger

	// Injected for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate creates a throttle gate over the given state store
func NewGate(configs ConfigSource, store Store, logger *logrus.Logger) *Gate {
	return &Gate{
		configs: configs,
		store:   store,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Acquire returns once it is safe to send from the session to the
// recipient, recording the send in the pacing state. Every constraint
// is re-checked after any wait because concurrent callers may consume
// slots while this caller was asleep. No ordering is guaranteed across
// concurrent callers, but the check-and-append under the state mutex
// means no rate-limit slot is ever double-booked.
func (g *Gate) Acquire(ctx context.Context, sessionID, recipient string) error {
	cfg := g.configs.AntiSpam(ctx, sessionID)
	if !cfg.Enabled {
		return nil
	}

	state := g.store.State(sessionID)
	window := constants.ThrottleWindowSec * time.Second
	margin := constants.ThrottleSlotSafetyMarginMs * time.Millisecond

	waited := false
	for {
		now := g.now()

		state.mu.Lock()
		wait := g.nextWait(state, cfg, recipient, now, window, margin)
		if wait <= 0 {
			state.recent = append(state.recent, now)
			state.lastSend = now
			state.lastToRecipient[recipient] = now
			state.mu.Unlock()

			if waited {
				metrics.IncrementCounter("throttle_waits", map[string]string{"session": sessionID},
					"Sends delayed by the throttle gate")
			}
			return nil
		}
		state.mu.Unlock()

		g.logger.WithFields(logrus.Fields{
			"session":   sessionID,
			"recipient": privacy.MaskRecipient(recipient),
			"wait":      wait,
		}).Debug("Throttling outbound send")

		waited = true
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// nextWait returns how long the caller must still wait, or zero when a
// slot is free. Called with the state mutex held. Constraints are
// evaluated in order: recipient interval, inter-message delay, rolling
// minute window.
func (g *Gate) nextWait(state *SessionState, cfg models.AntiSpamSettings, recipient string, now time.Time, window, margin time.Duration) time.Duration {
	if cfg.RecipientWaitSec > 0 {
		if last, ok := state.lastToRecipient[recipient]; ok {
			interval := time.Duration(cfg.RecipientWaitSec) * time.Second
			if elapsed := now.Sub(last); elapsed < interval {
				return interval - elapsed
			}
		}
	}

	if cfg.MessageDelayMs > 0 && !state.lastSend.IsZero() {
		delay := time.Duration(cfg.MessageDelayMs) * time.Millisecond
		if elapsed := now.Sub(state.lastSend); elapsed < delay {
			return delay - elapsed
		}
	}

	state.recent = prune(state.recent, now.Add(-window))
	if cfg.MaxPerMinute > 0 {
		if len(state.recent) >= cfg.MaxPerMinute {
			oldest := state.recent[0]
			return oldest.Add(window).Sub(now) + margin
		}
	}

	return 0
}

// Reset clears the pacing state for a session
func (g *Gate) Reset(sessionID string) {
	g.store.Reset(sessionID)
}

// prune drops timestamps at or before the cutoff. The slice is ordered
// oldest first, so the first retained index ends the scan.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
