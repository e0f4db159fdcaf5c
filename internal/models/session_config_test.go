package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSessionConfig(t *testing.T) {
	cfg := DefaultSessionConfig()

	assert.True(t, cfg.RelayIncoming)
	assert.False(t, cfg.RelayAutoReply)
	assert.True(t, cfg.RelayTracking)
	assert.True(t, cfg.RelayDeviceStatus)
	assert.False(t, cfg.AntiSpam.Enabled)
}

func TestSessionConfigNormalize(t *testing.T) {
	cfg := &SessionConfig{
		AntiSpam: AntiSpamSettings{
			MaxPerMinute:     -5,
			MessageDelayMs:   -100,
			RecipientWaitSec: -1,
		},
	}
	cfg.Normalize()

	assert.Equal(t, 0, cfg.AntiSpam.MaxPerMinute)
	assert.Equal(t, 0, cfg.AntiSpam.MessageDelayMs)
	assert.Equal(t, 0, cfg.AntiSpam.RecipientWaitSec)

	// Positive values pass through untouched
	cfg = &SessionConfig{AntiSpam: AntiSpamSettings{MaxPerMinute: 20, MessageDelayMs: 1000}}
	cfg.Normalize()
	assert.Equal(t, 20, cfg.AntiSpam.MaxPerMinute)
	assert.Equal(t, 1000, cfg.AntiSpam.MessageDelayMs)
}

func TestScheduleRecordDue(t *testing.T) {
	now := time.Now()

	due := ScheduleRecord{Status: ScheduleStatusPending, DueAtMs: now.Add(-time.Second).UnixMilli()}
	assert.True(t, due.Due(now))

	future := ScheduleRecord{Status: ScheduleStatusPending, DueAtMs: now.Add(time.Hour).UnixMilli()}
	assert.False(t, future.Due(now))

	// Only pending records are ever due
	for _, status := range []string{ScheduleStatusSent, ScheduleStatusFailed, ScheduleStatusCanceled} {
		record := ScheduleRecord{Status: status, DueAtMs: now.Add(-time.Hour).UnixMilli()}
		assert.False(t, record.Due(now), status)
	}
}

func TestDeviceRecordMatches(t *testing.T) {
	record := DeviceRecord{
		Token:       "tok-1",
		SessionID:   "s1",
		Name:        "primary",
		WebhookURL:  "https://hooks.example.com",
		TrackingURL: "https://track.example.com",
	}

	assert.True(t, record.Matches("tok-1", "primary", "https://hooks.example.com", "https://track.example.com"))
	assert.False(t, record.Matches("tok-2", "primary", "https://hooks.example.com", "https://track.example.com"))
	assert.False(t, record.Matches("tok-1", "renamed", "https://hooks.example.com", "https://track.example.com"))
	assert.False(t, record.Matches("tok-1", "primary", "https://hooks.example.com", ""))
}
