package models

import "wagateway/internal/constants"

// AntiSpamSettings controls delay-based outbound pacing for one session.
// Pacing is always expressed as delay, never as rejection.
type AntiSpamSettings struct {
	Enabled          bool `json:"enabled"`
	MaxPerMinute     int  `json:"maxPerMinute"`
	MessageDelayMs   int  `json:"messageDelayMs"`
	RecipientWaitSec int  `json:"recipientWaitSec"`
}

// SessionConfig is the per-session configuration document written by the
// administrative layer and read on every send and inbound event.
type SessionConfig struct {
	Name              string           `json:"name"`
	Token             string           `json:"token"`
	WebhookURL        string           `json:"webhookUrl"`
	TrackingURL       string           `json:"trackingUrl"`
	DeviceStatusURL   string           `json:"deviceStatusUrl"`
	WebhookKey        string           `json:"webhookKey"`
	RelayIncoming     bool             `json:"relayIncoming"`
	RelayAutoReply    bool             `json:"relayAutoReply"`
	RelayTracking     bool             `json:"relayTracking"`
	RelayDeviceStatus bool             `json:"relayDeviceStatus"`
	AntiSpam          AntiSpamSettings `json:"antiSpam"`
}

// DefaultSessionConfig returns the configuration used when a session has
// no stored document: relay flags on except auto-reply, anti-spam off.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		RelayIncoming:     true,
		RelayAutoReply:    false,
		RelayTracking:     true,
		RelayDeviceStatus: true,
		AntiSpam: AntiSpamSettings{
			Enabled:          false,
			MaxPerMinute:     constants.DefaultAntiSpamMaxPerMinute,
			MessageDelayMs:   constants.DefaultAntiSpamMessageDelayMs,
			RecipientWaitSec: constants.DefaultAntiSpamRecipientWaitSec,
		},
	}
}

// Normalize coerces numeric settings to non-negative values and fills
// zero-valued limits with defaults where a limit is required.
func (c *SessionConfig) Normalize() {
	if c.AntiSpam.MaxPerMinute < 0 {
		c.AntiSpam.MaxPerMinute = 0
	}
	if c.AntiSpam.MessageDelayMs < 0 {
		c.AntiSpam.MessageDelayMs = 0
	}
	if c.AntiSpam.RecipientWaitSec < 0 {
		c.AntiSpam.RecipientWaitSec = 0
	}
}
