package models

import "time"

// DeviceRecord maps an issued API token to a session for the
// compatibility-API surface. At most one record per session id and per
// token; duplicates are coalesced on load keeping the first occurrence.
type DeviceRecord struct {
	Token       string    `json:"token"`
	SessionID   string    `json:"sessionId"`
	Name        string    `json:"name"`
	WebhookURL  string    `json:"webhookUrl"`
	TrackingURL string    `json:"trackingUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Matches reports whether the record already mirrors the given config
// fields, in which case a sync upsert is a no-op.
func (d *DeviceRecord) Matches(token, name, webhookURL, trackingURL string) bool {
	return d.Token == token &&
		d.Name == name &&
		d.WebhookURL == webhookURL &&
		d.TrackingURL == trackingURL
}
