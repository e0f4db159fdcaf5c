package models

import "time"

// Delivery status values as reported by the session service
const (
	MessageStatusPending   = "pending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// MessageStatusRecord is the last-known delivery status for one
// (session, message id) pair. Overwritten on every status event.
type MessageStatusRecord struct {
	SessionID string                 `json:"session"`
	MessageID string                 `json:"messageId"`
	Status    string                 `json:"status"`
	UpdatedAt time.Time              `json:"updatedAt"`
	From      string                 `json:"from,omitempty"`
	To        string                 `json:"to,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}
