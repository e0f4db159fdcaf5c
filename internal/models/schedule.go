package models

import (
	"encoding/json"
	"time"
)

// Schedule record statuses. Transitions are monotonic:
// pending -> sent | failed | canceled. Canceled only by explicit request.
const (
	ScheduleStatusPending  = "pending"
	ScheduleStatusSent     = "sent"
	ScheduleStatusFailed   = "failed"
	ScheduleStatusCanceled = "canceled"
)

// ScheduleRecord is a durable request to send a message at a future time
type ScheduleRecord struct {
	ID        string          `json:"id"`
	Token     string          `json:"token"`
	SessionID string          `json:"sessionId"`
	Recipient string          `json:"recipient"`
	IsGroup   bool            `json:"isGroup"`
	Kind      MessageKind     `json:"kind"`
	DueAt     string          `json:"dueAt"`
	DueAtMs   int64           `json:"dueAtMs"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Status    string          `json:"status"`
	MessageID string          `json:"messageId,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Due reports whether the record should be promoted at the given instant
func (r *ScheduleRecord) Due(now time.Time) bool {
	return r.Status == ScheduleStatusPending && r.DueAtMs <= now.UnixMilli()
}

// BulkItemResult is one entry of the bulk compatibility response
type BulkItemResult struct {
	ID      string `json:"id,omitempty"`
	Phone   string `json:"phone,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	RefID   string `json:"ref_id"`
}

// BulkResponse is the compatibility response shape shared by schedule
// creation and batch-send endpoints. Items fail independently; a batch
// never fails as a whole.
type BulkResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Messages []BulkItemResult `json:"messages"`
	} `json:"data"`
}
