package types

import (
	"encoding/json"
	"time"
)

// SessionState represents the connection state of a session
type SessionState string

const (
	SessionConnecting   SessionState = "connecting"
	SessionConnected    SessionState = "connected"
	SessionDisconnected SessionState = "disconnected"
)

// SessionInfo describes one linked messaging account managed by the
// session service
type SessionInfo struct {
	ID        string       `json:"id"`
	State     SessionState `json:"state"`
	PushName  string       `json:"pushName,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Connected reports whether the session can send right now
func (s *SessionInfo) Connected() bool {
	return s != nil && s.State == SessionConnected
}

// SendResult is the provider result of a send primitive. MessageID may
// be empty when the provider did not return one.
type SendResult struct {
	MessageID string          `json:"messageId"`
	Status    string          `json:"status"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// ErrorResponse is the session service error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ClientConfig configures the session service client
type ClientConfig struct {
	BaseURL     string        `json:"base_url"`
	EventsWSURL string        `json:"events_ws_url"`
	APIKey      string        `json:"api_key"`
	Timeout     time.Duration `json:"timeout"`
}
