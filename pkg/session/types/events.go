package types

import "encoding/json"

// Session service event names
const (
	EventMessage       = "message"
	EventMessageStatus = "message.status"
	EventSessionStatus = "session.status"
)

// Event is the envelope carried by the event stream and by the HTTP
// event intake
type Event struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

// MessageMedia carries the media URLs of an inbound message, one field
// per media class
type MessageMedia struct {
	Image    string `json:"image,omitempty"`
	Video    string `json:"video,omitempty"`
	Document string `json:"document,omitempty"`
	Audio    string `json:"audio,omitempty"`
}

// IncomingMessage is the payload of a "message" event
type IncomingMessage struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Sender      string       `json:"sender"`
	Participant string       `json:"participant,omitempty"`
	IsGroup     bool         `json:"isGroup"`
	Group       string       `json:"group,omitempty"`
	Text        string       `json:"text"`
	Media       MessageMedia `json:"media"`
	Timestamp   int64        `json:"timestamp"`
}

// StatusUpdate is the payload of a "message.status" event
type StatusUpdate struct {
	MessageID string                 `json:"messageId"`
	Status    string                 `json:"status"`
	From      string                 `json:"from,omitempty"`
	To        string                 `json:"to,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Update    map[string]interface{} `json:"update,omitempty"`
}

// ConnectionUpdate is the payload of a "session.status" event
type ConnectionUpdate struct {
	State SessionState `json:"state"`
}
