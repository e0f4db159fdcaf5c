package models

// Webhook call shapes posted to the per-session configured URLs. Paths
// are fixed: {base}/message, {base}/status, {base}/session. All three
// carry the configured key as a "key" header when non-empty.

// WebhookMedia mirrors the media block of an incoming-message call
type WebhookMedia struct {
	Image    string `json:"image,omitempty"`
	Video    string `json:"video,omitempty"`
	Document string `json:"document,omitempty"`
	Audio    string `json:"audio,omitempty"`
}

// IncomingMessageWebhook is posted to {base}/message
type IncomingMessageWebhook struct {
	Session     string       `json:"session"`
	From        string       `json:"from"`
	Sender      string       `json:"sender"`
	Participant string       `json:"participant"`
	IsGroup     bool         `json:"isGroup"`
	Group       string       `json:"group"`
	Message     string       `json:"message"`
	Media       WebhookMedia `json:"media"`
}

// DeliveryStatusWebhook is posted to {base}/status
type DeliveryStatusWebhook struct {
	Session       string                 `json:"session"`
	MessageID     string                 `json:"message_id"`
	MessageStatus string                 `json:"message_status"`
	TrackingURL   string                 `json:"tracking_url"`
	Key           string                 `json:"key"`
	Update        map[string]interface{} `json:"update"`
}

// DeviceStatusWebhook is posted to {base}/session.
// Status is one of connecting, connected, disconnected.
type DeviceStatusWebhook struct {
	Session string `json:"session"`
	Status  string `json:"status"`
}

// AutoReplyResponse is the reply payload consulted on the response body
// of an incoming-message webhook call when auto-reply relay is enabled
type AutoReplyResponse struct {
	Reply string `json:"reply"`
}

// AutoReplyRule is one token-scoped keyword rule, consulted only when
// webhook auto-reply is disabled for the session
type AutoReplyRule struct {
	Keyword  string `json:"keyword"`
	Response string `json:"response"`
}
