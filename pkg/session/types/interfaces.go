package types

import "context"

// Client is the session-service surface consumed by the gateway core.
// The service maintains the actual protocol connections; this interface
// only exposes its send/receive primitives.
type Client interface {
	SendText(ctx context.Context, sessionID, recipient, text string, isGroup bool) (*SendResult, error)
	SendImage(ctx context.Context, sessionID, recipient string, media MediaContent, isGroup bool) (*SendResult, error)
	SendVideo(ctx context.Context, sessionID, recipient string, media MediaContent, isGroup bool) (*SendResult, error)
	SendAudio(ctx context.Context, sessionID, recipient string, media MediaContent, isGroup bool) (*SendResult, error)
	SendDocument(ctx context.Context, sessionID, recipient string, media MediaContent, isGroup bool) (*SendResult, error)
	SendSticker(ctx context.Context, sessionID, recipient string, media MediaContent, isGroup bool) (*SendResult, error)

	// SendRaw issues a command over the raw websocket channel for
	// message kinds not covered by the high-level primitives
	SendRaw(ctx context.Context, sessionID, kind string, payload interface{}) (*SendResult, error)

	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
}

// MediaContent is the media payload accepted by the send primitives
type MediaContent struct {
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}
