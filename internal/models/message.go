package models

import (
	"fmt"
	"strings"

	"wagateway/internal/constants"
)

// MessageKind identifies the payload shape of an outbound message
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindAudio    MessageKind = "audio"
	KindDocument MessageKind = "document"
	KindSticker  MessageKind = "sticker"
	KindLocation MessageKind = "location"
	KindList     MessageKind = "list"
)

// ValidKind reports whether k is a supported message kind
func ValidKind(k MessageKind) bool {
	switch k {
	case KindText, KindImage, KindVideo, KindAudio, KindDocument,
		KindSticker, KindLocation, KindList:
		return true
	}
	return false
}

// MediaPayload carries media content by URL or inline data
type MediaPayload struct {
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// LocationPayload carries a location message
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ListRow is one selectable row of a list message
type ListRow struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	RowID       string `json:"rowId"`
}

// ListPayload carries an interactive list message
type ListPayload struct {
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	ButtonText string    `json:"buttonText"`
	Footer     string    `json:"footer,omitempty"`
	Rows       []ListRow `json:"rows"`
}

// OutboundMessage is the kind-tagged send request accepted by the
// dispatcher. Exactly one payload field matching Kind is set.
type OutboundMessage struct {
	Kind      MessageKind      `json:"kind"`
	Recipient string           `json:"recipient"`
	IsGroup   bool             `json:"isGroup"`
	Text      string           `json:"text,omitempty"`
	Media     *MediaPayload    `json:"media,omitempty"`
	Location  *LocationPayload `json:"location,omitempty"`
	List      *ListPayload     `json:"list,omitempty"`
	RefID     string           `json:"refId,omitempty"`
}

// Preview returns the human-readable preview recorded with the initial
// status entry: message text, caption, filename, or a kind placeholder.
func (m *OutboundMessage) Preview() string {
	var preview string
	switch {
	case m.Kind == KindText:
		preview = m.Text
	case m.Media != nil && m.Media.Caption != "":
		preview = m.Media.Caption
	case m.Media != nil && m.Media.Filename != "":
		preview = m.Media.Filename
	case m.Kind == KindLocation && m.Location != nil && m.Location.Name != "":
		preview = m.Location.Name
	case m.Kind == KindList && m.List != nil && m.List.Title != "":
		preview = m.List.Title
	default:
		preview = fmt.Sprintf("[%s]", m.Kind)
	}
	if len(preview) > constants.MaxPreviewLength {
		preview = strings.TrimSpace(preview[:constants.MaxPreviewLength])
	}
	return preview
}
