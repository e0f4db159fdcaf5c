package validation

import (
	"fmt"
	"strings"
	"unicode"

	"wagateway/internal/constants"
	"wagateway/internal/errors"
	"wagateway/internal/models"
)

// ValidateRecipient validates a phone number or group id recipient
func ValidateRecipient(recipient string, isGroup bool) error {
	if recipient == "" {
		return errors.New(errors.ErrCodeInvalidInput, "recipient cannot be empty")
	}

	cleaned := strings.TrimPrefix(recipient, "+")
	cleaned = strings.TrimSuffix(cleaned, "@s.whatsapp.net")
	cleaned = strings.TrimSuffix(cleaned, "@g.us")
	cleaned = strings.TrimSuffix(cleaned, "@c.us")

	if isGroup {
		// Group ids carry a hyphenated timestamp part; only length is checked
		if len(cleaned) < constants.MinPhoneNumberLength {
			return errors.New(errors.ErrCodeInvalidInput, "group id too short")
		}
		return nil
	}

	if len(cleaned) < constants.MinPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}
	if len(cleaned) > constants.MaxPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneNumberLength))
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateMessageID validates message id format and length
func ValidateMessageID(messageID string) error {
	if messageID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message ID cannot be empty")
	}

	if len(messageID) > constants.MaxMessageIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message ID too long (max %d characters)", constants.MaxMessageIDLength))
	}

	for _, char := range messageID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput, "message ID contains invalid characters")
		}
	}

	return nil
}

// ValidateOutboundMessage checks kind support and the presence of the
// payload field matching the kind
func ValidateOutboundMessage(msg *models.OutboundMessage) error {
	if msg == nil {
		return errors.New(errors.ErrCodeInvalidInput, "message cannot be nil")
	}
	if !models.ValidKind(msg.Kind) {
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unsupported message kind: %s", msg.Kind))
	}
	if err := ValidateRecipient(msg.Recipient, msg.IsGroup); err != nil {
		return err
	}

	switch msg.Kind {
	case models.KindText:
		if strings.TrimSpace(msg.Text) == "" {
			return errors.New(errors.ErrCodeInvalidInput, "text message cannot be empty")
		}
	case models.KindImage, models.KindVideo, models.KindAudio, models.KindDocument, models.KindSticker:
		if msg.Media == nil || (msg.Media.URL == "" && msg.Media.Data == "") {
			return errors.New(errors.ErrCodeInvalidInput, "media payload requires a url or inline data")
		}
	case models.KindLocation:
		if msg.Location == nil {
			return errors.New(errors.ErrCodeInvalidInput, "location payload is required")
		}
	case models.KindList:
		if msg.List == nil || len(msg.List.Rows) == 0 {
			return errors.New(errors.ErrCodeInvalidInput, "list payload requires at least one row")
		}
	}

	return nil
}
