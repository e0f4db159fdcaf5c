package service

import (
	"context"
	"fmt"
	"time"

	"wagateway/internal/errors"
	"wagateway/internal/metrics"
	"wagateway/internal/models"
	"wagateway/internal/privacy"
	"wagateway/internal/tracing"
	"wagateway/internal/validation"
	"wagateway/pkg/session/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Gate paces outbound sends; it delays, it never rejects
type Gate interface {
	Acquire(ctx context.Context, sessionID, recipient string) error
}

// StatusRecorder records the initial delivery status of a send
type StatusRecorder interface {
	Record(sessionID, messageID, status string, ts time.Time, extra map[string]interface{})
}

// Dispatcher is the single choke point for outbound sends: it applies
// the throttle gate, invokes the session service primitive for the
// message kind, and records the result into the status tracker.
type Dispatcher struct {
	client   types.Client
	gate     Gate
	statuses StatusRecorder
	logger   *logrus.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(client types.Client, gate Gate, statuses StatusRecorder, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		client:   client,
		gate:     gate,
		statuses: statuses,
		logger:   logger,
	}
}

// Send dispatches one outbound message. Session service errors
// propagate unchanged; the gate never raises, so pacing delay is
// invisible to error handling.
func (d *Dispatcher) Send(ctx context.Context, sessionID string, msg *models.OutboundMessage) (*types.SendResult, error) {
	if err := validation.ValidateOutboundMessage(msg); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "dispatcher.send",
		attribute.String("session", sessionID),
		attribute.String("kind", string(msg.Kind)),
	)
	defer span.End()

	info, err := d.client.GetSession(ctx, sessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if !info.Connected() {
		err := errors.NewSessionUnavailableError(sessionID, string(info.State))
		tracing.RecordError(span, err)
		return nil, err
	}

	if err := d.gate.Acquire(ctx, sessionID, msg.Recipient); err != nil {
		return nil, err
	}

	result, err := d.dispatch(ctx, sessionID, msg)
	if err != nil {
		metrics.IncrementCounter("sends_failed", map[string]string{"session": sessionID, "kind": string(msg.Kind)},
			"Outbound sends that failed at the session service")
		tracing.RecordError(span, err)
		return nil, err
	}

	d.statuses.Record(sessionID, result.MessageID, models.MessageStatusSent, time.Now(), map[string]interface{}{
		"to":      msg.Recipient,
		"preview": msg.Preview(),
	})

	metrics.IncrementCounter("sends_total", map[string]string{"session": sessionID, "kind": string(msg.Kind)},
		"Outbound sends accepted by the session service")

	d.logger.WithFields(logrus.Fields{
		"session":   sessionID,
		"kind":      msg.Kind,
		"recipient": privacy.MaskRecipient(msg.Recipient),
		"messageId": privacy.MaskMessageID(result.MessageID),
	}).Info("Message dispatched")

	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, sessionID string, msg *models.OutboundMessage) (*types.SendResult, error) {
	switch msg.Kind {
	case models.KindText:
		return d.client.SendText(ctx, sessionID, msg.Recipient, msg.Text, msg.IsGroup)
	case models.KindImage:
		return d.client.SendImage(ctx, sessionID, msg.Recipient, mediaContent(msg.Media), msg.IsGroup)
	case models.KindVideo:
		return d.client.SendVideo(ctx, sessionID, msg.Recipient, mediaContent(msg.Media), msg.IsGroup)
	case models.KindAudio:
		return d.client.SendAudio(ctx, sessionID, msg.Recipient, mediaContent(msg.Media), msg.IsGroup)
	case models.KindDocument:
		return d.client.SendDocument(ctx, sessionID, msg.Recipient, mediaContent(msg.Media), msg.IsGroup)
	case models.KindSticker:
		return d.client.SendSticker(ctx, sessionID, msg.Recipient, mediaContent(msg.Media), msg.IsGroup)
	case models.KindLocation:
		return d.client.SendRaw(ctx, sessionID, string(models.KindLocation), map[string]interface{}{
			"recipient": msg.Recipient,
			"isGroup":   msg.IsGroup,
			"location":  msg.Location,
		})
	case models.KindList:
		return d.client.SendRaw(ctx, sessionID, string(models.KindList), map[string]interface{}{
			"recipient": msg.Recipient,
			"isGroup":   msg.IsGroup,
			"list":      msg.List,
		})
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unsupported message kind: %s", msg.Kind))
	}
}

// SendBatch dispatches a batch of messages with per-item isolation: one
// failing item never aborts its siblings, and the response always lists
// one entry per input item.
func (d *Dispatcher) SendBatch(ctx context.Context, sessionID string, items []models.OutboundMessage) *models.BulkResponse {
	resp := &models.BulkResponse{Status: true}

	sent := 0
	for i := range items {
		item := &items[i]

		refID := item.RefID
		if refID == "" {
			refID = uuid.NewString()
		}

		entry := models.BulkItemResult{RefID: refID}
		if item.IsGroup {
			entry.GroupID = item.Recipient
		} else {
			entry.Phone = item.Recipient
		}

		result, err := d.Send(ctx, sessionID, item)
		if err != nil {
			entry.Status = models.MessageStatusFailed
			entry.Error = err.Error()
		} else {
			entry.Status = models.MessageStatusSent
			entry.ID = result.MessageID
			sent++
		}
		resp.Data.Messages = append(resp.Data.Messages, entry)
	}

	resp.Message = fmt.Sprintf("%d of %d messages sent", sent, len(items))
	return resp
}

func mediaContent(m *models.MediaPayload) types.MediaContent {
	if m == nil {
		return types.MediaContent{}
	}
	return types.MediaContent{
		URL:      m.URL,
		Data:     m.Data,
		MimeType: m.MimeType,
		Filename: m.Filename,
		Caption:  m.Caption,
	}
}
