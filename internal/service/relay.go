package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wagateway/internal/metrics"
	"wagateway/internal/models"
	"wagateway/internal/privacy"
	"wagateway/pkg/session/types"

	"github.com/sirupsen/logrus"
)

const (
	webhookPathMessage = "/message"
	webhookPathStatus  = "/status"
	webhookPathSession = "/session"

	webhookKeyHeader = "key"
	maxReplyBody     = 64 * 1024
)

// ConfigSource resolves per-session configuration
type ConfigSource interface {
	Get(ctx context.Context, sessionID string) *models.SessionConfig
}

// Replier sends auto-reply messages back through the dispatcher
type Replier interface {
	Send(ctx context.Context, sessionID string, msg *models.OutboundMessage) (*types.SendResult, error)
}

// RuleSource looks up local keyword auto-reply rules
type RuleSource interface {
	Lookup(ctx context.Context, token, text string) (string, bool)
}

// Relay forwards inbound events to the per-session configured webhook
// URLs. Calls are best-effort: a fixed timeout, no retry, no backoff;
// failures are logged and swallowed.
type Relay struct {
	configs    ConfigSource
	dispatcher Replier
	rules      RuleSource
	client     *http.Client
	logger     *logrus.Logger
}

// NewRelay creates a webhook relay with the given call timeout
func NewRelay(configs ConfigSource, dispatcher Replier, rules RuleSource, timeout time.Duration, logger *logrus.Logger) *Relay {
	return &Relay{
		configs:    configs,
		dispatcher: dispatcher,
		rules:      rules,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// HandleIncomingMessage relays an inbound message and resolves the
// auto-reply. Exactly one of webhook-driven auto-reply or local keyword
// rules fires: local rules are only consulted when webhook auto-reply
// is disabled.
func (r *Relay) HandleIncomingMessage(ctx context.Context, sessionID string, msg *types.IncomingMessage) {
	cfg := r.configs.Get(ctx, sessionID)

	var webhookResponse []byte
	if cfg.RelayIncoming && cfg.WebhookURL != "" {
		payload := models.IncomingMessageWebhook{
			Session:     sessionID,
			From:        msg.From,
			Sender:      msg.Sender,
			Participant: msg.Participant,
			IsGroup:     msg.IsGroup,
			Group:       msg.Group,
			Message:     msg.Text,
			Media: models.WebhookMedia{
				Image:    msg.Media.Image,
				Video:    msg.Media.Video,
				Document: msg.Media.Document,
				Audio:    msg.Media.Audio,
			},
		}
		webhookResponse = r.post(ctx, sessionID, cfg.WebhookURL+webhookPathMessage, cfg.WebhookKey, payload, "message")
	}

	var reply string
	if cfg.RelayAutoReply {
		reply = parseReply(webhookResponse)
	} else if r.rules != nil {
		reply, _ = r.rules.Lookup(ctx, cfg.Token, msg.Text)
	}
	if reply == "" {
		return
	}

	out := &models.OutboundMessage{
		Kind:      models.KindText,
		Recipient: msg.From,
		IsGroup:   msg.IsGroup,
		Text:      reply,
	}
	if _, err := r.dispatcher.Send(ctx, sessionID, out); err != nil {
		r.logger.WithFields(logrus.Fields{
			"session": sessionID,
			"to":      privacy.MaskRecipient(msg.From),
		}).WithError(err).Warn("Failed to send auto-reply")
	}
}

// NotifyDeliveryStatus relays a delivery-status change
func (r *Relay) NotifyDeliveryStatus(ctx context.Context, sessionID, messageID, messageStatus string, update map[string]interface{}) {
	cfg := r.configs.Get(ctx, sessionID)
	if !cfg.RelayTracking || cfg.TrackingURL == "" {
		return
	}

	payload := models.DeliveryStatusWebhook{
		Session:       sessionID,
		MessageID:     messageID,
		MessageStatus: messageStatus,
		TrackingURL:   cfg.TrackingURL,
		Key:           cfg.WebhookKey,
		Update:        update,
	}
	r.post(ctx, sessionID, cfg.TrackingURL+webhookPathStatus, cfg.WebhookKey, payload, "status")
}

// NotifyDeviceStatus relays a session connection-state change
func (r *Relay) NotifyDeviceStatus(ctx context.Context, sessionID, state string) {
	cfg := r.configs.Get(ctx, sessionID)
	if !cfg.RelayDeviceStatus || cfg.DeviceStatusURL == "" {
		return
	}

	payload := models.DeviceStatusWebhook{
		Session: sessionID,
		Status:  state,
	}
	r.post(ctx, sessionID, cfg.DeviceStatusURL+webhookPathSession, cfg.WebhookKey, payload, "session")
}

// post issues one best-effort webhook call and returns the response
// body, or nil on any failure. Failures never propagate.
func (r *Relay) post(ctx context.Context, sessionID, url, key string, payload interface{}, event string) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.WithField("event", event).WithError(err).Error("Failed to encode webhook payload")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		r.logWebhookFailure(sessionID, url, event, err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(webhookKeyHeader, key)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logWebhookFailure(sessionID, url, event, err)
		return nil
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	if err != nil {
		r.logWebhookFailure(sessionID, url, event, err)
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logWebhookFailure(sessionID, url, event, fmt.Errorf("webhook returned status %d", resp.StatusCode))
		return nil
	}

	metrics.IncrementCounter("webhook_calls", map[string]string{"event": event},
		"Webhook relay calls delivered")
	return responseBody
}

func (r *Relay) logWebhookFailure(sessionID, url, event string, err error) {
	metrics.IncrementCounter("webhook_failures", map[string]string{"event": event},
		"Webhook relay calls that failed")
	r.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"url":     url,
		"event":   event,
	}).WithError(err).Warn("Webhook delivery failed")
}

// parseReply extracts an auto-reply from a webhook response body: a
// JSON object with a "reply" field, or a non-empty plain-text body
func parseReply(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "{") {
		var parsed models.AutoReplyResponse
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return ""
		}
		return strings.TrimSpace(parsed.Reply)
	}
	return trimmed
}
