package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"wagateway/internal/errors"
	"wagateway/internal/metrics"
	"wagateway/internal/models"
	"wagateway/internal/registry"
	"wagateway/internal/tracing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	collectionSchedules = "schedules"
	scheduleQueueKey    = "queue"
)

// Accepted due-time layouts, tried in order
var scheduleTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ScheduleItem is one entry of a schedule-creation batch
type ScheduleItem struct {
	Phone   string             `json:"phone,omitempty"`
	GroupID string             `json:"group_id,omitempty"`
	Kind    models.MessageKind `json:"kind"`
	DueAt   string             `json:"dueAt"`
	Payload json.RawMessage    `json:"payload,omitempty"`
	RefID   string             `json:"ref_id,omitempty"`
}

// ScheduleUpdate carries the fields a pending record may change to
type ScheduleUpdate struct {
	Recipient string             `json:"recipient,omitempty"`
	IsGroup   *bool              `json:"isGroup,omitempty"`
	Kind      models.MessageKind `json:"kind,omitempty"`
	DueAt     string             `json:"dueAt,omitempty"`
	Payload   json.RawMessage    `json:"payload,omitempty"`
}

// ScheduleEngine is the durable queue of future-dated sends. Records
// move pending -> sent | failed | canceled and are never reprocessed
// once out of pending. A periodic task promotes due records through the
// dispatcher, sequentially, a bounded batch per tick.
type ScheduleEngine struct {
	store      registry.DocumentStore
	dispatcher Replier
	tick       time.Duration
	batchSize  int
	logger     *logrus.Logger

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewScheduleEngine creates a schedule engine polling at the given tick
func NewScheduleEngine(store registry.DocumentStore, dispatcher Replier, tick time.Duration, batchSize int, logger *logrus.Logger) *ScheduleEngine {
	return &ScheduleEngine{
		store:      store,
		dispatcher: dispatcher,
		tick:       tick,
		batchSize:  batchSize,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start runs the periodic promotion loop until the context is cancelled
// or Stop is called
func (e *ScheduleEngine) Start(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	e.logger.WithFields(logrus.Fields{
		"tick":      e.tick.String(),
		"batchSize": e.batchSize,
	}).Info("Starting schedule engine")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Schedule engine context cancelled, stopping")
			return
		case <-e.stopCh:
			e.logger.Info("Schedule engine stop signal received, stopping")
			return
		case <-ticker.C:
			e.RunTick(ctx)
		}
	}
}

// Stop signals the promotion loop to exit
func (e *ScheduleEngine) Stop() {
	close(e.stopCh)
}

// RunTick promotes due pending records once. Exposed so a tick can be
// driven directly without the ticker loop.
func (e *ScheduleEngine) RunTick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.load(ctx)
	if err != nil {
		errors.LogError(e.logger, err, "Failed to load schedule queue")
		return
	}

	now := time.Now()
	processed := 0
	for i := range records {
		if processed >= e.batchSize {
			break
		}
		if !records[i].Due(now) {
			continue
		}
		e.promote(ctx, &records[i])
		processed++

		if err := e.save(ctx, records); err != nil {
			errors.LogError(e.logger, err, "Failed to persist schedule queue",
				logrus.Fields{"schedule": records[i].ID})
			return
		}
	}
}

// promote executes one due record and records the outcome on it
func (e *ScheduleEngine) promote(ctx context.Context, record *models.ScheduleRecord) {
	ctx, span := tracing.StartSpan(ctx, "schedule.promote",
		attribute.String("schedule.id", record.ID),
		attribute.String("schedule.kind", string(record.Kind)),
	)
	defer span.End()

	now := time.Now()
	record.UpdatedAt = now

	msg, err := buildOutbound(record)
	if err != nil {
		record.Status = models.ScheduleStatusFailed
		record.Error = err.Error()
		tracing.RecordError(span, err)
		metrics.IncrementCounter("schedule_promotions", map[string]string{"result": "failed"},
			"Schedule records promoted by the periodic task")
		e.logger.WithFields(logrus.Fields{
			"schedule": record.ID,
			"session":  record.SessionID,
		}).WithError(err).Warn("Schedule record failed without dispatch")
		return
	}

	result, err := e.dispatcher.Send(ctx, record.SessionID, msg)
	if err != nil {
		record.Status = models.ScheduleStatusFailed
		record.Error = err.Error()
		tracing.RecordError(span, err)
		metrics.IncrementCounter("schedule_promotions", map[string]string{"result": "failed"},
			"Schedule records promoted by the periodic task")
		errors.LogError(e.logger, errors.Wrap(err, errors.ErrCodeScheduleExecution, "scheduled send failed"),
			"Scheduled send failed", logrus.Fields{"schedule": record.ID, "session": record.SessionID})
		return
	}

	record.Status = models.ScheduleStatusSent
	record.MessageID = result.MessageID
	metrics.IncrementCounter("schedule_promotions", map[string]string{"result": "sent"},
		"Schedule records promoted by the periodic task")
	e.logger.WithFields(logrus.Fields{
		"schedule":  record.ID,
		"session":   record.SessionID,
		"messageId": result.MessageID,
	}).Info("Scheduled message sent")
}

// CreateBatch stores one pending record per valid item and reports the
// outcome per item. Invalid items fail independently; the batch itself
// never fails.
func (e *ScheduleEngine) CreateBatch(ctx context.Context, token, sessionID string, items []ScheduleItem) (*models.BulkResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.BulkResponse{Status: true}
	now := time.Now()
	accepted := 0

	for _, item := range items {
		refID := item.RefID
		if refID == "" {
			refID = uuid.NewString()
		}
		result := models.BulkItemResult{
			Phone:   item.Phone,
			GroupID: item.GroupID,
			RefID:   refID,
		}

		record, err := buildRecord(token, sessionID, item, now)
		if err != nil {
			result.Status = models.ScheduleStatusFailed
			result.Error = err.Error()
			resp.Data.Messages = append(resp.Data.Messages, result)
			continue
		}

		records = append(records, *record)
		result.ID = record.ID
		result.Status = models.ScheduleStatusSent
		resp.Data.Messages = append(resp.Data.Messages, result)
		accepted++
	}

	if accepted > 0 {
		if err := e.save(ctx, records); err != nil {
			return nil, err
		}
	}

	resp.Message = fmt.Sprintf("%d of %d messages scheduled", accepted, len(items))
	e.logger.WithFields(logrus.Fields{
		"session":  sessionID,
		"accepted": accepted,
		"total":    len(items),
	}).Info("Schedule batch created")
	return resp, nil
}

// List returns all records owned by the given token
func (e *ScheduleEngine) List(ctx context.Context, token string) ([]models.ScheduleRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.ScheduleRecord, 0)
	for _, r := range records {
		if r.Token == token {
			out = append(out, r)
		}
	}
	return out, nil
}

// Update modifies a pending record owned by the token. Records that
// already left pending are immutable.
func (e *ScheduleEngine) Update(ctx context.Context, token, id string, update ScheduleUpdate) (*models.ScheduleRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].ID != id || records[i].Token != token {
			continue
		}
		if records[i].Status != models.ScheduleStatusPending {
			return nil, errors.New(errors.ErrCodeValidationFailed,
				fmt.Sprintf("schedule %s is %s and cannot be updated", id, records[i].Status))
		}

		if update.Recipient != "" {
			records[i].Recipient = update.Recipient
		}
		if update.IsGroup != nil {
			records[i].IsGroup = *update.IsGroup
		}
		if update.Kind != "" {
			if !models.ValidKind(update.Kind) {
				return nil, errors.NewValidationError("kind",
					fmt.Sprintf("unsupported message kind %q", update.Kind))
			}
			records[i].Kind = update.Kind
		}
		if update.DueAt != "" {
			due, err := parseDueAt(update.DueAt)
			if err != nil {
				return nil, err
			}
			records[i].DueAt = update.DueAt
			records[i].DueAtMs = due.UnixMilli()
		}
		if update.Payload != nil {
			records[i].Payload = update.Payload
		}
		records[i].UpdatedAt = time.Now()

		if err := e.save(ctx, records); err != nil {
			return nil, err
		}
		return &records[i], nil
	}
	return nil, errors.NewNotFoundError("schedule", id)
}

// Cancel moves a pending record owned by the token to canceled
func (e *ScheduleEngine) Cancel(ctx context.Context, token, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.load(ctx)
	if err != nil {
		return err
	}

	for i := range records {
		if records[i].ID != id || records[i].Token != token {
			continue
		}
		if records[i].Status != models.ScheduleStatusPending {
			return errors.New(errors.ErrCodeValidationFailed,
				fmt.Sprintf("schedule %s is %s and cannot be canceled", id, records[i].Status))
		}
		records[i].Status = models.ScheduleStatusCanceled
		records[i].UpdatedAt = time.Now()
		return e.save(ctx, records)
	}
	return errors.NewNotFoundError("schedule", id)
}

func (e *ScheduleEngine) load(ctx context.Context) ([]models.ScheduleRecord, error) {
	body, err := e.store.Get(ctx, collectionSchedules, scheduleQueueKey)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []models.ScheduleRecord{}, nil
	}

	var records []models.ScheduleRecord
	if err := json.Unmarshal(body, &records); err != nil {
		e.logger.WithError(err).Warn("Corrupt schedule queue treated as empty")
		return []models.ScheduleRecord{}, nil
	}
	return records, nil
}

func (e *ScheduleEngine) save(ctx context.Context, records []models.ScheduleRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode schedule queue")
	}
	return e.store.Put(ctx, collectionSchedules, scheduleQueueKey, body)
}

// buildRecord validates one batch item into a pending record
func buildRecord(token, sessionID string, item ScheduleItem, now time.Time) (*models.ScheduleRecord, error) {
	recipient := item.Phone
	isGroup := false
	if item.GroupID != "" {
		recipient = item.GroupID
		isGroup = true
	}
	if recipient == "" {
		return nil, errors.NewValidationError("phone", "phone or group_id is required")
	}
	if !models.ValidKind(item.Kind) {
		return nil, errors.NewValidationError("kind",
			fmt.Sprintf("unsupported message kind %q", item.Kind))
	}

	due, err := parseDueAt(item.DueAt)
	if err != nil {
		return nil, err
	}

	return &models.ScheduleRecord{
		ID:        uuid.NewString(),
		Token:     token,
		SessionID: sessionID,
		Recipient: recipient,
		IsGroup:   isGroup,
		Kind:      item.Kind,
		DueAt:     item.DueAt,
		DueAtMs:   due.UnixMilli(),
		Payload:   item.Payload,
		Status:    models.ScheduleStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// buildOutbound maps a stored record to the dispatcher's send request.
// An unsupported kind or undecodable payload fails the record without
// touching the session service.
func buildOutbound(record *models.ScheduleRecord) (*models.OutboundMessage, error) {
	if !models.ValidKind(record.Kind) {
		return nil, errors.NewValidationError("kind",
			fmt.Sprintf("unsupported message kind %q", record.Kind))
	}

	msg := &models.OutboundMessage{
		Kind:      record.Kind,
		Recipient: record.Recipient,
		IsGroup:   record.IsGroup,
	}

	if len(record.Payload) > 0 {
		var payload struct {
			Text     string                  `json:"text"`
			Media    *models.MediaPayload    `json:"media"`
			Location *models.LocationPayload `json:"location"`
			List     *models.ListPayload     `json:"list"`
		}
		if err := json.Unmarshal(record.Payload, &payload); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidationFailed, "undecodable schedule payload")
		}
		msg.Text = payload.Text
		msg.Media = payload.Media
		msg.Location = payload.Location
		msg.List = payload.List
	}
	return msg, nil
}

// parseDueAt accepts the supported due-time layouts
func parseDueAt(value string) (time.Time, error) {
	for _, layout := range scheduleTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.NewValidationError("dueAt",
		fmt.Sprintf("unrecognized due time %q", value))
}
