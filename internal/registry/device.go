package registry

import (
	"context"
	"encoding/json"

	"wagateway/internal/errors"
	"wagateway/internal/models"

	"github.com/sirupsen/logrus"
)

// DeviceRegistry is the durable token -> session mapping consumed by the
// compatibility-API surface. Stored as a single array document.
type DeviceRegistry struct {
	store  DocumentStore
	logger *logrus.Logger
}

// NewDeviceRegistry creates a device registry over the given store
func NewDeviceRegistry(store DocumentStore, logger *logrus.Logger) *DeviceRegistry {
	return &DeviceRegistry{store: store, logger: logger}
}

// List returns all device records. Duplicate session ids and duplicate
// tokens are coalesced keeping the first occurrence; a missing or
// corrupt document yields an empty list.
func (r *DeviceRegistry) List(ctx context.Context) ([]models.DeviceRecord, error) {
	body, err := r.store.Get(ctx, collectionDevices, deviceRegistryKey)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []models.DeviceRecord{}, nil
	}

	var raw []models.DeviceRecord
	if err := json.Unmarshal(body, &raw); err != nil {
		r.logger.WithError(err).Warn("Corrupt device registry treated as empty")
		return []models.DeviceRecord{}, nil
	}

	return coalesce(raw), nil
}

// FindBySession returns the record for a session id, or nil
func (r *DeviceRegistry) FindBySession(ctx context.Context, sessionID string) (*models.DeviceRecord, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].SessionID == sessionID {
			return &records[i], nil
		}
	}
	return nil, nil
}

// FindByToken returns the record for an issued token, or nil
func (r *DeviceRegistry) FindByToken(ctx context.Context, token string) (*models.DeviceRecord, error) {
	if token == "" {
		return nil, nil
	}
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Token == token {
			return &records[i], nil
		}
	}
	return nil, nil
}

// Upsert replaces the record for the session, or appends a new one.
// The whole document is re-read immediately before the write.
func (r *DeviceRegistry) Upsert(ctx context.Context, record models.DeviceRecord) error {
	if record.SessionID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "device record requires a session id")
	}

	records, err := r.List(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].SessionID == record.SessionID {
			if record.CreatedAt.IsZero() {
				record.CreatedAt = records[i].CreatedAt
			}
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}

	return r.save(ctx, records)
}

// DeleteBySession removes the record for a session id if present
func (r *DeviceRegistry) DeleteBySession(ctx context.Context, sessionID string) error {
	records, err := r.List(ctx)
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, rec := range records {
		if rec.SessionID != sessionID {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return nil
	}

	return r.save(ctx, kept)
}

func (r *DeviceRegistry) save(ctx context.Context, records []models.DeviceRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode device registry")
	}
	return r.store.Put(ctx, collectionDevices, deviceRegistryKey, body)
}

// coalesce drops records whose session id or token was already seen,
// keeping the first occurrence
func coalesce(records []models.DeviceRecord) []models.DeviceRecord {
	seenSession := make(map[string]struct{}, len(records))
	seenToken := make(map[string]struct{}, len(records))

	out := make([]models.DeviceRecord, 0, len(records))
	for _, rec := range records {
		if _, dup := seenSession[rec.SessionID]; dup {
			continue
		}
		if rec.Token != "" {
			if _, dup := seenToken[rec.Token]; dup {
				continue
			}
			seenToken[rec.Token] = struct{}{}
		}
		seenSession[rec.SessionID] = struct{}{}
		out = append(out, rec)
	}
	return out
}
