package registry

import (
	"context"
	"encoding/json"

	"wagateway/internal/errors"
	"wagateway/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	collectionSessionConfig = "session_config"
	collectionDevices       = "devices"
	deviceRegistryKey       = "registry"
)

// DocumentStore is the narrow persistence surface the registries need
type DocumentStore interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Put(ctx context.Context, collection, key string, body []byte) error
	Delete(ctx context.Context, collection, key string) error
	List(ctx context.Context, collection string) (map[string][]byte, error)
	Subscribe(collection string) <-chan string
}

// ConfigRegistry is the durable per-session configuration store. Absent
// or unreadable documents yield the fixed defaults, never a failure.
type ConfigRegistry struct {
	store  DocumentStore
	logger *logrus.Logger
}

// NewConfigRegistry creates a config registry over the given store
func NewConfigRegistry(store DocumentStore, logger *logrus.Logger) *ConfigRegistry {
	return &ConfigRegistry{store: store, logger: logger}
}

// Get returns the configuration for a session, falling back to defaults
// when no document exists or the stored one cannot be decoded
func (r *ConfigRegistry) Get(ctx context.Context, sessionID string) *models.SessionConfig {
	body, err := r.store.Get(ctx, collectionSessionConfig, sessionID)
	if err != nil {
		errors.LogWarn(r.logger, err, "Failed to read session config, using defaults",
			logrus.Fields{"session": sessionID})
		return models.DefaultSessionConfig()
	}
	if body == nil {
		return models.DefaultSessionConfig()
	}

	cfg := models.DefaultSessionConfig()
	if err := json.Unmarshal(body, cfg); err != nil {
		r.logger.WithField("session", sessionID).WithError(err).
			Warn("Corrupt session config treated as defaults")
		return models.DefaultSessionConfig()
	}
	cfg.Normalize()
	return cfg
}

// AntiSpam returns only the pacing settings for a session
func (r *ConfigRegistry) AntiSpam(ctx context.Context, sessionID string) models.AntiSpamSettings {
	return r.Get(ctx, sessionID).AntiSpam
}

// Set overwrites the whole configuration document for a session
func (r *ConfigRegistry) Set(ctx context.Context, sessionID string, cfg *models.SessionConfig) error {
	cfg.Normalize()
	body, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode session config")
	}
	return r.store.Put(ctx, collectionSessionConfig, sessionID, body)
}

// Delete removes the configuration document for a session
func (r *ConfigRegistry) Delete(ctx context.Context, sessionID string) error {
	return r.store.Delete(ctx, collectionSessionConfig, sessionID)
}

// All returns every stored session configuration keyed by session id.
// Unreadable entries are skipped.
func (r *ConfigRegistry) All(ctx context.Context) (map[string]*models.SessionConfig, error) {
	docs, err := r.store.List(ctx, collectionSessionConfig)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*models.SessionConfig, len(docs))
	for sessionID, body := range docs {
		cfg := models.DefaultSessionConfig()
		if err := json.Unmarshal(body, cfg); err != nil {
			r.logger.WithField("session", sessionID).WithError(err).
				Warn("Skipping corrupt session config")
			continue
		}
		cfg.Normalize()
		out[sessionID] = cfg
	}
	return out, nil
}

// Changes returns a channel notified with the session id after every
// config write or delete
func (r *ConfigRegistry) Changes() <-chan string {
	return r.store.Subscribe(collectionSessionConfig)
}
