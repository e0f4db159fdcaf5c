package registry

import (
	"context"
	"testing"

	"wagateway/internal/constants"
	"wagateway/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestConfigRegistryDefaultsOnMissing(t *testing.T) {
	reg := NewConfigRegistry(newMemDocStore(), testLogger())

	cfg := reg.Get(context.Background(), "unknown")
	require.NotNil(t, cfg)
	assert.True(t, cfg.RelayIncoming)
	assert.False(t, cfg.RelayAutoReply)
	assert.False(t, cfg.AntiSpam.Enabled)
	assert.Equal(t, constants.DefaultAntiSpamMaxPerMinute, cfg.AntiSpam.MaxPerMinute)
}

func TestConfigRegistrySetAndGet(t *testing.T) {
	reg := NewConfigRegistry(newMemDocStore(), testLogger())
	ctx := context.Background()

	cfg := models.DefaultSessionConfig()
	cfg.Token = "tok-1"
	cfg.Name = "Warehouse"
	cfg.WebhookURL = "https://example.com/hooks"
	cfg.AntiSpam.Enabled = true
	cfg.AntiSpam.MaxPerMinute = 5

	require.NoError(t, reg.Set(ctx, "s1", cfg))

	got := reg.Get(ctx, "s1")
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, "Warehouse", got.Name)
	assert.True(t, got.AntiSpam.Enabled)
	assert.Equal(t, 5, got.AntiSpam.MaxPerMinute)
}

func TestConfigRegistrySetNormalizes(t *testing.T) {
	reg := NewConfigRegistry(newMemDocStore(), testLogger())
	ctx := context.Background()

	cfg := models.DefaultSessionConfig()
	cfg.AntiSpam.MaxPerMinute = -3
	cfg.AntiSpam.MessageDelayMs = -100
	require.NoError(t, reg.Set(ctx, "s1", cfg))

	got := reg.Get(ctx, "s1")
	assert.Equal(t, 0, got.AntiSpam.MaxPerMinute)
	assert.Equal(t, 0, got.AntiSpam.MessageDelayMs)
}

func TestConfigRegistryCorruptDocument(t *testing.T) {
	store := newMemDocStore()
	require.NoError(t, store.Put(context.Background(), collectionSessionConfig, "s1", []byte("{not json")))

	reg := NewConfigRegistry(store, testLogger())
	cfg := reg.Get(context.Background(), "s1")

	require.NotNil(t, cfg)
	assert.Empty(t, cfg.Token, "corrupt config falls back to defaults")
}

func TestConfigRegistryAll(t *testing.T) {
	store := newMemDocStore()
	reg := NewConfigRegistry(store, testLogger())
	ctx := context.Background()

	a := models.DefaultSessionConfig()
	a.Token = "tok-a"
	require.NoError(t, reg.Set(ctx, "a", a))

	b := models.DefaultSessionConfig()
	b.Token = "tok-b"
	require.NoError(t, reg.Set(ctx, "b", b))

	require.NoError(t, store.Put(ctx, collectionSessionConfig, "broken", []byte("{")))

	all, err := reg.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "corrupt entries are skipped")
	assert.Equal(t, "tok-a", all["a"].Token)
	assert.Equal(t, "tok-b", all["b"].Token)
}

func TestConfigRegistryDelete(t *testing.T) {
	reg := NewConfigRegistry(newMemDocStore(), testLogger())
	ctx := context.Background()

	cfg := models.DefaultSessionConfig()
	cfg.Token = "tok-1"
	require.NoError(t, reg.Set(ctx, "s1", cfg))
	require.NoError(t, reg.Delete(ctx, "s1"))

	got := reg.Get(ctx, "s1")
	assert.Empty(t, got.Token)
}

func TestConfigRegistryChanges(t *testing.T) {
	reg := NewConfigRegistry(newMemDocStore(), testLogger())
	changes := reg.Changes()

	require.NoError(t, reg.Set(context.Background(), "s1", models.DefaultSessionConfig()))

	select {
	case sessionID := <-changes:
		assert.Equal(t, "s1", sessionID)
	default:
		t.Fatal("expected a change notification after Set")
	}
}
