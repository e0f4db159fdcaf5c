package integration_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"wagateway/internal/models"
	"wagateway/internal/registry"
	"wagateway/internal/service"
	"wagateway/internal/status"
	"wagateway/internal/store"
	"wagateway/internal/throttle"
	"wagateway/pkg/session"
	"wagateway/pkg/session/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestEnvironment wires the full gateway core over a real document
// store and a stub session service, the way run() does at startup
type TestEnvironment struct {
	Store      *store.Store
	Configs    *registry.ConfigRegistry
	Devices    *registry.DeviceRegistry
	Sync       *registry.Sync
	Gate       *throttle.Gate
	Tracker    *status.Tracker
	Dispatcher *service.Dispatcher
	Engine     *service.ScheduleEngine
	Rules      *service.AutoReplyRules
	Relay      *service.Relay
	Events     *session.EventStream

	SessionStub *SessionServiceStub
}

// NewTestEnvironment builds a fully wired gateway core for one test
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	docs, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	stub := NewSessionServiceStub(t)

	configs := registry.NewConfigRegistry(docs, logger)
	devices := registry.NewDeviceRegistry(docs, logger)
	regSync := registry.NewSync(configs, devices, 10*time.Millisecond, logger)
	gate := throttle.NewGate(configs, throttle.NewMemoryStore(), logger)
	tracker := status.NewTracker(status.NewMemoryStore())

	client := session.NewClient(types.ClientConfig{
		BaseURL: stub.Server.URL,
		APIKey:  "integration-key",
		Timeout: 2 * time.Second,
	})
	dispatcher := service.NewDispatcher(client, gate, tracker, logger)
	rules := service.NewAutoReplyRules(docs, logger)
	engine := service.NewScheduleEngine(docs, dispatcher, time.Second, 50, logger)
	relay := service.NewRelay(configs, dispatcher, rules, 2*time.Second, logger)

	events := session.NewEventStream("ws://127.0.0.1:1", "", logger)
	events.OnMessageReceived(func(ctx context.Context, sessionID string, msg *types.IncomingMessage) {
		relay.HandleIncomingMessage(ctx, sessionID, msg)
	})
	events.OnMessageStatusUpdated(func(ctx context.Context, sessionID string, update *types.StatusUpdate) {
		ts := time.Now()
		if update.Timestamp > 0 {
			ts = time.UnixMilli(update.Timestamp)
		}
		tracker.Record(sessionID, update.MessageID, update.Status, ts, update.Update)
		relay.NotifyDeliveryStatus(ctx, sessionID, update.MessageID, update.Status, update.Update)
	})
	events.OnConnectionStateChanged(func(ctx context.Context, sessionID string, update *types.ConnectionUpdate) {
		relay.NotifyDeviceStatus(ctx, sessionID, string(update.State))
	})

	return &TestEnvironment{
		Store:       docs,
		Configs:     configs,
		Devices:     devices,
		Sync:        regSync,
		Gate:        gate,
		Tracker:     tracker,
		Dispatcher:  dispatcher,
		Engine:      engine,
		Rules:       rules,
		Relay:       relay,
		Events:      events,
		SessionStub: stub,
	}
}

// RegisterSession stores a session config and syncs the device registry,
// the same path the config PUT handler takes
func (env *TestEnvironment) RegisterSession(t *testing.T, sessionID string, mutate func(*models.SessionConfig)) {
	t.Helper()

	cfg := models.DefaultSessionConfig()
	cfg.Name = sessionID
	cfg.Token = "tok-" + sessionID
	if mutate != nil {
		mutate(cfg)
	}

	ctx := context.Background()
	require.NoError(t, env.Configs.Set(ctx, sessionID, cfg))
	require.NoError(t, env.Sync.Ensure(ctx, sessionID))
}
