package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wagateway/internal/models"
	"wagateway/internal/registry"
	"wagateway/internal/service"
	"wagateway/internal/status"
	"wagateway/internal/throttle"
	"wagateway/pkg/session"
	"wagateway/pkg/session/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDocStore backs the registries and the schedule engine in handler tests
type memDocStore struct {
	mu   sync.Mutex
	docs map[string]map[string][]byte
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string]map[string][]byte)}
}

func (s *memDocStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.docs[collection][key]
	if !ok {
		return nil, nil
	}
	return body, nil
}

func (s *memDocStore) Put(ctx context.Context, collection, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string][]byte)
	}
	s.docs[collection][key] = body
	return nil
}

func (s *memDocStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[collection], key)
	return nil
}

func (s *memDocStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.docs[collection]))
	for key, body := range s.docs[collection] {
		out[key] = body
	}
	return out, nil
}

func (s *memDocStore) Subscribe(collection string) <-chan string {
	return make(chan string)
}

// stubSessionClient satisfies the session client interface without a
// live session service
type stubSessionClient struct {
	mu        sync.Mutex
	sendCalls int
}

func (c *stubSessionClient) result() (*types.SendResult, error) {
	c.mu.Lock()
	c.sendCalls++
	c.mu.Unlock()
	return &types.SendResult{MessageID: "m-stub", Status: "sent"}, nil
}

func (c *stubSessionClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls
}

func (c *stubSessionClient) SendText(ctx context.Context, sessionID, recipient, text string, isGroup bool) (*types.SendResult, error) {
	return c.result()
}

func (c *stubSessionClient) SendImage(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.result()
}

func (c *stubSessionClient) SendVideo(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.result()
}

func (c *stubSessionClient) SendAudio(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.result()
}

func (c *stubSessionClient) SendDocument(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.result()
}

func (c *stubSessionClient) SendSticker(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	return c.result()
}

func (c *stubSessionClient) SendRaw(ctx context.Context, sessionID, kind string, payload interface{}) (*types.SendResult, error) {
	return c.result()
}

func (c *stubSessionClient) GetSession(ctx context.Context, sessionID string) (*types.SessionInfo, error) {
	return &types.SessionInfo{ID: sessionID, State: types.SessionConnected}, nil
}

type serverFixture struct {
	server  *Server
	store   *memDocStore
	client  *stubSessionClient
	devices *registry.DeviceRegistry
	configs *registry.ConfigRegistry
	tracker *status.Tracker
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	store := newMemDocStore()
	configs := registry.NewConfigRegistry(store, logger)
	devices := registry.NewDeviceRegistry(store, logger)
	regSync := registry.NewSync(configs, devices, 10*time.Millisecond, logger)
	gate := throttle.NewGate(configs, throttle.NewMemoryStore(), logger)
	tracker := status.NewTracker(status.NewMemoryStore())
	client := &stubSessionClient{}
	dispatcher := service.NewDispatcher(client, gate, tracker, logger)
	rules := service.NewAutoReplyRules(store, logger)
	engine := service.NewScheduleEngine(store, dispatcher, time.Second, 50, logger)
	events := session.NewEventStream("ws://127.0.0.1:1", "", logger)

	cfg := &models.Config{}
	cfg.Server.Port = 8080

	srv := NewServer(cfg, logger, &components{
		configs:    configs,
		devices:    devices,
		sync:       regSync,
		gate:       gate,
		tracker:    tracker,
		dispatcher: dispatcher,
		engine:     engine,
		rules:      rules,
		events:     events,
	})

	// One registered device for the token-scoped routes
	require.NoError(t, devices.Upsert(context.Background(), models.DeviceRecord{
		Token:     "tok-1",
		SessionID: "s1",
		Name:      "primary",
	}))

	return &serverFixture{
		server:  srv,
		store:   store,
		client:  client,
		devices: devices,
		configs: configs,
		tracker: tracker,
	}
}

func (f *serverFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestServerHealth(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestServerMetrics(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerAuthMissingToken(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/s1/send", "", models.OutboundMessage{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, f.client.calls())
}

func TestServerAuthUnknownToken(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/s1/send", "tok-unknown", models.OutboundMessage{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServerAuthTokenSessionMismatch(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/s2/send", "tok-1", models.OutboundMessage{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, f.client.calls())
}

func TestServerSend(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/s1/send", "tok-1", models.OutboundMessage{
		Kind:      models.KindText,
		Recipient: "628123456789",
		Text:      "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result types.SendResult
	decodeBody(t, rec, &result)
	assert.Equal(t, "m-stub", result.MessageID)
	assert.Equal(t, 1, f.client.calls())
}

func TestServerSendTokenHeader(t *testing.T) {
	f := newTestServer(t)

	data, _ := json.Marshal(models.OutboundMessage{
		Kind:      models.KindText,
		Recipient: "628123456789",
		Text:      "hello",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/s1/send", bytes.NewReader(data))
	req.Header.Set("token", "tok-1")
	rec := httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerSendInvalidMessage(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/s1/send", "tok-1", models.OutboundMessage{
		Kind:      models.KindText,
		Recipient: "628123456789",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.client.calls())
}

func TestServerSendBulk(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/s1/send/bulk", "tok-1", map[string]interface{}{
		"messages": []models.OutboundMessage{
			{Kind: models.KindText, Recipient: "628123456789", Text: "one"},
			{Kind: models.KindText, Recipient: "628123456789"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.BulkResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "1 of 2 messages sent", resp.Message)
	require.Len(t, resp.Data.Messages, 2)
}

func TestServerScheduleFlow(t *testing.T) {
	f := newTestServer(t)
	dueAt := time.Now().Add(time.Hour).Format(time.RFC3339)

	rec := f.do(http.MethodPost, "/api/s1/schedules", "tok-1", map[string]interface{}{
		"messages": []service.ScheduleItem{
			{Phone: "628123456789", Kind: models.KindText, DueAt: dueAt, Payload: json.RawMessage(`{"text":"later"}`)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created models.BulkResponse
	decodeBody(t, rec, &created)
	require.Len(t, created.Data.Messages, 1)
	scheduleID := created.Data.Messages[0].ID
	require.NotEmpty(t, scheduleID)

	rec = f.do(http.MethodGet, "/api/schedules", "tok-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []models.ScheduleRecord
	decodeBody(t, rec, &records)
	require.Len(t, records, 1)
	assert.Equal(t, scheduleID, records[0].ID)

	rec = f.do(http.MethodDelete, "/api/schedules/"+scheduleID, "tok-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Canceled records cannot be canceled again
	rec = f.do(http.MethodDelete, "/api/schedules/"+scheduleID, "tok-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerScheduleUpdateNotFound(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPut, "/api/schedules/missing", "tok-1", service.ScheduleUpdate{Recipient: "628999999999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerStatusEndpoints(t *testing.T) {
	f := newTestServer(t)
	f.tracker.Record("s1", "m-1", models.MessageStatusDelivered, time.Now(), nil)

	rec := f.do(http.MethodGet, "/api/s1/statuses", "tok-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []models.MessageStatusRecord
	decodeBody(t, rec, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "m-1", records[0].MessageID)

	rec = f.do(http.MethodGet, "/api/s1/statuses/m-1", "tok-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/s1/statuses/m-missing", "tok-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerRulesFlow(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPut, "/api/rules", "tok-1", []models.AutoReplyRule{
		{Keyword: "hours", Response: "we are open 9-5"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/rules", "tok-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rules []models.AutoReplyRule
	decodeBody(t, rec, &rules)
	require.Len(t, rules, 1)
	assert.Equal(t, "hours", rules[0].Keyword)

	rec = f.do(http.MethodDelete, "/api/rules", "tok-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/rules", "tok-1", nil)
	decodeBody(t, rec, &rules)
	assert.Empty(t, rules)
}

func TestServerConfigPutCreatesDevice(t *testing.T) {
	f := newTestServer(t)

	cfg := models.DefaultSessionConfig()
	cfg.Name = "second"
	cfg.Token = "tok-2"
	rec := f.do(http.MethodPut, "/api/s2/config", "", cfg)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	device, err := f.devices.FindBySession(context.Background(), "s2")
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, "tok-2", device.Token)

	// The new token works on the token-scoped routes right away
	rec = f.do(http.MethodPost, "/api/s2/send", "tok-2", models.OutboundMessage{
		Kind:      models.KindText,
		Recipient: "628123456789",
		Text:      "hello",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerConfigDeleteTearsDown(t *testing.T) {
	f := newTestServer(t)
	f.tracker.Record("s1", "m-1", models.MessageStatusSent, time.Now(), nil)

	rec := f.do(http.MethodDelete, "/api/s1/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	device, err := f.devices.FindBySession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, device)
	assert.Empty(t, f.tracker.List("s1"))

	rec = f.do(http.MethodPost, "/api/s1/send", "tok-1", models.OutboundMessage{
		Kind:      models.KindText,
		Recipient: "628123456789",
		Text:      "hello",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServerDeviceList(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodGet, "/api/devices", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var devices []models.DeviceRecord
	decodeBody(t, rec, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "s1", devices[0].SessionID)
}

func TestServerEventIntake(t *testing.T) {
	f := newTestServer(t)

	payload, _ := json.Marshal(types.IncomingMessage{ID: "in-1", From: "628123456789", Text: "hi"})
	rec := f.do(http.MethodPost, "/events/s1", "", types.Event{
		Event:   types.EventMessage,
		Payload: payload,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerEventIntakeInvalidBody(t *testing.T) {
	f := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/events/s1", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
