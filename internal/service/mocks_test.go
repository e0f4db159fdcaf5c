package service

import (
	"context"
	"sync"
	"time"

	"wagateway/internal/models"
	"wagateway/pkg/session/types"

	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) SendText(ctx context.Context, sessionID, recipient, text string, isGroup bool) (*types.SendResult, error) {
	args := m.Called(ctx, sessionID, recipient, text, isGroup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendResult), args.Error(1)
}

func (m *mockClient) SendImage(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	args := m.Called(ctx, sessionID, recipient, media, isGroup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendResult), args.Error(1)
}

func (m *mockClient) SendVideo(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	args := m.Called(ctx, sessionID, recipient, media, isGroup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendResult), args.Error(1)
}

func (m *mockClient) SendAudio(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	args := m.Called(ctx, sessionID, recipient, media, isGroup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendResult), args.Error(1)
}

func (m *mockClient) SendDocument(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	args := m.Called(ctx, sessionID, recipient, media, isGroup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendResult), args.Error(1)
}

func (m *mockClient) SendSticker(ctx context.Context, sessionID, recipient string, media types.MediaContent, isGroup bool) (*types.SendResult, error) {
	args := m.Called(ctx, sessionID, recipient, media, isGroup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendResult), args.Error(1)
}

func (m *mockClient) SendRaw(ctx context.Context, sessionID, kind string, payload interface{}) (*types.SendResult, error) {
	args := m.Called(ctx, sessionID, kind, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendResult), args.Error(1)
}

func (m *mockClient) GetSession(ctx context.Context, sessionID string) (*types.SessionInfo, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SessionInfo), args.Error(1)
}

type mockGate struct {
	mock.Mock
}

func (m *mockGate) Acquire(ctx context.Context, sessionID, recipient string) error {
	args := m.Called(ctx, sessionID, recipient)
	return args.Error(0)
}

type mockReplier struct {
	mock.Mock
}

func (m *mockReplier) Send(ctx context.Context, sessionID string, msg *models.OutboundMessage) (*types.SendResult, error) {
	args := m.Called(ctx, sessionID, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendResult), args.Error(1)
}

// recordingTracker captures status writes for assertions
type recordingTracker struct {
	mu      sync.Mutex
	records []recordedStatus
}

type recordedStatus struct {
	SessionID string
	MessageID string
	Status    string
	Extra     map[string]interface{}
}

func (r *recordingTracker) Record(sessionID, messageID, status string, ts time.Time, extra map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recordedStatus{
		SessionID: sessionID,
		MessageID: messageID,
		Status:    status,
		Extra:     extra,
	})
}

func (r *recordingTracker) all() []recordedStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedStatus(nil), r.records...)
}

// stubConfigs serves a fixed per-session config to the relay
type stubConfigs struct {
	cfg *models.SessionConfig
}

func (s *stubConfigs) Get(ctx context.Context, sessionID string) *models.SessionConfig {
	if s.cfg == nil {
		return models.DefaultSessionConfig()
	}
	return s.cfg
}

// memDocStore is an in-memory document store for engine and rule tests
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
