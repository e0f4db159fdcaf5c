package integration_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"wagateway/pkg/session/types"
)

// SessionServiceStub mimics the external session service REST surface:
// session lookup plus the typed send endpoints
type SessionServiceStub struct {
	Server *httptest.Server

	mu       sync.Mutex
	state    types.SessionState
	nextID   int
	requests []StubRequest
}

// StubRequest records one call into the stub
type StubRequest struct {
	Path   string
	APIKey string
	Body   map[string]interface{}
}

func NewSessionServiceStub(t *testing.T) *SessionServiceStub {
	stub := &SessionServiceStub{state: types.SessionConnected}
	stub.Server = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.Server.Close)
	return stub
}

// SetState changes the reported session connection state
func (s *SessionServiceStub) SetState(state types.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Requests returns a copy of the send calls received so far
func (s *SessionServiceStub) Requests() []StubRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StubRequest(nil), s.requests...)
}

func (s *SessionServiceStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if strings.Contains(r.URL.Path, "/sessions/") {
		sessionID := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		_ = json.NewEncoder(w).Encode(types.SessionInfo{ID: sessionID, State: s.state})
		return
	}

	body, _ := io.ReadAll(r.Body)
	var decoded map[string]interface{}
	_ = json.Unmarshal(body, &decoded)
	s.requests = append(s.requests, StubRequest{
		Path:   r.URL.Path,
		APIKey: r.Header.Get("X-Api-Key"),
		Body:   decoded,
	})

	s.nextID++
	_ = json.NewEncoder(w).Encode(types.SendResult{
		MessageID: fmt.Sprintf("m-%d", s.nextID),
		Status:    "sent",
	})
}

// WebhookCapture is a downstream webhook receiver recording relay calls
type WebhookCapture struct {
	Server *httptest.Server

	mu       sync.Mutex
	reply    string
	requests []StubRequest
}

func NewWebhookCapture(t *testing.T) *WebhookCapture {
	capture := &WebhookCapture{}
	capture.Server = httptest.NewServer(http.HandlerFunc(capture.handle))
	t.Cleanup(capture.Server.Close)
	return capture
}

// SetReply sets the body returned to incoming-message calls
func (c *WebhookCapture) SetReply(body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply = body
}

// Requests returns a copy of the webhook calls received so far
func (c *WebhookCapture) Requests() []StubRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]StubRequest(nil), c.requests...)
}

func (c *WebhookCapture) handle(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	var decoded map[string]interface{}
	_ = json.Unmarshal(body, &decoded)
	c.requests = append(c.requests, StubRequest{
		Path:   r.URL.Path,
		APIKey: r.Header.Get("key"),
		Body:   decoded,
	})

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(c.reply))
}
