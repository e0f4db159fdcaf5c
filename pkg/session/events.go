package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"wagateway/internal/constants"
	"wagateway/pkg/session/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// MessageHandler receives inbound message events
type MessageHandler func(ctx context.Context, sessionID string, msg *types.IncomingMessage)

// StatusHandler receives delivery status events
type StatusHandler func(ctx context.Context, sessionID string, update *types.StatusUpdate)

// ConnectionHandler receives session connection-state events
type ConnectionHandler func(ctx context.Context, sessionID string, update *types.ConnectionUpdate)

// EventStream subscribes to the session service's websocket event feed
// and dispatches typed events to registered handlers. The connection is
// re-dialed after failures with a fixed retry interval.
type EventStream struct {
	wsURL      string
	apiKey     string
	retryDelay time.Duration
	logger     *logrus.Logger
	stopCh     chan struct{}

	onMessage    MessageHandler
	onStatus     StatusHandler
	onConnection ConnectionHandler
}

// NewEventStream creates an event stream client for the given websocket URL
func NewEventStream(wsURL, apiKey string, logger *logrus.Logger) *EventStream {
	return &EventStream{
		wsURL:      wsURL + "/ws/events",
		apiKey:     apiKey,
		retryDelay: constants.DefaultEventStreamRetrySec * time.Second,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// OnMessageReceived registers the inbound message handler
func (s *EventStream) OnMessageReceived(h MessageHandler) { s.onMessage = h }

// OnMessageStatusUpdated registers the delivery status handler
func (s *EventStream) OnMessageStatusUpdated(h StatusHandler) { s.onStatus = h }

// OnConnectionStateChanged registers the connection state handler
func (s *EventStream) OnConnectionStateChanged(h ConnectionHandler) { s.onConnection = h }

// Start runs the read loop in a goroutine until the context is
// cancelled or Stop is called
func (s *EventStream) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop stops the stream
func (s *EventStream) Stop() {
	close(s.stopCh)
}

func (s *EventStream) run(ctx context.Context) {
	s.logger.WithField("url", s.wsURL).Info("Event stream starting")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Event stream context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Event stream stop signal received, stopping")
			return
		default:
		}

		if err := s.readLoop(ctx); err != nil {
			s.logger.WithError(err).Warn("Event stream disconnected, retrying")
		}

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *EventStream) readLoop(ctx context.Context) error {
	var header http.Header
	if s.apiKey != "" {
		header = http.Header{headerAPIKey: []string{s.apiKey}}
	}

	conn, _, err := websocket.Dial(ctx, s.wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.logger.Info("Event stream connected")

	for {
		var event types.Event
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			return err
		}
		s.Dispatch(ctx, &event)
	}
}

// Dispatch routes one event envelope to the registered handler. Used by
// the websocket read loop and by the HTTP event intake, which accepts
// the same envelope as an alternative transport. A handler panic or a
// malformed payload never takes down the stream.
func (s *EventStream) Dispatch(ctx context.Context, event *types.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"event": event.Event,
				"panic": r,
			}).Error("Event handler panicked")
		}
	}()

	switch event.Event {
	case types.EventMessage:
		if s.onMessage == nil {
			return
		}
		var msg types.IncomingMessage
		if err := json.Unmarshal(event.Payload, &msg); err != nil {
			s.logEventError(event, err)
			return
		}
		s.onMessage(ctx, event.Session, &msg)

	case types.EventMessageStatus:
		if s.onStatus == nil {
			return
		}
		var update types.StatusUpdate
		if err := json.Unmarshal(event.Payload, &update); err != nil {
			s.logEventError(event, err)
			return
		}
		s.onStatus(ctx, event.Session, &update)

	case types.EventSessionStatus:
		if s.onConnection == nil {
			return
		}
		var update types.ConnectionUpdate
		if err := json.Unmarshal(event.Payload, &update); err != nil {
			s.logEventError(event, err)
			return
		}
		s.onConnection(ctx, event.Session, &update)

	default:
		s.logger.WithField("event", event.Event).Debug("Ignoring unknown event type")
	}
}

func (s *EventStream) logEventError(event *types.Event, err error) {
	s.logger.WithFields(logrus.Fields{
		"event":   event.Event,
		"session": event.Session,
	}).WithError(err).Warn("Failed to decode event payload")
}
