package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "wagateway/internal/errors"
	"wagateway/internal/metrics"
	"wagateway/internal/middleware"
	"wagateway/internal/models"
	"wagateway/internal/registry"
	"wagateway/internal/service"
	"wagateway/internal/status"
	"wagateway/internal/throttle"
	"wagateway/pkg/session"
	"wagateway/pkg/session/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// components bundles the wired core passed from run()
type components struct {
	configs    *registry.ConfigRegistry
	devices    *registry.DeviceRegistry
	sync       *registry.Sync
	gate       *throttle.Gate
	tracker    *status.Tracker
	dispatcher *service.Dispatcher
	engine     *service.ScheduleEngine
	rules      *service.AutoReplyRules
	events     *session.EventStream
}

type Server struct {
	router *mux.Router
	logger *logrus.Logger
	cfg    *models.Config
	core   *components
	server *http.Server
}

func NewServer(cfg *models.Config, logger *logrus.Logger, core *components) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		cfg:    cfg,
		core:   core,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	// Session service event intake (HTTP alternative to the websocket
	// stream; same envelope)
	s.router.HandleFunc("/events/{session}", s.handleEventIntake()).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/{session}/send", s.withToken(s.handleSend)).Methods(http.MethodPost)
	api.HandleFunc("/{session}/send/bulk", s.withToken(s.handleSendBulk)).Methods(http.MethodPost)

	api.HandleFunc("/{session}/schedules", s.withToken(s.handleScheduleCreate)).Methods(http.MethodPost)
	api.HandleFunc("/schedules", s.withToken(s.handleScheduleList)).Methods(http.MethodGet)
	api.HandleFunc("/schedules/{id}", s.withToken(s.handleScheduleUpdate)).Methods(http.MethodPut)
	api.HandleFunc("/schedules/{id}", s.withToken(s.handleScheduleCancel)).Methods(http.MethodDelete)

	api.HandleFunc("/{session}/statuses", s.withToken(s.handleStatusList)).Methods(http.MethodGet)
	api.HandleFunc("/{session}/statuses/{id}", s.withToken(s.handleStatusGet)).Methods(http.MethodGet)

	api.HandleFunc("/rules", s.withToken(s.handleRulesGet)).Methods(http.MethodGet)
	api.HandleFunc("/rules", s.withToken(s.handleRulesSet)).Methods(http.MethodPut)
	api.HandleFunc("/rules", s.withToken(s.handleRulesDelete)).Methods(http.MethodDelete)

	// Administrative boundary: session configuration and device listing.
	// Fronted by the admin layer, no token of its own.
	api.HandleFunc("/devices", s.handleDeviceList()).Methods(http.MethodGet)
	api.HandleFunc("/{session}/config", s.handleConfigPut()).Methods(http.MethodPut)
	api.HandleFunc("/{session}/config", s.handleConfigDelete()).Methods(http.MethodDelete)

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// withToken resolves the caller's API token against the device registry
// and passes the matched device to the handler
func (s *Server) withToken(h func(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, apperrors.NewAuthError("missing API token"))
			return
		}

		device, err := s.core.devices.FindByToken(r.Context(), token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if device == nil {
			s.writeError(w, apperrors.NewAuthError("unknown API token"))
			return
		}

		if sessionID, ok := mux.Vars(r)["session"]; ok && sessionID != device.SessionID {
			s.writeError(w, apperrors.NewAuthError("token does not match session"))
			return
		}

		h(w, r, device)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("token")
}

func (s *Server) handleEventIntake() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event types.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "invalid event payload"))
			return
		}
		if event.Session == "" {
			event.Session = mux.Vars(r)["session"]
		}

		s.core.events.Dispatch(r.Context(), &event)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	var msg models.OutboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.writeError(w, apperrors.NewValidationError("body", "invalid message payload"))
		return
	}

	result, err := s.core.dispatcher.Send(r.Context(), device.SessionID, &msg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSendBulk(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	var body struct {
		Messages []models.OutboundMessage `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, apperrors.NewValidationError("body", "invalid batch payload"))
		return
	}

	resp := s.core.dispatcher.SendBatch(r.Context(), device.SessionID, body.Messages)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScheduleCreate(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	var body struct {
		Messages []service.ScheduleItem `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, apperrors.NewValidationError("body", "invalid schedule payload"))
		return
	}

	resp, err := s.core.engine.CreateBatch(r.Context(), device.Token, device.SessionID, body.Messages)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScheduleList(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	records, err := s.core.engine.List(r.Context(), device.Token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleScheduleUpdate(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	var update service.ScheduleUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, apperrors.NewValidationError("body", "invalid schedule update"))
		return
	}

	record, err := s.core.engine.Update(r.Context(), device.Token, mux.Vars(r)["id"], update)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleScheduleCancel(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	if err := s.core.engine.Cancel(r.Context(), device.Token, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

func (s *Server) handleStatusList(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	s.writeJSON(w, http.StatusOK, s.core.tracker.List(device.SessionID))
}

func (s *Server) handleStatusGet(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	messageID := mux.Vars(r)["id"]
	record, ok := s.core.tracker.Get(device.SessionID, messageID)
	if !ok {
		s.writeError(w, apperrors.NewNotFoundError("message status", messageID))
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleRulesGet(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	rules, err := s.core.rules.List(r.Context(), device.Token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleRulesSet(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	var rules []models.AutoReplyRule
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		s.writeError(w, apperrors.NewValidationError("body", "invalid rules payload"))
		return
	}
	if err := s.core.rules.Set(r.Context(), device.Token, rules); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func (s *Server) handleRulesDelete(w http.ResponseWriter, r *http.Request, device *models.DeviceRecord) {
	if err := s.core.rules.Delete(r.Context(), device.Token); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDeviceList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := s.core.devices.List(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, devices)
	}
}

func (s *Server) handleConfigPut() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["session"]

		cfg := models.DefaultSessionConfig()
		if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "invalid session config"))
			return
		}

		if err := s.core.configs.Set(r.Context(), sessionID, cfg); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.core.sync.Ensure(r.Context(), sessionID); err != nil {
			s.logger.WithField("session", sessionID).WithError(err).
				Warn("Device registry sync after config write failed")
		}
		s.writeJSON(w, http.StatusOK, cfg)
	}
}

func (s *Server) handleConfigDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["session"]

		if err := s.core.configs.Delete(r.Context(), sessionID); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.core.devices.DeleteBySession(r.Context(), sessionID); err != nil {
			s.writeError(w, err)
			return
		}
		s.core.gate.Reset(sessionID)
		s.core.tracker.Clear(sessionID)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, metrics.GetAllMetrics())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps application error codes to HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeValidationFailed:
		statusCode = http.StatusBadRequest
	case apperrors.ErrCodeAuthentication:
		statusCode = http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		statusCode = http.StatusNotFound
	case apperrors.ErrCodeSessionUnavailable:
		statusCode = http.StatusServiceUnavailable
	}

	var appErr *apperrors.AppError
	message := "internal error"
	if e, ok := err.(*apperrors.AppError); ok {
		appErr = e
		message = appErr.UserMessage
		if message == "" {
			message = appErr.Message
		}
	} else if err != nil {
		message = err.Error()
	}

	s.writeJSON(w, statusCode, map[string]interface{}{
		"error":  message,
		"code":   string(apperrors.GetCode(err)),
		"status": statusCode,
	})
}
