package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chatsync/internal/constants"
	apperrors "chatsync/internal/errors"
	"chatsync/internal/features"
	"chatsync/internal/metrics"
	"chatsync/internal/middleware"
	"chatsync/internal/models"
	"chatsync/internal/syncengine"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes the local control API: the display snapshot, send and
// side-effect endpoints, health, and metrics. It binds the UI (or a curl
// session) to one engine instance.
type Server struct {
	router *mux.Router
	logger *logrus.Logger
	engine *syncengine.Engine
	config *models.Config
	flags  *features.FlagManager
	server *http.Server
}

func NewServer(cfg *models.Config, engine *syncengine.Engine, flags *features.FlagManager, logger *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		engine: engine,
		config: cfg,
		flags:  flags,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if s.flags == nil || s.flags.IsEnabled(features.FlagRequestLogging) {
		s.router.Use(middleware.Observability(s.logger))
	}

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/features", s.handleListFeatures()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/messages", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.handleSendMessage()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id}", s.handleEditMessage()).Methods(http.MethodPatch)
	api.HandleFunc("/messages/{id}", s.handleDeleteMessage()).Methods(http.MethodDelete)
	api.HandleFunc("/messages/{id}/retry", s.handleRetryMessage()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id}/reactions", s.handleToggleReaction()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.config.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":             "ok",
			"backend_connected":  s.engine.Connected(),
			"pending_outbound":   len(s.engine.PendingOutbound()),
			"pending_operations": s.engine.PendingOperations(),
		})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(metrics.GetRegistry().Snapshot()); err != nil {
			s.logger.WithError(err).Error("Failed to encode metrics response")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}

func (s *Server) handleListFeatures() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.flags == nil {
			s.writeJSON(w, http.StatusOK, []features.Flag{})
			return
		}
		s.writeJSON(w, http.StatusOK, s.flags.ListFlags())
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.engine.Messages())
	}
}

type sendMessageRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		dm, err := s.engine.SendText(r.Context(), req.Text, req.Lang)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, dm)
	}
}

type editMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleEditMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := s.engine.EditMessage(r.Context(), mux.Vars(r)["id"], req.Text); err != nil {
			s.writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleDeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.engine.DeleteMessage(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleRetryMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.engine.RetryFailedMessage(r.Context(), mux.Vars(r)["id"])
		w.WriteHeader(http.StatusAccepted)
	}
}

type toggleReactionRequest struct {
	Emoji string `json:"emoji"`
}

func (s *Server) handleToggleReaction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toggleReactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Emoji == "" {
			s.writeError(w, http.StatusBadRequest, "emoji is required")
			return
		}

		if err := s.engine.ToggleReaction(r.Context(), mux.Vars(r)["id"], req.Emoji); err != nil {
			s.writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidationFailed, apperrors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	}
	s.writeError(w, status, apperrors.GetUserMessage(err))
}
