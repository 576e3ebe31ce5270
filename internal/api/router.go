package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nerrad567/castbridge/internal/accessory"
	"github.com/nerrad567/castbridge/internal/hostbus"
)

// commandTimeout bounds a command issued over HTTP, including every key of
// a sequence.
const commandTimeout = 30 * time.Second

// sourceAPI is recorded for commands without an explicit source.
const sourceAPI = "api"

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/accessory", s.handleGetAccessory)
		r.Get("/characteristics", s.handleCharacteristics)
		r.Post("/commands", s.handleCommand)
		r.Get("/audit", s.handleListAudit)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"version":           s.version,
		"secondary":         s.acc.Snapshot().Secondary,
		"websocket_clients": s.hub.ClientCount(),
	})
}

// handleGetAccessory returns the cached accessory state. Devices are never
// queried on this path.
func (s *Server) handleGetAccessory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Server) handleCharacteristics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"characteristics": accessory.Characteristics(),
	})
}

// handleCommand runs one host command synchronously and responds with the
// final ack. The body is a hostbus command document.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := s.acc.Name()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	cmd, err := hostbus.ParseCommand(body)
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Source == "" {
		cmd.Source = sourceAPI
	}
	if err != nil {
		s.recordCommand(cmd, time.Now(), err)
		writeJSON(w, statusForCode(hostbus.ErrorCode(err)), hostbus.NewAckError(name, cmd, err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	start := time.Now()
	value, err := hostbus.Execute(ctx, s.acc, cmd)
	s.recordCommand(cmd, start, err)
	if err != nil {
		s.logger.Error("command failed", "command", cmd.Command, "command_id", cmd.ID, "error", err)
		writeJSON(w, statusForCode(hostbus.ErrorCode(err)), hostbus.NewAckError(name, cmd, err))
		return
	}

	if cmd.Command != hostbus.CommandRead {
		s.broadcastState(true)
	}
	writeJSON(w, http.StatusOK, hostbus.NewAckMessage(name, cmd, hostbus.AckCompleted, value))
}

// statusForCode maps an ack error code to an HTTP status.
func statusForCode(code string) int {
	switch code {
	case hostbus.ErrCodeValidation, hostbus.ErrCodeInvalidCommand:
		return http.StatusBadRequest
	case hostbus.ErrCodeBusy:
		return http.StatusConflict
	case hostbus.ErrCodeNotConnected, hostbus.ErrCodeDeviceUnreachable:
		return http.StatusServiceUnavailable
	case hostbus.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
