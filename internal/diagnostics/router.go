package diagnostics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-node/internal/gpio"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/session", s.handleSession)
		r.Get("/subscriptions", s.handleSubscriptions)
		r.Get("/stats", s.handleStats)
		r.With(s.authMiddleware).Post("/reconfigure", s.handleReconfigure)
		r.Get("/gpio/{pin}", s.handleGPIOPin)
		r.Get("/ota", s.handleOTA)
	})

	return r
}

// handleHealth reports "ok" when the session is live and every checker
// passes, and "degraded" with 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.session.State()
	healthy := state == session.StateConnected

	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.HealthCheck(r.Context()); err != nil {
			components[name] = err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"session":    state.String(),
		"components": components,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            s.session.ID(),
		"state":         s.session.State().String(),
		"identity":      s.session.Identity(),
		"buffers":       s.session.BufferSizes(),
		"control_topic": s.session.ControlTopic(),
	})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, _ *http.Request) {
	topics := s.session.Handlers()
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": topics,
		"count":         len(topics),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Stats())
}

func (s *Server) handleReconfigure(w http.ResponseWriter, _ *http.Request) {
	if err := s.session.Reconfigure(); err != nil {
		if errors.Is(err, session.ErrInvalidState) {
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
			return
		}
		s.logger.Warn("reconfigure failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "identity published"})
}

func (s *Server) handleGPIOPin(w http.ResponseWriter, r *http.Request) {
	if s.pins == nil {
		writeNotFound(w, "gpio journal not enabled")
		return
	}

	pin, err := strconv.Atoi(chi.URLParam(r, "pin"))
	if err != nil {
		writeBadRequest(w, "pin must be an integer")
		return
	}
	if err := gpio.ValidatePin(pin); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	st, err := s.pins.Pin(r.Context(), pin)
	if errors.Is(err, gpio.ErrPinNotConfigured) {
		writeNotFound(w, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("reading pin state", "pin", pin, "error", err)
		writeInternalError(w, "failed to read pin state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pin":        st.Pin,
		"mode":       st.Mode,
		"level":      st.Level,
		"updated_at": st.UpdatedAt,
	})
}

func (s *Server) handleOTA(w http.ResponseWriter, r *http.Request) {
	if s.ota == nil {
		writeNotFound(w, "ota journal not enabled")
		return
	}

	n, err := s.ota.Pending(r.Context())
	if err != nil {
		s.logger.Error("counting ota requests", "error", err)
		writeInternalError(w, "failed to read ota requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": n})
}
