package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "bus-finder/internal/common/errors"
	findbuses "bus-finder/internal/workers/search/find-buses"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

type statesResponse struct {
	States   []string          `json:"states"`
	Failures map[string]string `json:"failures,omitempty"`
}

type routesResponse struct {
	State   string   `json:"state"`
	Routes  []string `json:"routes"`
	Message string   `json:"message,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.pingers))
	status := http.StatusOK
	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", map[string]interface{}{
				"dependency": name,
				"error":      err.Error(),
			})
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status": "ready",
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	writeJSON(w, status, body)
}

func (s *Server) listStates(w http.ResponseWriter, r *http.Request) {
	cat, err := s.catalog.Catalog(r.Context())
	if err != nil {
		s.writeError(w, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, statesResponse{
		States:   cat.States(),
		Failures: cat.Failures(),
	})
}

func (s *Server) listRoutes(w http.ResponseWriter, r *http.Request) {
	state := mux.Vars(r)["state"]

	cat, err := s.catalog.Catalog(r.Context())
	if err != nil {
		s.writeError(w, apperrors.NewInternalError(err))
		return
	}

	routes, ok := cat.Routes(state)
	if !ok {
		s.writeError(w, apperrors.NewUnknownStateError(state))
		return
	}

	resp := routesResponse{State: state, Routes: routes}
	if reason, failed := cat.Failures()[state]; failed {
		resp.Message = reason
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) searchBuses(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, apperrors.NewInvalidFilterError("unreadable request body"))
		return
	}

	input, err := findbuses.DecodeInput(body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	output, err := s.searcher.FindBuses(r.Context(), input.FilterCriteria)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.AsStandard(err)
	resp := errorResponse{
		Error:   string(stdErr.Code),
		Message: apperrors.UserMessage(stdErr),
	}
	if fields, ok := stdErr.Metadata["fields"].([]string); ok {
		resp.Fields = fields
	}
	writeJSON(w, apperrors.HTTPStatus(stdErr), resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
