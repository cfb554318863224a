package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"sitescan/internal/app"
	"sitescan/internal/domain"
)

// Analyzer is satisfied by *app.AnalysisService.
type Analyzer interface {
	Process(ctx context.Context, rawURL string) (domain.AnalysisResult, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	A  Analyzer
	DB Pinger // optional; enables /healthz?db=1
}

// problem is RFC 7807 with two extension members so failed analyses keep the
// {success, error} shape callers check for.
type problem struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type analyzeRequest struct {
	URL string `json:"url"`
}

const maxBody = 64 << 10

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", h.healthz)
	s.mux.Post("/v1/analyze", h.analyze)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	p := problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Error: detail}
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal response failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "response encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("write response body failed")
	}
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("db") == "1" && h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("database health check failed")
			writeProblem(w, http.StatusServiceUnavailable, "Database Unavailable", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", `body must be {"url": "..."}`)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid URL", "url is required")
		return
	}

	res, err := h.A.Process(r.Context(), req.URL)
	switch {
	case err == nil:
		w.Header().Set(headerRunID, res.RunID)
		w.Header().Set(headerDomain, res.Domain)
		writeJSON(w, http.StatusOK, res)
	case app.IsClientError(err):
		writeProblem(w, http.StatusBadRequest, "Invalid URL", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Analysis Interrupted", err.Error())
	default:
		log.Error().Err(err).Str("url", req.URL).Msg("analysis failed")
		writeProblem(w, http.StatusInternalServerError, "Analysis Failed", err.Error())
	}
}
