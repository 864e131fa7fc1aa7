package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow"
	"github.com/brunobiangulo/goknow/store"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	defaultSimilar      = 5
	msgNoQuestion       = "Không có câu hỏi"
)

type queryRequest struct {
	Query string `json:"query"`
}

type indexData struct {
	Title   string
	Nodes   int
	Edges   int
	History []store.QueryLog
}

// GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{Title: pageTitle}
	if stats, err := s.engine.Stats(r.Context()); err == nil {
		data.Nodes, data.Edges = stats.Nodes, stats.Edges
	}
	if recent, err := s.engine.History(r.Context(), defaultHistoryLimit); err == nil {
		slices.Reverse(recent)
		data.History = recent
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("rendering page", zap.Error(err))
	}
}

// POST /api/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, msgNoQuestion)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	ans, err := s.engine.Ask(ctx, req.Query)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// GET /api/history?limit=10&like=substr
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", defaultHistoryLimit, maxHistoryLimit)

	var (
		entries []store.QueryLog
		err     error
	)
	if like := r.URL.Query().Get("like"); like != "" {
		entries, err = s.engine.SearchHistory(r.Context(), like, limit)
	} else {
		entries, err = s.engine.History(r.Context(), limit)
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []store.QueryLog{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/similar?q=question&k=5
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, msgNoQuestion)
		return
	}
	k := intParam(r, "k", defaultSimilar, maxHistoryLimit)

	similar, err := s.engine.SimilarQuestions(r.Context(), q, k)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if similar == nil {
		similar = []store.SimilarQuestion{}
	}
	writeJSON(w, http.StatusOK, similar)
}

// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps engine errors to status codes.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goknow.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, msgNoQuestion)
	case errors.Is(err, goknow.ErrHistoryDisabled), errors.Is(err, goknow.ErrNoEmbeddings):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, goknow.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// intParam reads a positive integer query parameter, falling back to def
// and capping at max.
func intParam(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return min(v, max)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
