// Package server exposes run history, per-trust tables and metrics over a
// small read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/namehistory"
	"github.com/sells-group/etp-tracker/internal/pipeline"
	"github.com/sells-group/etp-tracker/internal/store"
	"github.com/sells-group/etp-tracker/internal/tables"
)

// RunSource reads recorded runs.
type RunSource interface {
	LastRun(ctx context.Context) (*model.RunSummary, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.RunSummary, error)
}

// Server serves the tracker's outputs.
type Server struct {
	root     string
	runs     RunSource
	registry *prometheus.Registry
	log      *zap.Logger
}

// New creates a Server over the output root. runs and reg may be nil.
func New(root string, runs RunSource, reg *prometheus.Registry) *Server {
	return &Server{
		root:     root,
		runs:     runs,
		registry: reg,
		log:      zap.L().With(zap.String("component", "server")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/last", s.handleLastRun)
	r.Route("/trusts/{trust}", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/names", s.handleNames)
	})
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	var (
		run *model.RunSummary
		err error
	)
	if s.runs != nil {
		run, err = s.runs.LastRun(r.Context())
		if err != nil {
			s.fail(w, "last run", err)
			return
		}
	}
	if run == nil {
		// Fall back to the summary file of the most recent local run.
		run, err = pipeline.LoadSummary(s.root)
		if err != nil {
			s.fail(w, "load summary", err)
			return
		}
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, []model.RunSummary{})
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{FailedOnly: q.Get("failed") == "true"}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid "+name)
				return
			}
			*dst = n
		}
	}
	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		s.fail(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.trustDir(w, r)
	if !ok {
		return
	}
	rows, err := tables.ReadStatus(dir)
	if err != nil {
		s.fail(w, "read status", err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		kept := rows[:0]
		for _, row := range rows {
			if string(row.Status) == status {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	if rows == nil {
		rows = []model.FundStatus{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.trustDir(w, r)
	if !ok {
		return
	}
	rows, err := tables.ReadNameHistory(dir)
	if err != nil {
		s.fail(w, "read name history", err)
		return
	}
	if series := r.URL.Query().Get("series"); series != "" {
		rows = namehistory.ForSeries(rows, series)
	}
	if rows == nil {
		rows = []model.NameHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// trustDir resolves the {trust} parameter, which may be a display name or
// a folder slug, to an existing output folder.
func (s *Server) trustDir(w http.ResponseWriter, r *http.Request) (string, bool) {
	dir := tables.Folder(s.root, chi.URLParam(r, "trust"))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		writeError(w, http.StatusNotFound, "unknown trust")
		return "", false
	}
	return dir, true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.log.Error("server: "+op, zap.Error(err))
	code := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		code = http.StatusNotFound
	}
	writeError(w, code, op+" failed")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
