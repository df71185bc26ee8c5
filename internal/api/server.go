// Package api serves a finished report run over HTTP: the interactive page,
// the chart files and the aggregates behind them.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/accident.report/internal/accidents"
	"github.com/banshee-data/accident.report/internal/charts"
	"github.com/banshee-data/accident.report/internal/db"
	"github.com/banshee-data/accident.report/internal/httputil"
	"github.com/banshee-data/accident.report/internal/monitoring"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Snapshot is the run the viewer shows.
type Snapshot struct {
	RunID    string
	Dir      string
	Monthly  []accidents.MonthlyCount
	CrossTab *accidents.CrossTab
}

type Server struct {
	snap  Snapshot
	store *db.DB
}

// NewServer returns a viewer for snap. store may be nil; when set the stored
// runs and the debug pages are served too.
func NewServer(snap Snapshot, store *db.DB) *Server {
	return &Server{snap: snap, store: store}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// Router builds the viewer routes.
func (s *Server) Router() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware)

	r.Get("/", s.showReport)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/charts/*", http.StripPrefix("/charts/", http.FileServer(http.Dir(s.snap.Dir))))

	r.Route("/api", func(r chi.Router) {
		r.Get("/monthly", s.showMonthly)
		r.Get("/class-severity", s.showClassSeverity)
		if s.store != nil {
			r.Get("/runs", s.listRuns)
			r.Get("/runs/{runID}/monthly", s.showStoredMonthly)
			r.Get("/runs/{runID}/class-severity", s.showStoredClassSeverity)
		}
	})

	if s.store != nil {
		mux := http.NewServeMux()
		if err := s.store.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
		r.Mount("/debug", mux)
	}
	return r, nil
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.snap.Dir, charts.HTMLFile)
	if _, err := os.Stat(path); err != nil {
		httputil.NotFound(w, "report page not rendered")
		return
	}
	http.ServeFile(w, r, path)
}

type monthlyResponse struct {
	RunID  string          `json:"run_id"`
	Months []db.MonthlyRow `json:"months"`
}

type classSeverityResponse struct {
	RunID      string                `json:"run_id"`
	Classes    []string              `json:"classes"`
	Severities []string              `json:"severities"`
	Cells      []db.ClassSeverityRow `json:"cells"`
}

func (s *Server) showMonthly(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, monthlyResponse{
		RunID:  s.snap.RunID,
		Months: db.MonthlyRowsFrom(s.snap.Monthly),
	})
}

func (s *Server) showClassSeverity(w http.ResponseWriter, r *http.Request) {
	resp := classSeverityResponse{
		RunID:      s.snap.RunID,
		Classes:    []string{},
		Severities: []string{},
		Cells:      db.ClassSeverityRowsFrom(s.snap.CrossTab),
	}
	if ct := s.snap.CrossTab; ct != nil {
		resp.Classes = ct.Classes
		resp.Severities = ct.Severities
	}
	render.JSON(w, r, resp)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.Runs(r.Context())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	render.JSON(w, r, runs)
}

func (s *Server) showStoredMonthly(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	months, err := s.store.MonthlyCounts(r.Context(), runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if months == nil {
		months = []db.MonthlyRow{}
	}
	render.JSON(w, r, monthlyResponse{RunID: runID, Months: months})
}

func (s *Server) showStoredClassSeverity(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	cells, err := s.store.ClassSeverityCounts(r.Context(), runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if cells == nil {
		cells = []db.ClassSeverityRow{}
	}
	classes, severities := axes(cells)
	render.JSON(w, r, classSeverityResponse{RunID: runID, Classes: classes, Severities: severities, Cells: cells})
}

// axes lists the distinct classes and severities of cells, sorted.
func axes(cells []db.ClassSeverityRow) (classes, severities []string) {
	classes, severities = []string{}, []string{}
	seenClass := map[string]bool{}
	seenSeverity := map[string]bool{}
	for _, c := range cells {
		if !seenClass[c.Class] {
			seenClass[c.Class] = true
			classes = append(classes, c.Class)
		}
		if !seenSeverity[c.Severity] {
			seenSeverity[c.Severity] = true
			severities = append(severities, c.Severity)
		}
	}
	sort.Strings(classes)
	sort.Strings(severities)
	return classes, severities
}

// Serve runs h on ln until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
