// Package server exposes the forecast daemon over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/forecast/internal/forecast"
	"github.com/cleared-dev/forecast/internal/history"
	"github.com/cleared-dev/forecast/internal/ledger"
	"github.com/cleared-dev/forecast/internal/model"
	"github.com/cleared-dev/forecast/internal/scheduler"
)

const (
	defaultHistoryLimit = 100
	shutdownTimeout     = 5 * time.Second
)

// HistoryLister reads stored predictions, newest first.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// Options configures New. Projector is required; the rest are optional.
type Options struct {
	Projector scheduler.Projector
	Target    scheduler.TargetFunc // date used when ?date= is absent
	Status    func() scheduler.Status
	History   HistoryLister
	Logger    logrus.FieldLogger
	Clock     func() time.Time
}

// Server serves health, status, on-demand predictions and history.
type Server struct {
	projector scheduler.Projector
	target    scheduler.TargetFunc
	status    func() scheduler.Status
	history   HistoryLister
	log       logrus.FieldLogger
	now       func() time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Server{
		projector: opts.Projector,
		target:    opts.Target,
		status:    opts.Status,
		history:   opts.History,
		log:       opts.Logger,
		now:       opts.Clock,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/prediction", s.handlePrediction).Methods(http.MethodGet)
	r.HandleFunc("/v1/history", s.handleHistory).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusNotFound, errors.New("scheduler not running"))
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	req, err := s.predictionRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := s.projector.Project(r.Context(), req.TargetDate)
	if err != nil {
		s.log.WithError(err).WithField("target_date", req.TargetDate.Format(time.DateOnly)).Warn("on-demand prediction failed")
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) predictionRequest(r *http.Request) (model.PredictionRequest, error) {
	if v := r.URL.Query().Get("date"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return model.PredictionRequest{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", v)
		}
		return model.PredictionRequest{TargetDate: t}, nil
	}
	if s.target == nil {
		return model.PredictionRequest{}, errors.New("date is required")
	}
	t, err := s.target(s.now())
	if err != nil {
		return model.PredictionRequest{}, err
	}
	return model.PredictionRequest{TargetDate: t}, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a non-negative integer, got %q", v))
			return
		}
		limit = n
	}

	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if err := history.WriteRecords(w, records); err != nil {
			s.log.WithError(err).Warn("writing history csv")
		}
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, forecast.ErrMainAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, forecast.ErrAmbiguousTransfer):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
