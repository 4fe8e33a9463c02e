// Package api serves the read-only HTTP surface of the orchestrator:
// liveness, run status, review and topic queues, and Prometheus metrics.
// All mutation happens through the CLI; the API never writes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/metrics"
	"showrunner/internal/pipeline"
	"showrunner/internal/review"
	"showrunner/internal/stage"
	"showrunner/internal/store"
	"showrunner/internal/topicqueue"
)

const defaultRunListLimit = 30

// Options wires the server's read-side collaborators.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *store.DB
	Runs     *pipeline.Store
	Registry *stage.Registry
	Reviews  *review.Queue
	Topics   *topicqueue.Queue
}

// Server is the HTTP API. A nil *Server is valid and inert, matching an
// empty bind address in config.
type Server struct {
	bind     string
	logger   *slog.Logger
	db       *store.DB
	runs     *pipeline.Store
	registry *stage.Registry
	reviews  *review.Queue
	topics   *topicqueue.Queue

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// New builds the server. Returns nil when no bind address is configured.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	bind := strings.TrimSpace(opts.Config.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	if opts.Runs == nil {
		return nil, errors.New("run store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		bind:     bind,
		logger:   logging.NewComponentLogger(logger, "api"),
		db:       opts.DB,
		runs:     opts.Runs,
		registry: opts.Registry,
		reviews:  opts.Reviews,
		topics:   opts.Topics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	mux.HandleFunc("/api/reviews", s.handleReviews)
	mux.HandleFunc("/api/topics", s.handleTopics)
	mux.Handle("/metrics", metrics.Handler())
	s.handler = s.requestID(mux)

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler exposes the route table without a listener (tests).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// requestIDHeader carries the correlation identifier on requests and
// responses. Clients may supply their own; otherwise one is generated.
const requestIDHeader = "X-Request-ID"

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := logging.WithRequestID(r.Context(), id)
		attrs := append(logging.ContextFields(ctx),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		s.logger.LogAttrs(ctx, slog.LevelDebug, "api request", attrs...)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down outside of context cancellation.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{Status: "ok"}
	if s.db != nil {
		if _, err := s.db.CheckHealth(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
		}
	}
	if s.registry != nil {
		for _, h := range s.registry.HealthChecks(r.Context()) {
			resp.Stages = append(resp.Stages, StageHealth{
				Stage:  h.Name,
				Ready:  h.Ready,
				Detail: h.Detail,
			})
			if !h.Ready {
				resp.Status = "degraded"
			}
		}
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	runs, err := s.runs.List(r.Context(), defaultRunListLimit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := StatusResponse{Runs: summarizeRuns(runs)}
	if s.reviews != nil {
		pending, err := s.reviews.List(r.Context(), review.Filter{Status: review.StatusPending})
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.PendingReviews = len(pending)
	}
	if s.topics != nil {
		queued, err := s.topics.List(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.QueuedTopics = len(queued)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runs, err := s.runs.List(r.Context(), defaultRunListLimit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, RunListResponse{Runs: summarizeRuns(runs)})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	date := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if date == "" || strings.Contains(date, "/") {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := s.runs.Get(r.Context(), date)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, RunDetailResponse{Run: run})
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.reviews == nil {
		s.writeJSON(w, http.StatusOK, ReviewListResponse{})
		return
	}

	filter := review.Filter{
		Status:     review.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
		PipelineID: strings.TrimSpace(r.URL.Query().Get("pipeline")),
	}
	items, err := s.reviews.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ReviewListResponse{Items: items})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.topics == nil {
		s.writeJSON(w, http.StatusOK, TopicListResponse{})
		return
	}
	topics, err := s.topics.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, TopicListResponse{Topics: topics})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("api response encode failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, ErrorResponse{Error: message})
}
