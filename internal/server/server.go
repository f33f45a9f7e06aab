// Package server exposes searches as background jobs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/optimism/internal/config"
	"github.com/cwbudde/optimism/internal/problem"
	"github.com/cwbudde/optimism/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      store.Store
	addr       string
	server     *http.Server

	// ProgressInterval throttles progress events of running jobs.
	ProgressInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new HTTP server. Reports of finished jobs are saved to
// reportStore when it is not nil.
func NewServer(addr string, reportStore store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager:       NewJobManager(DefaultRetention),
		store:            reportStore,
		addr:             addr,
		ProgressInterval: DefaultProgressInterval,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Handler returns the routes wrapped in the server's middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/problems", s.handleProblems)
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels running jobs, waits for them to record their final state
// and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.cancel()
	s.jobManager.CancelAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Jobs still running at shutdown deadline")
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// submit creates a job and starts it in the background.
func (s *Server) submit(cfg config.RunConfig) Job {
	job := s.jobManager.CreateJob(cfg)
	ctx := s.jobManager.attach(s.ctx, job.ID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := runJob(ctx, s.jobManager, s.store, job.ID, s.ProgressInterval); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Job error", "job_id", job.ID, "error", err)
		}
	}()
	return job
}

// handleProblems handles GET /api/v1/problems
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	var out []entry
	for _, name := range problem.Names() {
		p, _ := problem.Get(name)
		out = append(out, entry{Name: p.Name, Description: p.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	if len(parts) == 1 && r.Method == http.MethodDelete {
		s.handleCancelJob(w, r, jobID)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case len(parts) == 1:
		s.handleGetJob(w, r, jobID)
	case parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == "top":
		s.handleGetTop(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	case parts[1] == "report":
		s.handleGetReport(w, r, jobID)
	case parts[1] == "trace":
		s.handleGetTrace(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs. Omitted fields take the
// defaults of config.Default.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	cfg := config.Default()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := problem.Get(cfg.Problem); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.submit(cfg)
	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetJob handles GET /api/v1/jobs/:id
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// StatusResponse is the body of GET /api/v1/jobs/:id/status.
type StatusResponse struct {
	ID             string     `json:"id"`
	State          JobState   `json:"state"`
	Problem        string     `json:"problem"`
	Steps          int        `json:"steps"`
	IterationCount int64      `json:"iterationCount"`
	BestScore      float64    `json:"bestScore"`
	PerfectScore   float64    `json:"perfectScore"`
	Portion        float64    `json:"portion"`
	Converged      bool       `json:"converged"`
	Reason         string     `json:"reason,omitempty"`
	Elapsed        float64    `json:"elapsed"`
	StepsPerSecond float64    `json:"stepsPerSecond"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	elapsed := job.Elapsed()
	var sps float64
	if elapsed.Seconds() > 0 {
		sps = float64(job.Steps) / elapsed.Seconds()
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		ID:             job.ID,
		State:          job.State,
		Problem:        job.Config.Problem,
		Steps:          job.Steps,
		IterationCount: job.IterationCount,
		BestScore:      job.BestScore,
		PerfectScore:   job.PerfectScore,
		Portion:        job.Portion(),
		Converged:      job.Converged,
		Reason:         job.Reason,
		Elapsed:        elapsed.Seconds(),
		StepsPerSecond: sps,
		StartTime:      job.StartTime,
		EndTime:        job.EndTime,
		Error:          job.Error,
	})
}

// handleGetTop handles GET /api/v1/jobs/:id/top?n=
func (s *Server) handleGetTop(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	n := job.Config.Top
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		n = v
	}

	top := job.Top
	if len(top) > n {
		top = top[:n]
	}
	if top == nil {
		top = []store.ReportEntry{}
	}
	writeJSON(w, http.StatusOK, top)
}

// handleGetReport handles GET /api/v1/jobs/:id/report
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.store == nil {
		http.Error(w, "Reports are not stored", http.StatusNotFound)
		return
	}
	rep, err := s.store.LoadReport(jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleGetTrace handles GET /api/v1/jobs/:id/trace
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.store == nil {
		http.Error(w, "Traces are not stored", http.StatusNotFound)
		return
	}
	entries, err := s.store.ReadTrace(jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Trace not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleCancelJob handles DELETE /api/v1/jobs/:id
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.CancelJob(jobID) {
		http.Error(w, fmt.Sprintf("Job already %s", job.State), http.StatusConflict)
		return
	}
	slog.Info("Job cancellation requested", "job_id", jobID)
	job, _ = s.jobManager.GetJob(jobID)
	writeJSON(w, http.StatusAccepted, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
