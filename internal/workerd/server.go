package workerd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"memedex/internal/config"
	"memedex/internal/logging"
)

// Server exposes the worker's job intake API.
type Server struct {
	cfg    *config.Config
	queue  *JobQueue
	worker *Worker
	logger *slog.Logger
	http   *http.Server
}

// NewServer builds the HTTP front for the job queue.
func NewServer(cfg *config.Config, queue *JobQueue, worker *Worker, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		queue:  queue,
		worker: worker,
		logger: logging.WithComponent(logger, "workerapi"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.handleSubmit)
	mux.HandleFunc("POST /jobs/cancel", s.handleCancel)
	mux.HandleFunc("GET /jobs/queue-depth", s.handleQueueDepth)
	s.http = &http.Server{
		Addr:         cfg.Worker.Bind,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start begins serving on the configured bind address.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	s.logger.Info("job API listening", logging.String("bind", s.http.Addr))
	go func() {
		if serveErr := s.http.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("job API server stopped", logging.Error(serveErr))
		}
	}()
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type submitPayload struct {
	ItemID     int64  `json:"item_id"`
	SourcePath string `json:"source_path"`
	ModelID    string `json:"model_id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.ItemID <= 0 || payload.SourcePath == "" {
		writeError(w, http.StatusBadRequest, "item_id and source_path are required")
		return
	}
	if !s.cfg.ModelAllowed(payload.ModelID) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("model %q is not available", payload.ModelID))
		return
	}

	jobID, err := s.queue.Enqueue(r.Context(), payload.ItemID, payload.SourcePath, payload.ModelID)
	if err != nil {
		s.logger.Error("enqueue failed", logging.ItemID(payload.ItemID), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	s.logger.Info("job accepted",
		logging.ItemID(payload.ItemID),
		logging.Int64("job_id", jobID),
		logging.String("model", payload.ModelID),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}

type cancelPayload struct {
	ItemID int64 `json:"item_id"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var payload cancelPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.ItemID <= 0 {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}
	if err := s.worker.CancelItem(r.Context(), payload.ItemID); err != nil {
		s.logger.Error("cancel failed", logging.ItemID(payload.ItemID), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (s *Server) handleQueueDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := s.queue.Depth(r.Context())
	if err != nil {
		s.logger.Error("queue depth read failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read queue depth")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue_length": depth})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
