package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"memedex/internal/api"
	"memedex/internal/broadcast"
	"memedex/internal/bulkops"
	"memedex/internal/catalog"
	"memedex/internal/config"
	"memedex/internal/gateway"
	"memedex/internal/logging"
	"memedex/internal/scanner"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.WithComponent(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()

	// Worker callbacks.
	mux.HandleFunc("POST /callbacks/status", srv.handleStatusCallback)
	mux.HandleFunc("POST /callbacks/result", srv.handleResultCallback)

	// Items.
	mux.HandleFunc("GET /api/items", srv.handleListItems)
	mux.HandleFunc("GET /api/items/{id}", srv.handleGetItem)
	mux.HandleFunc("POST /api/items/{id}/generate", srv.handleGenerate)
	mux.HandleFunc("POST /api/items/{id}/cancel", srv.handleCancel)
	mux.HandleFunc("POST /api/items/{id}/regenerate", srv.handleRegenerate)

	// Bulk operations.
	mux.HandleFunc("POST /bulk", srv.handleBulkStart)
	mux.HandleFunc("GET /bulk/{id}", srv.handleBulkStatus)
	mux.HandleFunc("POST /bulk/{id}/cancel", srv.handleBulkCancel)

	// Sources.
	mux.HandleFunc("GET /api/sources", srv.handleListSources)
	mux.HandleFunc("POST /api/sources", srv.handleAddSource)
	mux.HandleFunc("POST /api/sources/{id}/scan", srv.handleScanSource)
	mux.HandleFunc("POST /api/sources/{id}/reset-failures", srv.handleResetFailures)
	mux.HandleFunc("POST /api/sources/{id}/auto-scan", srv.handleSetAutoScan)

	// Observability.
	mux.Handle("GET /api/events", broadcast.Handler(d.hub, logger))
	mux.HandleFunc("GET /api/status", srv.handleStatus)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
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

func (s *apiServer) stop() {
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

type statusCallbackPayload struct {
	ItemID int64 `json:"item_id"`
	Status int   `json:"status"`
}

func (s *apiServer) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	var payload statusCallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := s.daemon.receiver.OnStatus(r.Context(), payload.ItemID, payload.Status); err != nil {
		if errors.Is(err, gateway.ErrInvalidPayload) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

type resultCallbackPayload struct {
	ItemID int64  `json:"item_id"`
	Text   string `json:"text"`
}

func (s *apiServer) handleResultCallback(w http.ResponseWriter, r *http.Request) {
	var payload resultCallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := s.daemon.receiver.OnResult(r.Context(), payload.ItemID, payload.Text); err != nil {
		if errors.Is(err, gateway.ErrInvalidPayload) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func (s *apiServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.daemon.store.ListItems(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemListResponse{Items: api.FromItems(items)})
}

func (s *apiServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	item, err := s.daemon.store.GetItem(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: api.FromItem(item)})
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var payload api.GenerateRequest
	_ = json.NewDecoder(r.Body).Decode(&payload)

	applied, err := s.daemon.gateway.Submit(r.Context(), id, payload.Model)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ActionResponse{Applied: applied})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	applied, err := s.daemon.gateway.Cancel(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ActionResponse{Applied: applied})
}

func (s *apiServer) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var payload api.GenerateRequest
	_ = json.NewDecoder(r.Body).Decode(&payload)

	applied, err := s.daemon.gateway.Regenerate(r.Context(), id, payload.Model)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ActionResponse{Applied: applied})
}

func (s *apiServer) handleBulkStart(w http.ResponseWriter, r *http.Request) {
	session := ensureSession(w, r)

	var payload api.BulkStartRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	filter := catalog.Filter{
		SourceID:           payload.SourceID,
		NameContains:       payload.NameContains,
		MissingDescription: payload.MissingDescription,
	}
	if trimmed := strings.TrimSpace(payload.Status); trimmed != "" {
		status, valid := catalog.ParseStatus(trimmed)
		if !valid {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
			return
		}
		filter.Status = &status
	}

	record, err := s.daemon.bulk.Start(r.Context(), session, filter, payload.Model)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.BulkStartResponse{
		OperationID: record.OperationID,
		TotalCount:  record.TotalCount,
		StartedAt:   record.StartedAt,
	})
}

func (s *apiServer) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	session := ensureSession(w, r)
	progress, err := s.daemon.bulk.Status(r.Context(), session, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, bulkops.ErrNoOperation) {
			s.writeError(w, http.StatusNotFound, "no such bulk operation for this session")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.BulkProgressResponse{
		OperationID: progress.OperationID,
		Counts:      progress.Counts,
		TotalCount:  progress.Total,
		IsComplete:  progress.IsComplete,
		StartedAt:   progress.StartedAt,
	})
}

func (s *apiServer) handleBulkCancel(w http.ResponseWriter, r *http.Request) {
	session := ensureSession(w, r)
	cancelled, err := s.daemon.bulk.Cancel(r.Context(), session, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, bulkops.ErrNoOperation) {
			s.writeError(w, http.StatusNotFound, "no such bulk operation for this session")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.BulkCancelResponse{Cancelled: cancelled})
}

func (s *apiServer) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.daemon.store.ListSources(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SourceListResponse{Sources: api.FromSources(sources)})
}

func (s *apiServer) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var payload api.AddSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Path) == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	source, err := s.daemon.store.AddSource(r.Context(), payload.Path, payload.Title, payload.AutoScanFrequency)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SourceResponse{Source: api.FromSource(source)})
}

func (s *apiServer) handleScanSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.scheduler.TriggerScan(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, scanner.ErrSourceUnknown):
			s.writeError(w, http.StatusNotFound, "source not found")
		case errors.Is(err, scanner.ErrSourceBusy):
			s.writeError(w, http.StatusConflict, "scan already in progress")
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"scanned": true})
}

func (s *apiServer) handleResetFailures(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.store.ResetFailures(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

type autoScanPayload struct {
	Enabled bool `json:"enabled"`
}

func (s *apiServer) handleSetAutoScan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var payload autoScanPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := s.daemon.store.SetAutoScan(r.Context(), id, payload.Enabled); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": payload.Enabled})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:       status.Running,
		CatalogDBPath: status.CatalogDBPath,
		LockFilePath:  status.LockFilePath,
		Stats:         api.FromStats(status.Stats),
	}
	if depth, err := s.daemon.gateway.QueueDepth(r.Context()); err == nil {
		payload.WorkerReachable = true
		payload.WorkerQueueDepth = depth
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func filterFromQuery(r *http.Request) (catalog.Filter, error) {
	var filter catalog.Filter
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("source_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid source_id %q", raw)
		}
		filter.SourceID = id
	}
	filter.NameContains = query.Get("name_contains")
	if value := query.Get("missing_description"); value == "1" || strings.EqualFold(value, "true") {
		filter.MissingDescription = true
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, valid := catalog.ParseStatus(raw)
		if !valid {
			return filter, fmt.Errorf("unknown status %q", raw)
		}
		filter.Status = &status
	}
	return filter, nil
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
