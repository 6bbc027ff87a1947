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

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  cfg.Paths.APIToken,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(srv.token, srv.handleStatus))
	mux.HandleFunc("/api/queue", authMiddleware(srv.token, srv.handleQueue))
	mux.HandleFunc("/api/queue/", authMiddleware(srv.token, srv.handleQueueItem))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
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
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
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

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listQueue(w, r)
	case http.MethodPost:
		s.enqueue(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listQueue(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}

	items, err := s.daemon.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, newItemView(item))
	}
	s.writeJSON(w, http.StatusOK, queueListResponse{Items: views})
}

func (s *apiServer) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.PromptJSON) == 0 {
		s.writeError(w, http.StatusBadRequest, "prompt_json is required")
		return
	}

	ctx := r.Context()
	promptJSON := string(req.PromptJSON)

	generationID := req.GenerationID
	if generationID == 0 {
		gen, err := s.daemon.store.CreateGeneration(ctx, promptJSON)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		generationID = gen.ID
	}

	item, err := s.daemon.store.Enqueue(ctx, queue.NewItem{
		PromptJSON:           promptJSON,
		GenerationID:         generationID,
		ReferencePhotoIDs:    req.ReferencePhotoIDs,
		InlineReferencePaths: req.InlineReferencePaths,
		GoogleSearch:         req.GoogleSearch,
		SafetyOverride:       req.SafetyOverride,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.daemon.worker.Kick()
	s.writeJSON(w, http.StatusAccepted, queueItemResponse{Item: newItemView(item)})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	idStr, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.describeItem(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		s.removeItem(w, r, id)
	case sub == "status" && r.Method == http.MethodGet:
		s.itemStatus(w, r, id)
	case sub == "" || sub == "status":
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) describeItem(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}

	resp := queueItemResponse{Item: newItemView(item)}
	if item.HasGeneration() {
		gen, err := s.daemon.store.GetGeneration(r.Context(), item.GenerationID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if gen != nil {
			view := newGenerationView(gen)
			resp.Generation = &view
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) itemStatus(w http.ResponseWriter, r *http.Request, id int64) {
	snapshot, err := s.daemon.store.QueueStatus(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *apiServer) removeItem(w http.ResponseWriter, r *http.Request, id int64) {
	err := s.daemon.store.Delete(r.Context(), id)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	case errors.Is(err, queue.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "queue item not found")
	case errors.Is(err, queue.ErrInvalidState):
		s.writeError(w, http.StatusConflict, "item already finished")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
