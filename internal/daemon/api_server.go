package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tabshot/internal/api"
	"tabshot/internal/capture"
	"tabshot/internal/config"
	"tabshot/internal/logging"
	"tabshot/internal/services"
	"tabshot/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	thumbs *api.ThumbnailService

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
		thumbs: api.NewThumbnailService(d.store),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.log()))
	r.Use(httpMetrics)

	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(token))
		r.Get("/status", s.handleStatus)
		r.Get("/thumbnails", s.handleThumbnails)
		r.Get("/thumbnails/{id}", s.handleThumbnail)
		r.Get("/thumbnails/{id}/image", s.handleThumbnailImage)
		r.Delete("/thumbnails/{id}", s.handleDeleteThumbnail)
		r.Get("/events", s.handleEvents)
		r.Post("/batches", s.handleSubmitBatch)
		r.Post("/batches/cancel", s.handleCancelBatch)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

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
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleThumbnails(w http.ResponseWriter, r *http.Request) {
	var statuses []store.Status
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		parsed, ok := store.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(value))
			return
		}
		statuses = append(statuses, parsed)
	}
	items, err := s.thumbs.List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ThumbnailListResponse{Items: items})
}

func (s *apiServer) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	rec, err := s.daemon.Describe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ThumbnailResponse{Item: api.FromRecord(rec)})
}

func (s *apiServer) handleThumbnailImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := s.daemon.Image(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *apiServer) handleDeleteThumbnail(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	var wait time.Duration
	if raw := strings.TrimSpace(query.Get("wait")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			seconds, convErr := strconv.Atoi(raw)
			if convErr != nil {
				s.writeError(w, http.StatusBadRequest, "invalid wait "+strconv.Quote(raw))
				return
			}
			parsed = time.Duration(seconds) * time.Second
		}
		wait = parsed
	}

	evts, next, err := s.daemon.Events(r.Context(), since, limit, wait)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.writeServiceError(w, err)
		return
	}
	if evts == nil {
		evts = []api.Event{}
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: evts, Next: next})
}

func (s *apiServer) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitBatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := services.WithRequestID(r.Context(), requestID(r))
	batchID, err := s.daemon.SubmitBatch(ctx, req.URLs, capture.Options{
		ForceActive: req.ForceActive,
		SettleDelay: time.Duration(req.SettleDelayMS) * time.Millisecond,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.SubmitBatchResponse{BatchID: batchID, Total: s.daemon.capture.Status().Total})
}

func (s *apiServer) handleCancelBatch(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: s.daemon.CancelBatch()})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeServiceError maps error markers onto HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, capture.ErrBatchInFlight):
		status = http.StatusConflict
	case errors.Is(err, services.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrCaptureUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log().Error("api request failed", logging.Error(err))
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: services.Kind(err)})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
