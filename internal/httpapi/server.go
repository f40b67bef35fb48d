package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/sashi/internal/activity"
	"github.com/ent0n29/sashi/internal/catalog"
	"github.com/ent0n29/sashi/internal/config"
	"github.com/ent0n29/sashi/internal/events"
	"github.com/ent0n29/sashi/internal/inbox"
	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/notify"
	"github.com/ent0n29/sashi/internal/observability"
	"github.com/ent0n29/sashi/internal/queue"
	"github.com/ent0n29/sashi/internal/store"
	"github.com/ent0n29/sashi/internal/tasks"
)

// Services groups the domain services the API fronts.
type Services struct {
	Queue         *queue.Service
	Tasks         *tasks.Service
	Notifications *notify.Service
	Inbox         *inbox.Service
	Catalog       *catalog.Service
	Activity      *activity.Service
}

type Server struct {
	cfg      config.Config
	svc      Services
	store    store.Store
	hub      *events.Hub
	metrics  *observability.Metrics
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, svc Services, st store.Store, hub *events.Hub, metrics *observability.Metrics, log zerolog.Logger) *Server {
	if metrics == nil {
		metrics = observability.Discard()
	}
	return &Server{
		cfg:     cfg,
		svc:     svc,
		store:   st,
		hub:     hub,
		metrics: metrics,
		log:     log.With().Str("component", "httpapi").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers may only subscribe from the same origin.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/overview", s.handleOverview)
		r.Get("/events/ws", s.handleEventsWS)

		r.Get("/queue", s.handleListQueue)
		r.Post("/queue", s.handleCreateQueueItem)
		r.Get("/queue/{id}", s.handleGetQueueItem)
		r.Patch("/queue/{id}", s.handleUpdateQueueItem)
		r.Delete("/queue/{id}", s.handleDeleteQueueItem)

		r.Get("/agents/{id}/tasks", s.handleAgentTasks)
		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks", s.handleCreateTask)
		r.Patch("/tasks/bulk", s.handleBulkUpdateTasks)
		r.Delete("/tasks/bulk", s.handleBulkDeleteTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Patch("/tasks/{id}", s.handleUpdateTask)
		r.Delete("/tasks/{id}", s.handleDeleteTask)
		r.Get("/tasks/{id}/comments", s.handleListComments)
		r.Post("/tasks/{id}/comments", s.handleAddComment)
		r.Get("/tasks/{id}/subtasks", s.handleListSubtasks)
		r.Post("/tasks/{id}/subtasks", s.handleCreateSubtasks)

		r.Get("/activity", s.handleListActivity)
		r.Post("/activity", s.handleLogActivity)

		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications", s.handleCreateNotification)
		r.Get("/notifications/{id}", s.handleGetNotification)
		r.Patch("/notifications/{id}", s.handleUpdateNotification)

		r.Get("/inbox", s.handleListInbox)
		r.Post("/inbox", s.handleCaptureInbox)
		r.Get("/inbox/{id}", s.handleGetInboxItem)
		r.Delete("/inbox/{id}", s.handleDeleteInboxItem)

		r.Get("/organizations", s.handleListOrganizations)
		r.Post("/organizations", s.handleCreateOrganization)
		r.Get("/organizations/{id}", s.handleGetOrganization)
		r.Patch("/organizations/{id}", s.handleUpdateOrganization)
		r.Delete("/organizations/{id}", s.handleDeleteOrganization)

		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleCreateProject)
		r.Get("/projects/{id}", s.handleGetProject)
		r.Patch("/projects/{id}", s.handleUpdateProject)
		r.Delete("/projects/{id}", s.handleDeleteProject)

		r.Get("/notes", s.handleListNotes)
		r.Post("/notes", s.handleCreateNote)
		r.Get("/notes/{id}", s.handleGetNote)
		r.Patch("/notes/{id}", s.handleUpdateNote)
		r.Delete("/notes/{id}", s.handleDeleteNote)

		r.Get("/reports", s.handleListReports)
		r.Post("/reports", s.handleCreateReport)
		r.Get("/reports/{id}", s.handleGetReport)
		r.Delete("/reports/{id}", s.handleDeleteReport)

		r.Get("/tools/idea-gauntlet", s.handleListGauntletRuns)
		r.Post("/tools/idea-gauntlet", s.handleCreateGauntletRun)
		r.Get("/tools/idea-gauntlet/{id}", s.handleGetGauntletRun)
		r.Delete("/tools/idea-gauntlet/{id}", s.handleDeleteGauntletRun)
	})

	return r
}

// instrument counts requests by matched route pattern so ids do not blow up
// label cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "store not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("readiness ping failed")
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "store is not reachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) storeMode() string {
	if s.store == nil {
		return "disabled"
	}
	return s.store.Mode()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type successResponse struct {
	Success bool `json:"success"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// decodeBody decodes a required JSON body and answers 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil {
		msg := err.Error()
		if errors.Is(err, errEmptyBody) {
			msg = "request body is required"
		}
		respondError(w, http.StatusBadRequest, "invalid_request", msg)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondServiceError maps the domain error taxonomy onto HTTP. Store
// failures never expose their diagnostics.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, entity string, err error) {
	switch {
	case model.IsValidation(err):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, model.ErrNotFound):
		respondError(w, http.StatusNotFound, entity+"_not_found", err.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, model.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", "the record was modified concurrently, retry the request")
	default:
		// Store errors were already logged and counted by the service.
		if !model.IsStore(err) {
			s.log.Error().Err(err).
				Str("op", r.Method+" "+r.URL.Path).
				Str("entity", entity).
				Msg("request failed")
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.NewValidationError(key, key+" must be a boolean")
	}
	return v, nil
}

// queryInt returns 0 when the parameter is absent so services apply their
// own default.
func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, model.NewValidationError(key, key+" must be a positive integer")
	}
	return n, nil
}
