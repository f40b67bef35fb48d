package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/sashi/internal/inbox"
	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/queue"
)

type queueItemResponse struct {
	Item model.QueueItem `json:"item"`
}

type deletedQueueItemResponse struct {
	Success bool            `json:"success"`
	Item    model.QueueItem `json:"item"`
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Queue.List(r.Context())
	if err != nil {
		s.respondServiceError(w, r, "queue_item", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCreateQueueItem(w http.ResponseWriter, r *http.Request) {
	var req queue.CreateInput
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.svc.Queue.Create(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "queue_item", err)
		return
	}
	respondJSON(w, http.StatusCreated, queueItemResponse{Item: item})
}

func (s *Server) handleGetQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.Queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "queue_item", err)
		return
	}
	respondJSON(w, http.StatusOK, queueItemResponse{Item: item})
}

func (s *Server) handleUpdateQueueItem(w http.ResponseWriter, r *http.Request) {
	var req queue.UpdateInput
	if !decodeBody(w, r, &req) {
		return
	}
	mut, err := s.svc.Queue.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondServiceError(w, r, "queue_item", err)
		return
	}
	respondJSON(w, http.StatusOK, mut)
}

func (s *Server) handleDeleteQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.Queue.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "queue_item", err)
		return
	}
	respondJSON(w, http.StatusOK, deletedQueueItemResponse{Success: true, Item: item})
}

type overviewResponse struct {
	Inbox       []model.InboxItem         `json:"inbox"`
	Queue       []model.QueueItem         `json:"queue"`
	QueueCounts map[model.QueueStatus]int `json:"queueCounts"`
}

// handleOverview serves the landing view: the newest inbox items and the
// queue with per-status counts.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	limit, err := s.svc.Inbox.ResolveLimit("", inbox.ViewLanding)
	if err != nil {
		s.respondServiceError(w, r, "inbox_item", err)
		return
	}
	items, err := s.svc.Inbox.List(r.Context(), inbox.ListInput{Limit: limit})
	if err != nil {
		s.respondServiceError(w, r, "inbox_item", err)
		return
	}
	queued, err := s.svc.Queue.List(r.Context())
	if err != nil {
		s.respondServiceError(w, r, "queue_item", err)
		return
	}
	respondJSON(w, http.StatusOK, overviewResponse{
		Inbox:       items,
		Queue:       queued,
		QueueCounts: queue.Counts(queued),
	})
}
