package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/sashi/internal/inbox"
	"github.com/ent0n29/sashi/internal/model"
)

type inboxItemResponse struct {
	Item model.InboxItem `json:"item"`
}

func (s *Server) handleListInbox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := s.svc.Inbox.ResolveLimit(q.Get("limit"), q.Get("view"))
	if err != nil {
		s.respondServiceError(w, r, "inbox_item", err)
		return
	}
	items, err := s.svc.Inbox.List(r.Context(), inbox.ListInput{Type: q.Get("type"), Limit: limit})
	if err != nil {
		s.respondServiceError(w, r, "inbox_item", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCaptureInbox(w http.ResponseWriter, r *http.Request) {
	var req inbox.CaptureInput
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.svc.Inbox.Capture(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "inbox_item", err)
		return
	}
	respondJSON(w, http.StatusCreated, inboxItemResponse{Item: item})
}

func (s *Server) handleGetInboxItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.Inbox.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "inbox_item", err)
		return
	}
	respondJSON(w, http.StatusOK, inboxItemResponse{Item: item})
}

func (s *Server) handleDeleteInboxItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Inbox.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, "inbox_item", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}
