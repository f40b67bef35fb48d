package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/notify"
)

type notificationResponse struct {
	Notification model.Notification `json:"notification"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	undelivered, err := queryBool(r, "undelivered")
	if err != nil {
		s.respondServiceError(w, r, "notification", err)
		return
	}
	unread, err := queryBool(r, "unread")
	if err != nil {
		s.respondServiceError(w, r, "notification", err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondServiceError(w, r, "notification", err)
		return
	}
	list, err := s.svc.Notifications.List(r.Context(), notify.ListInput{
		AgentID:     r.URL.Query().Get("agentId"),
		Undelivered: undelivered,
		Unread:      unread,
		Limit:       limit,
	})
	if err != nil {
		s.respondServiceError(w, r, "notification", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req notify.CreateInput
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := s.svc.Notifications.Create(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "notification", err)
		return
	}
	respondJSON(w, http.StatusCreated, notificationResponse{Notification: n})
}

func (s *Server) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Notifications.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "notification", err)
		return
	}
	respondJSON(w, http.StatusOK, notificationResponse{Notification: n})
}

// handleUpdateNotification answers with the updated record itself.
func (s *Server) handleUpdateNotification(w http.ResponseWriter, r *http.Request) {
	var req notify.FlagsInput
	if !decodeBody(w, r, &req) {
		return
	}
	mut, err := s.svc.Notifications.UpdateFlags(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondServiceError(w, r, "notification", err)
		return
	}
	respondJSON(w, http.StatusOK, mut.Notification)
}
