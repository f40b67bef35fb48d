package httpapi

import (
	"net/http"

	"github.com/ent0n29/sashi/internal/activity"
)

// handleListActivity serves the feed newest first, filtered by agentId, type
// and since.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.svc.Activity.List(r.Context(), activity.ListInput{
		AgentID: q.Get("agentId"),
		Type:    q.Get("type"),
		Since:   q.Get("since"),
		Limit:   q.Get("limit"),
	})
	if err != nil {
		s.respondServiceError(w, r, "activity", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"activity": list})
}

func (s *Server) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	var req activity.LogInput
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.svc.Activity.Log(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "activity", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"activity": a})
}
