package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/tasks"
)

type taskResponse struct {
	Task any `json:"task"`
}

type deletedTaskResponse struct {
	Success bool       `json:"success"`
	Task    model.Task `json:"task"`
}

// handleAgentTasks lists an agent's tasks in work order. Done tasks are
// hidden unless includeDone=true.
func (s *Server) handleAgentTasks(w http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimSpace(chi.URLParam(r, "id"))
	if agentID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "agent id is required")
		return
	}
	includeDone, err := queryBool(r, "includeDone")
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	list, err := s.svc.Tasks.ForAgent(r.Context(), agentID, includeDone)
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.svc.Tasks.List(r.Context(), tasks.ListInput{
		Status:         q.Get("status"),
		ProjectID:      q.Get("projectId"),
		OrganizationID: q.Get("organizationId"),
		ParentID:       q.Get("parentId"),
	})
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.CreateInput
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := s.svc.Tasks.Create(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusCreated, taskResponse{Task: t})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusOK, taskResponse{Task: view})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.UpdateInput
	if !decodeBody(w, r, &req) {
		return
	}
	mut, err := s.svc.Tasks.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusOK, mut)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Tasks.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusOK, deletedTaskResponse{Success: true, Task: t})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.svc.Tasks.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req tasks.CommentInput
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Tasks.AddComment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"comment": res})
}

func (s *Server) handleListSubtasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Tasks.ListSubtasks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"subtasks": list})
}

type createSubtasksRequest struct {
	Subtasks []tasks.SubtaskInput `json:"subtasks"`
}

func (s *Server) handleCreateSubtasks(w http.ResponseWriter, r *http.Request) {
	var req createSubtasksRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := s.svc.Tasks.CreateSubtasks(r.Context(), chi.URLParam(r, "id"), req.Subtasks)
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"created": created})
}

type bulkUpdateRequest struct {
	TaskIDs []string               `json:"taskIds"`
	Updates tasks.BulkUpdateFields `json:"updates"`
}

type bulkTaskIDsRequest struct {
	TaskIDs []string `json:"taskIds"`
}

func (s *Server) handleBulkUpdateTasks(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Tasks.BulkUpdate(r.Context(), req.TaskIDs, req.Updates)
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":      res.Success,
		"updatedCount": res.Count,
		"missing":      res.Missing,
	})
}

func (s *Server) handleBulkDeleteTasks(w http.ResponseWriter, r *http.Request) {
	var req bulkTaskIDsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Tasks.BulkDelete(r.Context(), req.TaskIDs)
	if err != nil {
		s.respondServiceError(w, r, "task", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":      res.Success,
		"deletedCount": res.Count,
		"missing":      res.Missing,
	})
}
