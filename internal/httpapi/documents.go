package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/sashi/internal/catalog"
)

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.svc.Catalog.ListNotes(r.Context())
	if err != nil {
		s.respondServiceError(w, r, "note", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// handleCreateNote accepts an empty body; title and content both default.
func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req catalog.NoteInput
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	note, err := s.svc.Catalog.CreateNote(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "note", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"note": note})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.svc.Catalog.GetNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "note", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"note": note})
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req catalog.NoteInput
	if !decodeBody(w, r, &req) {
		return
	}
	note, err := s.svc.Catalog.UpdateNote(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondServiceError(w, r, "note", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"note": note})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Catalog.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, "note", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondServiceError(w, r, "report", err)
		return
	}
	reports, err := s.svc.Catalog.ListReports(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		s.respondServiceError(w, r, "report", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req catalog.ReportInput
	if !decodeBody(w, r, &req) {
		return
	}
	report, err := s.svc.Catalog.CreateReport(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "report", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"report": report})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Catalog.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "report", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Catalog.DeleteReport(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, "report", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleListGauntletRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondServiceError(w, r, "run", err)
		return
	}
	runs, err := s.svc.Catalog.ListGauntletRuns(r.Context(), limit)
	if err != nil {
		s.respondServiceError(w, r, "run", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleCreateGauntletRun(w http.ResponseWriter, r *http.Request) {
	var req catalog.GauntletRunInput
	if !decodeBody(w, r, &req) {
		return
	}
	run, err := s.svc.Catalog.CreateGauntletRun(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "run", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"run": run})
}

func (s *Server) handleGetGauntletRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.Catalog.GetGauntletRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "run", err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteGauntletRun(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Catalog.DeleteGauntletRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, "run", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}
