package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/sashi/internal/catalog"
	"github.com/ent0n29/sashi/internal/model"
)

type deletedOrganizationResponse struct {
	Success      bool               `json:"success"`
	Organization model.Organization `json:"organization"`
}

type deletedProjectResponse struct {
	Success bool          `json:"success"`
	Project model.Project `json:"project"`
}

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.svc.Catalog.ListOrganizations(r.Context())
	if err != nil {
		s.respondServiceError(w, r, "organization", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req catalog.OrganizationInput
	if !decodeBody(w, r, &req) {
		return
	}
	org, err := s.svc.Catalog.CreateOrganization(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "organization", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"organization": org})
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Catalog.GetOrganization(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "organization", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"organization": detail})
}

func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var req catalog.OrganizationInput
	if !decodeBody(w, r, &req) {
		return
	}
	mut, err := s.svc.Catalog.UpdateOrganization(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondServiceError(w, r, "organization", err)
		return
	}
	respondJSON(w, http.StatusOK, mut)
}

func (s *Server) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := s.svc.Catalog.DeleteOrganization(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "organization", err)
		return
	}
	respondJSON(w, http.StatusOK, deletedOrganizationResponse{Success: true, Organization: org})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Catalog.ListProjects(r.Context(), r.URL.Query().Get("organizationId"))
	if err != nil {
		s.respondServiceError(w, r, "project", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req catalog.ProjectInput
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.svc.Catalog.CreateProject(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, "project", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"project": p})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Catalog.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "project", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"project": detail})
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req catalog.ProjectInput
	if !decodeBody(w, r, &req) {
		return
	}
	mut, err := s.svc.Catalog.UpdateProject(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondServiceError(w, r, "project", err)
		return
	}
	respondJSON(w, http.StatusOK, mut)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Catalog.DeleteProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, "project", err)
		return
	}
	respondJSON(w, http.StatusOK, deletedProjectResponse{Success: true, Project: p})
}
