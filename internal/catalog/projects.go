package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/store"
	"github.com/ent0n29/sashi/internal/viewcache"
)

type ProjectInput struct {
	Name           *string `json:"name"`
	OrganizationID *string `json:"organizationId"`
	Color          *string `json:"color"`
	Icon           *string `json:"icon"`
	Type           *string `json:"type"`
}

type ProjectDetail struct {
	model.Project
	Organization *model.Organization `json:"organization"`
	Tasks        []model.Task        `json:"tasks"`
}

type ProjectMutation struct {
	Project  model.Project  `json:"project"`
	Previous *model.Project `json:"previous,omitempty"`
}

// ListProjects returns projects by name, optionally within one organization.
func (s *Service) ListProjects(ctx context.Context, organizationID string) ([]model.Project, error) {
	organizationID = strings.TrimSpace(organizationID)
	key := viewcache.ViewProjects
	var filter *string
	if organizationID != "" {
		key += ":" + organizationID
		filter = &organizationID
	}
	return cachedView(ctx, s, key, func(ctx context.Context) ([]model.Project, error) {
		out, err := s.store.ListProjects(ctx, filter)
		if err != nil {
			return nil, s.report.Wrap("projects.list", organizationID, err)
		}
		return out, nil
	})
}

func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (model.Project, error) {
	name := strings.TrimSpace(model.StringValue(in.Name))
	if name == "" {
		return model.Project{}, model.NewValidationError("name", "name is required")
	}
	p := model.Project{
		ID:             model.NewID(),
		Name:           name,
		OrganizationID: trimmedPtr(in.OrganizationID),
		Color:          trimmedPtr(in.Color),
		Icon:           trimmedPtr(in.Icon),
		Type:           trimmedPtr(in.Type),
		CreatedAt:      s.now(),
	}
	if err := s.checkOrganization(ctx, p.OrganizationID); err != nil {
		return model.Project{}, err
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return model.Project{}, s.report.Wrap("projects.create", p.ID, err)
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (ProjectDetail, error) {
	id = strings.TrimSpace(id)
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return ProjectDetail{}, s.report.Wrap("projects.get", id, err)
	}
	detail := ProjectDetail{Project: p}
	if orgID := model.StringValue(p.OrganizationID); orgID != "" {
		org, err := s.store.GetOrganization(ctx, orgID)
		switch {
		case err == nil:
			detail.Organization = &org
		case !errors.Is(err, model.ErrNotFound):
			return ProjectDetail{}, s.report.Wrap("projects.get", id, err)
		}
	}
	detail.Tasks, err = s.store.ListTasks(ctx, store.TaskFilter{ProjectID: &id})
	if err != nil {
		return ProjectDetail{}, s.report.Wrap("projects.get", id, err)
	}
	return detail, nil
}

func (s *Service) UpdateProject(ctx context.Context, id string, in ProjectInput) (ProjectMutation, error) {
	id = strings.TrimSpace(id)
	current, err := s.store.GetProject(ctx, id)
	if err != nil {
		return ProjectMutation{}, s.report.Wrap("projects.update", id, err)
	}
	previous := current
	next := current
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return ProjectMutation{}, model.NewValidationError("name", "name cannot be empty")
		}
		next.Name = name
	}
	if in.OrganizationID != nil {
		next.OrganizationID = trimmedPtr(in.OrganizationID)
		if err := s.checkOrganization(ctx, next.OrganizationID); err != nil {
			return ProjectMutation{}, err
		}
	}
	if in.Color != nil {
		next.Color = trimmedPtr(in.Color)
	}
	if in.Icon != nil {
		next.Icon = trimmedPtr(in.Icon)
	}
	if in.Type != nil {
		next.Type = trimmedPtr(in.Type)
	}
	if err := s.store.UpdateProject(ctx, next); err != nil {
		return ProjectMutation{}, s.report.Wrap("projects.update", id, err)
	}
	s.invalidate(ctx)
	return ProjectMutation{Project: next, Previous: &previous}, nil
}

func (s *Service) DeleteProject(ctx context.Context, id string) (model.Project, error) {
	id = strings.TrimSpace(id)
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return model.Project{}, s.report.Wrap("projects.delete", id, err)
	}
	removed, err := s.store.DeleteProject(ctx, id)
	if err != nil {
		return model.Project{}, s.report.Wrap("projects.delete", id, err)
	}
	if !removed {
		return model.Project{}, model.NotFound("project", id)
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *Service) checkOrganization(ctx context.Context, id *string) error {
	if id == nil {
		return nil
	}
	if _, err := s.store.GetOrganization(ctx, *id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewValidationError("organizationId", "organization does not exist")
		}
		return s.report.Wrap("projects.check_organization", *id, err)
	}
	return nil
}
