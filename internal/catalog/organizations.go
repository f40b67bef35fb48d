package catalog

import (
	"context"
	"strings"

	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/store"
	"github.com/ent0n29/sashi/internal/viewcache"
)

type OrganizationInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

// OrganizationSummary is an organization with its projects, as listed.
type OrganizationSummary struct {
	model.Organization
	Projects []model.Project `json:"projects"`
}

// OrganizationDetail adds the organization's tasks.
type OrganizationDetail struct {
	model.Organization
	Projects []model.Project `json:"projects"`
	Tasks    []model.Task    `json:"tasks"`
}

type OrganizationMutation struct {
	Organization model.Organization  `json:"organization"`
	Previous     *model.Organization `json:"previous,omitempty"`
}

// ListOrganizations returns organizations newest first, each with its
// projects.
func (s *Service) ListOrganizations(ctx context.Context) ([]OrganizationSummary, error) {
	return cachedView(ctx, s, viewcache.ViewOrganizations, s.loadOrganizations)
}

func (s *Service) loadOrganizations(ctx context.Context) ([]OrganizationSummary, error) {
	orgs, err := s.store.ListOrganizations(ctx)
	if err != nil {
		return nil, s.report.Wrap("organizations.list", "", err)
	}
	projects, err := s.store.ListProjects(ctx, nil)
	if err != nil {
		return nil, s.report.Wrap("organizations.list", "", err)
	}
	byOrg := make(map[string][]model.Project)
	for _, p := range projects {
		if id := model.StringValue(p.OrganizationID); id != "" {
			byOrg[id] = append(byOrg[id], p)
		}
	}
	out := make([]OrganizationSummary, 0, len(orgs))
	for _, o := range orgs {
		ps := byOrg[o.ID]
		if ps == nil {
			ps = []model.Project{}
		}
		out = append(out, OrganizationSummary{Organization: o, Projects: ps})
	}
	return out, nil
}

func (s *Service) CreateOrganization(ctx context.Context, in OrganizationInput) (model.Organization, error) {
	name := strings.TrimSpace(model.StringValue(in.Name))
	if name == "" {
		return model.Organization{}, model.NewValidationError("name", "name is required")
	}
	org := model.Organization{
		ID:          model.NewID(),
		Name:        name,
		Description: trimmedPtr(in.Description),
		Icon:        trimmedPtr(in.Icon),
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return model.Organization{}, s.report.Wrap("organizations.create", org.ID, err)
	}
	s.invalidate(ctx)
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id string) (OrganizationDetail, error) {
	id = strings.TrimSpace(id)
	org, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return OrganizationDetail{}, s.report.Wrap("organizations.get", id, err)
	}
	projects, err := s.store.ListProjects(ctx, &id)
	if err != nil {
		return OrganizationDetail{}, s.report.Wrap("organizations.get", id, err)
	}
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{OrganizationID: &id})
	if err != nil {
		return OrganizationDetail{}, s.report.Wrap("organizations.get", id, err)
	}
	return OrganizationDetail{Organization: org, Projects: projects, Tasks: tasks}, nil
}

func (s *Service) UpdateOrganization(ctx context.Context, id string, in OrganizationInput) (OrganizationMutation, error) {
	id = strings.TrimSpace(id)
	current, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return OrganizationMutation{}, s.report.Wrap("organizations.update", id, err)
	}
	previous := current
	next := current
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return OrganizationMutation{}, model.NewValidationError("name", "name cannot be empty")
		}
		next.Name = name
	}
	if in.Description != nil {
		next.Description = trimmedPtr(in.Description)
	}
	if in.Icon != nil {
		next.Icon = trimmedPtr(in.Icon)
	}
	if err := s.store.UpdateOrganization(ctx, next); err != nil {
		return OrganizationMutation{}, s.report.Wrap("organizations.update", id, err)
	}
	s.invalidate(ctx)
	return OrganizationMutation{Organization: next, Previous: &previous}, nil
}

// DeleteOrganization removes only the organization; projects and tasks keep
// their (now dangling) reference.
func (s *Service) DeleteOrganization(ctx context.Context, id string) (model.Organization, error) {
	id = strings.TrimSpace(id)
	org, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return model.Organization{}, s.report.Wrap("organizations.delete", id, err)
	}
	removed, err := s.store.DeleteOrganization(ctx, id)
	if err != nil {
		return model.Organization{}, s.report.Wrap("organizations.delete", id, err)
	}
	if !removed {
		return model.Organization{}, model.NotFound("organization", id)
	}
	s.invalidate(ctx)
	return org, nil
}

func trimmedPtr(p *string) *string {
	if p == nil {
		return nil
	}
	return model.StringPtr(strings.TrimSpace(*p))
}
