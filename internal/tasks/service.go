// Package tasks answers "what should this agent work on next" and keeps task
// assignment consistent with agent notifications.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/sashi/internal/events"
	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/notify"
	"github.com/ent0n29/sashi/internal/observability"
	"github.com/ent0n29/sashi/internal/reliability"
	"github.com/ent0n29/sashi/internal/store"
)

// Notifier delivers the assignment notification to an agent.
type Notifier interface {
	Create(ctx context.Context, in notify.CreateInput) (model.Notification, error)
}

// TaskView is a task joined with its project and organization for display.
// Missing references are left nil.
type TaskView struct {
	model.Task
	Project      *model.Project      `json:"project"`
	Organization *model.Organization `json:"organization"`
}

type CreateInput struct {
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	ProjectID       *string `json:"projectId"`
	OrganizationID  *string `json:"organizationId"`
	AssignedAgentID *string `json:"assignedAgentId"`
	Status          *string `json:"status"`
	Priority        *string `json:"priority"`
	DueDate         *string `json:"dueDate"`
	ParentID        *string `json:"parentId"`
	// FromAgentID names who assigned the task, if anyone.
	FromAgentID *string `json:"fromAgentId"`
}

// UpdateInput holds optional fields. For nullable fields an empty string
// clears the value.
type UpdateInput struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	ProjectID       *string `json:"projectId"`
	OrganizationID  *string `json:"organizationId"`
	AssignedAgentID *string `json:"assignedAgentId"`
	Status          *string `json:"status"`
	Priority        *string `json:"priority"`
	DueDate         *string `json:"dueDate"`
	FromAgentID     *string `json:"fromAgentId"`
}

type ListInput struct {
	Status         string
	ProjectID      string
	OrganizationID string
	ParentID       string
}

type Mutation struct {
	Task     model.Task  `json:"task"`
	Previous *model.Task `json:"previous,omitempty"`
}

type Service struct {
	store    store.Store
	notifier Notifier
	hub      *events.Hub
	metrics  *observability.Metrics
	report   reliability.StoreReporter
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(st store.Store, notifier Notifier, hub *events.Hub, metrics *observability.Metrics, log zerolog.Logger) *Service {
	if metrics == nil {
		metrics = observability.Discard()
	}
	if hub == nil {
		hub = events.NewHub(metrics)
	}
	log = log.With().Str("component", "tasks").Logger()
	return &Service{
		store:    st,
		notifier: notifier,
		hub:      hub,
		metrics:  metrics,
		report:   reliability.StoreReporter{Log: log, Metrics: metrics},
		log:      log,
		now:      model.Now,
	}
}

// ForAgent returns the tasks assigned to agentID, excluding done tasks unless
// includeDone is set, ordered by SortForAgent and enriched for display. An
// agent with no tasks gets an empty slice.
func (s *Service) ForAgent(ctx context.Context, agentID string, includeDone bool) ([]TaskView, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, model.NewValidationError("agentId", "agent id is required")
	}
	filter := store.TaskFilter{AssignedAgentID: &agentID}
	if !includeDone {
		done := model.TaskStatusDone
		filter.ExcludeStatus = &done
	}
	list, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, s.report.Wrap("tasks.for_agent", agentID, err)
	}
	SortForAgent(list)
	return s.enrich(ctx, list)
}

func (s *Service) List(ctx context.Context, in ListInput) ([]model.Task, error) {
	var filter store.TaskFilter
	if v := strings.TrimSpace(in.Status); v != "" {
		st := model.TaskStatus(v)
		filter.Status = &st
	}
	if v := strings.TrimSpace(in.ProjectID); v != "" {
		filter.ProjectID = &v
	}
	if v := strings.TrimSpace(in.OrganizationID); v != "" {
		filter.OrganizationID = &v
	}
	if v := strings.TrimSpace(in.ParentID); v != "" {
		filter.ParentID = &v
	}
	list, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, s.report.Wrap("tasks.list", "", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (TaskView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return TaskView{}, model.NewValidationError("id", "id is required")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return TaskView{}, s.report.Wrap("tasks.get", id, err)
	}
	views, err := s.enrich(ctx, []model.Task{t})
	if err != nil {
		return TaskView{}, err
	}
	return views[0], nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Task, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Task{}, model.NewValidationError("name", "name is required")
	}
	now := s.now()
	t := model.Task{
		ID:              model.NewID(),
		Name:            name,
		Description:     trimmedPtr(in.Description),
		ProjectID:       trimmedPtr(in.ProjectID),
		OrganizationID:  trimmedPtr(in.OrganizationID),
		AssignedAgentID: trimmedPtr(in.AssignedAgentID),
		ParentID:        trimmedPtr(in.ParentID),
		Status:          model.TaskStatusTodo,
		Priority:        trimmedPtr(in.Priority),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		t.Status = model.TaskStatus(strings.TrimSpace(*in.Status))
	}
	if in.DueDate != nil {
		due, err := parseDueDate(*in.DueDate)
		if err != nil {
			return model.Task{}, err
		}
		t.DueDate = due
	}
	if err := s.checkReferences(ctx, t); err != nil {
		return model.Task{}, err
	}

	if err := s.store.CreateTask(ctx, t); err != nil {
		return model.Task{}, s.report.Wrap("tasks.create", t.ID, err)
	}
	s.metrics.TaskMutations.WithLabelValues("create").Inc()
	s.hub.Publish(events.Event{
		Type:     events.TaskCreated,
		EntityID: t.ID,
		To:       string(t.Status),
		Payload:  t,
		At:       t.CreatedAt,
	})
	s.log.Debug().Str("op", "tasks.create").Str("id", t.ID).Str("status", string(t.Status)).Msg("task created")

	if t.AssignedAgentID != nil {
		s.announceAssignment(ctx, t, in.FromAgentID)
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Mutation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Mutation{}, model.NewValidationError("id", "id is required")
	}
	current, err := s.store.GetTask(ctx, id)
	if err != nil {
		return Mutation{}, s.report.Wrap("tasks.update", id, err)
	}
	previous := current.Clone()
	next := current.Clone()

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Mutation{}, model.NewValidationError("name", "name cannot be empty")
		}
		next.Name = name
	}
	if in.Description != nil {
		next.Description = trimmedPtr(in.Description)
	}
	if in.ProjectID != nil {
		next.ProjectID = trimmedPtr(in.ProjectID)
	}
	if in.OrganizationID != nil {
		next.OrganizationID = trimmedPtr(in.OrganizationID)
	}
	if in.AssignedAgentID != nil {
		next.AssignedAgentID = trimmedPtr(in.AssignedAgentID)
	}
	if in.Status != nil {
		status := strings.TrimSpace(*in.Status)
		if status == "" {
			return Mutation{}, model.NewValidationError("status", "status cannot be empty")
		}
		next.Status = model.TaskStatus(status)
	}
	if in.Priority != nil {
		next.Priority = trimmedPtr(in.Priority)
	}
	if in.DueDate != nil {
		due, err := parseDueDate(*in.DueDate)
		if err != nil {
			return Mutation{}, err
		}
		next.DueDate = due
	}
	if err := s.checkReferences(ctx, next); err != nil {
		return Mutation{}, err
	}
	next.UpdatedAt = s.now()

	if err := s.store.UpdateTask(ctx, next); err != nil {
		return Mutation{}, s.report.Wrap("tasks.update", id, err)
	}
	s.metrics.TaskMutations.WithLabelValues("update").Inc()
	s.hub.Publish(events.Event{
		Type:     events.TaskUpdated,
		EntityID: id,
		From:     string(previous.Status),
		To:       string(next.Status),
		AgentID:  model.StringValue(next.AssignedAgentID),
		Payload:  next,
		At:       next.UpdatedAt,
	})

	newAgent := model.StringValue(next.AssignedAgentID)
	if newAgent != "" && newAgent != model.StringValue(previous.AssignedAgentID) {
		s.announceAssignment(ctx, next, in.FromAgentID)
	}
	return Mutation{Task: next, Previous: &previous}, nil
}

// Delete removes a task together with its subtasks and comments, and returns
// the removed snapshot. Queue items and notifications that mention the task
// are left alone.
func (s *Service) Delete(ctx context.Context, id string) (model.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Task{}, model.NewValidationError("id", "id is required")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, s.report.Wrap("tasks.delete", id, err)
	}
	removed, err := s.deleteTree(ctx, id, 0)
	if err != nil {
		return model.Task{}, err
	}
	if !removed {
		return model.Task{}, model.NotFound("task", id)
	}
	s.hub.Publish(events.Event{
		Type:     events.TaskDeleted,
		EntityID: id,
		From:     string(t.Status),
		AgentID:  model.StringValue(t.AssignedAgentID),
		Payload:  t,
	})
	return t, nil
}

// maxSubtaskDepth bounds the walk in case parent links ever form a cycle.
const maxSubtaskDepth = 32

// deleteTree removes subtasks before their parent, so a failure part way
// leaves the parent reachable for a retry.
func (s *Service) deleteTree(ctx context.Context, id string, depth int) (bool, error) {
	if depth < maxSubtaskDepth {
		children, err := s.store.ListTasks(ctx, store.TaskFilter{ParentID: &id})
		if err != nil {
			return false, s.report.Wrap("tasks.delete_subtasks", id, err)
		}
		for _, c := range children {
			if _, err := s.deleteTree(ctx, c.ID, depth+1); err != nil {
				return false, err
			}
		}
	}
	removed, err := s.store.DeleteTask(ctx, id)
	if err != nil {
		return false, s.report.Wrap("tasks.delete", id, err)
	}
	if removed {
		s.metrics.TaskMutations.WithLabelValues("delete").Inc()
	}
	return removed, nil
}

// announceAssignment notifies the assignee. The task write has already
// happened, so a failure here is logged rather than returned.
func (s *Service) announceAssignment(ctx context.Context, t model.Task, fromAgentID *string) {
	agentID := model.StringValue(t.AssignedAgentID)
	s.hub.Publish(events.Event{
		Type:     events.TaskAssigned,
		EntityID: t.ID,
		AgentID:  agentID,
		Payload:  t,
	})
	if s.notifier == nil {
		return
	}
	taskID := t.ID
	_, err := s.notifier.Create(ctx, notify.CreateInput{
		AgentID:     agentID,
		FromAgentID: fromAgentID,
		TaskID:      &taskID,
		Content:     fmt.Sprintf("Task assigned: %s", t.Name),
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("op", "tasks.assign_notify").
			Str("id", t.ID).
			Str("agent_id", agentID).
			Msg("assignment notification failed")
	}
}

func (s *Service) checkReferences(ctx context.Context, t model.Task) error {
	if t.ParentID != nil {
		if *t.ParentID == t.ID {
			return model.NewValidationError("parentId", "a task cannot be its own parent")
		}
		if _, err := s.store.GetTask(ctx, *t.ParentID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewValidationError("parentId", "parent task does not exist")
			}
			return s.report.Wrap("tasks.check_parent", *t.ParentID, err)
		}
	}
	if t.ProjectID != nil {
		if _, err := s.store.GetProject(ctx, *t.ProjectID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewValidationError("projectId", "project does not exist")
			}
			return s.report.Wrap("tasks.check_project", *t.ProjectID, err)
		}
	}
	if t.OrganizationID != nil {
		if _, err := s.store.GetOrganization(ctx, *t.OrganizationID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewValidationError("organizationId", "organization does not exist")
			}
			return s.report.Wrap("tasks.check_organization", *t.OrganizationID, err)
		}
	}
	return nil
}

func (s *Service) enrich(ctx context.Context, list []model.Task) ([]TaskView, error) {
	projects := make(map[string]*model.Project)
	orgs := make(map[string]*model.Organization)
	out := make([]TaskView, 0, len(list))
	for _, t := range list {
		view := TaskView{Task: t}
		if id := model.StringValue(t.ProjectID); id != "" {
			p, ok := projects[id]
			if !ok {
				got, err := s.store.GetProject(ctx, id)
				switch {
				case err == nil:
					p = &got
				case !errors.Is(err, model.ErrNotFound):
					return nil, s.report.Wrap("tasks.enrich_project", id, err)
				}
				projects[id] = p
			}
			view.Project = p
		}
		if id := model.StringValue(t.OrganizationID); id != "" {
			o, ok := orgs[id]
			if !ok {
				got, err := s.store.GetOrganization(ctx, id)
				switch {
				case err == nil:
					o = &got
				case !errors.Is(err, model.ErrNotFound):
					return nil, s.report.Wrap("tasks.enrich_organization", id, err)
				}
				orgs[id] = o
			}
			view.Organization = o
		}
		out = append(out, view)
	}
	return out, nil
}

func trimmedPtr(p *string) *string {
	if p == nil {
		return nil
	}
	return model.StringPtr(strings.TrimSpace(*p))
}

// parseDueDate accepts a calendar date or an RFC 3339 timestamp. Empty clears.
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC().Truncate(time.Millisecond)
			return &t, nil
		}
	}
	return nil, model.NewValidationError("dueDate", "dueDate must be YYYY-MM-DD or RFC 3339")
}
