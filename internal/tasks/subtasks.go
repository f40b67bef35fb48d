package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/sashi/internal/events"
	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/store"
)

type SubtaskInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// ListSubtasks returns the direct children of parentID, oldest first.
func (s *Service) ListSubtasks(ctx context.Context, parentID string) ([]model.Task, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return nil, model.NewValidationError("id", "id is required")
	}
	if _, err := s.store.GetTask(ctx, parentID); err != nil {
		return nil, s.report.Wrap("tasks.list_subtasks", parentID, err)
	}
	list, err := s.store.ListTasks(ctx, store.TaskFilter{ParentID: &parentID})
	if err != nil {
		return nil, s.report.Wrap("tasks.list_subtasks", parentID, err)
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// CreateSubtasks adds children under parentID. Each starts not_started and
// inherits the parent's project, organization and due date. All names are
// validated before anything is written.
func (s *Service) CreateSubtasks(ctx context.Context, parentID string, in []SubtaskInput) ([]model.Task, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return nil, model.NewValidationError("id", "id is required")
	}
	if len(in) == 0 {
		return nil, model.NewValidationError("subtasks", "subtasks array is required")
	}
	names := make([]string, len(in))
	for i, sub := range in {
		names[i] = strings.TrimSpace(sub.Name)
		if names[i] == "" {
			return nil, model.NewValidationError(fmt.Sprintf("subtasks[%d].name", i), "name is required")
		}
	}
	parent, err := s.store.GetTask(ctx, parentID)
	if err != nil {
		return nil, s.report.Wrap("tasks.create_subtasks", parentID, err)
	}

	now := s.now()
	created := make([]model.Task, 0, len(in))
	for i, sub := range in {
		t := model.Task{
			ID:             model.NewID(),
			Name:           names[i],
			Description:    trimmedPtr(sub.Description),
			ProjectID:      parent.ProjectID,
			OrganizationID: parent.OrganizationID,
			ParentID:       &parentID,
			Status:         model.TaskStatusNotStarted,
			DueDate:        parent.DueDate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		t = t.Clone()
		if err := s.store.CreateTask(ctx, t); err != nil {
			return created, s.report.Wrap("tasks.create_subtasks", t.ID, err)
		}
		s.metrics.TaskMutations.WithLabelValues("create").Inc()
		s.hub.Publish(events.Event{
			Type:     events.TaskCreated,
			EntityID: t.ID,
			To:       string(t.Status),
			Payload:  t,
			At:       now,
		})
		created = append(created, t)
	}
	s.log.Debug().Str("op", "tasks.create_subtasks").Str("id", parentID).Int("count", len(created)).Msg("subtasks created")
	return created, nil
}
