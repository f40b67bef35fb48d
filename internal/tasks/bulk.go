package tasks

import (
	"context"
	"errors"
	"strings"

	"github.com/ent0n29/sashi/internal/model"
)

// MaxBulkTasks caps how many ids one bulk request may name.
const MaxBulkTasks = 500

// BulkUpdateFields are the fields a bulk update may set. Nil means "leave
// alone"; an empty string clears nullable fields.
type BulkUpdateFields struct {
	Status         *string `json:"status"`
	Priority       *string `json:"priority"`
	ProjectID      *string `json:"projectId"`
	OrganizationID *string `json:"organizationId"`
	DueDate        *string `json:"dueDate"`
}

func (f BulkUpdateFields) empty() bool {
	return f.Status == nil && f.Priority == nil && f.ProjectID == nil && f.OrganizationID == nil && f.DueDate == nil
}

type BulkResult struct {
	Success bool     `json:"success"`
	Count   int      `json:"-"`
	Missing []string `json:"missing"`
}

// BulkUpdate applies the same fields to every listed task through Update,
// so validation, events and assignment rules match single-task updates.
// Unknown ids are reported in Missing instead of failing the batch.
func (s *Service) BulkUpdate(ctx context.Context, ids []string, fields BulkUpdateFields) (BulkResult, error) {
	ids, err := normalizeBulkIDs(ids)
	if err != nil {
		return BulkResult{}, err
	}
	if fields.empty() {
		return BulkResult{}, model.NewValidationError("updates", "no valid updates provided")
	}
	in := UpdateInput{
		Status:         fields.Status,
		Priority:       fields.Priority,
		ProjectID:      fields.ProjectID,
		OrganizationID: fields.OrganizationID,
		DueDate:        fields.DueDate,
	}
	res := BulkResult{Success: true, Missing: []string{}}
	for _, id := range ids {
		if _, err := s.Update(ctx, id, in); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				res.Missing = append(res.Missing, id)
				continue
			}
			return res, err
		}
		res.Count++
	}
	s.log.Info().Str("op", "tasks.bulk_update").Int("updated", res.Count).Int("missing", len(res.Missing)).Msg("bulk update applied")
	return res, nil
}

// BulkDelete removes every listed task with its subtasks and comments.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (BulkResult, error) {
	ids, err := normalizeBulkIDs(ids)
	if err != nil {
		return BulkResult{}, err
	}
	res := BulkResult{Success: true, Missing: []string{}}
	for _, id := range ids {
		if _, err := s.Delete(ctx, id); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				res.Missing = append(res.Missing, id)
				continue
			}
			return res, err
		}
		res.Count++
	}
	s.log.Info().Str("op", "tasks.bulk_delete").Int("deleted", res.Count).Int("missing", len(res.Missing)).Msg("bulk delete applied")
	return res, nil
}

func normalizeBulkIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, model.NewValidationError("taskIds", "taskIds array is required")
	}
	if len(out) > MaxBulkTasks {
		return nil, model.NewValidationError("taskIds", "too many task ids")
	}
	return out, nil
}
