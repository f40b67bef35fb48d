package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ent0n29/sashi/internal/events"
	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/notify"
)

type CommentInput struct {
	AgentID     string          `json:"agentId"`
	Content     string          `json:"content"`
	Attachments json.RawMessage `json:"attachments"`
}

// CommentResult is the stored comment plus the agents that were notified
// because the content mentioned them.
type CommentResult struct {
	model.TaskComment
	Mentioned []string `json:"mentioned"`
}

var mentionPattern = regexp.MustCompile(`@([\w-]+)`)

const mentionExcerptRunes = 100

// Mentions returns the lowercased, de-duplicated @handles in content, in
// order of first appearance.
func Mentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		handle := strings.ToLower(m[1])
		if _, ok := seen[handle]; ok {
			continue
		}
		seen[handle] = struct{}{}
		out = append(out, handle)
	}
	return out
}

// ListComments returns a task's comments oldest first.
func (s *Service) ListComments(ctx context.Context, taskID string) ([]model.TaskComment, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, model.NewValidationError("id", "id is required")
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, s.report.Wrap("tasks.list_comments", taskID, err)
	}
	list, err := s.store.ListTaskComments(ctx, taskID)
	if err != nil {
		return nil, s.report.Wrap("tasks.list_comments", taskID, err)
	}
	return list, nil
}

// AddComment stores a comment and notifies every mentioned agent other than
// the author. Notification failures are logged; the comment stands.
func (s *Service) AddComment(ctx context.Context, taskID string, in CommentInput) (CommentResult, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return CommentResult{}, model.NewValidationError("id", "id is required")
	}
	agentID := strings.TrimSpace(in.AgentID)
	if agentID == "" {
		return CommentResult{}, model.NewValidationError("agentId", "agentId is required")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return CommentResult{}, model.NewValidationError("content", "content is required")
	}
	if len(in.Attachments) > 0 && !json.Valid(in.Attachments) {
		return CommentResult{}, model.NewValidationError("attachments", "attachments must be valid JSON")
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return CommentResult{}, s.report.Wrap("tasks.add_comment", taskID, err)
	}

	c := model.TaskComment{
		ID:          model.NewID(),
		TaskID:      taskID,
		AgentID:     agentID,
		Content:     content,
		Attachments: in.Attachments,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateTaskComment(ctx, c); err != nil {
		return CommentResult{}, s.report.Wrap("tasks.add_comment", taskID, err)
	}
	s.metrics.TaskMutations.WithLabelValues("comment").Inc()
	s.hub.Publish(events.Event{
		Type:     events.CommentAdded,
		EntityID: taskID,
		AgentID:  agentID,
		Payload:  c,
		At:       c.CreatedAt,
	})

	mentioned := make([]string, 0)
	for _, handle := range Mentions(content) {
		if handle == strings.ToLower(agentID) || s.notifier == nil {
			continue
		}
		_, err := s.notifier.Create(ctx, notify.CreateInput{
			AgentID:     handle,
			FromAgentID: &agentID,
			TaskID:      &taskID,
			Content:     fmt.Sprintf("%s mentioned you on %q: %q", agentID, task.Name, excerpt(content, mentionExcerptRunes)),
		})
		if err != nil {
			s.log.Error().Err(err).
				Str("op", "tasks.mention_notify").
				Str("id", taskID).
				Str("agent_id", handle).
				Msg("mention notification failed")
			continue
		}
		mentioned = append(mentioned, handle)
	}
	return CommentResult{TaskComment: c, Mentioned: mentioned}, nil
}

func excerpt(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "…"
}
