// Package activity keeps the human-readable activity feed: entries logged by
// callers and entries recorded from lifecycle events.
package activity

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/observability"
	"github.com/ent0n29/sashi/internal/reliability"
	"github.com/ent0n29/sashi/internal/store"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Entry types written by the recorder. Callers may log any other type.
const (
	TypeTaskCreated       = "task_created"
	TypeTaskUpdated       = "task_updated"
	TypeTaskAssigned      = "task_assigned"
	TypeTaskDeleted       = "task_deleted"
	TypeCommentAdded      = "comment_added"
	TypeQueueItemCreated  = "queue_item_created"
	TypeQueueItemProgress = "queue_item_transitioned"
	TypeInboxCaptured     = "inbox_captured"
)

type LogInput struct {
	Type     string          `json:"type"`
	AgentID  *string         `json:"agentId"`
	TaskID   *string         `json:"taskId"`
	Message  string          `json:"message"`
	Metadata json.RawMessage `json:"metadata"`
}

// ListInput carries raw query values. Since accepts RFC 3339, a calendar
// date, or unix milliseconds.
type ListInput struct {
	AgentID string
	Type    string
	Since   string
	Limit   string
}

type Service struct {
	store   store.Store
	metrics *observability.Metrics
	report  reliability.StoreReporter
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(st store.Store, metrics *observability.Metrics, log zerolog.Logger) *Service {
	if metrics == nil {
		metrics = observability.Discard()
	}
	log = log.With().Str("component", "activity").Logger()
	return &Service{
		store:   st,
		metrics: metrics,
		report:  reliability.StoreReporter{Log: log, Metrics: metrics},
		log:     log,
		now:     model.Now,
	}
}

// List returns feed entries newest first.
func (s *Service) List(ctx context.Context, in ListInput) ([]model.Activity, error) {
	filter := store.ActivityFilter{
		AgentID: strings.TrimSpace(in.AgentID),
		Type:    strings.TrimSpace(in.Type),
		Limit:   DefaultListLimit,
	}
	if raw := strings.TrimSpace(in.Limit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, model.NewValidationError("limit", "limit must be a positive integer")
		}
		filter.Limit = min(n, MaxListLimit)
	}
	if raw := strings.TrimSpace(in.Since); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			return nil, err
		}
		filter.Since = &since
	}
	list, err := s.store.ListActivity(ctx, filter)
	if err != nil {
		return nil, s.report.Wrap("activity.list", "", err)
	}
	return list, nil
}

// Log appends an explicit entry. Type and message are required; metadata
// must be valid JSON and is stored verbatim.
func (s *Service) Log(ctx context.Context, in LogInput) (model.Activity, error) {
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		return model.Activity{}, model.NewValidationError("type", "type is required")
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return model.Activity{}, model.NewValidationError("message", "message is required")
	}
	meta := in.Metadata
	if len(meta) > 0 {
		if !json.Valid(meta) {
			return model.Activity{}, model.NewValidationError("metadata", "metadata must be valid JSON")
		}
		if string(meta) == "null" {
			meta = nil
		}
	}
	a := model.Activity{
		ID:        model.NewID(),
		Type:      typ,
		AgentID:   trimmedPtr(in.AgentID),
		TaskID:    trimmedPtr(in.TaskID),
		Message:   message,
		Metadata:  meta,
		CreatedAt: s.now(),
	}
	if err := s.record(ctx, a); err != nil {
		return model.Activity{}, err
	}
	return a, nil
}

func (s *Service) record(ctx context.Context, a model.Activity) error {
	if err := s.store.CreateActivity(ctx, a); err != nil {
		s.metrics.ActivityRecorded.WithLabelValues(a.Type, "error").Inc()
		return s.report.Wrap("activity.record", a.ID, err)
	}
	s.metrics.ActivityRecorded.WithLabelValues(a.Type, "ok").Inc()
	return nil
}

func parseSince(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, model.NewValidationError("since", "since must be RFC 3339, YYYY-MM-DD or unix milliseconds")
}

func trimmedPtr(p *string) *string {
	if p == nil {
		return nil
	}
	return model.StringPtr(strings.TrimSpace(*p))
}
