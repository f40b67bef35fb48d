// Package notify tracks per-notification delivery state. Flags only move
// forward: a notification is delivered before (or as) it is read, and
// neither flag ever reverts.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/sashi/internal/events"
	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/observability"
	"github.com/ent0n29/sashi/internal/policy"
	"github.com/ent0n29/sashi/internal/reliability"
	"github.com/ent0n29/sashi/internal/store"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type CreateInput struct {
	AgentID     string  `json:"agentId"`
	FromAgentID *string `json:"fromAgentId"`
	TaskID      *string `json:"taskId"`
	Content     string  `json:"content"`
}

type ListInput struct {
	AgentID     string
	Undelivered bool
	Unread      bool
	Limit       int
}

// FlagsInput holds the optional PATCH fields. Nil means "not supplied".
type FlagsInput struct {
	Delivered *bool `json:"delivered"`
	Read      *bool `json:"read"`
}

type Mutation struct {
	Notification model.Notification  `json:"notification"`
	Previous     *model.Notification `json:"previous,omitempty"`
}

type Service struct {
	store   store.Store
	hub     *events.Hub
	metrics *observability.Metrics
	report  reliability.StoreReporter
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(st store.Store, hub *events.Hub, metrics *observability.Metrics, log zerolog.Logger) *Service {
	if metrics == nil {
		metrics = observability.Discard()
	}
	if hub == nil {
		hub = events.NewHub(metrics)
	}
	log = log.With().Str("component", "notify").Logger()
	return &Service{
		store:   st,
		hub:     hub,
		metrics: metrics,
		report:  reliability.StoreReporter{Log: log, Metrics: metrics},
		log:     log,
		now:     model.Now,
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Notification, error) {
	agentID := strings.TrimSpace(in.AgentID)
	if agentID == "" {
		return model.Notification{}, model.NewValidationError("agentId", "agentId is required")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return model.Notification{}, model.NewValidationError("content", "content is required")
	}
	n := model.Notification{
		ID:        model.NewID(),
		AgentID:   agentID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if in.FromAgentID != nil {
		n.FromAgentID = model.StringPtr(strings.TrimSpace(*in.FromAgentID))
	}
	if in.TaskID != nil {
		n.TaskID = model.StringPtr(strings.TrimSpace(*in.TaskID))
	}

	if err := s.store.CreateNotification(ctx, n); err != nil {
		return model.Notification{}, s.report.Wrap("notification.create", n.ID, err)
	}
	s.hub.Publish(events.Event{
		Type:     events.NotificationCreated,
		EntityID: n.ID,
		AgentID:  n.AgentID,
		Payload:  n,
		At:       n.CreatedAt,
	})
	s.log.Debug().
		Str("op", "notification.create").
		Str("id", n.ID).
		Str("agent_id", n.AgentID).
		Str("content", policy.LogPreview(content, 0)).
		Msg("notification created")
	return n, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Notification, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Notification{}, model.NewValidationError("id", "id is required")
	}
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return model.Notification{}, s.report.Wrap("notification.get", id, err)
	}
	return n, nil
}

// List returns an agent's notifications, newest first.
func (s *Service) List(ctx context.Context, in ListInput) ([]model.Notification, error) {
	agentID := strings.TrimSpace(in.AgentID)
	if agentID == "" {
		return nil, model.NewValidationError("agentId", "agentId is required")
	}
	limit := in.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	out, err := s.store.ListNotifications(ctx, store.NotificationFilter{
		AgentID:     agentID,
		Undelivered: in.Undelivered,
		Unread:      in.Unread,
		Limit:       limit,
	})
	if err != nil {
		return nil, s.report.Wrap("notification.list", agentID, err)
	}
	return out, nil
}

// UpdateFlags applies delivered/read changes. Marking read also marks
// delivered. Explicitly asking for read without delivery, or clearing a flag
// that is already set, is rejected. Clearing an unset flag is a no-op.
func (s *Service) UpdateFlags(ctx context.Context, id string, in FlagsInput) (Mutation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Mutation{}, model.NewValidationError("id", "id is required")
	}
	if in.Delivered == nil && in.Read == nil {
		s.metrics.NotificationUpdates.WithLabelValues("rejected").Inc()
		return Mutation{}, model.NewValidationError("", "no fields to update")
	}
	if in.Read != nil && *in.Read && in.Delivered != nil && !*in.Delivered {
		s.metrics.NotificationUpdates.WithLabelValues("rejected").Inc()
		return Mutation{}, model.NewValidationError("read", "a notification cannot be read without being delivered")
	}

	current, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return Mutation{}, s.report.Wrap("notification.update", id, err)
	}
	previous := current.Clone()

	if in.Delivered != nil && !*in.Delivered && current.Delivered {
		s.metrics.NotificationUpdates.WithLabelValues("rejected").Inc()
		return Mutation{}, model.InvalidTransition("notification", "delivered", "undelivered")
	}
	if in.Read != nil && !*in.Read && current.Read {
		s.metrics.NotificationUpdates.WithLabelValues("rejected").Inc()
		return Mutation{}, model.InvalidTransition("notification", "read", "unread")
	}

	wantRead := in.Read != nil && *in.Read
	wantDelivered := wantRead || (in.Delivered != nil && *in.Delivered)
	if (!wantDelivered || current.Delivered) && (!wantRead || current.Read) {
		s.metrics.NotificationUpdates.WithLabelValues("noop").Inc()
		return Mutation{Notification: current, Previous: &previous}, nil
	}

	found, err := s.store.MarkNotification(ctx, id, wantDelivered, wantRead)
	if err != nil {
		return Mutation{}, s.report.Wrap("notification.update", id, err)
	}
	if !found {
		return Mutation{}, model.NotFound("notification", id)
	}
	updated, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return Mutation{}, s.report.Wrap("notification.update", id, err)
	}

	s.metrics.NotificationUpdates.WithLabelValues("applied").Inc()
	s.hub.Publish(events.Event{
		Type:     events.NotificationUpdated,
		EntityID: id,
		AgentID:  updated.AgentID,
		Payload:  updated,
	})
	s.log.Debug().
		Str("op", "notification.update").
		Str("id", id).
		Bool("delivered", updated.Delivered).
		Bool("read", updated.Read).
		Msg("notification flags updated")
	return Mutation{Notification: updated, Previous: &previous}, nil
}
