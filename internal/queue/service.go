// Package queue owns the automation queue lifecycle:
// queued -> in_progress -> done, with each timestamp written at most once.
package queue

import (
	"context"
	"fmt"
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

type CreateInput struct {
	Task       string  `json:"task"`
	Status     *string `json:"status"`
	SessionKey *string `json:"sessionKey"`
}

// UpdateInput carries the optional PATCH fields. An empty SessionKey clears it.
type UpdateInput struct {
	Status     *string `json:"status"`
	SessionKey *string `json:"sessionKey"`
}

// Mutation is the result of a mutating call: the current record and the
// snapshot it replaced, enough for a caller to undo the change.
type Mutation struct {
	Item     model.QueueItem  `json:"item"`
	Previous *model.QueueItem `json:"previous,omitempty"`
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
	log = log.With().Str("component", "queue").Logger()
	return &Service{
		store:   st,
		hub:     hub,
		metrics: metrics,
		report:  reliability.StoreReporter{Log: log, Metrics: metrics},
		log:     log,
		now:     model.Now,
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.QueueItem, error) {
	task := strings.TrimSpace(in.Task)
	if task == "" {
		return model.QueueItem{}, model.NewValidationError("task", "task is required")
	}
	status := model.QueueStatusQueued
	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		parsed, err := model.ParseQueueStatus(*in.Status)
		if err != nil {
			return model.QueueItem{}, err
		}
		status = parsed
	}
	if status == model.QueueStatusDone {
		return model.QueueItem{}, model.NewValidationError("status", "a queue item cannot be created as done")
	}

	now := s.now()
	item := model.QueueItem{
		ID:        model.NewID(),
		Task:      task,
		Status:    status,
		CreatedAt: now,
	}
	if in.SessionKey != nil {
		item.SessionKey = model.StringPtr(strings.TrimSpace(*in.SessionKey))
	}
	if status == model.QueueStatusInProgress {
		started := now
		item.StartedAt = &started
	}

	if err := s.store.CreateQueueItem(ctx, item); err != nil {
		return model.QueueItem{}, s.report.Wrap("queue.create", item.ID, err)
	}
	s.metrics.QueueItemsCreated.WithLabelValues(string(status)).Inc()
	s.hub.Publish(events.Event{
		Type:     events.QueueItemCreated,
		EntityID: item.ID,
		To:       string(status),
		Payload:  item,
		At:       now,
	})
	s.log.Debug().
		Str("op", "queue.create").
		Str("id", item.ID).
		Str("status", string(status)).
		Str("task", policy.LogPreview(task, 0)).
		Msg("queue item created")
	return item, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.QueueItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.QueueItem{}, model.NewValidationError("id", "id is required")
	}
	item, err := s.store.GetQueueItem(ctx, id)
	if err != nil {
		return model.QueueItem{}, s.report.Wrap("queue.get", id, err)
	}
	return item, nil
}

// List returns every queue item, newest first.
func (s *Service) List(ctx context.Context) ([]model.QueueItem, error) {
	items, err := s.store.ListQueueItems(ctx)
	if err != nil {
		return nil, s.report.Wrap("queue.list", "", err)
	}
	return items, nil
}

// Transition moves an item to status. Re-entering in_progress or done is a
// no-op that leaves timestamps alone; backward moves fail with
// model.ErrInvalidTransition.
func (s *Service) Transition(ctx context.Context, id, status string) (Mutation, error) {
	return s.Update(ctx, id, UpdateInput{Status: &status})
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Mutation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Mutation{}, model.NewValidationError("id", "id is required")
	}
	if in.Status == nil && in.SessionKey == nil {
		return Mutation{}, model.NewValidationError("", "no fields to update")
	}
	var target *model.QueueStatus
	if in.Status != nil {
		parsed, err := model.ParseQueueStatus(*in.Status)
		if err != nil {
			return Mutation{}, err
		}
		target = &parsed
	}

	current, err := s.store.GetQueueItem(ctx, id)
	if err != nil {
		return Mutation{}, s.report.Wrap("queue.update", id, err)
	}
	previous := current.Clone()

	kind := model.TransitionNoop
	if target != nil {
		kind = model.ClassifyTransition(current.Status, *target)
		if kind == model.TransitionInvalid {
			return Mutation{}, model.InvalidTransition("queue item", string(current.Status), string(*target))
		}
	}

	next := current.Clone()
	now := s.now()
	switch kind {
	case model.TransitionStart:
		next.Status = *target
		if next.StartedAt == nil {
			next.StartedAt = timePtr(now)
		}
	case model.TransitionComplete:
		next.Status = *target
		if next.StartedAt == nil {
			next.StartedAt = timePtr(now)
		}
		next.CompletedAt = timePtr(now)
	}
	if in.SessionKey != nil {
		next.SessionKey = model.StringPtr(strings.TrimSpace(*in.SessionKey))
	}

	if kind == model.TransitionNoop && model.StringValue(next.SessionKey) == model.StringValue(current.SessionKey) {
		return Mutation{Item: current, Previous: &previous}, nil
	}

	applied, err := s.store.UpdateQueueItemIf(ctx, next, current.Status)
	if err != nil {
		return Mutation{}, s.report.Wrap("queue.update", id, err)
	}
	if !applied {
		return s.resolveLostRace(ctx, id, target, kind, in.SessionKey != nil, previous)
	}

	if kind != model.TransitionNoop {
		s.metrics.QueueTransitions.WithLabelValues(string(current.Status), string(next.Status)).Inc()
		s.hub.Publish(events.Event{
			Type:     events.QueueItemTransitioned,
			EntityID: id,
			From:     string(current.Status),
			To:       string(next.Status),
			Payload:  next,
			At:       now,
		})
		s.log.Info().
			Str("op", "queue.transition").
			Str("id", id).
			Str("from", string(current.Status)).
			Str("to", string(next.Status)).
			Msg("queue item transitioned")
	}
	return Mutation{Item: next, Previous: &previous}, nil
}

// resolveLostRace handles a conditional write that found the status already
// changed. A concurrent writer that reached the same target wins and its
// record is returned; anything else is a conflict.
func (s *Service) resolveLostRace(ctx context.Context, id string, target *model.QueueStatus, kind model.TransitionKind, touchesSession bool, previous model.QueueItem) (Mutation, error) {
	latest, err := s.store.GetQueueItem(ctx, id)
	if err != nil {
		return Mutation{}, s.report.Wrap("queue.update", id, err)
	}
	if target != nil && kind != model.TransitionNoop && !touchesSession && latest.Status == *target {
		s.log.Debug().Str("op", "queue.transition").Str("id", id).Msg("concurrent transition already applied")
		return Mutation{Item: latest, Previous: &previous}, nil
	}
	s.log.Warn().
		Str("op", "queue.update").
		Str("id", id).
		Str("expected", string(previous.Status)).
		Str("found", string(latest.Status)).
		Msg("queue item changed concurrently")
	return Mutation{}, fmt.Errorf("queue item %q: %w", id, model.ErrConflict)
}

// Delete removes an item and returns the removed snapshot.
func (s *Service) Delete(ctx context.Context, id string) (model.QueueItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.QueueItem{}, model.NewValidationError("id", "id is required")
	}
	item, err := s.store.GetQueueItem(ctx, id)
	if err != nil {
		return model.QueueItem{}, s.report.Wrap("queue.delete", id, err)
	}
	removed, err := s.store.DeleteQueueItem(ctx, id)
	if err != nil {
		return model.QueueItem{}, s.report.Wrap("queue.delete", id, err)
	}
	if !removed {
		return model.QueueItem{}, model.NotFound("queue item", id)
	}
	return item, nil
}

// Counts tallies items per status; every lifecycle state is present.
func Counts(items []model.QueueItem) map[model.QueueStatus]int {
	out := map[model.QueueStatus]int{
		model.QueueStatusQueued:     0,
		model.QueueStatusInProgress: 0,
		model.QueueStatusDone:       0,
	}
	for _, item := range items {
		out[item.Status]++
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
