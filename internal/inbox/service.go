package inbox

import (
	"context"
	"encoding/json"
	"strconv"
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
	DefaultType = "note"
	ViewLanding = "landing"
)

// Limits bounds list sizes. Landing applies to the landing view when the
// caller does not ask for a specific limit.
type Limits struct {
	Default int
	Landing int
	Max     int
}

func DefaultLimits() Limits {
	return Limits{Default: 50, Landing: 100, Max: 500}
}

type CaptureInput struct {
	Content  string          `json:"content"`
	Type     string          `json:"type"`
	URL      *string         `json:"url"`
	Metadata json.RawMessage `json:"metadata"`
}

type ListInput struct {
	Type  string
	Limit int
}

type Service struct {
	store   store.Store
	hub     *events.Hub
	metrics *observability.Metrics
	report  reliability.StoreReporter
	log     zerolog.Logger
	limits  Limits
	now     func() time.Time
}

func NewService(st store.Store, hub *events.Hub, metrics *observability.Metrics, limits Limits, log zerolog.Logger) *Service {
	if metrics == nil {
		metrics = observability.Discard()
	}
	if hub == nil {
		hub = events.NewHub(metrics)
	}
	def := DefaultLimits()
	if limits.Default <= 0 {
		limits.Default = def.Default
	}
	if limits.Landing <= 0 {
		limits.Landing = def.Landing
	}
	if limits.Max <= 0 {
		limits.Max = def.Max
	}
	log = log.With().Str("component", "inbox").Logger()
	return &Service{
		store:   st,
		hub:     hub,
		metrics: metrics,
		report:  reliability.StoreReporter{Log: log, Metrics: metrics},
		log:     log,
		limits:  limits,
		now:     model.Now,
	}
}

func (s *Service) Limits() Limits { return s.limits }

// ResolveLimit turns a raw query value into a list limit. Missing values use
// the default, or the landing size for the landing view. Oversized values are
// clamped; non-numeric and non-positive values are rejected.
func (s *Service) ResolveLimit(raw, view string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if strings.EqualFold(strings.TrimSpace(view), ViewLanding) {
			return s.limits.Landing, nil
		}
		return s.limits.Default, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, model.NewValidationError("limit", "limit must be a positive integer")
	}
	if n > s.limits.Max {
		n = s.limits.Max
	}
	return n, nil
}

// Capture appends a new item. Type defaults to "note"; metadata must be valid
// JSON and is stored verbatim.
func (s *Service) Capture(ctx context.Context, in CaptureInput) (model.InboxItem, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return model.InboxItem{}, model.NewValidationError("content", "content is required")
	}
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		typ = DefaultType
	}
	meta := in.Metadata
	if len(meta) > 0 {
		if !json.Valid(meta) {
			return model.InboxItem{}, model.NewValidationError("metadata", "metadata must be valid JSON")
		}
		if string(meta) == "null" {
			meta = nil
		}
	}
	item := model.InboxItem{
		ID:        model.NewID(),
		Content:   content,
		Type:      typ,
		Metadata:  append(json.RawMessage(nil), meta...),
		CreatedAt: s.now(),
	}
	if len(item.Metadata) == 0 {
		item.Metadata = nil
	}
	if in.URL != nil {
		item.URL = model.StringPtr(strings.TrimSpace(*in.URL))
	}

	if err := s.store.CreateInboxItem(ctx, item); err != nil {
		return model.InboxItem{}, s.report.Wrap("inbox.capture", item.ID, err)
	}
	s.metrics.InboxCaptures.WithLabelValues(typ).Inc()
	s.hub.Publish(events.Event{
		Type:     events.InboxCaptured,
		EntityID: item.ID,
		Payload:  item,
		At:       item.CreatedAt,
	})
	s.log.Debug().
		Str("op", "inbox.capture").
		Str("id", item.ID).
		Str("type", typ).
		Str("content", policy.LogPreview(content, 0)).
		Msg("inbox item captured")
	return item, nil
}

// List returns items newest first, optionally filtered by type.
func (s *Service) List(ctx context.Context, in ListInput) ([]model.InboxItem, error) {
	limit := in.Limit
	switch {
	case limit <= 0:
		limit = s.limits.Default
	case limit > s.limits.Max:
		limit = s.limits.Max
	}
	items, err := s.store.ListInboxItems(ctx, store.InboxFilter{Type: strings.TrimSpace(in.Type), Limit: limit})
	if err != nil {
		return nil, s.report.Wrap("inbox.list", "", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.InboxItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.InboxItem{}, model.NewValidationError("id", "id is required")
	}
	item, err := s.store.GetInboxItem(ctx, id)
	if err != nil {
		return model.InboxItem{}, s.report.Wrap("inbox.get", id, err)
	}
	return item, nil
}

// Delete removes an item. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.NewValidationError("id", "id is required")
	}
	removed, err := s.store.DeleteInboxItem(ctx, id)
	if err != nil {
		return s.report.Wrap("inbox.delete", id, err)
	}
	s.log.Debug().Str("op", "inbox.delete").Str("id", id).Bool("removed", removed).Msg("inbox item deleted")
	return nil
}
