package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/store"
)

const (
	DefaultReportLimit = 30
	maxReportLimit     = 500
)

type ReportInput struct {
	Type     string          `json:"type"`
	Date     string          `json:"date"`
	Title    string          `json:"title"`
	Content  string          `json:"content"`
	Metadata json.RawMessage `json:"metadata"`
}

// ListReports returns reports by date, newest first.
func (s *Service) ListReports(ctx context.Context, typ string, limit int) ([]model.Report, error) {
	switch {
	case limit <= 0:
		limit = DefaultReportLimit
	case limit > maxReportLimit:
		limit = maxReportLimit
	}
	out, err := s.store.ListReports(ctx, store.ReportFilter{Type: strings.TrimSpace(typ), Limit: limit})
	if err != nil {
		return nil, s.report.Wrap("reports.list", "", err)
	}
	return out, nil
}

func (s *Service) CreateReport(ctx context.Context, in ReportInput) (model.Report, error) {
	r := model.Report{
		ID:        model.NewID(),
		Type:      strings.TrimSpace(in.Type),
		Date:      strings.TrimSpace(in.Date),
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		CreatedAt: s.now(),
	}
	required := []struct{ field, value string }{
		{"type", r.Type},
		{"date", r.Date},
		{"title", r.Title},
		{"content", strings.TrimSpace(r.Content)},
	}
	for _, f := range required {
		if f.value == "" {
			return model.Report{}, model.NewValidationError(f.field, f.field+" is required")
		}
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return model.Report{}, model.NewValidationError("date", "date must be YYYY-MM-DD")
	}
	meta, err := normalizeJSON("metadata", in.Metadata)
	if err != nil {
		return model.Report{}, err
	}
	r.Metadata = meta
	if err := s.store.CreateReport(ctx, r); err != nil {
		return model.Report{}, s.report.Wrap("reports.create", r.ID, err)
	}
	return r, nil
}

func (s *Service) GetReport(ctx context.Context, id string) (model.Report, error) {
	id = strings.TrimSpace(id)
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return model.Report{}, s.report.Wrap("reports.get", id, err)
	}
	return r, nil
}

func (s *Service) DeleteReport(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if _, err := s.store.DeleteReport(ctx, id); err != nil {
		return s.report.Wrap("reports.delete", id, err)
	}
	return nil
}

// normalizeJSON validates an optional JSON payload; empty and null become nil.
func normalizeJSON(field string, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, model.NewValidationError(field, field+" must be valid JSON")
	}
	return append(json.RawMessage(nil), raw...), nil
}
