package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ent0n29/sashi/internal/model"
)

const defaultRunLimit = 50

type GauntletRunInput struct {
	Idea       string          `json:"idea"`
	Result     json.RawMessage `json:"result"`
	Verdict    *string         `json:"verdict"`
	Confidence *int            `json:"confidence"`
}

func (s *Service) ListGauntletRuns(ctx context.Context, limit int) ([]model.GauntletRun, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	out, err := s.store.ListGauntletRuns(ctx, limit)
	if err != nil {
		return nil, s.report.Wrap("gauntlet.list", "", err)
	}
	return out, nil
}

// CreateGauntletRun stores an evaluation. Result must be a JSON document;
// confidence, when present, is a percentage.
func (s *Service) CreateGauntletRun(ctx context.Context, in GauntletRunInput) (model.GauntletRun, error) {
	idea := strings.TrimSpace(in.Idea)
	if idea == "" {
		return model.GauntletRun{}, model.NewValidationError("idea", "idea is required")
	}
	result, err := normalizeJSON("result", in.Result)
	if err != nil {
		return model.GauntletRun{}, err
	}
	if result == nil {
		return model.GauntletRun{}, model.NewValidationError("result", "result is required")
	}
	if in.Confidence != nil && (*in.Confidence < 0 || *in.Confidence > 100) {
		return model.GauntletRun{}, model.NewValidationError("confidence", "confidence must be between 0 and 100")
	}
	run := model.GauntletRun{
		ID:         model.NewID(),
		Idea:       idea,
		Result:     result,
		Verdict:    trimmedPtr(in.Verdict),
		Confidence: in.Confidence,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateGauntletRun(ctx, run); err != nil {
		return model.GauntletRun{}, s.report.Wrap("gauntlet.create", run.ID, err)
	}
	return run, nil
}

func (s *Service) GetGauntletRun(ctx context.Context, id string) (model.GauntletRun, error) {
	id = strings.TrimSpace(id)
	run, err := s.store.GetGauntletRun(ctx, id)
	if err != nil {
		return model.GauntletRun{}, s.report.Wrap("gauntlet.get", id, err)
	}
	return run, nil
}

func (s *Service) DeleteGauntletRun(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if _, err := s.store.DeleteGauntletRun(ctx, id); err != nil {
		return s.report.Wrap("gauntlet.delete", id, err)
	}
	return nil
}
