package reliability

import (
	"github.com/rs/zerolog"

	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/observability"
)

// StoreReporter converts raw store failures into model.StoreError, logging
// and counting each one. Domain errors pass through untouched.
type StoreReporter struct {
	Log     zerolog.Logger
	Metrics *observability.Metrics
}

func (r StoreReporter) Wrap(op, id string, err error) error {
	err = model.WrapStore(op, err)
	if err == nil || !model.IsStore(err) {
		return err
	}
	class := ClassifyStoreError(err)
	if r.Metrics != nil {
		r.Metrics.StoreErrors.WithLabelValues(op, string(class)).Inc()
	}
	r.Log.Error().
		Err(err).
		Str("op", op).
		Str("id", id).
		Str("class", string(class)).
		Msg("store operation failed")
	return err
}
