package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hindsight-io/hindsight/internal/domain"
	"github.com/hindsight-io/hindsight/internal/store"
)

// ReconcileRequest carries candidate beliefs for one sensor. KeepUnchanged
// bypasses the unchanged-complement pass and offers every candidate to the
// store directly.
type ReconcileRequest struct {
	Sensor        string
	Beliefs       []domain.Belief
	KeepUnchanged bool
}

type ReconcileResult struct {
	Candidates int   `json:"candidates"`
	Persisted  int64 `json:"persisted"`
	Skipped    int64 `json:"skipped"`
}

// Reconcile persists the candidates that add information: beliefs whose
// value differs from what their source most recently believed about the
// same event are kept, the rest are dropped before the insert. Replaying
// the same batch therefore writes nothing the second time. Rows already
// present in the store are skipped by the insert itself.
func (s *Beliefs) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	sensor, err := s.sensorStore.GetByName(ctx, req.Sensor)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newQueryError(ConditionNotFound, req.Sensor, "unknown sensor", err)
		}
		return nil, newQueryError(ConditionStoreUnavailable, req.Sensor, "resolving sensor", err)
	}
	if len(req.Beliefs) == 0 {
		return &ReconcileResult{}, nil
	}

	candidates := make([]domain.Belief, len(req.Beliefs))
	copy(candidates, req.Beliefs)
	for i := range candidates {
		b := &candidates[i]
		b.SensorID = sensor.ID
		if b.EventStart.IsZero() {
			return nil, newQueryError(ConditionInvalidInput, req.Sensor, fmt.Sprintf("belief %d: event start is required", i), nil)
		}
		if b.SourceID <= 0 {
			return nil, newQueryError(ConditionInvalidInput, req.Sensor, fmt.Sprintf("belief %d: source id is required", i), nil)
		}
		if !domain.ValidCumulativeProbability(b.CumulativeProbability) {
			return nil, newQueryError(ConditionInvalidInput, req.Sensor, fmt.Sprintf("belief %d: cumulative probability %v outside (0, 1]", i, b.CumulativeProbability), nil)
		}
	}

	kept := candidates
	if !req.KeepUnchanged {
		kept, err = s.unchangedComplement(ctx, sensor, candidates)
		if err != nil {
			return nil, err
		}
	}

	var written int64
	if len(kept) > 0 {
		written, err = s.beliefStore.Insert(ctx, kept)
		if err != nil {
			return nil, newQueryError(ConditionStoreUnavailable, req.Sensor, "persisting beliefs", err)
		}
	}
	if written > 0 && s.frames != nil {
		s.frames.InvalidateSensor(ctx, sensor.ID)
	}

	skipped := int64(len(candidates)) - written
	s.metrics.RecordPersisted(written, skipped)
	s.logger.Info("beliefs reconciled",
		zap.String("sensor", sensor.Name),
		zap.Int("candidates", len(candidates)),
		zap.Int64("persisted", written),
		zap.Int64("skipped", skipped))

	return &ReconcileResult{Candidates: len(candidates), Persisted: written, Skipped: skipped}, nil
}
