package service

import (
	"fmt"

	"github.com/hindsight-io/hindsight/internal/domain"
)

// combineFrames sums frames across sensors, aligned on event start, with
// events missing from one sensor contributing zero. Proper aggregation is
// only defined for deterministic single-source frames; anything richer is
// flattened to a representative estimate per event and flagged through
// warnings, never through a failure. The combined frame inherits the first
// frame's sensor metadata.
func combineFrames(frames []*domain.BeliefFrame) (*domain.BeliefFrame, []string) {
	if len(frames) == 0 {
		return nil, nil
	}

	var warnings []string
	sourceSet := make(map[int64]bool)
	for _, f := range frames {
		if !f.UniquePerEventAndSource() {
			warnings = append(warnings,
				fmt.Sprintf("sensor %s holds several beliefs per event and source; only the most recent estimate is aggregated", f.Sensor.Name))
		}
		ids := f.SourceIDs()
		if len(ids) > 1 {
			warnings = append(warnings,
				fmt.Sprintf("sensor %s mixes beliefs by sources %v", f.Sensor.Name, ids))
		}
		for _, id := range ids {
			sourceSet[id] = true
		}
	}
	if len(sourceSet) > 1 {
		warnings = append(warnings,
			fmt.Sprintf("aggregating beliefs by %d sources as if by one; the sum is approximate", len(sourceSet)))
	}

	if len(frames) == 1 {
		return frames[0], warnings
	}

	sum := reduceToRepresentative(frames[0])
	for _, f := range frames[1:] {
		sum = sum.AddAligned(reduceToRepresentative(f))
	}
	return sum, warnings
}

// reduceToRepresentative flattens a frame to one deterministic row per
// event: the central estimate of the most recent belief.
func reduceToRepresentative(f *domain.BeliefFrame) *domain.BeliefFrame {
	recent := selectMostRecent(f.Rows)

	out := &domain.BeliefFrame{Sensor: f.Sensor, Resolution: f.Resolution}
	var belief []domain.Belief
	flush := func() {
		if len(belief) > 0 {
			out.Rows = append(out.Rows, centralRow(belief))
			belief = belief[:0]
		}
	}
	for _, r := range recent {
		if len(belief) > 0 && !belief[0].EventStart.Equal(r.EventStart) {
			flush()
		}
		belief = append(belief, r)
	}
	flush()
	return out
}
