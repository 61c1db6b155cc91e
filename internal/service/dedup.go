package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hindsight-io/hindsight/internal/domain"
)

// selectMostRecent keeps, per event start, only the most recent belief: the
// row set with the smallest horizon. Ties across sources break towards the
// lowest source ID so selection stays deterministic. All probability rows
// of the winning belief survive.
func selectMostRecent(rows []domain.Belief) []domain.Belief {
	type winner struct {
		horizon time.Duration
		source  int64
		found   bool
	}
	winners := make(map[time.Time]winner)
	for _, r := range rows {
		k := r.EventStart.UTC()
		w := winners[k]
		if !w.found || r.Horizon < w.horizon || (r.Horizon == w.horizon && r.SourceID < w.source) {
			winners[k] = winner{horizon: r.Horizon, source: r.SourceID, found: true}
		}
	}

	kept := make([]domain.Belief, 0, len(winners))
	for _, r := range rows {
		w := winners[r.EventStart.UTC()]
		if r.Horizon == w.horizon && r.SourceID == w.source {
			kept = append(kept, r)
		}
	}
	return kept
}

// unchangedComplement returns the candidate rows that would actually change
// what the store holds. Ex-ante and ex-post beliefs never compare against
// each other: a forecast stays interesting even when the measurement is
// already in.
func (s *Beliefs) unchangedComplement(ctx context.Context, sensor *domain.Sensor, candidates []domain.Belief) ([]domain.Belief, error) {
	var exAnte, exPost []domain.Belief
	for _, c := range candidates {
		if c.ExAnte() {
			exAnte = append(exAnte, c)
		} else {
			exPost = append(exPost, c)
		}
	}

	kept, err := s.changedInPartition(ctx, sensor, exAnte, domain.HorizonsAtLeast(0))
	if err != nil {
		return nil, err
	}
	keptPost, err := s.changedInPartition(ctx, sensor, exPost, domain.HorizonsAtMost(0))
	if err != nil {
		return nil, err
	}
	kept = append(kept, keptPost...)

	frame := domain.NewFrame(*sensor, kept)
	return frame.Rows, nil
}

type beliefIdentity struct {
	start  time.Time
	source int64
	prob   float64
	value  float64
}

func (s *Beliefs) changedInPartition(ctx context.Context, sensor *domain.Sensor, batch []domain.Belief, hw domain.HorizonWindow) ([]domain.Belief, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	// Collapse in-batch repeats of the same assertion, keeping the earliest
	// belief. Canonical order puts earlier belief times first.
	frame := domain.NewFrame(*sensor, batch)
	seen := make(map[beliefIdentity]bool, len(frame.Rows))
	var collapsed []domain.Belief
	for _, c := range frame.Rows {
		id := beliefIdentity{c.EventStart.UTC(), c.SourceID, c.CumulativeProbability, c.EventValue}
		if seen[id] {
			continue
		}
		seen[id] = true
		collapsed = append(collapsed, c)
	}

	// One store comparison per (belief time, source) group, covering the
	// group's whole event span.
	type groupKey struct {
		beliefTime time.Time
		source     int64
	}
	groups := make(map[groupKey][]domain.Belief)
	var order []groupKey
	for _, c := range collapsed {
		k := groupKey{c.BeliefTime(sensor.EventResolution).UTC(), c.SourceID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
	}

	var kept []domain.Belief
	for _, k := range order {
		group := groups[k]

		minStart, maxStart := group[0].EventStart, group[0].EventStart
		for _, c := range group[1:] {
			if c.EventStart.Before(minStart) {
				minStart = c.EventStart
			}
			if c.EventStart.After(maxStart) {
				maxStart = c.EventStart
			}
		}
		end := maxStart.Add(sensor.EventResolution)
		if !end.After(maxStart) {
			// Instantaneous events span no duration; nudge the exclusive
			// bound past the last event.
			end = maxStart.Add(time.Nanosecond)
		}

		stored, err := s.beliefStore.MostRecentBefore(ctx, sensor.ID, k.source, domain.Window(minStart, end), hw, k.beliefTime)
		if err != nil {
			return nil, newQueryError(ConditionStoreUnavailable, sensor.Name,
				fmt.Sprintf("comparing beliefs held at %s", k.beliefTime.Format(time.RFC3339)), err)
		}

		held := make(map[beliefIdentity]bool, len(stored))
		for _, b := range stored {
			held[beliefIdentity{b.EventStart.UTC(), b.SourceID, b.CumulativeProbability, b.EventValue}] = true
		}

		// A changed probability row keeps its whole belief: partial updates
		// would corrupt the stored distribution.
		changedEvents := make(map[time.Time]bool)
		for _, c := range group {
			if !held[beliefIdentity{c.EventStart.UTC(), c.SourceID, c.CumulativeProbability, c.EventValue}] {
				changedEvents[c.EventStart.UTC()] = true
			}
		}
		for _, c := range group {
			if changedEvents[c.EventStart.UTC()] {
				kept = append(kept, c)
			}
		}
	}
	return kept, nil
}
