package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hindsight-io/hindsight/internal/domain"
)

// beliefTimeExpr computes when a belief was formed: the event's end minus
// the horizon. Requires sensors joined as s.
const beliefTimeExpr = "b.event_start + (s.event_resolution_us - b.belief_horizon_us) * interval '1 microsecond'"

type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

func (s *BeliefStore) RangeQuery(ctx context.Context, sensorIDs []int64, f domain.BeliefFilter) (map[int64][]domain.Belief, error) {
	bySensor := make(map[int64][]domain.Belief, len(sensorIDs))
	for _, id := range sensorIDs {
		bySensor[id] = nil
	}
	if len(sensorIDs) == 0 {
		return bySensor, nil
	}

	var conditions []string
	var args []any

	conditions = append(conditions, fmt.Sprintf("b.sensor_id = ANY($%d)", len(args)+1))
	args = append(args, sensorIDs)

	if f.EventWindow.Start != nil {
		conditions = append(conditions, fmt.Sprintf("b.event_start >= $%d", len(args)+1))
		args = append(args, *f.EventWindow.Start)
	}
	if f.EventWindow.End != nil {
		conditions = append(conditions, fmt.Sprintf("b.event_start < $%d", len(args)+1))
		args = append(args, *f.EventWindow.End)
	}
	if f.HorizonWindow.AtLeast != nil {
		conditions = append(conditions, fmt.Sprintf("b.belief_horizon_us >= $%d", len(args)+1))
		args = append(args, usFromDuration(*f.HorizonWindow.AtLeast))
	}
	if f.HorizonWindow.AtMost != nil {
		conditions = append(conditions, fmt.Sprintf("b.belief_horizon_us <= $%d", len(args)+1))
		args = append(args, usFromDuration(*f.HorizonWindow.AtMost))
	}
	if f.BeliefsAfter != nil {
		conditions = append(conditions, fmt.Sprintf(beliefTimeExpr+" >= $%d", len(args)+1))
		args = append(args, *f.BeliefsAfter)
	}
	if f.BeliefsBefore != nil {
		conditions = append(conditions, fmt.Sprintf(beliefTimeExpr+" <= $%d", len(args)+1))
		args = append(args, *f.BeliefsBefore)
	}
	if len(f.SourceIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("b.source_id = ANY($%d)", len(args)+1))
		args = append(args, f.SourceIDs)
	}
	if len(f.SourceKinds) > 0 {
		conditions = append(conditions, fmt.Sprintf("d.kind = ANY($%d)", len(args)+1))
		args = append(args, kindStrings(f.SourceKinds))
	}
	if len(f.ExcludeKinds) > 0 {
		conditions = append(conditions, fmt.Sprintf("NOT (d.kind = ANY($%d))", len(args)+1))
		args = append(args, kindStrings(f.ExcludeKinds))
	}

	query := fmt.Sprintf(
		`SELECT b.sensor_id, b.source_id, b.event_start, b.belief_horizon_us, b.cumulative_probability, b.event_value
		 FROM beliefs b
		 JOIN sensors s ON s.id = b.sensor_id
		 JOIN data_sources d ON d.id = b.source_id
		 WHERE %s
		 ORDER BY b.sensor_id, b.event_start, b.belief_horizon_us DESC, b.source_id, b.cumulative_probability`,
		strings.Join(conditions, " AND "),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBelief(rows)
		if err != nil {
			return nil, fmt.Errorf("scan belief row: %w", err)
		}
		bySensor[b.SensorID] = append(bySensor[b.SensorID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range query rows: %w", err)
	}
	return bySensor, nil
}

func (s *BeliefStore) MostRecentBefore(ctx context.Context, sensorID, sourceID int64, eventWindow domain.TimeWindow, horizonWindow domain.HorizonWindow, beliefTime time.Time) ([]domain.Belief, error) {
	conditions := []string{"b.sensor_id = $1", "b.source_id = $2"}
	args := []any{sensorID, sourceID}

	if eventWindow.Start != nil {
		conditions = append(conditions, fmt.Sprintf("b.event_start >= $%d", len(args)+1))
		args = append(args, *eventWindow.Start)
	}
	if eventWindow.End != nil {
		conditions = append(conditions, fmt.Sprintf("b.event_start < $%d", len(args)+1))
		args = append(args, *eventWindow.End)
	}
	if horizonWindow.AtLeast != nil {
		conditions = append(conditions, fmt.Sprintf("b.belief_horizon_us >= $%d", len(args)+1))
		args = append(args, usFromDuration(*horizonWindow.AtLeast))
	}
	if horizonWindow.AtMost != nil {
		conditions = append(conditions, fmt.Sprintf("b.belief_horizon_us <= $%d", len(args)+1))
		args = append(args, usFromDuration(*horizonWindow.AtMost))
	}
	conditions = append(conditions, fmt.Sprintf(beliefTimeExpr+" <= $%d", len(args)+1))
	args = append(args, beliefTime)

	// The inner select picks, per event, the smallest horizon (most recent
	// belief) still known at the cutoff; the join recovers every
	// probability row of that belief.
	query := fmt.Sprintf(
		`SELECT b.sensor_id, b.source_id, b.event_start, b.belief_horizon_us, b.cumulative_probability, b.event_value
		 FROM beliefs b
		 JOIN (
		     SELECT DISTINCT ON (b.event_start) b.event_start AS event_start, b.belief_horizon_us AS horizon_us
		     FROM beliefs b
		     JOIN sensors s ON s.id = b.sensor_id
		     WHERE %s
		     ORDER BY b.event_start, b.belief_horizon_us ASC
		 ) latest ON latest.event_start = b.event_start AND latest.horizon_us = b.belief_horizon_us
		 WHERE b.sensor_id = $1 AND b.source_id = $2
		 ORDER BY b.event_start, b.cumulative_probability`,
		strings.Join(conditions, " AND "),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("most recent query: %w", err)
	}
	defer rows.Close()

	var beliefs []domain.Belief
	for rows.Next() {
		b, err := scanBelief(rows)
		if err != nil {
			return nil, fmt.Errorf("scan belief row: %w", err)
		}
		beliefs = append(beliefs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("most recent rows: %w", err)
	}
	return beliefs, nil
}

func (s *BeliefStore) Insert(ctx context.Context, beliefs []domain.Belief) (int64, error) {
	if len(beliefs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, b := range beliefs {
		batch.Queue(
			`INSERT INTO beliefs (sensor_id, source_id, event_start, belief_horizon_us, cumulative_probability, event_value)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT DO NOTHING`,
			b.SensorID, b.SourceID, b.EventStart, usFromDuration(b.Horizon), b.CumulativeProbability, b.EventValue,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	var inserted int64
	for range beliefs {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return inserted, fmt.Errorf("insert beliefs: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, results.Close()
}

func scanBelief(rows pgx.Rows) (domain.Belief, error) {
	var b domain.Belief
	var horizonUS int64
	err := rows.Scan(&b.SensorID, &b.SourceID, &b.EventStart, &horizonUS, &b.CumulativeProbability, &b.EventValue)
	if err != nil {
		return b, err
	}
	b.Horizon = durationFromUS(horizonUS)
	return b, nil
}

func kindStrings(kinds []domain.SourceKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
