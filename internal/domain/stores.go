package domain

import (
	"context"
	"time"
)

// BeliefFilter narrows a range query. Every field is optional; zero values
// leave that dimension unconstrained. The event window is half-open on
// event start, horizon and belief-time bounds are inclusive.
type BeliefFilter struct {
	EventWindow   TimeWindow
	HorizonWindow HorizonWindow
	BeliefsAfter  *time.Time
	BeliefsBefore *time.Time
	SourceIDs     []int64
	SourceKinds   []SourceKind
	ExcludeKinds  []SourceKind
}

type SensorStore interface {
	Create(ctx context.Context, s *Sensor) error
	GetByID(ctx context.Context, id int64) (*Sensor, error)
	GetByName(ctx context.Context, name string) (*Sensor, error)
	List(ctx context.Context) ([]Sensor, error)
}

type SourceStore interface {
	// LookupOrCreate returns the source with the given label, creating it
	// with the given kind when absent.
	LookupOrCreate(ctx context.Context, label string, kind SourceKind) (*DataSource, error)
	GetByID(ctx context.Context, id int64) (*DataSource, error)
	List(ctx context.Context) ([]DataSource, error)
}

type BeliefStore interface {
	// RangeQuery returns the matching belief rows per sensor, each slice in
	// canonical frame order. Sensors without matches map to empty slices.
	RangeQuery(ctx context.Context, sensorIDs []int64, f BeliefFilter) (map[int64][]Belief, error)

	// MostRecentBefore returns, per event start in the window, the full set
	// of probability rows of the source's most recent belief formed at or
	// before beliefTime.
	MostRecentBefore(ctx context.Context, sensorID, sourceID int64, eventWindow TimeWindow, horizonWindow HorizonWindow, beliefTime time.Time) ([]Belief, error)

	// Insert persists the rows, skipping any whose identity already exists,
	// and returns how many were actually written.
	Insert(ctx context.Context, beliefs []Belief) (int64, error)
}
