package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hindsight-io/hindsight/internal/domain"
)

// In-memory implementations of the store interfaces, used by unit tests and
// by local runs without Postgres. Query semantics mirror the SQL stores.

type MemorySensorStore struct {
	mu     sync.RWMutex
	byID   map[int64]domain.Sensor
	nextID int64
}

func NewMemorySensorStore() *MemorySensorStore {
	return &MemorySensorStore{byID: make(map[int64]domain.Sensor)}
}

func (s *MemorySensorStore) Create(_ context.Context, sensor *domain.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Name == sensor.Name {
			return ErrConflict
		}
	}
	s.nextID++
	sensor.ID = s.nextID
	if sensor.CreatedAt.IsZero() {
		sensor.CreatedAt = time.Now().UTC()
	}
	s.byID[sensor.ID] = *sensor
	return nil
}

func (s *MemorySensorStore) GetByID(_ context.Context, id int64) (*domain.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sensor, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sensor, nil
}

func (s *MemorySensorStore) GetByName(_ context.Context, name string) (*domain.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sensor := range s.byID {
		if sensor.Name == name {
			out := sensor
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemorySensorStore) List(_ context.Context) ([]domain.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sensors := make([]domain.Sensor, 0, len(s.byID))
	for _, sensor := range s.byID {
		sensors = append(sensors, sensor)
	}
	sort.Slice(sensors, func(i, j int) bool { return sensors[i].Name < sensors[j].Name })
	return sensors, nil
}

type MemorySourceStore struct {
	mu     sync.RWMutex
	byID   map[int64]domain.DataSource
	nextID int64
}

func NewMemorySourceStore() *MemorySourceStore {
	return &MemorySourceStore{byID: make(map[int64]domain.DataSource)}
}

func (s *MemorySourceStore) LookupOrCreate(_ context.Context, label string, kind domain.SourceKind) (*domain.DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range s.byID {
		if src.Label == label {
			out := src
			return &out, nil
		}
	}
	s.nextID++
	src := domain.DataSource{ID: s.nextID, Kind: kind, Label: label, CreatedAt: time.Now().UTC()}
	s.byID[src.ID] = src
	return &src, nil
}

func (s *MemorySourceStore) GetByID(_ context.Context, id int64) (*domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &src, nil
}

func (s *MemorySourceStore) List(_ context.Context) ([]domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sources := make([]domain.DataSource, 0, len(s.byID))
	for _, src := range s.byID {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources, nil
}

type beliefKey struct {
	sensorID int64
	sourceID int64
	start    time.Time
	horizon  time.Duration
	prob     float64
}

type MemoryBeliefStore struct {
	mu      sync.RWMutex
	rows    map[beliefKey]domain.Belief
	sensors *MemorySensorStore
	sources *MemorySourceStore
}

func NewMemoryBeliefStore(sensors *MemorySensorStore, sources *MemorySourceStore) *MemoryBeliefStore {
	return &MemoryBeliefStore{
		rows:    make(map[beliefKey]domain.Belief),
		sensors: sensors,
		sources: sources,
	}
}

func keyOf(b domain.Belief) beliefKey {
	return beliefKey{
		sensorID: b.SensorID,
		sourceID: b.SourceID,
		start:    b.EventStart.UTC(),
		horizon:  b.Horizon,
		prob:     b.CumulativeProbability,
	}
}

func (s *MemoryBeliefStore) resolution(ctx context.Context, sensorID int64) time.Duration {
	sensor, err := s.sensors.GetByID(ctx, sensorID)
	if err != nil {
		return 0
	}
	return sensor.EventResolution
}

func (s *MemoryBeliefStore) kindOf(ctx context.Context, sourceID int64) domain.SourceKind {
	src, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return ""
	}
	return src.Kind
}

func (s *MemoryBeliefStore) RangeQuery(ctx context.Context, sensorIDs []int64, f domain.BeliefFilter) (map[int64][]domain.Belief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySensor := make(map[int64][]domain.Belief, len(sensorIDs))
	wanted := make(map[int64]bool, len(sensorIDs))
	for _, id := range sensorIDs {
		bySensor[id] = nil
		wanted[id] = true
	}

	for _, b := range s.rows {
		if !wanted[b.SensorID] {
			continue
		}
		if !f.EventWindow.Contains(b.EventStart) {
			continue
		}
		if !f.HorizonWindow.Contains(b.Horizon) {
			continue
		}
		bt := b.BeliefTime(s.resolution(ctx, b.SensorID))
		if f.BeliefsAfter != nil && bt.Before(*f.BeliefsAfter) {
			continue
		}
		if f.BeliefsBefore != nil && bt.After(*f.BeliefsBefore) {
			continue
		}
		if len(f.SourceIDs) > 0 && !containsID(f.SourceIDs, b.SourceID) {
			continue
		}
		if len(f.SourceKinds) > 0 && !containsKind(f.SourceKinds, s.kindOf(ctx, b.SourceID)) {
			continue
		}
		if len(f.ExcludeKinds) > 0 && containsKind(f.ExcludeKinds, s.kindOf(ctx, b.SourceID)) {
			continue
		}
		bySensor[b.SensorID] = append(bySensor[b.SensorID], b)
	}

	for id := range bySensor {
		sortBeliefs(bySensor[id])
	}
	return bySensor, nil
}

func (s *MemoryBeliefStore) MostRecentBefore(ctx context.Context, sensorID, sourceID int64, eventWindow domain.TimeWindow, horizonWindow domain.HorizonWindow, beliefTime time.Time) ([]domain.Belief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resolution := s.resolution(ctx, sensorID)

	// Smallest qualifying horizon per event wins; the belief may span
	// several probability rows at that horizon.
	winner := make(map[time.Time]time.Duration)
	for _, b := range s.rows {
		if b.SensorID != sensorID || b.SourceID != sourceID {
			continue
		}
		if !eventWindow.Contains(b.EventStart) || !horizonWindow.Contains(b.Horizon) {
			continue
		}
		if b.BeliefTime(resolution).After(beliefTime) {
			continue
		}
		k := b.EventStart.UTC()
		if h, ok := winner[k]; !ok || b.Horizon < h {
			winner[k] = b.Horizon
		}
	}

	var beliefs []domain.Belief
	for _, b := range s.rows {
		if b.SensorID != sensorID || b.SourceID != sourceID {
			continue
		}
		if h, ok := winner[b.EventStart.UTC()]; ok && b.Horizon == h &&
			eventWindow.Contains(b.EventStart) && horizonWindow.Contains(b.Horizon) {
			beliefs = append(beliefs, b)
		}
	}
	sortBeliefs(beliefs)
	return beliefs, nil
}

func (s *MemoryBeliefStore) Insert(_ context.Context, beliefs []domain.Belief) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted int64
	for _, b := range beliefs {
		k := keyOf(b)
		if _, exists := s.rows[k]; exists {
			continue
		}
		s.rows[k] = b
		inserted++
	}
	return inserted, nil
}

func sortBeliefs(beliefs []domain.Belief) {
	sort.SliceStable(beliefs, func(i, j int) bool {
		a, b := beliefs[i], beliefs[j]
		if !a.EventStart.Equal(b.EventStart) {
			return a.EventStart.Before(b.EventStart)
		}
		if a.Horizon != b.Horizon {
			return a.Horizon > b.Horizon
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.CumulativeProbability < b.CumulativeProbability
	})
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsKind(kinds []domain.SourceKind, kind domain.SourceKind) bool {
	for _, v := range kinds {
		if v == kind {
			return true
		}
	}
	return false
}
