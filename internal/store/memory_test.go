package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-io/hindsight/internal/domain"
)

func newMemoryFixture(t *testing.T) (*MemorySensorStore, *MemorySourceStore, *MemoryBeliefStore) {
	t.Helper()
	sensors := NewMemorySensorStore()
	sources := NewMemorySourceStore()
	return sensors, sources, NewMemoryBeliefStore(sensors, sources)
}

func TestMemorySensorStore(t *testing.T) {
	ctx := context.Background()
	sensors, _, _ := newMemoryFixture(t)

	s := &domain.Sensor{Name: "meter-a", Unit: "kWh", EventResolution: 15 * time.Minute}
	require.NoError(t, sensors.Create(ctx, s))
	assert.NotZero(t, s.ID)

	dup := &domain.Sensor{Name: "meter-a", Unit: "kWh"}
	assert.ErrorIs(t, sensors.Create(ctx, dup), ErrConflict)

	got, err := sensors.GetByName(ctx, "meter-a")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = sensors.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySourceLookupOrCreate(t *testing.T) {
	ctx := context.Background()
	_, sources, _ := newMemoryFixture(t)

	first, err := sources.LookupOrCreate(ctx, "forecast v2", domain.SourceKindForecaster)
	require.NoError(t, err)
	second, err := sources.LookupOrCreate(ctx, "forecast v2", domain.SourceKindForecaster)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := sources.LookupOrCreate(ctx, "scheduler v1", domain.SourceKindScheduler)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestMemoryBeliefInsertSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	sensors, sources, beliefs := newMemoryFixture(t)

	sensor := &domain.Sensor{Name: "meter-a", Unit: "kWh", EventResolution: 15 * time.Minute}
	require.NoError(t, sensors.Create(ctx, sensor))
	src, err := sources.LookupOrCreate(ctx, "meter", domain.SourceKindUser)
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := []domain.Belief{
		{SensorID: sensor.ID, SourceID: src.ID, EventStart: t0, Horizon: -time.Hour, CumulativeProbability: 0.5, EventValue: 1},
		{SensorID: sensor.ID, SourceID: src.ID, EventStart: t0.Add(15 * time.Minute), Horizon: -time.Hour, CumulativeProbability: 0.5, EventValue: 2},
	}

	n, err := beliefs.Insert(ctx, rows)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = beliefs.Insert(ctx, rows)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "duplicate identities should be skipped")
}

func TestMemoryRangeQueryFilters(t *testing.T) {
	ctx := context.Background()
	sensors, sources, beliefs := newMemoryFixture(t)

	sensor := &domain.Sensor{Name: "meter-a", Unit: "kWh", EventResolution: 15 * time.Minute}
	require.NoError(t, sensors.Create(ctx, sensor))
	user, err := sources.LookupOrCreate(ctx, "meter", domain.SourceKindUser)
	require.NoError(t, err)
	forecaster, err := sources.LookupOrCreate(ctx, "forecast v2", domain.SourceKindForecaster)
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed := []domain.Belief{
		{SensorID: sensor.ID, SourceID: user.ID, EventStart: t0, Horizon: 0, CumulativeProbability: 0.5, EventValue: 1},
		{SensorID: sensor.ID, SourceID: user.ID, EventStart: t0.Add(15 * time.Minute), Horizon: 0, CumulativeProbability: 0.5, EventValue: 2},
		{SensorID: sensor.ID, SourceID: forecaster.ID, EventStart: t0.Add(15 * time.Minute), Horizon: 6 * time.Hour, CumulativeProbability: 0.5, EventValue: 3},
	}
	_, err = beliefs.Insert(ctx, seed)
	require.NoError(t, err)

	t.Run("event window half-open", func(t *testing.T) {
		got, err := beliefs.RangeQuery(ctx, []int64{sensor.ID}, domain.BeliefFilter{
			EventWindow: domain.Window(t0, t0.Add(15*time.Minute)),
		})
		require.NoError(t, err)
		require.Len(t, got[sensor.ID], 1)
		assert.Equal(t, 1.0, got[sensor.ID][0].EventValue)
	})

	t.Run("horizon window keeps forecasts only", func(t *testing.T) {
		got, err := beliefs.RangeQuery(ctx, []int64{sensor.ID}, domain.BeliefFilter{
			HorizonWindow: domain.HorizonsAtLeast(time.Hour),
		})
		require.NoError(t, err)
		require.Len(t, got[sensor.ID], 1)
		assert.Equal(t, 3.0, got[sensor.ID][0].EventValue)
	})

	t.Run("belief time cutoff", func(t *testing.T) {
		// The forecast about 00:15 was formed at 18:30 the previous day;
		// the meter readings only at each event's end.
		cutoff := t0.Add(-time.Hour)
		got, err := beliefs.RangeQuery(ctx, []int64{sensor.ID}, domain.BeliefFilter{
			BeliefsBefore: &cutoff,
		})
		require.NoError(t, err)
		require.Len(t, got[sensor.ID], 1)
		assert.Equal(t, 3.0, got[sensor.ID][0].EventValue)
	})

	t.Run("exclude forecaster kind", func(t *testing.T) {
		got, err := beliefs.RangeQuery(ctx, []int64{sensor.ID}, domain.BeliefFilter{
			ExcludeKinds: []domain.SourceKind{domain.SourceKindForecaster},
		})
		require.NoError(t, err)
		assert.Len(t, got[sensor.ID], 2)
	})

	t.Run("unknown sensor maps to empty", func(t *testing.T) {
		got, err := beliefs.RangeQuery(ctx, []int64{42}, domain.BeliefFilter{})
		require.NoError(t, err)
		assert.Empty(t, got[42])
	})
}

func TestMemoryMostRecentBefore(t *testing.T) {
	ctx := context.Background()
	sensors, sources, beliefs := newMemoryFixture(t)

	sensor := &domain.Sensor{Name: "meter-a", Unit: "kWh", EventResolution: 15 * time.Minute}
	require.NoError(t, sensors.Create(ctx, sensor))
	src, err := sources.LookupOrCreate(ctx, "forecast v2", domain.SourceKindForecaster)
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seed := []domain.Belief{
		// Older probabilistic belief (two rows), then a newer revision.
		{SensorID: sensor.ID, SourceID: src.ID, EventStart: t0, Horizon: 2 * time.Hour, CumulativeProbability: 0.05, EventValue: 90},
		{SensorID: sensor.ID, SourceID: src.ID, EventStart: t0, Horizon: 2 * time.Hour, CumulativeProbability: 0.5, EventValue: 100},
		{SensorID: sensor.ID, SourceID: src.ID, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.05, EventValue: 95},
		{SensorID: sensor.ID, SourceID: src.ID, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.5, EventValue: 110},
	}
	_, err = beliefs.Insert(ctx, seed)
	require.NoError(t, err)

	window := domain.Window(t0, t0.Add(15*time.Minute))

	t.Run("latest revision wins with all probability rows", func(t *testing.T) {
		got, err := beliefs.MostRecentBefore(ctx, sensor.ID, src.ID, window, domain.HorizonWindow{}, t0.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, time.Hour, got[0].Horizon)
		assert.Equal(t, 95.0, got[0].EventValue)
		assert.Equal(t, 110.0, got[1].EventValue)
	})

	t.Run("cutoff hides the newer revision", func(t *testing.T) {
		// The 1h-horizon belief was formed at 11:15; cut off before that.
		got, err := beliefs.MostRecentBefore(ctx, sensor.ID, src.ID, window, domain.HorizonWindow{}, t0.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 2*time.Hour, got[0].Horizon)
		assert.Equal(t, 100.0, got[1].EventValue)
	})
}
