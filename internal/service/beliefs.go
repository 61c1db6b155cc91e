package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hindsight-io/hindsight/internal/cache"
	"github.com/hindsight-io/hindsight/internal/domain"
	"github.com/hindsight-io/hindsight/internal/metrics"
	"github.com/hindsight-io/hindsight/internal/store"
)

// FetchRequest describes one belief query across any number of sensors.
type FetchRequest struct {
	Sensors        []string
	EventWindow    domain.TimeWindow
	HorizonWindow  domain.HorizonWindow
	BeliefsAfter   *time.Time
	BeliefsBefore  *time.Time
	AsOf           *time.Time
	SourceIDs      []int64
	SourceKinds    []domain.SourceKind
	ExcludeKinds   []domain.SourceKind
	Resolution     time.Duration
	MostRecentOnly bool
	Combine        bool
}

// SensorFailure records why one sensor's fetch failed without failing its
// siblings.
type SensorFailure struct {
	Sensor    string    `json:"sensor"`
	Condition Condition `json:"condition"`
	Message   string    `json:"message"`
}

type FetchResult struct {
	Frames   map[string]*domain.BeliefFrame `json:"frames,omitempty"`
	Combined *domain.BeliefFrame            `json:"combined,omitempty"`
	Failures []SensorFailure                `json:"failures,omitempty"`
	Warnings []string                       `json:"warnings,omitempty"`
}

// Beliefs is the belief time-series engine: fetching with most-recent
// selection, resampling and aggregation on the way out, deduplication on
// the way in. It is stateless between calls and safe for concurrent use.
type Beliefs struct {
	sensorStore domain.SensorStore
	sourceStore domain.SourceStore
	beliefStore domain.BeliefStore
	frames      cache.FrameCache
	metrics     *metrics.Metrics
	logger      *zap.Logger
	demoYear    int
	clock       func() time.Time
}

func NewBeliefs(sensors domain.SensorStore, sources domain.SourceStore, beliefs domain.BeliefStore, frames cache.FrameCache, m *metrics.Metrics, logger *zap.Logger, demoYear int) *Beliefs {
	return &Beliefs{
		sensorStore: sensors,
		sourceStore: sources,
		beliefStore: beliefs,
		frames:      frames,
		metrics:     m,
		logger:      logger,
		demoYear:    demoYear,
		clock:       time.Now,
	}
}

// Fetch runs the query pipeline per sensor: resolve, consult the frame
// cache, range-query, select most recent beliefs, resample, trim. An
// unknown sensor or unsupported resolution fails only that sensor; a store
// failure fails the whole call. With Combine set the per-sensor frames are
// summed into one.
func (s *Beliefs) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	if len(req.Sensors) == 0 {
		return nil, newQueryError(ConditionInvalidInput, "", "at least one sensor is required", nil)
	}

	storeWindow := req.EventWindow
	restoreYear := 0
	if s.demoYear != 0 {
		storeWindow = translateDemoWindow(req.EventWindow, s.demoYear)
		if req.EventWindow.Start != nil {
			restoreYear = req.EventWindow.Start.Year()
		} else {
			restoreYear = s.clock().Year()
		}
	}

	filter := domain.BeliefFilter{
		EventWindow:   storeWindow,
		HorizonWindow: req.HorizonWindow,
		BeliefsAfter:  req.BeliefsAfter,
		BeliefsBefore: req.BeliefsBefore,
		SourceIDs:     req.SourceIDs,
		SourceKinds:   req.SourceKinds,
		ExcludeKinds:  req.ExcludeKinds,
	}
	if req.AsOf != nil && (filter.BeliefsBefore == nil || req.AsOf.Before(*filter.BeliefsBefore)) {
		filter.BeliefsBefore = req.AsOf
	}
	fingerprint := fetchFingerprint(filter, req.Resolution, req.MostRecentOnly)

	result := &FetchResult{Frames: make(map[string]*domain.BeliefFrame)}

	type pendingSensor struct {
		name   string
		sensor *domain.Sensor
		cached *domain.BeliefFrame
	}
	var pending []pendingSensor
	var misses []int64
	for _, name := range req.Sensors {
		sensor, err := s.sensorStore.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.fail(result, name, newQueryError(ConditionNotFound, name, "unknown sensor", err))
				continue
			}
			return nil, newQueryError(ConditionStoreUnavailable, name, "resolving sensor", err)
		}

		p := pendingSensor{name: name, sensor: sensor}
		if s.frames != nil {
			if cached, ok := s.frames.Get(ctx, sensor.ID, fingerprint); ok {
				s.metrics.CacheHit()
				p.cached = cached
			} else {
				s.metrics.CacheMiss()
			}
		}
		if p.cached == nil {
			misses = append(misses, sensor.ID)
		}
		pending = append(pending, p)
	}

	var rowsBySensor map[int64][]domain.Belief
	if len(misses) > 0 {
		var err error
		rowsBySensor, err = s.beliefStore.RangeQuery(ctx, misses, filter)
		if err != nil {
			return nil, newQueryError(ConditionStoreUnavailable, "", "querying beliefs", err)
		}
	}

	var ordered []*domain.BeliefFrame
	for _, p := range pending {
		frame := p.cached
		if frame == nil {
			frame = domain.NewFrame(*p.sensor, rowsBySensor[p.sensor.ID])
			if req.MostRecentOnly {
				frame.Rows = selectMostRecent(frame.Rows)
			}
			resampled, err := resampleFrame(frame, req.Resolution, req.MostRecentOnly)
			if err != nil {
				s.fail(result, p.name, err)
				continue
			}
			frame = resampled
			frame.TrimWindow(storeWindow)
			if s.frames != nil {
				s.frames.Set(ctx, p.sensor.ID, fingerprint, frame)
			}
		}
		if s.demoYear != 0 {
			frame = frame.Clone()
			restoreDemoYear(frame, restoreYear)
		}
		s.metrics.QueryServed()
		result.Frames[p.name] = frame
		ordered = append(ordered, frame)
	}

	if req.Combine {
		combined, warnings := combineFrames(ordered)
		result.Combined = combined
		result.Frames = nil
		result.Warnings = warnings
		if len(warnings) > 0 {
			s.metrics.AggregationWarned()
			s.logger.Warn("approximate aggregation", zap.String("reasons", strings.Join(warnings, "; ")))
		}
	}
	return result, nil
}

func (s *Beliefs) fail(result *FetchResult, name string, err error) {
	condition := ConditionOf(err)
	s.logger.Warn("belief fetch failed",
		zap.String("sensor", name),
		zap.String("condition", string(condition)),
		zap.Error(err))
	s.metrics.QueryFailed(string(condition))
	result.Failures = append(result.Failures, SensorFailure{Sensor: name, Condition: condition, Message: err.Error()})
}

// fetchFingerprint keys cache entries by everything that shapes a frame
// besides the sensor itself.
func fetchFingerprint(f domain.BeliefFilter, resolution time.Duration, mostRecent bool) string {
	payload, _ := json.Marshal(struct {
		Filter     domain.BeliefFilter `json:"filter"`
		Resolution time.Duration       `json:"resolution"`
		MostRecent bool                `json:"most_recent"`
	}{f, resolution, mostRecent})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
