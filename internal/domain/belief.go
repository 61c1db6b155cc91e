package domain

import "time"

// Belief is one row of a probabilistic time-series belief: source SourceID
// claimed, Horizon ahead of the event's end, that the value of the sensor's
// event starting at EventStart would be EventValue at the given cumulative
// probability. Rows sharing (sensor, source, event start, horizon) form a
// single probabilistic belief; a lone row with probability 0.5 or 1 is a
// deterministic estimate.
//
// Horizon is measured backwards from the event's end: positive horizons are
// beliefs formed before the event finished (ex-ante, e.g. forecasts),
// zero or negative ones after the fact (ex-post, e.g. meter readings).
type Belief struct {
	SensorID              int64         `json:"sensor_id"`
	SourceID              int64         `json:"source_id"`
	EventStart            time.Time     `json:"event_start"`
	Horizon               time.Duration `json:"belief_horizon"`
	CumulativeProbability float64       `json:"cumulative_probability"`
	EventValue            float64       `json:"event_value"`
}

// EventEnd returns when the event spanned by this belief finishes.
func (b Belief) EventEnd(resolution time.Duration) time.Time {
	return b.EventStart.Add(resolution)
}

// BeliefTime returns when the belief was formed: the event's end minus the
// horizon.
func (b Belief) BeliefTime(resolution time.Duration) time.Time {
	return b.EventStart.Add(resolution - b.Horizon)
}

func (b Belief) ExAnte() bool {
	return b.Horizon > 0
}

func ValidCumulativeProbability(p float64) bool {
	return p > 0 && p <= 1
}
