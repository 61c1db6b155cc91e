package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/hindsight-io/hindsight/internal/domain"
)

// resampleFrame converts a frame to the target event resolution. Only
// downsampling to an integer multiple of the native resolution is supported;
// finer targets that evenly divide the native resolution pass the frame
// through untouched, since upsampling would have to invent data. Bucket
// values are arithmetic means, suiting intensity-like quantities.
//
// With keepOnlyMostRecent each sub-event contributes its most recent belief
// and every bucket yields one row, believed at the latest contributing
// belief time. Otherwise the belief evolution survives: per source and
// belief time, a bucket mean is emitted once every sub-event is known.
func resampleFrame(f *domain.BeliefFrame, target time.Duration, keepOnlyMostRecent bool) (*domain.BeliefFrame, error) {
	native := f.Resolution
	if target <= 0 || target == native {
		return f, nil
	}
	if target < native {
		if native%target != 0 {
			return nil, unsupportedResolution(f.Sensor.Name, native, target)
		}
		// Upsampling is not supported; callers get the native frame.
		return f, nil
	}
	if native > 0 && target%native != 0 {
		return nil, unsupportedResolution(f.Sensor.Name, native, target)
	}

	out := &domain.BeliefFrame{Sensor: f.Sensor, Resolution: target}
	if f.Empty() {
		return out, nil
	}
	if keepOnlyMostRecent {
		out.Rows = downsampleMostRecent(f, target)
	} else {
		out.Rows = downsampleFullHorizon(f, target)
	}
	sorted := domain.NewFrame(f.Sensor, out.Rows)
	out.Rows = sorted.Rows
	return out, nil
}

func unsupportedResolution(sensor string, native, target time.Duration) error {
	return newQueryError(ConditionUnsupportedResolution, sensor,
		fmt.Sprintf("cannot resample %s events to %s", native, target), nil)
}

// centralRow picks the row closest to the median of one belief's
// probability rows.
func centralRow(rows []domain.Belief) domain.Belief {
	best := rows[0]
	for _, r := range rows[1:] {
		d0 := best.CumulativeProbability - 0.5
		if d0 < 0 {
			d0 = -d0
		}
		d1 := r.CumulativeProbability - 0.5
		if d1 < 0 {
			d1 = -d1
		}
		if d1 < d0 || (d1 == d0 && r.CumulativeProbability < best.CumulativeProbability) {
			best = r
		}
	}
	return best
}

func downsampleMostRecent(f *domain.BeliefFrame, target time.Duration) []domain.Belief {
	// Reduce each event to the central estimate of its most recent belief,
	// then average those estimates per bucket.
	type estimate struct {
		row        domain.Belief
		beliefTime time.Time
	}
	recent := selectMostRecent(f.Rows)
	byEvent := make(map[time.Time][]domain.Belief)
	var events []time.Time
	for _, r := range recent {
		k := r.EventStart.UTC()
		if _, ok := byEvent[k]; !ok {
			events = append(events, k)
		}
		byEvent[k] = append(byEvent[k], r)
	}

	buckets := make(map[time.Time][]estimate)
	var order []time.Time
	for _, ev := range events {
		central := centralRow(byEvent[ev])
		bucket := ev.Truncate(target)
		if _, ok := buckets[bucket]; !ok {
			order = append(order, bucket)
		}
		buckets[bucket] = append(buckets[bucket], estimate{
			row:        central,
			beliefTime: central.BeliefTime(f.Resolution),
		})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	var rows []domain.Belief
	for _, bucket := range order {
		contributors := buckets[bucket]
		var sum float64
		latest := contributors[0]
		deterministic := true
		for _, c := range contributors {
			sum += c.row.EventValue
			if c.beliefTime.After(latest.beliefTime) ||
				(c.beliefTime.Equal(latest.beliefTime) && c.row.SourceID < latest.row.SourceID) {
				latest = c
			}
			if c.row.CumulativeProbability != 1 {
				deterministic = false
			}
		}
		prob := 0.5
		if deterministic {
			prob = 1
		}
		rows = append(rows, domain.Belief{
			SensorID:              f.Sensor.ID,
			SourceID:              latest.row.SourceID,
			EventStart:            bucket,
			Horizon:               bucket.Add(target).Sub(latest.beliefTime),
			CumulativeProbability: prob,
			EventValue:            sum / float64(len(contributors)),
		})
	}
	return rows
}

func downsampleFullHorizon(f *domain.BeliefFrame, target time.Duration) []domain.Belief {
	type groupKey struct {
		bucket time.Time
		source int64
	}
	groups := make(map[groupKey][]domain.Belief)
	var order []groupKey
	for _, r := range f.Rows {
		k := groupKey{r.EventStart.UTC().Truncate(target), r.SourceID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	var rows []domain.Belief
	for _, k := range order {
		group := groups[k]

		events := make(map[time.Time][]domain.Belief)
		var eventKeys []time.Time
		beliefTimes := make(map[time.Time]bool)
		for _, r := range group {
			k := r.EventStart.UTC()
			if _, ok := events[k]; !ok {
				eventKeys = append(eventKeys, k)
			}
			events[k] = append(events[k], r)
			beliefTimes[r.BeliefTime(f.Resolution).UTC()] = true
		}
		sort.Slice(eventKeys, func(i, j int) bool { return eventKeys[i].Before(eventKeys[j]) })
		var times []time.Time
		for bt := range beliefTimes {
			times = append(times, bt)
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

		for _, bt := range times {
			// The bucket mean at this belief time exists only once every
			// sub-event has been asserted.
			var sum float64
			count := 0
			deterministic := true
			complete := true
			for _, ek := range eventKeys {
				eventRows := events[ek]
				var latest []domain.Belief
				var latestTime time.Time
				for _, r := range eventRows {
					rbt := r.BeliefTime(f.Resolution)
					if rbt.After(bt) {
						continue
					}
					if len(latest) == 0 || rbt.After(latestTime) {
						latest = []domain.Belief{r}
						latestTime = rbt
					} else if rbt.Equal(latestTime) {
						latest = append(latest, r)
					}
				}
				if len(latest) == 0 {
					complete = false
					break
				}
				central := centralRow(latest)
				sum += central.EventValue
				count++
				if central.CumulativeProbability != 1 {
					deterministic = false
				}
			}
			if !complete {
				continue
			}
			prob := 0.5
			if deterministic {
				prob = 1
			}
			rows = append(rows, domain.Belief{
				SensorID:              f.Sensor.ID,
				SourceID:              k.source,
				EventStart:            k.bucket,
				Horizon:               k.bucket.Add(target).Sub(bt),
				CumulativeProbability: prob,
				EventValue:            sum / float64(count),
			})
		}
	}
	return rows
}
