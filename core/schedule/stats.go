package schedule

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/obsched/core/model"
)

// Stats summarises a schedule for operators.
type Stats struct {
	Entries          int     `json:"entries"`
	Dangling         int     `json:"dangling"`
	Overlaps         int     `json:"overlaps"`
	TotalMs          int64   `json:"total_ms"`
	MeanDurationMs   float64 `json:"mean_duration_ms"`
	StdDevDurationMs float64 `json:"stddev_duration_ms"`
	MeanGapMs        float64 `json:"mean_gap_ms"`
	FirstStartMs     int64   `json:"first_start"`
	LastStopMs       int64   `json:"last_stop"`
	Utilization      float64 `json:"utilization"`
}

// Summarize computes schedule statistics over resolvable entries. Gaps are
// measured between consecutive entries; negative gaps count as overlaps.
func Summarize(entries []model.ScheduleEntry, cat model.Catalog) Stats {
	var st Stats
	var durations, gaps []float64
	var prevStop int64
	first := true
	for _, e := range model.SortedEntries(entries) {
		if _, ok := cat.Lookup(e.Name); !ok {
			st.Dangling++
			continue
		}
		iv := e.Interval(cat)
		st.Entries++
		st.TotalMs += iv.StopMs - iv.StartMs
		durations = append(durations, float64(iv.StopMs-iv.StartMs))
		if first {
			st.FirstStartMs = iv.StartMs
			first = false
		} else {
			gap := iv.StartMs - prevStop
			if gap < 0 {
				st.Overlaps++
			} else {
				gaps = append(gaps, float64(gap))
			}
		}
		if iv.StopMs > st.LastStopMs {
			st.LastStopMs = iv.StopMs
		}
		prevStop = max(prevStop, iv.StopMs)
	}
	if len(durations) > 0 {
		st.MeanDurationMs, st.StdDevDurationMs = stat.MeanStdDev(durations, nil)
		if len(durations) == 1 {
			st.StdDevDurationMs = 0
		}
	}
	if len(gaps) > 0 {
		st.MeanGapMs = stat.Mean(gaps, nil)
	}
	if span := st.LastStopMs - st.FirstStartMs; span > 0 {
		st.Utilization = float64(st.TotalMs) / float64(span)
	}
	return st
}

// Stats summarises the stored schedule.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	entries, cat, err := s.load(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(entries, cat), nil
}
