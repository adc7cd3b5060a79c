package schedule

import (
	"context"
	"fmt"

	"github.com/kilianp07/obsched/core/model"
)

// ViewEntry is a resolved entry as rendered to operators.
type ViewEntry struct {
	ID      string `json:"_id"`
	StartMs int64  `json:"start"`
	StopMs  int64  `json:"stop"`
	Name    string `json:"name"`
}

// View is the schedule payload returned after every schedule mutation.
type View struct {
	ContestTimestamp int64       `json:"contest_timestamp"`
	Schedule         []ViewEntry `json:"schedule"`
}

// Render builds the chronological view of entries. Dangling entries are
// left out.
func Render(anchorMs int64, entries []model.ScheduleEntry, cat model.Catalog) View {
	v := View{ContestTimestamp: anchorMs, Schedule: make([]ViewEntry, 0, len(entries))}
	for _, e := range model.SortedEntries(entries) {
		if _, ok := cat.Lookup(e.Name); !ok {
			continue
		}
		v.Schedule = append(v.Schedule, ViewEntry{ID: e.ID, StartMs: e.StartMs, StopMs: e.StopMs(cat), Name: e.Name})
	}
	return v
}

// View renders the stored schedule against the current anchor.
func (s *Service) View(ctx context.Context) (View, error) {
	entries, cat, err := s.load(ctx)
	if err != nil {
		return View{}, err
	}
	anchor, err := s.anchor.Anchor(ctx)
	if err != nil {
		return View{}, fmt.Errorf("contest anchor: %w", err)
	}
	return Render(anchor, entries, cat), nil
}

// Status values reported by CurrentStatus.
const (
	StatusIdle    = "idle"
	StatusPlaying = "playing"
	StatusSoon    = "soon"
)

// soonWindowMs is how far ahead an upcoming entry is announced.
const soonWindowMs int64 = 30000

// Status describes what is on air right now.
type Status struct {
	NowMs        int64   `json:"now_ts"`
	Status       string  `json:"status"`
	Name         *string `json:"name"`
	SecondsLeft  *int64  `json:"seconds_left"`
	SecondsUntil *int64  `json:"seconds_until"`
	StartMs      *int64  `json:"start_ts"`
	StopMs       *int64  `json:"stop_ts"`
}

// CurrentStatus reports the entry playing at nowMs, or the first entry
// starting within the next thirty seconds.
func CurrentStatus(nowMs int64, entries []model.ScheduleEntry, cat model.Catalog) Status {
	st := Status{NowMs: nowMs, Status: StatusIdle}
	for _, e := range model.SortedEntries(entries) {
		if _, ok := cat.Lookup(e.Name); !ok {
			continue
		}
		start, stop := e.StartMs, e.StopMs(cat)
		name := e.Name
		switch {
		case start <= nowMs && nowMs < stop:
			left := (stop - nowMs) / 1000
			st.Status, st.Name, st.SecondsLeft = StatusPlaying, &name, &left
		case nowMs < start && start-nowMs < soonWindowMs:
			until := (start - nowMs) / 1000
			st.Status, st.Name, st.SecondsUntil = StatusSoon, &name, &until
		default:
			continue
		}
		st.StartMs, st.StopMs = &start, &stop
		return st
	}
	return st
}

// Status reports the current on-air status from the stored schedule.
func (s *Service) Status(ctx context.Context) (Status, error) {
	entries, cat, err := s.load(ctx)
	if err != nil {
		return Status{}, err
	}
	return CurrentStatus(s.clock.Now().UnixMilli(), entries, cat), nil
}
