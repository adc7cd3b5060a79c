package model

import "sort"

// DefaultDurationMs is the duration assumed for items whose length is not
// known yet.
const DefaultDurationMs int64 = 60000

// ScheduleEntry is one scheduled occurrence of a catalog item. Name is a
// soft reference and may dangle after the item is renamed or removed.
type ScheduleEntry struct {
	ID      string `json:"uuid"`
	Name    string `json:"name"`
	StartMs int64  `json:"start_timestamp"`
}

// Interval is a half-open time range [StartMs, StopMs).
type Interval struct {
	StartMs int64
	StopMs  int64
}

// Overlaps reports whether two half-open intervals intersect.
func (a Interval) Overlaps(b Interval) bool {
	return a.StartMs < b.StopMs && b.StartMs < a.StopMs
}

// Interval returns the entry's interval using the catalog duration.
func (e ScheduleEntry) Interval(c Catalog) Interval {
	return Interval{StartMs: e.StartMs, StopMs: e.StartMs + c.EffectiveDuration(e.Name)}
}

// StopMs returns the derived stop timestamp.
func (e ScheduleEntry) StopMs(c Catalog) int64 {
	return e.StartMs + c.EffectiveDuration(e.Name)
}

// SortedEntries returns a chronologically ordered copy of entries. Entries
// starting at the same time keep their stored order.
func SortedEntries(entries []ScheduleEntry) []ScheduleEntry {
	out := append([]ScheduleEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMs < out[j].StartMs })
	return out
}

// FindEntry returns the index of the entry with the given id, or -1.
func FindEntry(entries []ScheduleEntry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Template is a saved contest anchor together with its schedule.
type Template struct {
	AnchorMs int64           `json:"start_timestamp"`
	Schedule []ScheduleEntry `json:"schedule"`
}
