package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kilianp07/obsched/core/model"
)

// Mode selects how proposed entries are merged into an existing schedule.
type Mode string

const (
	// ModeSkip drops proposed entries that overlap the existing schedule.
	ModeSkip Mode = "skip"
	// ModeOverwrite removes existing entries overlapping any proposed entry.
	ModeOverwrite Mode = "overwrite"
	// ModeShift pushes each proposed entry forward until it fits.
	ModeShift Mode = "shift"
)

// ErrInvalidMode is returned for an unknown conflict mode.
var ErrInvalidMode = errors.New("invalid conflict mode")

// ParseMode validates a textual mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSkip, ModeOverwrite, ModeShift:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Proposal is a requested entry in a bulk insertion. ID is optional and
// Start is nil when the caller omitted it.
type Proposal struct {
	ID      string `json:"uuid,omitempty"`
	Name    string `json:"name"`
	StartMs *int64 `json:"start_timestamp"`
}

// UnmarshalJSON decodes a proposal leniently. A start_timestamp that is not
// an integral number, or an integral numeric string, leaves StartMs nil so
// Resolve drops the entry instead of the whole batch failing.
func (p *Proposal) UnmarshalJSON(b []byte) error {
	*p = Proposal{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	if v, ok := raw["uuid"]; ok {
		_ = json.Unmarshal(v, &p.ID)
	}
	if v, ok := raw["name"]; ok {
		_ = json.Unmarshal(v, &p.Name)
	}
	if ms, ok := parseTimestamp(raw["start_timestamp"]); ok {
		p.StartMs = &ms
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// uniqueID returns id, or a fresh one when id is empty or already in used,
// and records the result in used.
func uniqueID(id string, used map[string]bool, newID func() string) string {
	for id == "" || used[id] {
		id = newID()
	}
	used[id] = true
	return id
}

// Resolve merges proposals into existing according to mode and returns the
// schedule to persist: surviving existing entries followed by the placed
// proposals. Proposals without a name or start are dropped. newID supplies
// ids for proposals that do not carry one or whose id is already taken.
func Resolve(existing []model.ScheduleEntry, proposals []Proposal, cat model.Catalog, mode Mode, newID func() string) ([]model.ScheduleEntry, error) {
	switch mode {
	case ModeSkip, ModeOverwrite, ModeShift:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	used := make(map[string]bool, len(existing)+len(proposals))
	for _, e := range existing {
		used[e.ID] = true
	}
	incoming := make([]model.ScheduleEntry, 0, len(proposals))
	for _, p := range proposals {
		if p.Name == "" || p.StartMs == nil {
			continue
		}
		id := uniqueID(p.ID, used, newID)
		incoming = append(incoming, model.ScheduleEntry{ID: id, Name: p.Name, StartMs: *p.StartMs})
	}

	kept := append([]model.ScheduleEntry(nil), existing...)
	switch mode {
	case ModeSkip:
		incoming = skipConflicting(kept, incoming, cat)
	case ModeOverwrite:
		kept = removeOverwritten(kept, incoming, cat)
	case ModeShift:
		incoming = shiftForward(kept, incoming, cat)
	}
	return append(kept, incoming...), nil
}

// skipConflicting keeps the incoming entries that overlap nothing in
// existing. Incoming entries are not checked against each other.
func skipConflicting(existing, incoming []model.ScheduleEntry, cat model.Catalog) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, 0, len(incoming))
	for _, n := range incoming {
		if !overlapsAny(n.Interval(cat), existing, cat) {
			out = append(out, n)
		}
	}
	return out
}

func removeOverwritten(existing, incoming []model.ScheduleEntry, cat model.Catalog) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, 0, len(existing))
	for _, e := range existing {
		if !overlapsAny(e.Interval(cat), incoming, cat) {
			out = append(out, e)
		}
	}
	return out
}

// shiftForward places incoming entries one at a time in input order. A
// candidate colliding with an existing or already placed entry moves to
// that entry's stop and is tested again.
func shiftForward(existing, incoming []model.ScheduleEntry, cat model.Catalog) []model.ScheduleEntry {
	placed := make([]model.ScheduleEntry, 0, len(incoming))
	for _, n := range incoming {
		dur := cat.EffectiveDuration(n.Name)
		for {
			cand := model.Interval{StartMs: n.StartMs, StopMs: n.StartMs + dur}
			stop, found := firstConflict(cand, existing, cat)
			if !found {
				stop, found = firstConflict(cand, placed, cat)
			}
			if !found {
				break
			}
			n.StartMs = stop
		}
		placed = append(placed, n)
	}
	return placed
}

func firstConflict(iv model.Interval, entries []model.ScheduleEntry, cat model.Catalog) (int64, bool) {
	for _, e := range entries {
		other := e.Interval(cat)
		if iv.Overlaps(other) {
			return other.StopMs, true
		}
	}
	return 0, false
}

func overlapsAny(iv model.Interval, entries []model.ScheduleEntry, cat model.Catalog) bool {
	_, found := firstConflict(iv, entries, cat)
	return found
}
