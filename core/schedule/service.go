package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kilianp07/obsched/core/logger"
	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/store"
	"github.com/kilianp07/obsched/internal/clock"
)

// addSlot is the grid that single additions snap to.
const addSlotMs int64 = 5 * 60 * 1000

// AnchorSource provides the contest anchor used in rendered views.
type AnchorSource interface {
	Anchor(ctx context.Context) (int64, error)
}

// Store is the persistence needed by the schedule service.
type Store interface {
	store.ScheduleStore
	store.CatalogStore
}

// Service applies operator edits to the persisted schedule.
type Service struct {
	store  Store
	anchor AnchorSource
	clock  clock.Clock
	log    logger.Logger
	newID  func() string
}

// NewService creates a schedule service. A nil clock uses the system time.
func NewService(st Store, anchor AnchorSource, clk clock.Clock, log logger.Logger) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Service{store: st, anchor: anchor, clock: clk, log: logger.Nop(log), newID: uuid.NewString}
}

// SetIDGenerator overrides the entry id generator.
func (s *Service) SetIDGenerator(f func() string) {
	if f != nil {
		s.newID = f
	}
}

// Entries returns the raw stored schedule in chronological order.
func (s *Service) Entries(ctx context.Context) ([]model.ScheduleEntry, error) {
	entries, err := s.store.Schedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	return model.SortedEntries(entries), nil
}

// errUnchanged aborts an update that would not modify the schedule.
var errUnchanged = errors.New("schedule unchanged")

// Replace overwrites the stored schedule with entries as given. Missing or
// repeated ids are replaced with fresh ones.
func (s *Service) Replace(ctx context.Context, entries []model.ScheduleEntry) error {
	used := make(map[string]bool, len(entries))
	for i := range entries {
		entries[i].ID = uniqueID(entries[i].ID, used, s.newID)
	}
	if err := s.store.WriteSchedule(ctx, entries); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	return nil
}

// Add schedules the catalog item with the given id at the next five-minute
// boundary at least five minutes from now.
func (s *Service) Add(ctx context.Context, itemID string) (model.ScheduleEntry, error) {
	items, err := s.store.Catalog(ctx)
	if err != nil {
		return model.ScheduleEntry{}, fmt.Errorf("read catalog: %w", err)
	}
	item, _, ok := model.FindItem(items, itemID)
	if !ok {
		return model.ScheduleEntry{}, fmt.Errorf("item %s: %w", itemID, store.ErrNotFound)
	}
	start := clock.NowMs(s.clock) + addSlotMs
	start = ((start + addSlotMs - 1) / addSlotMs) * addSlotMs

	e := model.ScheduleEntry{Name: item.Name, StartMs: start}
	err = s.store.UpdateSchedule(ctx, func(entries []model.ScheduleEntry) ([]model.ScheduleEntry, error) {
		used := make(map[string]bool, len(entries))
		for _, x := range entries {
			used[x.ID] = true
		}
		e.ID = uniqueID("", used, s.newID)
		return append(entries, e), nil
	})
	if err != nil {
		return model.ScheduleEntry{}, fmt.Errorf("update schedule: %w", err)
	}
	s.log.Infof("scheduled %s at %d", item.Name, start)
	return e, nil
}

// Remove deletes the entry with the given id. Removing an unknown id is a
// no-op and reports false.
func (s *Service) Remove(ctx context.Context, id string) (bool, error) {
	err := s.store.UpdateSchedule(ctx, func(entries []model.ScheduleEntry) ([]model.ScheduleEntry, error) {
		idx := model.FindEntry(entries, id)
		if idx < 0 {
			return nil, errUnchanged
		}
		return append(entries[:idx], entries[idx+1:]...), nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("update schedule: %w", err)
	}
	return true, nil
}

// Reschedule moves an entry to a new start. It reports false without
// writing when the start is unchanged.
func (s *Service) Reschedule(ctx context.Context, id string, startMs int64) (bool, error) {
	err := s.store.UpdateSchedule(ctx, func(entries []model.ScheduleEntry) ([]model.ScheduleEntry, error) {
		idx := model.FindEntry(entries, id)
		if idx < 0 {
			return nil, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
		}
		if entries[idx].StartMs == startMs {
			return nil, errUnchanged
		}
		entries[idx].StartMs = startMs
		return entries, nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		return false, err
	case err != nil:
		return false, fmt.Errorf("update schedule: %w", err)
	}
	return true, nil
}

// Bulk merges proposals into the stored schedule using mode and persists
// the result.
func (s *Service) Bulk(ctx context.Context, proposals []Proposal, mode Mode) ([]model.ScheduleEntry, error) {
	items, err := s.store.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat := model.NewCatalog(items)
	var merged []model.ScheduleEntry
	err = s.store.UpdateSchedule(ctx, func(existing []model.ScheduleEntry) ([]model.ScheduleEntry, error) {
		var err error
		merged, err = Resolve(existing, proposals, cat, mode, s.newID)
		return merged, err
	})
	switch {
	case errors.Is(err, ErrInvalidMode):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	s.log.Infof("bulk %s: %d proposed, %d entries stored", mode, len(proposals), len(merged))
	return merged, nil
}

func (s *Service) load(ctx context.Context) ([]model.ScheduleEntry, model.Catalog, error) {
	entries, err := s.store.Schedule(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read schedule: %w", err)
	}
	items, err := s.store.Catalog(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}
	return entries, model.NewCatalog(items), nil
}

// RenameItem rewrites every entry referring to oldName.
func RenameItem(entries []model.ScheduleEntry, oldName, newName string) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, len(entries))
	for i, e := range entries {
		if e.Name == oldName {
			e.Name = newName
		}
		out[i] = e
	}
	return out
}

// RemoveItem drops every entry referring to name.
func RemoveItem(entries []model.ScheduleEntry, name string) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	return out
}
