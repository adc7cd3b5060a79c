// Package catalog manages the playable items: scanned video files and
// operator-defined activities. Renaming, deleting and archiving an item
// cascade to the schedule entries that reference it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kilianp07/obsched/core/logger"
	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/schedule"
	"github.com/kilianp07/obsched/core/store"
	"github.com/kilianp07/obsched/internal/clock"
)

var (
	// ErrInvalidName is returned for empty names or names containing a path
	// separator.
	ErrInvalidName = errors.New("invalid item name")
	// ErrNameTaken is returned when another item already uses the name.
	ErrNameTaken = errors.New("item name already in use")
	// ErrInvalidDuration is returned for unparsable activity durations.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrNotConfigured is returned when a required directory setting is unset.
	ErrNotConfigured = errors.New("directory not configured")
	// ErrNotVideo is returned for file operations on an activity.
	ErrNotVideo = errors.New("item is not a video")
)

// Store is the persistence used by the catalog service.
type Store interface {
	store.CatalogStore
	store.ScheduleStore
	store.SettingsStore
}

// MediaFiles performs the file operations behind rename and archive.
type MediaFiles interface {
	// Rename moves dir/oldName to dir/newName. A missing source is not an
	// error; an existing target is reported with ErrNameTaken.
	Rename(dir, oldName, newName string) error
	// Archive moves dir/name into archiveDir, choosing a free file name, and
	// returns the destination path. A missing source is not an error.
	Archive(dir, name, archiveDir string) (string, error)
}

// Refresher rescans the video directory. force bypasses throttling.
type Refresher interface {
	Refresh(ctx context.Context, force, rebuild bool) error
}

// AnchorSource provides the contest anchor for play offsets.
type AnchorSource interface {
	Anchor(ctx context.Context) (int64, error)
}

// Service implements catalog queries and mutations.
type Service struct {
	store   Store
	files   MediaFiles
	scanner Refresher
	anchor  AnchorSource
	clock   clock.Clock
	log     logger.Logger
}

// NewService creates a catalog service. scanner may be nil.
func NewService(st Store, files MediaFiles, scanner Refresher, anchor AnchorSource, clk clock.Clock, log logger.Logger) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Service{store: st, files: files, scanner: scanner, anchor: anchor, clock: clk, log: logger.Nop(log)}
}

// Usage is a catalog item together with where it appears in the schedule.
// Offsets are relative to the contest anchor.
type Usage struct {
	model.CatalogItem
	PreviousOffsetsMs []int64 `json:"previous"`
	FutureOffsetsMs   []int64 `json:"future"`
}

// Items returns every catalog item, refreshing the video scan when due.
func (s *Service) Items(ctx context.Context) ([]model.CatalogItem, error) {
	if s.scanner != nil {
		if err := s.scanner.Refresh(ctx, false, false); err != nil {
			s.log.Warnf("video scan: %v", err)
		}
	}
	items, err := s.store.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return items, nil
}

// Videos lists video items sorted by name.
func (s *Service) Videos(ctx context.Context) ([]Usage, error) { return s.list(ctx, true) }

// Activities lists activities sorted by name.
func (s *Service) Activities(ctx context.Context) ([]Usage, error) { return s.list(ctx, false) }

func (s *Service) list(ctx context.Context, videos bool) ([]Usage, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	items = model.FilterItems(items, videos)
	model.SortItemsByName(items)

	entries, err := s.store.Schedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	anchor, err := s.anchor.Anchor(ctx)
	if err != nil {
		return nil, fmt.Errorf("contest anchor: %w", err)
	}
	now := clock.NowMs(s.clock)
	sorted := model.SortedEntries(entries)

	out := make([]Usage, 0, len(items))
	for _, it := range items {
		u := Usage{CatalogItem: it, PreviousOffsetsMs: []int64{}, FutureOffsetsMs: []int64{}}
		for _, e := range sorted {
			if e.Name != it.Name {
				continue
			}
			if e.StartMs < now {
				u.PreviousOffsetsMs = append(u.PreviousOffsetsMs, e.StartMs-anchor)
			} else {
				u.FutureOffsetsMs = append(u.FutureOffsetsMs, e.StartMs-anchor)
			}
		}
		out = append(out, u)
	}
	return out, nil
}

// ParseDuration reads an activity duration given as "minutes-seconds" or as
// a plain number of seconds.
func ParseDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if m, sec, ok := strings.Cut(s, "-"); ok {
		mins, err1 := strconv.ParseInt(strings.TrimSpace(m), 10, 64)
		secs, err2 := strconv.ParseInt(strings.TrimSpace(sec), 10, 64)
		if err1 != nil || err2 != nil || mins < 0 || secs < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		return mins*60000 + secs*1000, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return secs * 1000, nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// AddActivity registers a timed activity.
func (s *Service) AddActivity(ctx context.Context, name, duration string) (model.CatalogItem, error) {
	name, err := validName(name)
	if err != nil {
		return model.CatalogItem{}, err
	}
	dur, err := ParseDuration(duration)
	if err != nil {
		return model.CatalogItem{}, err
	}
	items, err := s.store.Catalog(ctx)
	if err != nil {
		return model.CatalogItem{}, fmt.Errorf("read catalog: %w", err)
	}
	for _, it := range items {
		if !it.IsVideo && it.Name == name {
			return model.CatalogItem{}, fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
	}
	item := model.CatalogItem{ID: uuid.NewString(), Name: name, DurationMs: dur}
	if err := s.store.WriteCatalog(ctx, append(items, item)); err != nil {
		return model.CatalogItem{}, fmt.Errorf("write catalog: %w", err)
	}
	s.log.Infof("added activity %s (%dms)", name, dur)
	return item, nil
}

// Rename gives an item a new name. Video files are moved on disk. Schedule
// entries referring to the old name follow the item.
func (s *Service) Rename(ctx context.Context, id, newName string) (model.CatalogItem, error) {
	newName, err := validName(newName)
	if err != nil {
		return model.CatalogItem{}, err
	}
	items, err := s.store.Catalog(ctx)
	if err != nil {
		return model.CatalogItem{}, fmt.Errorf("read catalog: %w", err)
	}
	item, idx, ok := model.FindItem(items, id)
	if !ok {
		return model.CatalogItem{}, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	if item.Name == newName {
		return item, nil
	}
	for _, it := range items {
		if it.IsVideo == item.IsVideo && it.Name == newName {
			return model.CatalogItem{}, fmt.Errorf("%w: %s", ErrNameTaken, newName)
		}
	}
	if item.IsVideo {
		dir, err := s.videoDir(ctx)
		if err != nil {
			return model.CatalogItem{}, err
		}
		if err := s.files.Rename(dir, item.Name, newName); err != nil {
			return model.CatalogItem{}, fmt.Errorf("rename file: %w", err)
		}
	}
	oldName := item.Name
	item.Name = newName
	items[idx] = item
	if err := s.store.WriteCatalog(ctx, items); err != nil {
		return model.CatalogItem{}, fmt.Errorf("write catalog: %w", err)
	}
	if err := s.cascade(ctx, func(e []model.ScheduleEntry) []model.ScheduleEntry {
		return schedule.RenameItem(e, oldName, newName)
	}); err != nil {
		return model.CatalogItem{}, err
	}
	s.log.Infof("renamed %s to %s", oldName, newName)
	return item, nil
}

// Delete removes an item from the catalog and drops its schedule entries.
// The media file is left in place.
func (s *Service) Delete(ctx context.Context, id string) error {
	item, err := s.remove(ctx, id)
	if err != nil {
		return err
	}
	s.log.Infof("deleted %s", item.Name)
	return nil
}

// Archive moves a video file into the archive directory, removes the item
// and drops its schedule entries.
func (s *Service) Archive(ctx context.Context, id string) (string, error) {
	items, err := s.store.Catalog(ctx)
	if err != nil {
		return "", fmt.Errorf("read catalog: %w", err)
	}
	item, _, ok := model.FindItem(items, id)
	if !ok {
		return "", fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	if !item.IsVideo {
		return "", fmt.Errorf("%s: %w", item.Name, ErrNotVideo)
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return "", fmt.Errorf("read settings: %w", err)
	}
	dir, archive := settings.VideoDir(), settings.String(model.SettingArchiveDir, "")
	if dir == "" || archive == "" {
		return "", fmt.Errorf("%w: %s and a video directory are required", ErrNotConfigured, model.SettingArchiveDir)
	}
	target, err := s.files.Archive(dir, item.Name, archive)
	if err != nil {
		return "", fmt.Errorf("archive file: %w", err)
	}
	if _, err := s.remove(ctx, id); err != nil {
		return "", err
	}
	s.log.Infof("archived %s to %s", item.Name, target)
	return target, nil
}

func (s *Service) remove(ctx context.Context, id string) (model.CatalogItem, error) {
	items, err := s.store.Catalog(ctx)
	if err != nil {
		return model.CatalogItem{}, fmt.Errorf("read catalog: %w", err)
	}
	item, idx, ok := model.FindItem(items, id)
	if !ok {
		return model.CatalogItem{}, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	items = append(items[:idx], items[idx+1:]...)
	if err := s.store.WriteCatalog(ctx, items); err != nil {
		return model.CatalogItem{}, fmt.Errorf("write catalog: %w", err)
	}
	if err := s.cascade(ctx, func(e []model.ScheduleEntry) []model.ScheduleEntry {
		return schedule.RemoveItem(e, item.Name)
	}); err != nil {
		return model.CatalogItem{}, err
	}
	return item, nil
}

func (s *Service) cascade(ctx context.Context, f func([]model.ScheduleEntry) []model.ScheduleEntry) error {
	err := s.store.UpdateSchedule(ctx, func(entries []model.ScheduleEntry) ([]model.ScheduleEntry, error) {
		return f(entries), nil
	})
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

func (s *Service) videoDir(ctx context.Context) (string, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return "", fmt.Errorf("read settings: %w", err)
	}
	dir := settings.VideoDir()
	if dir == "" {
		return "", fmt.Errorf("%w: video directory", ErrNotConfigured)
	}
	return dir, nil
}

// Rescan forces a video scan. rebuild drops items whose files are gone.
func (s *Service) Rescan(ctx context.Context, rebuild bool) error {
	if s.scanner == nil {
		return fmt.Errorf("%w: no scanner", ErrNotConfigured)
	}
	return s.scanner.Refresh(ctx, true, rebuild)
}
