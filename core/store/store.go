// Package store defines the persistence contracts used by the scheduler
// core. Backends live in infra/store.
package store

import (
	"context"
	"errors"

	"github.com/kilianp07/obsched/core/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ScheduleUpdate derives a new schedule from the stored one.
type ScheduleUpdate func(entries []model.ScheduleEntry) ([]model.ScheduleEntry, error)

// ContestUpdate derives a new anchor and schedule from the stored pair. ok
// is false when no anchor is set yet.
type ContestUpdate func(anchorMs int64, ok bool, entries []model.ScheduleEntry) (int64, []model.ScheduleEntry, error)

// ScheduleStore persists the unordered set of schedule entries.
type ScheduleStore interface {
	Schedule(ctx context.Context) ([]model.ScheduleEntry, error)
	// WriteSchedule atomically replaces the whole schedule.
	WriteSchedule(ctx context.Context, entries []model.ScheduleEntry) error
	// UpdateSchedule runs f on the stored schedule and writes its result
	// with no other write in between. f must not call back into the store.
	// When f fails nothing is written and its error is returned as is.
	UpdateSchedule(ctx context.Context, f ScheduleUpdate) error
}

// ContestStore persists the contest anchor.
type ContestStore interface {
	// ContestAnchor returns the stored anchor; ok is false when none is set.
	ContestAnchor(ctx context.Context) (anchorMs int64, ok bool, err error)
	SetContestAnchor(ctx context.Context, anchorMs int64) error
	// Rebase stores a new anchor and schedule as one unit: either both are
	// visible afterwards or neither is.
	Rebase(ctx context.Context, anchorMs int64, entries []model.ScheduleEntry) error
	// UpdateContest is the read-modify-write form of Rebase, with the same
	// rules as UpdateSchedule.
	UpdateContest(ctx context.Context, f ContestUpdate) error
}

// CatalogStore persists videos and activities.
type CatalogStore interface {
	Catalog(ctx context.Context) ([]model.CatalogItem, error)
	WriteCatalog(ctx context.Context, items []model.CatalogItem) error
}

// SettingsStore persists the runtime settings map.
type SettingsStore interface {
	Settings(ctx context.Context) (model.Settings, error)
	WriteSettings(ctx context.Context, s model.Settings) error
}

// TemplateStore persists versioned schedule templates.
type TemplateStore interface {
	// TemplateVersions lists the stored versions of name in ascending order.
	TemplateVersions(ctx context.Context, name string) ([]int, error)
	SaveTemplate(ctx context.Context, name string, version int, t model.Template) error
	// LoadTemplate returns ErrNotFound when the version does not exist.
	LoadTemplate(ctx context.Context, name string, version int) (model.Template, error)
	TemplateNames(ctx context.Context) ([]string, error)
}

// Store aggregates every persistence contract.
type Store interface {
	ScheduleStore
	ContestStore
	CatalogStore
	SettingsStore
	TemplateStore
	Close() error
}
