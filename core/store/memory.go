package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/obsched/core/model"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu        sync.RWMutex
	schedule  []model.ScheduleEntry
	anchor    int64
	hasAnchor bool
	catalog   []model.CatalogItem
	settings  model.Settings
	templates map[string]map[int]model.Template
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: model.Settings{}, templates: make(map[string]map[int]model.Template)}
}

func (m *MemoryStore) Schedule(context.Context) ([]model.ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.ScheduleEntry(nil), m.schedule...), nil
}

func (m *MemoryStore) WriteSchedule(_ context.Context, entries []model.ScheduleEntry) error {
	m.mu.Lock()
	m.schedule = append([]model.ScheduleEntry(nil), entries...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) UpdateSchedule(_ context.Context, f ScheduleUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := f(append([]model.ScheduleEntry(nil), m.schedule...))
	if err != nil {
		return err
	}
	m.schedule = append([]model.ScheduleEntry(nil), next...)
	return nil
}

func (m *MemoryStore) ContestAnchor(context.Context) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anchor, m.hasAnchor, nil
}

func (m *MemoryStore) SetContestAnchor(_ context.Context, anchorMs int64) error {
	m.mu.Lock()
	m.anchor, m.hasAnchor = anchorMs, true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Rebase(_ context.Context, anchorMs int64, entries []model.ScheduleEntry) error {
	m.mu.Lock()
	m.anchor, m.hasAnchor = anchorMs, true
	m.schedule = append([]model.ScheduleEntry(nil), entries...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) UpdateContest(_ context.Context, f ContestUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	anchor, next, err := f(m.anchor, m.hasAnchor, append([]model.ScheduleEntry(nil), m.schedule...))
	if err != nil {
		return err
	}
	m.anchor, m.hasAnchor = anchor, true
	m.schedule = append([]model.ScheduleEntry(nil), next...)
	return nil
}

func (m *MemoryStore) Catalog(context.Context) ([]model.CatalogItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.CatalogItem(nil), m.catalog...), nil
}

func (m *MemoryStore) WriteCatalog(_ context.Context, items []model.CatalogItem) error {
	m.mu.Lock()
	m.catalog = append([]model.CatalogItem(nil), items...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Settings(context.Context) (model.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(model.Settings, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) WriteSettings(_ context.Context, s model.Settings) error {
	cp := make(model.Settings, len(s))
	for k, v := range s {
		cp[k] = v
	}
	m.mu.Lock()
	m.settings = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) TemplateVersions(_ context.Context, name string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []int
	for v := range m.templates[name] {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

func (m *MemoryStore) SaveTemplate(_ context.Context, name string, version int, t model.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.templates[name] == nil {
		m.templates[name] = make(map[int]model.Template)
	}
	t.Schedule = append([]model.ScheduleEntry(nil), t.Schedule...)
	m.templates[name][version] = t
	return nil
}

func (m *MemoryStore) LoadTemplate(_ context.Context, name string, version int) (model.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[name][version]
	if !ok {
		return model.Template{}, ErrNotFound
	}
	t.Schedule = append([]model.ScheduleEntry(nil), t.Schedule...)
	return t, nil
}

func (m *MemoryStore) TemplateNames(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.templates))
	for name := range m.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
