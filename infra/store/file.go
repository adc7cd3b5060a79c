package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kilianp07/obsched/core/model"
	corestore "github.com/kilianp07/obsched/core/store"
)

const (
	contestFile  = "contest.json"
	catalogFile  = "catalog.json"
	settingsFile = "config.json"
	templateDir  = "schedules"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// contestDoc keeps the anchor and the schedule in one file so a rebase is
// a single rename.
type contestDoc struct {
	Anchor   *int64                `json:"contest_timestamp,omitempty"`
	Schedule []model.ScheduleEntry `json:"schedule"`
}

// FileStore persists everything as JSON documents under a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ corestore.Store = (*FileStore)(nil)

// NewFileStore creates the data directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file store: path is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, templateDir), 0o755); err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) string { return filepath.Join(s.dir, name) }

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	b = bytes.TrimPrefix(b, utf8BOM)
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path atomically through a temporary file.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FileStore) readContest() (contestDoc, error) {
	var doc contestDoc
	err := readJSON(s.path(contestFile), &doc)
	return doc, err
}

func (s *FileStore) Schedule(context.Context) ([]model.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readContest()
	if err != nil {
		return nil, err
	}
	return doc.Schedule, nil
}

func (s *FileStore) WriteSchedule(_ context.Context, entries []model.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readContest()
	if err != nil {
		return err
	}
	doc.Schedule = nonNil(entries)
	return writeJSON(s.path(contestFile), doc)
}

func (s *FileStore) UpdateSchedule(_ context.Context, f corestore.ScheduleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readContest()
	if err != nil {
		return err
	}
	next, err := f(doc.Schedule)
	if err != nil {
		return err
	}
	doc.Schedule = nonNil(next)
	return writeJSON(s.path(contestFile), doc)
}

func (s *FileStore) ContestAnchor(context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readContest()
	if err != nil || doc.Anchor == nil {
		return 0, false, err
	}
	return *doc.Anchor, true, nil
}

func (s *FileStore) SetContestAnchor(_ context.Context, anchorMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readContest()
	if err != nil {
		return err
	}
	doc.Anchor = &anchorMs
	doc.Schedule = nonNil(doc.Schedule)
	return writeJSON(s.path(contestFile), doc)
}

func (s *FileStore) Rebase(_ context.Context, anchorMs int64, entries []model.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path(contestFile), contestDoc{Anchor: &anchorMs, Schedule: nonNil(entries)})
}

func (s *FileStore) UpdateContest(_ context.Context, f corestore.ContestUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readContest()
	if err != nil {
		return err
	}
	var anchor int64
	if doc.Anchor != nil {
		anchor = *doc.Anchor
	}
	anchor, next, err := f(anchor, doc.Anchor != nil, doc.Schedule)
	if err != nil {
		return err
	}
	return writeJSON(s.path(contestFile), contestDoc{Anchor: &anchor, Schedule: nonNil(next)})
}

func (s *FileStore) Catalog(context.Context) ([]model.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []model.CatalogItem
	err := readJSON(s.path(catalogFile), &items)
	return items, err
}

func (s *FileStore) WriteCatalog(_ context.Context, items []model.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if items == nil {
		items = []model.CatalogItem{}
	}
	return writeJSON(s.path(catalogFile), items)
}

func (s *FileStore) Settings(context.Context) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := model.Settings{}
	err := readJSON(s.path(settingsFile), &settings)
	return settings, err
}

func (s *FileStore) WriteSettings(_ context.Context, settings model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings == nil {
		settings = model.Settings{}
	}
	return writeJSON(s.path(settingsFile), settings)
}

// templateFiles maps template names to their stored versions.
func (s *FileStore) templateFiles() (map[string][]int, error) {
	entries, err := os.ReadDir(s.path(templateDir))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]int{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string][]int)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ver, ok := parseTemplateFile(e.Name())
		if !ok {
			continue
		}
		out[name] = append(out[name], ver)
	}
	for _, v := range out {
		sort.Ints(v)
	}
	return out, nil
}

// parseTemplateFile splits "<name>.<version>".
func parseTemplateFile(file string) (string, int, bool) {
	i := strings.LastIndexByte(file, '.')
	if i <= 0 || strings.HasPrefix(file, ".") {
		return "", 0, false
	}
	v, err := strconv.Atoi(file[i+1:])
	if err != nil || v < 0 {
		return "", 0, false
	}
	return file[:i], v, true
}

func (s *FileStore) templatePath(name string, version int) string {
	return filepath.Join(s.dir, templateDir, fmt.Sprintf("%s.%d", name, version))
}

func (s *FileStore) TemplateVersions(_ context.Context, name string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.templateFiles()
	if err != nil {
		return nil, err
	}
	return files[name], nil
}

func (s *FileStore) SaveTemplate(_ context.Context, name string, version int, t model.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.templatePath(name, version)
	if _, err := os.Stat(p); err == nil {
		return fmt.Errorf("template %s.%d already exists", name, version)
	}
	t.Schedule = nonNil(t.Schedule)
	return writeJSON(p, t)
}

func (s *FileStore) LoadTemplate(_ context.Context, name string, version int) (model.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.templatePath(name, version)
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return model.Template{}, fmt.Errorf("template %s.%d: %w", name, version, corestore.ErrNotFound)
	}
	var t model.Template
	err := readJSON(p, &t)
	return t, err
}

func (s *FileStore) TemplateNames(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.templateFiles()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op; every write is flushed when it returns.
func (s *FileStore) Close() error { return nil }

func nonNil(entries []model.ScheduleEntry) []model.ScheduleEntry {
	if entries == nil {
		return []model.ScheduleEntry{}
	}
	return entries
}
