// Package catalog scans the video directory into the catalog and performs
// the file moves behind rename and archive.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kilianp07/obsched/core/logger"
	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/store"
)

// VideoExtensions are the file suffixes picked up by a scan.
var VideoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true,
	".webm": true, ".mpg": true, ".mpeg": true,
}

// IsVideoFile reports whether name has a recognised video extension.
func IsVideoFile(name string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(name))]
}

// VideoID is the stable identifier of the video file called name.
func VideoID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}

// Store is the persistence used by the scanner.
type Store interface {
	store.CatalogStore
	store.SettingsStore
}

// ScannerConfig tunes the scanner.
type ScannerConfig struct {
	Interval time.Duration
	Watch    bool
	Debounce time.Duration
}

// Scanner keeps the video part of the catalog in sync with the directory.
type Scanner struct {
	store   Store
	prober  Prober
	cfg     ScannerConfig
	limiter *rate.Limiter
	log     logger.Logger
	mu      sync.Mutex
}

// NewScanner creates a Scanner. Unforced refreshes run at most once per
// cfg.Interval.
func NewScanner(st Store, prober Prober, cfg ScannerConfig, log logger.Logger) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	return &Scanner{
		store:   st,
		prober:  prober,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		log:     logger.Nop(log),
	}
}

// Refresh scans the video directory. New files are added with a probed
// duration and known files with an unknown duration are probed again.
// rebuild also drops videos whose file disappeared. Unforced calls are
// throttled.
func (s *Scanner) Refresh(ctx context.Context, force, rebuild bool) error {
	if !force && !s.limiter.Allow() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	dir := settings.VideoDir()
	if dir == "" {
		return nil
	}
	files, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read video dir: %w", err)
	}

	items, err := s.store.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var activities, videos []model.CatalogItem
	for _, it := range items {
		if it.IsVideo {
			videos = append(videos, it)
		} else {
			activities = append(activities, it)
		}
	}
	byName := make(map[string]int, len(videos))
	for i, v := range videos {
		byName[v.Name] = i
	}

	changed := false
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if f.IsDir() || !IsVideoFile(f.Name()) {
			continue
		}
		name := f.Name()
		seen[name] = true
		if i, ok := byName[name]; ok {
			if videos[i].DurationMs <= 0 {
				if d := s.probe(ctx, filepath.Join(dir, name)); d > 0 {
					videos[i].DurationMs = d
					changed = true
				}
			}
			continue
		}
		videos = append(videos, model.CatalogItem{
			ID:         VideoID(name),
			Name:       name,
			DurationMs: s.probe(ctx, filepath.Join(dir, name)),
			IsVideo:    true,
		})
		byName[name] = len(videos) - 1
		changed = true
		s.log.Infof("found video %s", name)
	}
	if rebuild {
		kept := videos[:0]
		for _, v := range videos {
			if seen[v.Name] {
				kept = append(kept, v)
				continue
			}
			s.log.Infof("dropped missing video %s", v.Name)
			changed = true
		}
		videos = kept
	}
	if !changed {
		return nil
	}
	if err := s.store.WriteCatalog(ctx, append(videos, activities...)); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

func (s *Scanner) probe(ctx context.Context, path string) int64 {
	if s.prober == nil {
		return 0
	}
	d, err := s.prober.Probe(ctx, path)
	if err != nil {
		s.log.Warnf("probe %s: %v", filepath.Base(path), err)
		return 0
	}
	return d
}

// Run rescans periodically until ctx is done. With Watch enabled, changes
// in the video directory trigger a rescan after a short quiet period.
func (s *Scanner) Run(ctx context.Context) {
	if err := s.Refresh(ctx, true, false); err != nil {
		s.log.Errorf("initial scan: %v", err)
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if s.cfg.Watch {
		if w := s.watch(ctx); w != nil {
			defer func() { _ = w.Close() }()
			events, errs = w.Events, w.Errors
		}
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	debounce := time.NewTimer(s.cfg.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx, false, false); err != nil {
				s.log.Warnf("scan: %v", err)
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if IsVideoFile(ev.Name) && ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				debounce.Reset(s.cfg.Debounce)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.log.Warnf("watch: %v", err)
		case <-debounce.C:
			if err := s.Refresh(ctx, true, false); err != nil {
				s.log.Warnf("scan: %v", err)
			}
		}
	}
}

func (s *Scanner) watch(ctx context.Context) *fsnotify.Watcher {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		s.log.Warnf("watch disabled: %v", err)
		return nil
	}
	dir := settings.VideoDir()
	if dir == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warnf("watch disabled: %v", err)
		return nil
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		s.log.Warnf("watch %s: %v", dir, err)
		return nil
	}
	s.log.Debugf("watching %s", dir)
	return w
}
