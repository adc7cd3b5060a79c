// Package api exposes the scheduler over HTTP with JSON bodies.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kilianp07/obsched/core/catalog"
	"github.com/kilianp07/obsched/core/contest"
	"github.com/kilianp07/obsched/core/logger"
	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/playback"
	"github.com/kilianp07/obsched/core/schedule"
	"github.com/kilianp07/obsched/core/store"
	"github.com/kilianp07/obsched/infra/obs"
)

// ScheduleService is the schedule surface used by the handlers.
type ScheduleService interface {
	Entries(ctx context.Context) ([]model.ScheduleEntry, error)
	Replace(ctx context.Context, entries []model.ScheduleEntry) error
	View(ctx context.Context) (schedule.View, error)
	Add(ctx context.Context, itemID string) (model.ScheduleEntry, error)
	Remove(ctx context.Context, id string) (bool, error)
	Reschedule(ctx context.Context, id string, startMs int64) (bool, error)
	Bulk(ctx context.Context, proposals []schedule.Proposal, mode schedule.Mode) ([]model.ScheduleEntry, error)
	Status(ctx context.Context) (schedule.Status, error)
	Stats(ctx context.Context) (schedule.Stats, error)
}

// ContestService is the contest clock surface used by the handlers.
type ContestService interface {
	State(ctx context.Context) (contest.State, error)
	Start(ctx context.Context, anchorMs *int64) (int64, error)
	StartAt(ctx context.Context, hour, minute int) (int64, error)
	Templates(ctx context.Context) ([]string, error)
	SaveTemplate(ctx context.Context, name string) (int, error)
	LoadTemplate(ctx context.Context, name string) (int64, error)
}

// CatalogService is the catalog surface used by the handlers.
type CatalogService interface {
	Videos(ctx context.Context) ([]catalog.Usage, error)
	Activities(ctx context.Context) ([]catalog.Usage, error)
	AddActivity(ctx context.Context, name, duration string) (model.CatalogItem, error)
	Rename(ctx context.Context, id, newName string) (model.CatalogItem, error)
	Delete(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) (string, error)
	Rescan(ctx context.Context, rebuild bool) error
}

// PlaybackState exposes the coordinator's in-memory state.
type PlaybackState interface {
	Snapshot() playback.State
}

// OBSControl is the renderer surface beyond playback.
type OBSControl interface {
	CurrentScene(ctx context.Context) (string, error)
	StreamActive(ctx context.Context) (bool, error)
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
	ApplyAudioMonitoring(ctx context.Context) (obs.MonitoringResult, error)
}

// Deps holds the services behind the API. OBS may be nil.
type Deps struct {
	Schedule ScheduleService
	Contest  ContestService
	Catalog  CatalogService
	Settings store.SettingsStore
	Playback PlaybackState
	OBS      OBSControl
	// Token, when set, is required as a Bearer token on /api routes.
	Token string
}

type server struct {
	Deps
	log logger.Logger
}

// New builds the HTTP handler.
func New(d Deps, log logger.Logger) http.Handler {
	s := &server{Deps: d, log: logger.Nop(log)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("GET /api/schedule", s.getSchedule)
	mux.HandleFunc("PUT /api/schedule", s.putSchedule)
	mux.HandleFunc("GET /api/schedule/view", s.getView)
	mux.HandleFunc("POST /api/schedule/entries", s.addEntry)
	mux.HandleFunc("DELETE /api/schedule/entries/{id}", s.removeEntry)
	mux.HandleFunc("PATCH /api/schedule/entries/{id}", s.rescheduleEntry)
	mux.HandleFunc("POST /api/schedule/bulk", s.bulk)
	mux.HandleFunc("GET /api/schedule/stats", s.stats)
	mux.HandleFunc("GET /api/state", s.state)
	mux.HandleFunc("GET /api/playback", s.playback)

	mux.HandleFunc("GET /api/contest", s.contestState)
	mux.HandleFunc("POST /api/contest/start", s.contestStart)
	mux.HandleFunc("GET /api/templates", s.templates)
	mux.HandleFunc("POST /api/templates/{name}", s.saveTemplate)
	mux.HandleFunc("POST /api/templates/{name}/load", s.loadTemplate)

	mux.HandleFunc("GET /api/catalog", s.catalog)
	mux.HandleFunc("POST /api/catalog/activities", s.addActivity)
	mux.HandleFunc("POST /api/catalog/items/{id}/rename", s.renameItem)
	mux.HandleFunc("DELETE /api/catalog/items/{id}", s.deleteItem)
	mux.HandleFunc("POST /api/catalog/items/{id}/archive", s.archiveItem)

	mux.HandleFunc("GET /api/settings", s.getSettings)
	mux.HandleFunc("PUT /api/settings", s.putSettings)

	mux.HandleFunc("GET /api/obs/status", s.obsStatus)
	mux.HandleFunc("GET /api/obs/stream", s.obsStream)
	mux.HandleFunc("POST /api/obs/stream/start", s.obsStreamStart)
	mux.HandleFunc("POST /api/obs/stream/stop", s.obsStreamStop)
	mux.HandleFunc("POST /api/obs/audio-monitoring", s.obsAudioMonitoring)

	return s.auth(mux)
}

func (s *server) auth(next http.Handler) http.Handler {
	if s.Token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && r.Header.Get("Authorization") != "Bearer "+s.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errBadRequest{err}
	}
	return nil
}

type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return "invalid request body: " + e.err.Error() }
func (e errBadRequest) Unwrap() error { return e.err }

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	var bad errBadRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, contest.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, schedule.ErrInvalidMode),
		errors.Is(err, catalog.ErrInvalidName),
		errors.Is(err, catalog.ErrInvalidDuration),
		errors.Is(err, catalog.ErrNotVideo),
		errors.Is(err, catalog.ErrNotConfigured),
		errors.Is(err, contest.ErrInvalidName),
		errors.Is(err, contest.ErrInvalidTime):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= 500 {
		s.log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	http.Error(w, err.Error(), code)
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
