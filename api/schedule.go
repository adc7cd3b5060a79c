package api

import (
	"net/http"
	"strings"

	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/schedule"
)

func (s *server) getSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Schedule.Entries(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) putSchedule(w http.ResponseWriter, r *http.Request) {
	var entries []model.ScheduleEntry
	if err := decode(w, r, &entries); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Schedule.Replace(r.Context(), entries); err != nil {
		s.fail(w, r, err)
		return
	}
	s.getSchedule(w, r)
}

func (s *server) getView(w http.ResponseWriter, r *http.Request) {
	v, err := s.Schedule.View(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *server) addEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID string `json:"uuid"`
	}
	if err := decode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.Schedule.Add(r.Context(), body.ItemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *server) removeEntry(w http.ResponseWriter, r *http.Request) {
	removed, err := s.Schedule.Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *server) rescheduleEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StartMs *int64 `json:"start_timestamp"`
	}
	if err := decode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.StartMs == nil {
		http.Error(w, "start_timestamp is required", http.StatusBadRequest)
		return
	}
	changed, err := s.Schedule.Reschedule(r.Context(), r.PathValue("id"), *body.StartMs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func (s *server) bulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode    string              `json:"mode"`
		Entries []schedule.Proposal `json:"entries"`
	}
	if err := decode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	mode := schedule.ModeSkip
	if strings.TrimSpace(body.Mode) != "" {
		var err error
		if mode, err = schedule.ParseMode(body.Mode); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if _, err := s.Schedule.Bulk(r.Context(), body.Entries, mode); err != nil {
		s.fail(w, r, err)
		return
	}
	s.getView(w, r)
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Schedule.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) state(w http.ResponseWriter, r *http.Request) {
	st, err := s.Schedule.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) playback(w http.ResponseWriter, _ *http.Request) {
	if s.Playback == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"running": false})
		return
	}
	writeJSON(w, http.StatusOK, s.Playback.Snapshot())
}
