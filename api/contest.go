package api

import (
	"fmt"
	"net/http"
)

func (s *server) contestState(w http.ResponseWriter, r *http.Request) {
	st, err := s.Contest.State(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// contestStart accepts an absolute start_timestamp, a time of day "HH:MM"
// for today, or neither to start now.
func (s *server) contestStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StartMs *int64 `json:"start_timestamp"`
		At      string `json:"time"`
	}
	if r.ContentLength != 0 {
		if err := decode(w, r, &body); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	var (
		anchor int64
		err    error
	)
	if body.At != "" {
		var h, m int
		if _, scanErr := fmt.Sscanf(body.At, "%d:%d", &h, &m); scanErr != nil {
			http.Error(w, "time must be HH:MM", http.StatusBadRequest)
			return
		}
		anchor, err = s.Contest.StartAt(r.Context(), h, m)
	} else {
		anchor, err = s.Contest.Start(r.Context(), body.StartMs)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"contest_timestamp": anchor})
}

func (s *server) templates(w http.ResponseWriter, r *http.Request) {
	names, err := s.Contest.Templates(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *server) saveTemplate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	version, err := s.Contest.SaveTemplate(r.Context(), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"name": name, "version": version})
}

func (s *server) loadTemplate(w http.ResponseWriter, r *http.Request) {
	anchor, err := s.Contest.LoadTemplate(r.Context(), r.PathValue("name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"contest_timestamp": anchor})
}
