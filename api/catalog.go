package api

import (
	"net/http"
	"strconv"

	"github.com/kilianp07/obsched/core/catalog"
	"github.com/kilianp07/obsched/core/model"
)

type catalogResponse struct {
	Videos     []catalog.Usage `json:"videos"`
	Activities []catalog.Usage `json:"activities"`
}

// catalog lists videos and activities. ?rescan=true forces a scan first and
// ?rebuild=true also drops items whose files are gone.
func (s *server) catalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rebuild, _ := strconv.ParseBool(q.Get("rebuild"))
	rescan, _ := strconv.ParseBool(q.Get("rescan"))
	if rescan || rebuild {
		if err := s.Catalog.Rescan(r.Context(), rebuild); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	videos, err := s.Catalog.Videos(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	activities, err := s.Catalog.Activities(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{Videos: videos, Activities: activities})
}

func (s *server) addActivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Duration string `json:"duration"`
	}
	if err := decode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.Catalog.AddActivity(r.Context(), body.Name, body.Duration)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *server) renameItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.Catalog.Rename(r.Context(), r.PathValue("id"), body.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *server) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.Catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) archiveItem(w http.ResponseWriter, r *http.Request) {
	path, err := s.Catalog.Archive(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Settings.Settings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if settings == nil {
		settings = model.Settings{}
	}
	writeJSON(w, http.StatusOK, settings)
}

// putSettings merges the body into the stored settings. A null value
// removes the key.
func (s *server) putSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.Settings
	if err := decode(w, r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	settings, err := s.Settings.Settings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if settings == nil {
		settings = model.Settings{}
	}
	for k, v := range patch {
		if v == nil {
			delete(settings, k)
			continue
		}
		settings[k] = v
	}
	if err := s.Settings.WriteSettings(r.Context(), settings); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
