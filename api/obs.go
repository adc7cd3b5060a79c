package api

import "net/http"

func (s *server) withOBS(w http.ResponseWriter) bool {
	if s.OBS == nil {
		http.Error(w, "renderer not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// obsStatus doubles as a heartbeat: a failing request reports disconnected
// rather than an error status.
func (s *server) obsStatus(w http.ResponseWriter, r *http.Request) {
	if !s.withOBS(w) {
		return
	}
	scene, err := s.OBS.CurrentScene(r.Context())
	resp := map[string]any{"connected": err == nil, "scene": scene}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) obsStream(w http.ResponseWriter, r *http.Request) {
	if !s.withOBS(w) {
		return
	}
	active, err := s.OBS.StreamActive(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (s *server) obsStreamStart(w http.ResponseWriter, r *http.Request) {
	if !s.withOBS(w) {
		return
	}
	if err := s.OBS.StartStream(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": true})
}

func (s *server) obsStreamStop(w http.ResponseWriter, r *http.Request) {
	if !s.withOBS(w) {
		return
	}
	if err := s.OBS.StopStream(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": false})
}

func (s *server) obsAudioMonitoring(w http.ResponseWriter, r *http.Request) {
	if !s.withOBS(w) {
		return
	}
	res, err := s.OBS.ApplyAudioMonitoring(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
