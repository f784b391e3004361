package httpserver

import (
	"net/http"

	"github.com/auto-dns/docker-metrics-stream/internal/storage"
)

func (s *Server) handleAllEvents(w http.ResponseWriter, r *http.Request) {
	s.serveEvents(w, r, storage.EventQuery{})
}

func (s *Server) handleEventsForApp(w http.ResponseWriter, r *http.Request) {
	app := r.URL.Query().Get("appName")
	if app == "" {
		http.Error(w, "missing appName query parameter", http.StatusBadRequest)
		return
	}
	s.serveEvents(w, r, storage.EventQuery{Image: app})
}

// handleMostRecentEvent answers with a list holding at most the single newest event.
func (s *Server) handleMostRecentEvent(w http.ResponseWriter, r *http.Request) {
	s.serveEvents(w, r, storage.EventQuery{Limit: 1})
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request, q storage.EventQuery) {
	events, err := s.events.Events(r.Context(), q)
	if err != nil {
		s.logger.Error().Err(err).Str("image", q.Image).Msg("Failed to read event history")
		http.Error(w, "event history unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}
