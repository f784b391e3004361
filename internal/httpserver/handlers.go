package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/auto-dns/docker-metrics-stream/internal/broadcast"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.inShutdown.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type statusResponse struct {
	Ready        bool                    `json:"ready"`
	ShuttingDown bool                    `json:"shuttingDown"`
	Workloads    int                     `json:"workloads"`
	Subscribers  map[broadcast.Topic]int `json:"subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{
		Ready:        s.ready.Load(),
		ShuttingDown: s.inShutdown.Load(),
		Workloads:    len(s.registry.CurrentWorkloads()),
		Subscribers: map[broadcast.Topic]int{
			broadcast.TopicMetrics: s.hub.Subscribers(broadcast.TopicMetrics),
			broadcast.TopicEvents:  s.hub.Subscribers(broadcast.TopicEvents),
		},
	})
}

func (s *Server) handleWorkloads(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.CurrentWorkloads())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.registry.Refresh(r.Context())
	s.writeJSON(w, http.StatusOK, s.registry.CurrentWorkloads())
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.collector.Collect(r.Context()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
