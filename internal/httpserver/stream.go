package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/auto-dns/docker-metrics-stream/internal/broadcast"
)

func (s *Server) handleMetricsStream(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, broadcast.TopicMetrics)
}

func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, broadcast.TopicEvents)
}

// stream upgrades the request and forwards every message of topic to the client as JSON until
// either side goes away.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, topic broadcast.Topic) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.OriginPatterns})
	if err != nil {
		s.logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	sub := s.hub.Subscribe(topic, 0)
	defer s.hub.Unsubscribe(sub)

	logger := s.logger.With().Str("subscription", sub.ID).Str("topic", string(topic)).Logger()
	logger.Info().Msgf("Subscriber connected from %s", r.RemoteAddr)

	// Clients never send; CloseRead handles control frames and cancels ctx when they disconnect.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			if s.inShutdown.Load() {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			logger.Info().Msg("Subscriber disconnected")
			return
		case msg, ok := <-sub.C:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, s.writeTimeout())
			err := wsjson.Write(wctx, conn, msg)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Warn().Err(err).Msg("Dropping subscriber after failed write")
				}
				return
			}
		}
	}
}
