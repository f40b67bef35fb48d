package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/sashi/internal/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 120 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleEventsWS streams lifecycle events as JSON text frames. With
// ?replay=N the newest N buffered events are sent first. Clients only read;
// anything they send is discarded.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "event stream not configured")
		return
	}
	replay, err := queryInt(r, "replay")
	if err != nil {
		s.respondServiceError(w, r, "event", err)
		return
	}

	// Subscribe before the upgrade so nothing published in between is missed.
	ch, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()

		write := func(evt events.Event) bool {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				s.log.Debug().Err(err).Msg("event stream write failed")
				return false
			}
			return true
		}

		if replay > 0 {
			for _, evt := range s.hub.Recent(replay) {
				if !write(evt) {
					return
				}
			}
		}

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !write(evt) {
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	<-writerDone
}
