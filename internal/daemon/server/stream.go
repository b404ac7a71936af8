package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/internal/daemon/watcher"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon only listens on loopback or a private socket.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleOutputStream pushes a session's captured output over a websocket,
// one text message per line, until the client goes away or the session closes.
func (s *Server) handleOutputStream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("sessionToken")
	sess, err := s.engine.Store().Get(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := s.logger.WithField("session", token)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(updates)

	// Reads are only needed to process control frames and notice a close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	lines, err := watcher.FollowOutput(ctx, sess.Dir.Output(), logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to follow output")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "cannot follow output"),
			time.Now().Add(writeWait))
		return
	}

	logger.Debug("Output stream client connected")
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Type == store.UpdateSessionClosed && u.Token == token {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			logger.Debug("Output stream client disconnected")
			return
		}
	}
}
