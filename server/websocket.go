package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"secure-chat/contract"
	"secure-chat/domain"
	"secure-chat/runtime"

	"github.com/gorilla/websocket"
)

const (
	// Large enough for base64-encoded encrypted file payloads.
	maxFrameSize = 1 << 20
	writeWait    = 10 * time.Second
)

// RelayHandler upgrades connections and runs one session per client.
// The claimed identity comes from the URL path; verifying it belongs to the
// authentication layer in front of this handler.
type RelayHandler struct {
	log        *slog.Logger
	router     *runtime.Router
	registry   contract.IRegistry
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewRelayHandler(log *slog.Logger, router *runtime.Router,
	registry contract.IRegistry, bufferSize int) *RelayHandler {
	return &RelayHandler{
		log:      log,
		router:   router,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers talk to the relay from a separately-hosted frontend.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
	}
}

// ServeWS handles GET /ws/{client_id}. A connection whose identity cannot
// be established is rejected before it ever reaches the registry.
func (h *RelayHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("client_id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	s := &session{
		log:      h.log,
		router:   h.router,
		registry: h.registry,
		conn:     conn,
		userID:   userID,
		sink:     newWSSink(h.bufferSize),
	}
	s.run(r)
}

// session is the per-connection state machine: register on connect, decode
// and route frames while active, then deregister on transport close.
type session struct {
	log      *slog.Logger
	router   *runtime.Router
	registry contract.IRegistry
	conn     *websocket.Conn
	userID   int64
	sink     *wsSink
}

func (s *session) run(r *http.Request) {
	s.registry.Register(s.userID, s.sink)
	s.log.Info("Client connected", "user_id", s.userID, "remote", s.conn.RemoteAddr())

	go s.writePump()
	s.readLoop(r)

	// Closed: a stale session must not evict a connection that replaced it,
	// so removal is guarded by sink identity.
	s.registry.Unregister(s.userID, s.sink)
	s.sink.Close()
	_ = s.conn.Close()
	s.log.Info("Client disconnected", "user_id", s.userID)
}

// readLoop processes frames strictly in receipt order: the next frame is
// not read until the current one's routing completes. A malformed frame is
// dropped without closing the connection.
func (s *session) readLoop(r *http.Request) {
	s.conn.SetReadLimit(maxFrameSize)
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn(fmt.Sprintf("Client %d transport error", s.userID), "error", err)
			}
			return
		}

		envelope, err := domain.DecodeEnvelope(s.userID, frame)
		if err != nil {
			s.log.Debug("Dropping undecodable frame", "user_id", s.userID, "error", err)
			continue
		}

		s.router.Process(r.Context(), envelope, frame)
	}
}

// writePump is the only goroutine writing to the connection. It drains the
// sink until the session ends or the sink is closed because a newer
// connection for the same user superseded this one.
func (s *session) writePump() {
	defer s.conn.Close()
	for {
		select {
		case frame := <-s.sink.frames:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("Delivery failed", "user_id", s.userID, "error", err)
				return
			}
		case <-s.sink.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
