package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"feed-lab/auth"
	"feed-lab/contract"
	"feed-lab/domain/dm"
	"feed-lab/domain/event"
	"feed-lab/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait

	maxFrameSize = 8192
)

// sessionState models the lifecycle of one transport connection.
// There is no resumption: a reconnecting client gets a brand-new session and
// re-runs the full handshake.
type sessionState int

const (
	stateConnecting sessionState = iota
	stateAuthenticated
	stateJoined
	stateDisconnected
)

// inboundFrame is a client invocation received on the socket.
type inboundFrame struct {
	Type       string `json:"type"`
	ReceiverID int    `json:"receiverId"`
	Content    string `json:"content"`
}

// outboundFrame is a server-to-client event or application error.
type outboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session serves one live connection: a read pump in the handler goroutine
// and a write pump goroutine draining the sink. All writes to the socket go
// through the write pump, gorilla allows a single concurrent writer.
type session struct {
	id     uuid.UUID
	userID dm.UserID
	state  sessionState
	conn   *websocket.Conn
	sink   *Sink
	errs   chan outboundFrame
	hub    contract.IHub
	log    *slog.Logger
}

// handleHub upgrades the connection and runs the session until the client
// goes away. Identity was already verified by the auth middleware, from the
// access_token query parameter accepted on this path only.
func (s *Server) handleHub(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	sess := &session{
		id:     uuid.New(),
		userID: userID,
		state:  stateConnecting,
		conn:   conn,
		sink:   NewSink(s.connectionBufferSize),
		errs:   make(chan outboundFrame, 4),
		hub:    s.hub,
		log:    s.log,
	}
	sess.run(c.Request.Context())
}

func (s *session) run(ctx context.Context) {
	// Identity was established before the upgrade completed.
	s.state = stateAuthenticated

	s.hub.OnConnect(s.id, s.userID, s.sink)
	s.state = stateJoined

	// Guaranteed cleanup: whatever ends the session (clean close, dropped
	// transport, write failure), the connection leaves its group.
	defer func() {
		s.hub.OnDisconnect(s.id)
		s.state = stateDisconnected
		_ = s.conn.Close()
	}()

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.writePump(pumpCtx, cancel)

	s.readPump(pumpCtx)
}

// readPump consumes client invocations until the transport closes.
func (s *session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Connection dropped", "conn_id", s.id, "error", err)
			}
			return
		}

		switch frame.Type {
		case "sendMessage":
			s.handleSend(ctx, frame)
		default:
			s.pushError("unknown_operation", fmt.Sprintf("unsupported frame type %q", frame.Type))
		}
	}
}

func (s *session) handleSend(ctx context.Context, frame inboundFrame) {
	// Sender identity comes from the session, never from the frame.
	_, err := s.hub.OnSend(ctx, s.userID, dm.UserID(frame.ReceiverID), frame.Content)
	if err == nil {
		// The sender sees its own message through the fan-out, like any
		// other of its open sessions.
		return
	}

	// Application errors are surfaced to this caller only, never broadcast.
	switch {
	case errors.IsValidation(err):
		s.pushError("validation", err.Error())
	default:
		s.pushError("send_failed", err.Error())
	}
}

// pushError hands an error frame to the write pump. If the session is so far
// behind that even the error channel is full, the frame is dropped.
func (s *session) pushError(code, message string) {
	select {
	case s.errs <- outboundFrame{Type: "error", Code: code, Message: message}:
	default:
	}
}

// writePump is the single writer of the socket. It serializes delivery
// events, application errors and keepalive pings.
func (s *session) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	// A write failure means the transport is gone; close the socket so the
	// blocked read side returns immediately instead of waiting out the pong
	// deadline with the dead connection still in its group.
	defer func() {
		cancel()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case evt := <-s.sink.Events:
			if err := s.writeEvent(evt); err != nil {
				return
			}
		case frame := <-s.errs:
			if err := s.writeFrame(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) writeEvent(evt event.DomainEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		s.log.Error("Event marshal failed", "conn_id", s.id, "error", err)
		return nil
	}
	return s.writeFrame(outboundFrame{Type: evt.Name(), Payload: payload})
}

func (s *session) writeFrame(frame outboundFrame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(frame); err != nil {
		s.log.Debug("Write failed, closing session", "conn_id", s.id, "error", err)
		return err
	}
	return nil
}
