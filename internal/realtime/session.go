package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/notifystream/internal/auth"
	"github.com/charlesng35/notifystream/pkg/metrics"
)

// State is a position in the session lifecycle.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var pongFrame = []byte(`{"action":"pong"}`)

type controlMessage struct {
	Action string `json:"action"`
}

// Session is one realtime connection bound to a single user group.
type Session struct {
	id       string
	identity auth.Identity
	server   *Server

	mu    sync.Mutex
	state State
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Identity returns the authenticated principal.
func (s *Session) Identity() auth.Identity { return s.identity }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run upgrades the connection, joins the user's group, sends the initial frame
// and forwards group events until the connection ends. It blocks until the
// session is closed.
func (s *Session) Run(w http.ResponseWriter, r *http.Request) error {
	log := s.server.log.With(zap.String("session_id", s.id), zap.String("user_id", s.identity.UserID))

	conn, err := s.server.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.transition(StateClosed)
		return fmt.Errorf("realtime: upgrade: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.transition(StateAuthenticated)

	sub, err := s.server.broadcaster.Subscribe(ctx, s.identity.UserID)
	if err != nil {
		closeWith(conn, websocket.CloseTryAgainLater, "unavailable")
		s.transition(StateClosed)
		return fmt.Errorf("realtime: subscribe: %w", err)
	}
	defer sub.Close()

	if s.server.initial != nil {
		payload, err := s.server.initial.InitialMessage(ctx, s.identity.UserID)
		if err == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.TextMessage, payload)
		}
		if err != nil {
			log.Warn("initial message failed", zap.Error(err))
			closeWith(conn, websocket.CloseInternalServerErr, "initial state unavailable")
			s.transition(StateClosed)
			return fmt.Errorf("realtime: initial message: %w", err)
		}
	}

	s.transition(StateOpen)

	pong := make(chan struct{}, 1)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, conn, sub.Events(), pong)
	}()

	s.readLoop(conn, pong, log)
	cancel()
	<-writerDone

	s.transition(StateClosed)
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn, pong chan<- struct{}, log *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug("unexpected close", zap.Error(err))
			}
			return
		}

		var ctrl controlMessage
		if len(payload) == 0 || json.Unmarshal(payload, &ctrl) != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(ctrl.Action), "ping") {
			select {
			case pong <- struct{}{}:
			default:
			}
		}
	}
}

// writeLoop is the only writer once the session is open.
func (s *Session) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan []byte, pong <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	// Unblocks the reader when the writer stops first.
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				closeWith(conn, websocket.CloseGoingAway, "subscription ended")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-pong:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, pongFrame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	if from == StateClosed || from == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	switch {
	case to == StateOpen:
		metrics.RealtimeSessions.Inc()
	case to == StateClosed && from == StateOpen:
		metrics.RealtimeSessions.Dec()
	}

	if s.server.hook != nil {
		s.server.hook(s, from, to)
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
