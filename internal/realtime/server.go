package realtime

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/notifystream/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// InitialSource renders the first frame a session sends after joining its group.
type InitialSource interface {
	InitialMessage(ctx context.Context, userID string) ([]byte, error)
}

// StateHook observes session state transitions.
type StateHook func(session *Session, from, to State)

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithStateHook registers a hook invoked on every session transition.
func WithStateHook(hook StateHook) ServerOption {
	return func(s *Server) {
		s.hook = hook
	}
}

// WithCheckOrigin overrides the websocket origin policy.
func WithCheckOrigin(check func(r *http.Request) bool) ServerOption {
	return func(s *Server) {
		if check != nil {
			s.upgrader.CheckOrigin = check
		}
	}
}

// Server admits authenticated connections and runs their sessions.
type Server struct {
	gate        *Gate
	broadcaster Broadcaster
	initial     InitialSource
	upgrader    websocket.Upgrader
	hook        StateHook
	log         *zap.Logger
}

// NewServer constructs a realtime server. initial may be nil, in which case
// sessions start forwarding events without an initial frame.
func NewServer(gate *Gate, broadcaster Broadcaster, initial InitialSource, opts ...ServerOption) *Server {
	s := &Server{
		gate:        gate,
		broadcaster: broadcaster,
		initial:     initial,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOriginOrLoopback,
		},
		log: logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit runs the connection gate for r. On success the returned session is in
// StateConnecting and must be started with Run. On rejection the attempt is
// recorded as closed and an *AuthRejected is returned; nothing was subscribed.
func (s *Server) Admit(r *http.Request) (*Session, error) {
	session := &Session{
		id:     uuid.NewString(),
		server: s,
		state:  StateConnecting,
	}

	identity, err := s.gate.Authenticate(r)
	if err != nil {
		session.transition(StateClosed)
		return nil, err
	}

	session.identity = identity
	return session, nil
}

func sameOriginOrLoopback(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originHost := hostWithoutPort(origin)
	return strings.EqualFold(originHost, hostWithoutPort(r.Host)) || isLoopback(originHost)
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
