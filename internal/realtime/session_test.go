package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/notifystream/internal/auth"
)

type staticInitial struct {
	payload []byte
	err     error
}

func (s staticInitial) InitialMessage(context.Context, string) ([]byte, error) {
	return s.payload, s.err
}

type transitionLog struct {
	mu    sync.Mutex
	steps []string
}

func (l *transitionLog) hook(_ *Session, from, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, from.String()+">"+to.String())
}

func (l *transitionLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.steps...)
}

type sessionFixture struct {
	jwt         *auth.JWTService
	broadcaster *MemoryBroadcaster
	transitions *transitionLog
	httpServer  *httptest.Server
}

func newSessionFixture(t *testing.T, initial InitialSource) *sessionFixture {
	t.Helper()

	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "session-secret", AccessTokenTTL: time.Minute})
	require.NoError(t, err)

	fx := &sessionFixture{
		jwt:         jwtSvc,
		broadcaster: NewMemoryBroadcaster(8),
		transitions: &transitionLog{},
	}

	server := NewServer(NewGate(jwtSvc), fx.broadcaster, initial, WithStateHook(fx.transitions.hook))
	fx.httpServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := server.Admit(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		_ = session.Run(w, r)
	}))

	t.Cleanup(func() {
		fx.httpServer.Close()
		_ = fx.broadcaster.Close()
	})
	return fx
}

func (fx *sessionFixture) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(fx.httpServer.URL, "http") + "/ws/notifications?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func (fx *sessionFixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := fx.jwt.GenerateAccessToken(auth.AccessTokenInput{UserID: userID})
	require.NoError(t, err)
	return token
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	return string(payload)
}

func TestSessionSendsInitialFrameThenEvents(t *testing.T) {
	fx := newSessionFixture(t, staticInitial{payload: []byte(`{"total_notifications":2}`)})

	conn, _, err := fx.dial(t, fx.token(t, "user-1"))
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, `{"total_notifications":2}`, readText(t, conn))
	require.Eventually(t, func() bool { return fx.broadcaster.SubscriberCount("user-1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, fx.broadcaster.Publish(context.Background(), "user-1", []byte(`{"total_notifications":3}`)))
	require.Equal(t, `{"total_notifications":3}`, readText(t, conn))
}

func TestSessionsOfOneUserBothReceiveEvents(t *testing.T) {
	fx := newSessionFixture(t, staticInitial{payload: []byte(`{}`)})
	token := fx.token(t, "user-1")

	first, _, err := fx.dial(t, token)
	require.NoError(t, err)
	defer first.Close()
	second, _, err := fx.dial(t, token)
	require.NoError(t, err)
	defer second.Close()

	readText(t, first)
	readText(t, second)
	require.Eventually(t, func() bool { return fx.broadcaster.SubscriberCount("user-1") == 2 }, time.Second, 10*time.Millisecond)

	for _, event := range []string{"e1", "e2", "e3"} {
		require.NoError(t, fx.broadcaster.Publish(context.Background(), "user-1", []byte(event)))
	}
	for _, conn := range []*websocket.Conn{first, second} {
		require.Equal(t, "e1", readText(t, conn))
		require.Equal(t, "e2", readText(t, conn))
		require.Equal(t, "e3", readText(t, conn))
	}
}

func TestSessionRejectsExpiredCredentialBeforeSubscribing(t *testing.T) {
	fx := newSessionFixture(t, staticInitial{payload: []byte(`{}`)})

	current := time.Now().Add(-time.Hour)
	expired, err := auth.NewJWTService(auth.JWTConfig{
		Secret:         "session-secret",
		AccessTokenTTL: time.Minute,
		Clock:          func() time.Time { return current },
	})
	require.NoError(t, err)
	token, err := expired.GenerateAccessToken(auth.AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	before := fx.broadcaster.SubscriberCount("user-1")

	_, resp, err := fx.dial(t, token)
	require.Error(t, err)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.Equal(t, before, fx.broadcaster.SubscriberCount("user-1"))
	require.Equal(t, []string{"connecting>closed"}, fx.transitions.snapshot())
}

func TestSessionAnswersPingControlFrames(t *testing.T) {
	fx := newSessionFixture(t, nil)

	conn, _, err := fx.dial(t, fx.token(t, "user-1"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`)))
	require.Equal(t, string(pongFrame), readText(t, conn))
}

func TestSessionLifecycleTransitions(t *testing.T) {
	fx := newSessionFixture(t, staticInitial{payload: []byte(`{}`)})

	conn, _, err := fx.dial(t, fx.token(t, "user-1"))
	require.NoError(t, err)
	readText(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	require.Eventually(t, func() bool { return fx.broadcaster.SubscriberCount("user-1") == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(fx.transitions.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"connecting>authenticated", "authenticated>open", "open>closed"}, fx.transitions.snapshot())
}

func TestSessionClosesWhenBroadcasterShutsDown(t *testing.T) {
	fx := newSessionFixture(t, staticInitial{payload: []byte(`{}`)})

	conn, _, err := fx.dial(t, fx.token(t, "user-1"))
	require.NoError(t, err)
	defer conn.Close()
	readText(t, conn)

	require.Eventually(t, func() bool { return fx.broadcaster.SubscriberCount("user-1") == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, fx.broadcaster.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

func TestSessionInitialFailureClosesConnection(t *testing.T) {
	fx := newSessionFixture(t, staticInitial{err: errors.New("store offline")})

	conn, _, err := fx.dial(t, fx.token(t, "user-1"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "unexpected error: %v", err)
	require.Eventually(t, func() bool { return fx.broadcaster.SubscriberCount("user-1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "open", StateOpen.String())
	require.Equal(t, "state(9)", State(9).String())
}
