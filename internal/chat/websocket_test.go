package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/pawcare-labs/pawcare/internal/agent"
	"github.com/pawcare-labs/pawcare/internal/domain"
	"github.com/pawcare-labs/pawcare/internal/identity"
	"github.com/pawcare-labs/pawcare/internal/store"
	"github.com/pawcare-labs/pawcare/internal/triage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatedGenerator struct {
	mu    sync.Mutex
	calls int
	reply string
	gate  chan struct{}
}

func (g *gatedGenerator) Generate(_ context.Context, _ []triage.Turn) (string, error) {
	g.mu.Lock()
	g.calls++
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return g.reply, nil
}

func (g *gatedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type chatFixture struct {
	srv *httptest.Server
	svc *agent.Service
	sm  *SessionManager
}

func newChatFixture(t *testing.T, gen triage.Generator) *chatFixture {
	t.Helper()
	repo := store.NewMemory()
	svc := agent.NewService(gen, repo, agent.ServiceOptions{System: "sys"})
	sm := NewSessionManager()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := identity.WithIdentity(req.Context(), identity.Identity{UserID: "anon_ws", SessionID: req.URL.Query().Get(identity.SessionQueryParam)})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/ws/triage", NewWebSocketHandler(svc, repo, sm, "", true).ServeHTTP)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &chatFixture{srv: srv, svc: svc, sm: sm}
}

func (f *chatFixture) dial(t *testing.T, ctx context.Context, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/triage?session_id=" + sessionID
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) serverFrame {
	t.Helper()
	var frame serverFrame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	return frame
}

func TestWebSocketConversation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newChatFixture(t, &gatedGenerator{reply: "• Monitor temperature\n• Give water"})
	conn := f.dial(t, ctx, "tab-1")

	snap := readFrame(t, ctx, conn)
	require.Equal(t, frameSnapshot, snap.Type)
	require.NotNil(t, snap.Snapshot)
	assert.Empty(t, snap.Snapshot.Messages)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: frameSend, Text: "My dog has a fever"}))
	turn := readFrame(t, ctx, conn)
	require.Equal(t, frameTurn, turn.Type)
	require.NotNil(t, turn.Turn)
	assert.Equal(t, domain.KindGenerated, turn.Turn.Reply.Kind)
	assert.Len(t, turn.Turn.Tips, 2)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: frameSend, Text: "Tell me a joke"}))
	turn = readFrame(t, ctx, conn)
	assert.True(t, turn.Turn.Reply.IsWarning)
	assert.Equal(t, triage.PhaseWarned1, turn.Turn.Phase)
	assert.Len(t, turn.Turn.Tips, 2, "tips survive a warning")

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: frameReset}))
	reset := readFrame(t, ctx, conn)
	require.Equal(t, frameReset, reset.Type)
	assert.Equal(t, triage.ResetConfirmationMessage, reset.Reset.Message.Text)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: framePing}))
	assert.Equal(t, framePong, readFrame(t, ctx, conn).Type)
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newChatFixture(t, &gatedGenerator{reply: "ok"})
	conn := f.dial(t, ctx, "tab-1")
	readFrame(t, ctx, conn)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	assert.Equal(t, "invalid frame", readFrame(t, ctx, conn).Error)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: "dance"}))
	assert.Equal(t, "unknown frame type", readFrame(t, ctx, conn).Error)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: frameSend, Text: "  "}))
	assert.Equal(t, "message is required", readFrame(t, ctx, conn).Error)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: frameQuickReply, ID: "nope"}))
	assert.Equal(t, "unknown quick reply", readFrame(t, ctx, conn).Error)
}

func TestWebSocketBusyWhileGenerating(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gen := &gatedGenerator{reply: "ok", gate: make(chan struct{})}
	f := newChatFixture(t, gen)
	conn := f.dial(t, ctx, "tab-1")
	readFrame(t, ctx, conn)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: frameQuickReply, ID: "vomiting"}))
	require.Eventually(t, func() bool { return gen.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: frameSend, Text: "my cat too"}))
	busy := readFrame(t, ctx, conn)
	assert.Equal(t, frameError, busy.Type)
	assert.Equal(t, "a reply is still being generated", busy.Error)

	close(gen.gate)
	turn := readFrame(t, ctx, conn)
	require.Equal(t, frameTurn, turn.Type)
	assert.Equal(t, 1, gen.callCount())
}

func TestWebSocketReconnectGetsSnapshot(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newChatFixture(t, &gatedGenerator{reply: "ok"})
	first := f.dial(t, ctx, "tab-1")
	readFrame(t, ctx, first)
	require.NoError(t, wsjson.Write(ctx, first, clientFrame{Type: frameSend, Text: "my dog is limping"}))
	readFrame(t, ctx, first)

	second := f.dial(t, ctx, "tab-1")
	snap := readFrame(t, ctx, second)
	require.Equal(t, frameSnapshot, snap.Type)
	assert.Len(t, snap.Snapshot.Messages, 2)

	// The replaced connection is closed by the server.
	_, _, err := first.Read(ctx)
	assert.Error(t, err)
}

func TestWebSocketClosedOnEviction(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newChatFixture(t, &gatedGenerator{reply: "ok"})
	conn := f.dial(t, ctx, "tab-9")
	readFrame(t, ctx, conn)

	f.svc.Evict("anon_ws", "tab-9")
	f.sm.Close("anon_ws", "tab-9")

	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
