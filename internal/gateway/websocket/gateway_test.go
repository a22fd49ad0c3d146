package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/dto/respond"
	"agrilink_server/internal/service/chat"
	"agrilink_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// fakeDispatcher 回显 sendMessage，拒绝 joinChat
type fakeDispatcher struct {
	mu           sync.Mutex
	connected    map[string]string
	disconnected chan string
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{connected: make(map[string]string), disconnected: make(chan string, 4)}
}

func (d *fakeDispatcher) Connect(sess chat.Session) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected[sess.ID()] = sess.UserID()
	return true
}

func (d *fakeDispatcher) Disconnect(sessionID string) {
	d.disconnected <- sessionID
}

func (d *fakeDispatcher) HandleEvent(_ context.Context, sess chat.Session, in event.Inbound) error {
	switch e := in.(type) {
	case *event.SendMessage:
		sess.Deliver(&event.MessageReceived{
			MessageRespond: respond.MessageRespond{MessageId: "m1", SenderId: sess.UserID(), Text: e.Text},
		})
		return nil
	case *event.JoinChat:
		return errorx.ErrForbidden
	default:
		return nil
	}
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startServer(t *testing.T, d Dispatcher, opts Options) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := NewGateway(d, opts)
	r := gin.New()
	r.GET("/wss", func(c *gin.Context) { g.Serve(c, c.Query("uid")) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/wss?uid=alice"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

func readError(t *testing.T, conn *websocket.Conn) event.Error {
	t.Helper()
	f := readFrame(t, conn)
	if f.Type != event.TypeError {
		t.Fatalf("frame type = %s, want error", f.Type)
	}
	var e event.Error
	if err := json.Unmarshal(f.Data, &e); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	return e
}

func TestSessionRoundTrip(t *testing.T) {
	url := startServer(t, newFakeDispatcher(), Options{})
	conn := dial(t, url)

	msg := `{"type":"sendMessage","data":{"userId":"alice","targetUserId":"bob","text":"hi"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := readFrame(t, conn)
	if f.Type != event.TypeMessageReceived {
		t.Fatalf("frame type = %s", f.Type)
	}
	var got event.MessageReceived
	if err := json.Unmarshal(f.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Text != "hi" || got.SenderId != "alice" {
		t.Fatalf("got %+v", got)
	}
}

func TestSessionReportsErrorsToSender(t *testing.T) {
	url := startServer(t, newFakeDispatcher(), Options{})
	conn := dial(t, url)

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	if e := readError(t, conn); e.Code != errorx.CodeInvalidParam {
		t.Fatalf("malformed frame code = %d", e.Code)
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"joinChat","data":{"userId":"alice","targetUserId":"bob"}}`))
	e := readError(t, conn)
	if e.Code != errorx.CodeForbidden || e.Event != event.TypeJoinChat {
		t.Fatalf("handler error = %+v", e)
	}

	// 出错后连接仍可用
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sendMessage","data":{"userId":"alice","targetUserId":"bob","text":"still here"}}`))
	if f := readFrame(t, conn); f.Type != event.TypeMessageReceived {
		t.Fatalf("frame type = %s", f.Type)
	}
}

func TestSessionRateLimit(t *testing.T) {
	url := startServer(t, newFakeDispatcher(), Options{EventsPerSecond: 0.001, EventBurst: 1})
	conn := dial(t, url)

	join := []byte(`{"type":"joinUser","data":{"userId":"alice"}}`)
	_ = conn.WriteMessage(websocket.TextMessage, join)
	_ = conn.WriteMessage(websocket.TextMessage, join)
	if e := readError(t, conn); e.Code != errorx.CodeTooManyRequests {
		t.Fatalf("code = %d, want too many requests", e.Code)
	}
}

func TestDisconnectRemovesSessionOnce(t *testing.T) {
	d := newFakeDispatcher()
	url := startServer(t, d, Options{})
	conn := dial(t, url)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	select {
	case id := <-d.disconnected:
		d.mu.Lock()
		user := d.connected[id]
		d.mu.Unlock()
		if user != "alice" {
			t.Fatalf("disconnected session belongs to %q", user)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session was never removed")
	}
	select {
	case id := <-d.disconnected:
		t.Fatalf("session %s removed twice", id)
	case <-time.After(100 * time.Millisecond):
	}
}
