package https_server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agrilink_server/internal/config"
	"agrilink_server/internal/dao/memory"
	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/dto/respond"
	"agrilink_server/internal/gateway/websocket"
	"agrilink_server/internal/handler"
	"agrilink_server/internal/https_server"
	"agrilink_server/internal/infrastructure/mq"
	"agrilink_server/internal/model"
	"agrilink_server/internal/service"
	"agrilink_server/pkg/errorx"
	"agrilink_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	url    string
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwt.Init("smoke-secret", 15)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	store := memory.New()
	store.PutUser(model.UserInfo{Uuid: "alice", FirstName: "Alice", Username: "alice"})
	store.PutUser(model.UserInfo{Uuid: "bob", FirstName: "Bob", Username: "bob"})

	svcs := service.NewServices(store.Repositories(), nil, mq.Noop{}, cfg.RealtimeConfig)
	gateway := websocket.NewGateway(svcs.Chat, websocket.OptionsFromConfig(cfg.RealtimeConfig))
	engine := https_server.Init(handler.NewHandlers(svcs, gateway), cfg)

	server := httptest.NewServer(engine)
	t.Cleanup(func() {
		gateway.CloseAll()
		server.Close()
	})
	return &testServer{url: server.URL, client: &http.Client{Timeout: 5 * time.Second}}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := jwt.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path string, body any, userID string) envelope {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s %s status=%d", method, path, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return env
}

func (s *testServer) dial(t *testing.T, userID string) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.url, "http") + "/wss?token=" + token(t, userID)
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *gorilla.Conn, eventType string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": eventType, "data": data}); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

// expect 读取直到出现指定类型的帧
func expect(t *testing.T, conn *gorilla.Conn, eventType string) frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		if f.Type == eventType {
			return f
		}
	}
}

// waitOnline 连接登记在握手后异步完成
func (s *testServer) waitOnline(t *testing.T, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env := s.do(t, http.MethodGet, "/user/online?user_id="+userID, nil, "alice")
		var online respond.OnlineRespond
		_ = json.Unmarshal(env.Data, &online)
		if online.Online {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s never came online", userID)
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.client.Get(s.url + "/ping")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/ping: %v %v", err, resp)
	}
	resp.Body.Close()

	resp, err = s.client.Get(s.url + "/metrics")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics: %v %v", err, resp)
	}
	resp.Body.Close()

	resp, err = s.client.Get(s.url + "/notification")
	if err != nil {
		t.Fatalf("/notification: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("/notification without token status=%d", resp.StatusCode)
	}
}

func TestMessagingOverWebSocket(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t, "alice")
	bob := s.dial(t, "bob")
	s.waitOnline(t, "alice")
	s.waitOnline(t, "bob")

	send(t, alice, event.TypeJoinChat, map[string]string{"userId": "alice", "targetUserId": "bob"})
	send(t, bob, event.TypeJoinChat, map[string]string{"userId": "bob", "targetUserId": "alice"})
	// 两个 joinChat 都不回包，用 HTTP 发送前先确认 bob 的 joinChat 已处理：发一条错误事件等回包
	send(t, bob, event.TypeJoinUser, map[string]string{"userId": "someone-else"})
	expect(t, bob, event.TypeError)
	send(t, alice, event.TypeJoinUser, map[string]string{"userId": "someone-else"})
	expect(t, alice, event.TypeError)

	env := s.do(t, http.MethodPost, "/message/send", map[string]string{
		"targetUserId": "bob",
		"firstName":    "Alice",
		"text":         "hello bob",
	}, "alice")
	if env.Code != errorx.CodeSuccess {
		t.Fatalf("/message/send code=%d msg=%s", env.Code, env.Msg)
	}

	f := expect(t, bob, event.TypeMessageReceived)
	var got event.MessageReceived
	if err := json.Unmarshal(f.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Text != "hello bob" || got.SenderId != "alice" {
		t.Fatalf("bob got %+v", got)
	}
	expect(t, bob, event.TypeNewNotification)

	send(t, bob, event.TypeSendMessage, map[string]string{
		"userId": "bob", "targetUserId": "alice", "firstName": "Bob", "text": "hi alice",
	})
	expect(t, alice, event.TypeMessageReceived)

	env = s.do(t, http.MethodGet, "/message/getMessageList?target_user_id=bob", nil, "alice")
	var history []respond.MessageRespond
	if err := json.Unmarshal(env.Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 || history[0].Text != "hello bob" || history[1].Text != "hi alice" {
		t.Fatalf("history = %+v", history)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t, "alice")
	s.waitOnline(t, "alice")

	send(t, alice, event.TypeSendFriendRequest, map[string]string{
		"fromUserId": "alice", "toUserId": "bob", "fromUserName": "Alice",
	})
	send(t, alice, event.TypeSendLikeNotification, map[string]string{
		"fromUserId": "alice", "toUserId": "bob", "fromUserName": "Alice", "postId": "post-1",
	})

	var list respond.NotificationListRespond
	deadline := time.Now().Add(2 * time.Second)
	for {
		env := s.do(t, http.MethodGet, "/notification", nil, "bob")
		if err := json.Unmarshal(env.Data, &list); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		if len(list.Notifications) == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(list.Notifications) != 2 || list.UnreadCount != 2 {
		t.Fatalf("list = %+v", list)
	}
	first := list.Notifications[0]

	// alice 不能修改 bob 的通知
	if env := s.do(t, http.MethodPut, "/notification/"+first.Id+"/read", nil, "alice"); env.Code != errorx.CodeForbidden {
		t.Fatalf("foreign mark read code=%d", env.Code)
	}
	if env := s.do(t, http.MethodPut, "/notification/"+first.Id+"/read", nil, "bob"); env.Code != errorx.CodeSuccess {
		t.Fatalf("mark read code=%d", env.Code)
	}

	env := s.do(t, http.MethodPut, "/notification/read-all", nil, "bob")
	var updated respond.MarkAllReadRespond
	_ = json.Unmarshal(env.Data, &updated)
	if updated.Updated != 1 {
		t.Fatalf("read-all updated = %d, want 1", updated.Updated)
	}

	if env := s.do(t, http.MethodDelete, "/notification/"+first.Id, nil, "bob"); env.Code != errorx.CodeSuccess {
		t.Fatalf("delete code=%d", env.Code)
	}
	if env := s.do(t, http.MethodDelete, "/notification/"+first.Id, nil, "bob"); env.Code != errorx.CodeNotFound {
		t.Fatalf("second delete code=%d", env.Code)
	}
}
