package message

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"agrilink_server/internal/dao"
	"agrilink_server/internal/dao/memory"
	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/infrastructure/mq"
	"agrilink_server/internal/model"
	"agrilink_server/internal/service/notification"
	"agrilink_server/internal/service/presence"
	"agrilink_server/internal/service/servicetest"
	"agrilink_server/pkg/errorx"
	"agrilink_server/pkg/roomkey"
)

// mapCache 同步执行任务的内存缓存
type mapCache struct {
	mu      sync.Mutex
	data    map[string]string
	deletes int
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string]string)} }

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes++
	return nil
}

func (c *mapCache) SubmitTask(action func()) {}

// failingConversations 追加消息总是失败
type failingConversations struct {
	dao.ConversationRepository
}

func (failingConversations) AppendMessage(context.Context, string, string, string, time.Time) (*model.Message, error) {
	return nil, errorx.New(errorx.CodeDBError, "disk full")
}

type fixture struct {
	store     *memory.Store
	registry  *presence.Registry
	publisher *servicetest.Publisher
	svc       *Service
}

func newFixture(cache *mapCache) *fixture {
	store := memory.New()
	store.PutUser(model.UserInfo{Uuid: "alice", FirstName: "Alice", Username: "alice"})
	store.PutUser(model.UserInfo{Uuid: "bob", FirstName: "Bob", Username: "bob"})
	registry := presence.NewRegistry()
	publisher := &servicetest.Publisher{}
	notifier := notification.NewService(store.Repositories(), registry, publisher)
	svc := NewService(store.Repositories(), registry, notifier, nil, publisher, 10)
	if cache != nil {
		svc.cache = cache
	}
	return &fixture{store: store, registry: registry, publisher: publisher, svc: svc}
}

// connect 登记会话并加入与 peer 的聊天房间
func (f *fixture) connect(t *testing.T, sessionID, userID, peer string) *servicetest.Sink {
	t.Helper()
	sink := servicetest.NewSink(sessionID)
	if !f.registry.RegisterSession(sink, userID) {
		t.Fatalf("register %s failed", sessionID)
	}
	if peer != "" {
		f.registry.JoinRoom(sessionID, roomkey.Key(userID, peer))
	}
	return sink
}

func TestSendMessageDeliversToRoomAndNotifies(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	aliceSink := f.connect(t, "s-alice", "alice", "bob")
	bobSink := f.connect(t, "s-bob", "bob", "alice")

	rsp, err := f.svc.SendMessage(ctx, SendMessageParams{From: "alice", To: "bob", SenderName: "Alice", Text: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if rsp.MessageId == "" || rsp.SenderId != "alice" || rsp.Text != "hi" {
		t.Fatalf("unexpected respond %+v", rsp)
	}

	for name, sink := range map[string]*servicetest.Sink{"alice": aliceSink, "bob": bobSink} {
		got, ok := sink.Last(event.TypeMessageReceived).(*event.MessageReceived)
		if !ok {
			t.Fatalf("%s did not receive message", name)
		}
		if got.RoomId != roomkey.Key("alice", "bob") || got.Text != "hi" || got.FirstName != "Alice" {
			t.Fatalf("%s got %+v", name, got)
		}
	}
	if bobSink.Count(event.TypeNewNotification) != 1 {
		t.Fatalf("bob notifications = %d, want 1", bobSink.Count(event.TypeNewNotification))
	}
	if aliceSink.Count(event.TypeNewNotification) != 0 {
		t.Fatal("sender must not be notified")
	}

	history, err := f.svc.GetMessages(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(history) != 1 || history[0].MessageId != rsp.MessageId {
		t.Fatalf("history = %+v", history)
	}

	types := f.publisher.Types()
	if len(types) != 2 || types[0] != mq.EventNotificationCreated || types[1] != mq.EventMessageCreated {
		t.Fatalf("published %v", types)
	}
}

func TestSendMessageOutsideRoomOnlyNotifies(t *testing.T) {
	f := newFixture(nil)
	bobSink := f.connect(t, "s-bob", "bob", "")

	if _, err := f.svc.SendMessage(context.Background(), SendMessageParams{From: "alice", To: "bob", Text: "hey"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if bobSink.Count(event.TypeMessageReceived) != 0 {
		t.Fatal("bob has not joined the room")
	}
	if bobSink.Count(event.TypeNewNotification) != 1 {
		t.Fatal("bob should still be notified")
	}
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(nil)
	cases := []SendMessageParams{
		{From: "", To: "bob", Text: "x"},
		{From: "alice", To: "", Text: "x"},
		{From: "alice", To: "alice", Text: "x"},
		{From: "alice", To: "bob", Text: "   "},
		{From: "alice", To: "bob", Text: strings.Repeat("长", 11)},
	}
	for _, p := range cases {
		_, err := f.svc.SendMessage(context.Background(), p)
		if !errorx.HasCode(err, errorx.CodeInvalidParam) {
			t.Fatalf("%+v: err = %v, want invalid param", p, err)
		}
	}
	if _, err := f.store.Repositories().Conversation.FindByPair(context.Background(), "alice", "bob"); !errorx.IsNotFound(err) {
		t.Fatal("rejected sends must not create a conversation")
	}
}

func TestSendMessagePersistenceFailureSkipsDelivery(t *testing.T) {
	f := newFixture(nil)
	repos := f.store.Repositories()
	broken := dao.NewRepositories(repos.User, failingConversations{repos.Conversation}, repos.Notification, nil)
	notifier := notification.NewService(broken, f.registry, f.publisher)
	f.svc = NewService(broken, f.registry, notifier, nil, f.publisher, 10)
	bobSink := f.connect(t, "s-bob", "bob", "alice")

	_, err := f.svc.SendMessage(context.Background(), SendMessageParams{From: "alice", To: "bob", Text: "hi"})
	if !errorx.HasCode(err, errorx.CodeDBError) {
		t.Fatalf("err = %v, want db error", err)
	}
	if n := len(bobSink.Events()); n != 0 {
		t.Fatalf("bob received %d events after a failed send", n)
	}
	if len(f.publisher.Types()) != 0 {
		t.Fatal("nothing should be published")
	}
}

func TestGetMessagesWithoutConversationIsEmpty(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	history, err := f.svc.GetMessages(ctx, "alice", "nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Fatalf("history = %#v, want empty slice", history)
	}
	if _, err := f.store.Repositories().Conversation.FindByPair(ctx, "alice", "nobody"); !errorx.IsNotFound(err) {
		t.Fatal("reading history must not create a conversation")
	}
}

func TestGetMessagesKeepsAppendOrder(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	for _, p := range []SendMessageParams{
		{From: "alice", To: "bob", Text: "one"},
		{From: "bob", To: "alice", Text: "two"},
		{From: "alice", To: "bob", Text: "three"},
	} {
		if _, err := f.svc.SendMessage(ctx, p); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	history, err := f.svc.GetMessages(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := []string{"one", "two", "three"}
	if len(history) != len(want) {
		t.Fatalf("len = %d", len(history))
	}
	for i, m := range history {
		if m.Text != want[i] {
			t.Fatalf("history[%d] = %q, want %q", i, m.Text, want[i])
		}
	}
}

func TestSendMessageInvalidatesCachedList(t *testing.T) {
	cache := newMapCache()
	f := newFixture(cache)
	ctx := context.Background()
	key := "message_list_alice_bob"
	cache.data[key] = `[{"messageId":"stale","senderId":"alice","text":"old"}]`

	cached, err := f.svc.GetMessages(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(cached) != 1 || cached[0].MessageId != "stale" {
		t.Fatalf("expected cached list, got %+v", cached)
	}

	if _, err := f.svc.SendMessage(ctx, SendMessageParams{From: "alice", To: "bob", Text: "fresh"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, ok := cache.data[key]; ok {
		t.Fatal("send must drop the cached list")
	}
	history, err := f.svc.GetMessages(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(history) != 1 || history[0].Text != "fresh" {
		t.Fatalf("history = %+v", history)
	}
}
