package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"agrilink_server/internal/model"
	"agrilink_server/pkg/errorx"
)

func TestFindOrCreateConvergesOnOneConversation(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			c, err := repos.Conversation.FindOrCreate(ctx, a, b)
			if err != nil {
				t.Errorf("FindOrCreate: %v", err)
				return
			}
			ids[i] = c.Uuid
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("got distinct conversations %s and %s", ids[0], id)
		}
	}
	c, err := repos.Conversation.FindByPair(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("FindByPair: %v", err)
	}
	if c.UserOneId != "alice" || c.UserTwoId != "bob" {
		t.Fatalf("pair not normalized: %s/%s", c.UserOneId, c.UserTwoId)
	}
}

func TestFindByPairDoesNotCreate(t *testing.T) {
	repos := New().Repositories()
	_, err := repos.Conversation.FindByPair(context.Background(), "a", "b")
	if !errorx.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	_, err = repos.Conversation.FindByPair(context.Background(), "a", "b")
	if !errorx.IsNotFound(err) {
		t.Fatalf("second lookup err = %v, want not found", err)
	}
}

func TestAppendKeepsOrder(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()
	c, _ := repos.Conversation.FindOrCreate(ctx, "a", "b")
	now := time.Now()
	for i, text := range []string{"one", "two", "three"} {
		if _, err := repos.Conversation.AppendMessage(ctx, c.Uuid, "a", text, now.Add(time.Duration(i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	list, err := repos.Conversation.ListMessages(ctx, c.Uuid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Content != "one" || list[2].Content != "three" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestNotificationListNewestFirstWithLimit(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		n := &model.Notification{
			Uuid:        string(rune('a' + i)),
			RecipientId: "r",
			Type:        model.NotificationLike,
			Message:     "x",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := repos.Notification.Create(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	list, err := repos.Notification.ListByRecipient(ctx, "r", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Uuid != "e" || list[2].Uuid != "c" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestMarkAllReadOnlyTouchesRecipient(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()
	for i, rcpt := range []string{"u", "u", "v"} {
		_ = repos.Notification.Create(ctx, &model.Notification{
			Uuid:        string(rune('a' + i)),
			RecipientId: rcpt,
			Type:        model.NotificationMessage,
			Message:     "m",
			CreatedAt:   time.Now(),
		})
	}
	updated, err := repos.Notification.MarkAllRead(ctx, "u")
	if err != nil || updated != 2 {
		t.Fatalf("updated=%d err=%v", updated, err)
	}
	if n, _ := repos.Notification.CountUnread(ctx, "v"); n != 1 {
		t.Fatalf("other recipient unread = %d, want 1", n)
	}
}
