package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"agrilink_server/internal/dao/memory"
	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/model"
	"agrilink_server/internal/service/call"
	"agrilink_server/internal/service/message"
	"agrilink_server/internal/service/notification"
	"agrilink_server/internal/service/presence"
	"agrilink_server/internal/service/servicetest"
	"agrilink_server/pkg/errorx"
	"agrilink_server/pkg/roomkey"
)

type testSession struct {
	*servicetest.Sink
	user string
}

func (s testSession) UserID() string { return s.user }

func newServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.PutUser(model.UserInfo{Uuid: "alice", FirstName: "Alice"})
	store.PutUser(model.UserInfo{Uuid: "bob", FirstName: "Bob"})
	registry := presence.NewRegistry()
	publisher := &servicetest.Publisher{}
	notifications := notification.NewService(store.Repositories(), registry, publisher)
	messages := message.NewService(store.Repositories(), registry, notifications, nil, publisher, 2000)
	calls := call.NewCoordinator(registry, publisher, time.Minute)
	return NewServer(registry, messages, notifications, calls), store
}

func connect(t *testing.T, srv *Server, sessionID, userID string) testSession {
	t.Helper()
	sess := testSession{Sink: servicetest.NewSink(sessionID), user: userID}
	if !srv.Connect(sess) {
		t.Fatalf("connect %s failed", sessionID)
	}
	return sess
}

func TestChatRoundTrip(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	alice := connect(t, srv, "s-alice", "alice")
	bob := connect(t, srv, "s-bob", "bob")

	steps := []struct {
		sess testSession
		in   event.Inbound
	}{
		{alice, &event.JoinUser{UserId: "alice"}},
		{bob, &event.JoinUser{UserId: "bob"}},
		{alice, &event.JoinChat{UserId: "alice", TargetUserId: "bob"}},
		{bob, &event.JoinChat{UserId: "bob", TargetUserId: "alice"}},
		{alice, &event.SendMessage{UserId: "alice", TargetUserId: "bob", FirstName: "Alice", Text: "hello"}},
	}
	for _, step := range steps {
		if err := srv.HandleEvent(ctx, step.sess, step.in); err != nil {
			t.Fatalf("%s: %v", step.in.EventName(), err)
		}
	}

	got, ok := bob.Last(event.TypeMessageReceived).(*event.MessageReceived)
	if !ok || got.Text != "hello" || got.RoomId != roomkey.Key("alice", "bob") {
		t.Fatalf("bob got %+v", got)
	}
	if alice.Count(event.TypeMessageReceived) != 1 {
		t.Fatal("sender's session in the room should receive its own message")
	}
	if bob.Count(event.TypeNewNotification) != 1 {
		t.Fatal("bob should be notified")
	}
}

func TestIdentityMismatchIsForbidden(t *testing.T) {
	srv, store := newServer(t)
	ctx := context.Background()
	mallory := connect(t, srv, "s-mallory", "mallory")
	bob := connect(t, srv, "s-bob", "bob")

	forged := []event.Inbound{
		&event.JoinUser{UserId: "alice"},
		&event.JoinChat{UserId: "alice", TargetUserId: "bob"},
		&event.SendMessage{UserId: "alice", TargetUserId: "bob", Text: "hi"},
		&event.SendFriendRequest{FromUserId: "alice", ToUserId: "bob"},
		&event.SendLikeNotification{FromUserId: "alice", ToUserId: "bob", PostId: "p1"},
		&event.InitiateCall{FromUserId: "alice", ToUserId: "bob", CallType: event.CallAudio, Offer: json.RawMessage(`{}`)},
	}
	for _, in := range forged {
		if err := srv.HandleEvent(ctx, mallory, in); !errorx.HasCode(err, errorx.CodeForbidden) {
			t.Fatalf("%s: err = %v, want forbidden", in.EventName(), err)
		}
	}
	if n := len(bob.Events()); n != 0 {
		t.Fatalf("bob received %d events from forged requests", n)
	}
	if _, err := store.Repositories().Conversation.FindByPair(ctx, "alice", "bob"); !errorx.IsNotFound(err) {
		t.Fatal("forged send must not persist anything")
	}
}

func TestNotificationEvents(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	alice := connect(t, srv, "s-alice", "alice")
	bob := connect(t, srv, "s-bob", "bob")

	if err := srv.HandleEvent(ctx, alice, &event.SendFriendRequest{FromUserId: "alice", ToUserId: "bob", FromUserName: "Alice"}); err != nil {
		t.Fatalf("friend request: %v", err)
	}
	if err := srv.HandleEvent(ctx, alice, &event.SendLikeNotification{FromUserId: "alice", ToUserId: "bob", FromUserName: "Alice", PostId: "p1"}); err != nil {
		t.Fatalf("like: %v", err)
	}
	if n := bob.Count(event.TypeNewNotification); n != 2 {
		t.Fatalf("bob notifications = %d, want 2", n)
	}
	last := bob.Last(event.TypeNewNotification).(*event.NewNotification)
	if last.Type != model.NotificationLike || last.RelatedEntity == nil || last.RelatedEntity.Id != "p1" {
		t.Fatalf("like notification = %+v", last)
	}
}

func TestCallEventsAndDisconnect(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	alice := connect(t, srv, "s-alice", "alice")
	bob := connect(t, srv, "s-bob", "bob")

	err := srv.HandleEvent(ctx, alice, &event.InitiateCall{
		FromUserId: "alice", ToUserId: "bob", CallType: event.CallAudio, Offer: json.RawMessage(`{"sdp":"x"}`),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	incoming, ok := bob.Last(event.TypeIncomingCall).(*event.IncomingCall)
	if !ok {
		t.Fatal("bob did not ring")
	}
	if err := srv.HandleEvent(ctx, bob, &event.AcceptCall{RoomId: incoming.RoomId, Answer: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if alice.Count(event.TypeCallAccepted) != 1 {
		t.Fatal("alice should see callAccepted")
	}

	srv.Disconnect(alice.ID())
	srv.Disconnect(alice.ID())
	if n := bob.Count(event.TypeCallEnded); n != 1 {
		t.Fatalf("bob callEnded = %d, want 1", n)
	}
	if srv.Registry().IsOnline("alice") {
		t.Fatal("alice should be offline")
	}
}

func TestAcceptUnknownCallIsNotFound(t *testing.T) {
	srv, _ := newServer(t)
	bob := connect(t, srv, "s-bob", "bob")
	err := srv.HandleEvent(context.Background(), bob, &event.AcceptCall{RoomId: "missing", Answer: json.RawMessage(`{}`)})
	if !errorx.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}
