package presence

import (
	"sync"
	"testing"

	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/service/servicetest"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	s := servicetest.NewSink("s1")
	if !r.RegisterSession(s, "alice") {
		t.Fatal("first register should add")
	}
	if r.RegisterSession(s, "bob") {
		t.Fatal("second register should be a no-op")
	}
	if uid, _ := r.UserOf("s1"); uid != "alice" {
		t.Fatalf("owner = %q, want alice", uid)
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d", r.Count())
	}
}

func TestSessionsForUserAcrossDevices(t *testing.T) {
	r := NewRegistry()
	r.RegisterSession(servicetest.NewSink("phone"), "alice")
	r.RegisterSession(servicetest.NewSink("laptop"), "alice")
	r.RegisterSession(servicetest.NewSink("other"), "bob")

	sinks := r.SessionsForUser("alice")
	if len(sinks) != 2 || sinks[0].ID() != "phone" || sinks[1].ID() != "laptop" {
		t.Fatalf("unexpected sessions %v", sinks)
	}
	if len(r.SessionsForUser("nobody")) != 0 {
		t.Fatal("unknown user should have no sessions")
	}
}

func TestJoinRoom(t *testing.T) {
	r := NewRegistry()
	r.RegisterSession(servicetest.NewSink("s1"), "alice")
	if !r.JoinRoom("s1", "room") || !r.JoinRoom("s1", "room") {
		t.Fatal("join should succeed and be idempotent")
	}
	if r.JoinRoom("ghost", "room") {
		t.Fatal("join for unknown session should fail")
	}
	if n := len(r.SessionsInRoom("room")); n != 1 {
		t.Fatalf("room size = %d, want 1", n)
	}
}

func TestRemoveRunsHooksBeforeDiscard(t *testing.T) {
	r := NewRegistry()
	r.RegisterSession(servicetest.NewSink("s1"), "alice")
	r.JoinRoom("s1", "room")

	var sawOwner string
	var sawInRoom int
	calls := 0
	r.OnRemove(func(sessionID, userID string) {
		calls++
		sawOwner, _ = r.UserOf(sessionID)
		sawInRoom = len(r.SessionsInRoom("room"))
	})

	if !r.RemoveSession("s1") {
		t.Fatal("remove should report true")
	}
	if r.RemoveSession("s1") {
		t.Fatal("second remove should be a no-op")
	}
	if calls != 1 {
		t.Fatalf("hook calls = %d, want 1", calls)
	}
	if sawOwner != "alice" || sawInRoom != 1 {
		t.Fatalf("hook saw owner=%q room=%d; session should still be registered", sawOwner, sawInRoom)
	}
	if r.IsOnline("alice") || len(r.SessionsInRoom("room")) != 0 {
		t.Fatal("bookkeeping not discarded")
	}
}

func TestRemoveSurvivesPanickingHook(t *testing.T) {
	r := NewRegistry()
	r.RegisterSession(servicetest.NewSink("s1"), "alice")
	r.OnRemove(func(string, string) { panic("boom") })
	if !r.RemoveSession("s1") {
		t.Fatal("remove should still complete")
	}
	if r.Count() != 0 {
		t.Fatal("session not removed")
	}
}

func TestPushCountsDeliveries(t *testing.T) {
	open := servicetest.NewSink("open")
	closed := servicetest.NewSink("closed")
	closed.Close()
	n := Push([]Sink{open, closed}, &event.CallEnded{RoomId: "r"})
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if open.Count(event.TypeCallEnded) != 1 {
		t.Fatal("open sink missed the push")
	}
}

func TestHasLiveSessionExceptSkipsSessionsBeingRemoved(t *testing.T) {
	r := NewRegistry()
	r.RegisterSession(servicetest.NewSink("phone"), "dave")
	r.RegisterSession(servicetest.NewSink("laptop"), "dave")
	if !r.HasLiveSessionExcept("dave", "phone") {
		t.Fatal("laptop is still live")
	}

	var arrived sync.WaitGroup
	arrived.Add(2)
	results := make(map[string]bool)
	var mu sync.Mutex
	r.OnRemove(func(sessionID, userID string) {
		arrived.Done()
		arrived.Wait()
		mu.Lock()
		results[sessionID] = r.HasLiveSessionExcept(userID, sessionID)
		mu.Unlock()
	})

	var done sync.WaitGroup
	for _, id := range []string{"phone", "laptop"} {
		done.Add(1)
		go func(id string) {
			defer done.Done()
			r.RemoveSession(id)
		}(id)
	}
	done.Wait()

	for id, live := range results {
		if live {
			t.Fatalf("%s saw a session that was already being removed", id)
		}
	}
	if len(results) != 2 {
		t.Fatalf("hooks ran %d times, want 2", len(results))
	}
	if r.IsOnline("dave") {
		t.Fatal("dave should be offline")
	}
}
