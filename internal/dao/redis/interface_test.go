package redis

import (
	"strings"
	"testing"
)

func TestMessageListKeyIsOrderIndependent(t *testing.T) {
	if MessageListKey("u2", "u1") != MessageListKey("u1", "u2") {
		t.Fatal("key depends on argument order")
	}
	if !strings.HasPrefix(MessageListKey("u1", "u2"), "message_list_u1_u2") {
		t.Fatalf("unexpected key %s", MessageListKey("u1", "u2"))
	}
}
