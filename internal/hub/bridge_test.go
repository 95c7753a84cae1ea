package hub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"draftroom/internal/protocol"
)

func testBridges(t *testing.T) (*Bridge, *Bridge) {
	t.Helper()
	mr := miniredis.RunT(t)

	a := NewBridgeWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	b := NewBridgeWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestBridgeRelaysBetweenInstances(t *testing.T) {
	a, b := testBridges(t)

	received := make(chan protocol.Message, 1)
	stop := b.Subscribe("draft:1", func(msg protocol.Message) {
		received <- msg
	})
	defer stop()

	// Subscription setup races the publish; retry until delivery.
	msg := protocol.Message{Type: protocol.TypeContentUpdate, UserID: "u1", Content: "relayed"}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := a.Publish(context.Background(), "draft:1", msg); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		select {
		case got := <-received:
			if got.Type != protocol.TypeContentUpdate || got.Content != "relayed" || got.UserID != "u1" {
				t.Fatalf("got %+v", got)
			}
			return
		case <-time.After(100 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("message never relayed")
			}
		}
	}
}

func TestBridgeSkipsOwnMessages(t *testing.T) {
	a, b := testBridges(t)

	fromA := make(chan protocol.Message, 4)
	stopA := a.Subscribe("draft:1", func(msg protocol.Message) { fromA <- msg })
	defer stopA()
	fromB := make(chan protocol.Message, 4)
	stopB := b.Subscribe("draft:1", func(msg protocol.Message) { fromB <- msg })
	defer stopB()

	msg := protocol.Message{Type: protocol.TypeCursorUpdate, UserID: "u1", Position: 3}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := a.Publish(context.Background(), "draft:1", msg); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		select {
		case <-fromB:
			// Delivered across instances; the origin must have seen
			// nothing.
			select {
			case got := <-fromA:
				t.Fatalf("origin received its own message: %+v", got)
			case <-time.After(100 * time.Millisecond):
			}
			return
		case <-time.After(100 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("message never relayed")
			}
		}
	}
}

func TestBridgeDifferentRoomsIsolated(t *testing.T) {
	a, b := testBridges(t)

	received := make(chan protocol.Message, 1)
	stop := b.Subscribe("draft:2", func(msg protocol.Message) { received <- msg })
	defer stop()

	if err := a.Publish(context.Background(), "draft:1", protocol.Message{Type: protocol.TypePong}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case got := <-received:
		t.Fatalf("cross-room delivery: %+v", got)
	case <-time.After(200 * time.Millisecond):
	}
}
