package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, onStatusChange func(uuid.UUID, bool)) *Hub {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub := NewHub(rdb, onStatusChange)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func registerClient(t *testing.T, hub *Hub, userID uuid.UUID, name string) *Client {
	t.Helper()
	client := NewClient(hub, nil, userID, name)
	hub.Register(client)
	require.Eventually(t, func() bool {
		return hub.IsUserOnline(userID)
	}, time.Second, 5*time.Millisecond)
	return client
}

// nextEvent reads from the client's send buffer until an event of the wanted
// type arrives, skipping presence broadcasts
func nextEvent(t *testing.T, client *Client, eventType string) *model.WSEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-client.send:
			var ev model.WSEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			if ev.Type == eventType {
				return &ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
			return nil
		}
	}
}

func assertNoEvent(t *testing.T, client *Client, eventType string) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case data := <-client.send:
			var ev model.WSEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			require.NotEqual(t, eventType, ev.Type)
		case <-timeout:
			return
		}
	}
}

func TestPublishToUsersReachesUserRooms(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := registerClient(t, hub, uuid.New(), "Alice")
	bob := registerClient(t, hub, uuid.New(), "Bob")
	carol := registerClient(t, hub, uuid.New(), "Carol")

	hub.PublishToUsers([]uuid.UUID{alice.UserID, bob.UserID}, &model.WSEvent{
		Type:    model.WSEventConversationCreated,
		Payload: map[string]string{"hello": "world"},
	})

	nextEvent(t, alice, model.WSEventConversationCreated)
	nextEvent(t, bob, model.WSEventConversationCreated)
	assertNoEvent(t, carol, model.WSEventConversationCreated)
}

func TestPublishToConversationReachesJoinedClients(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := registerClient(t, hub, uuid.New(), "Alice")
	bob := registerClient(t, hub, uuid.New(), "Bob")
	outsider := registerClient(t, hub, uuid.New(), "Outsider")

	convID := uuid.New()
	hub.Join(alice, ConversationRoom(convID))
	hub.Join(bob, ConversationRoom(convID))

	hub.PublishToConversation(convID, &model.WSEvent{Type: model.WSEventMessageSent})

	nextEvent(t, alice, model.WSEventMessageSent)
	nextEvent(t, bob, model.WSEventMessageSent)
	assertNoEvent(t, outsider, model.WSEventMessageSent)
}

func TestClientInMultipleRoomsReceivesOnce(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := registerClient(t, hub, uuid.New(), "Alice")

	convID := uuid.New()
	hub.Join(alice, ConversationRoom(convID))

	// Event addressed to both the conversation room and Alice's user room
	hub.Publish([]string{ConversationRoom(convID), UserRoom(alice.UserID)}, &model.WSEvent{
		Type: model.WSEventMessageSent,
	})

	nextEvent(t, alice, model.WSEventMessageSent)
	assertNoEvent(t, alice, model.WSEventMessageSent)
}

func TestFirstEventAfterStartupDelivered(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := registerClient(t, hub, uuid.New(), "Alice")

	// Publish immediately, with no settling: the subscription is confirmed
	// before NewHub returns, so the very first event must arrive
	hub.PublishToUsers([]uuid.UUID{alice.UserID}, &model.WSEvent{
		Type:    model.WSEventMessageSent,
		Payload: "first",
	})

	ev := nextEvent(t, alice, model.WSEventMessageSent)
	assert.Equal(t, "first", ev.Payload)
}

func TestJoinImmediatelyAfterRegister(t *testing.T) {
	hub := newTestHub(t, nil)

	convID := uuid.New()
	client := NewClient(hub, nil, uuid.New(), "Alice")

	// No waiting between the calls: Register must complete registration
	// before returning or the Join is silently dropped
	hub.Register(client)
	hub.Join(client, ConversationRoom(convID))

	hub.PublishToConversation(convID, &model.WSEvent{Type: model.WSEventMessageSent})
	nextEvent(t, client, model.WSEventMessageSent)
}

func TestPublishOrderPreserved(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := registerClient(t, hub, uuid.New(), "Alice")

	convID := uuid.New()
	hub.Join(alice, ConversationRoom(convID))

	for i := 0; i < 5; i++ {
		hub.PublishToConversation(convID, &model.WSEvent{
			Type:    model.WSEventMessageSent,
			Payload: float64(i),
		})
	}

	for i := 0; i < 5; i++ {
		ev := nextEvent(t, alice, model.WSEventMessageSent)
		assert.Equal(t, float64(i), ev.Payload)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := registerClient(t, hub, uuid.New(), "Alice")

	convID := uuid.New()
	hub.Join(alice, ConversationRoom(convID))
	hub.Leave(alice, ConversationRoom(convID))

	hub.PublishToConversation(convID, &model.WSEvent{Type: model.WSEventMessageSent})
	assertNoEvent(t, alice, model.WSEventMessageSent)
}

func TestPresenceCallbackOnFirstAndLastConnection(t *testing.T) {
	type statusChange struct {
		userID uuid.UUID
		online bool
	}
	changes := make(chan statusChange, 8)
	hub := newTestHub(t, func(userID uuid.UUID, online bool) {
		changes <- statusChange{userID, online}
	})

	userID := uuid.New()
	first := registerClient(t, hub, userID, "Alice")

	select {
	case ch := <-changes:
		assert.Equal(t, userID, ch.userID)
		assert.True(t, ch.online)
	case <-time.After(time.Second):
		t.Fatal("expected online callback for first connection")
	}

	// Second connection of the same user: no callback
	second := NewClient(hub, nil, userID, "Alice")
	hub.Register(second)
	select {
	case <-changes:
		t.Fatal("unexpected callback for second connection")
	case <-time.After(100 * time.Millisecond):
	}

	// Dropping one connection keeps the user online
	hub.unregister <- second
	select {
	case <-changes:
		t.Fatal("unexpected callback while a connection remains")
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, hub.IsUserOnline(userID))

	// Last connection gone: offline callback
	hub.unregister <- first
	select {
	case ch := <-changes:
		assert.Equal(t, userID, ch.userID)
		assert.False(t, ch.online)
	case <-time.After(time.Second):
		t.Fatal("expected offline callback for last connection")
	}
	assert.False(t, hub.IsUserOnline(userID))
}

func TestRoomNames(t *testing.T) {
	id := uuid.MustParse("8b7f4a3e-1111-2222-3333-444455556666")
	assert.Equal(t, "conversation:8b7f4a3e-1111-2222-3333-444455556666", ConversationRoom(id))
	assert.Equal(t, "user:8b7f4a3e-1111-2222-3333-444455556666", UserRoom(id))
}
