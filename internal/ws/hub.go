package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/model"
	"github.com/redis/go-redis/v9"
)

const redisChannel = "wavechat:events"

// ConversationRoom returns the room name all subscribers of a conversation share
func ConversationRoom(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String()
}

// UserRoom returns the private room every connection of a user joins
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Hub manages WebSocket connections and room-based event delivery.
// It uses Redis Pub/Sub for horizontal scaling across multiple instances;
// Redis delivers channel messages in publish order, so events published
// sequentially for one conversation arrive in that order everywhere.
type Hub struct {
	mu sync.RWMutex

	// roomName -> subscribed clients
	rooms map[string]map[*Client]bool
	// client -> rooms it joined (for cleanup on disconnect)
	clientRooms map[*Client]map[string]bool
	// userID -> connection count (for presence)
	userConns map[uuid.UUID]int

	unregister chan *Client

	rdb    *redis.Client
	pubsub *redis.PubSub

	// Callback when user comes online/offline
	onStatusChange func(userID uuid.UUID, online bool)
}

// roomEvent is the wire format pushed through Redis Pub/Sub
type roomEvent struct {
	Rooms []string       `json:"rooms"`
	Event *model.WSEvent `json:"event"`
}

// NewHub creates a new WebSocket Hub. The Redis subscription is confirmed
// before NewHub returns, so no event published afterwards can be missed;
// messages queue on the connection until Run starts consuming them.
func NewHub(rdb *redis.Client, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	h := &Hub{
		rooms:          make(map[string]map[*Client]bool),
		clientRooms:    make(map[*Client]map[string]bool),
		userConns:      make(map[uuid.UUID]int),
		unregister:     make(chan *Client),
		rdb:            rdb,
		onStatusChange: onStatusChange,
	}

	h.pubsub = rdb.Subscribe(context.Background(), redisChannel)
	// Receive blocks until Redis acknowledges the subscription
	if _, err := h.pubsub.Receive(context.Background()); err != nil {
		log.Printf("Error subscribing to Redis: %v", err)
	}
	return h
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	go h.consumeRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register adds a client to the hub. The client is fully registered and in
// its user room when Register returns, so callers can Join further rooms
// immediately.
func (h *Hub) Register(client *Client) {
	h.addClient(client)
}

// addClient registers a new client connection and joins its user room
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clientRooms[client] = make(map[string]bool)
	h.joinLocked(client, UserRoom(client.UserID))
	h.userConns[client.UserID]++
	first := h.userConns[client.UserID] == 1
	h.mu.Unlock()

	if first {
		// User just came online (first connection)
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, true)
		}
		h.Publish([]string{}, &model.WSEvent{
			Type: model.WSEventOnline,
			Payload: model.OnlineEvent{
				UserID:   client.UserID,
				IsOnline: true,
			},
		})
	}
	log.Printf("✅ Client connected: %s", client.UserID)
}

// removeClient unregisters a client and leaves all its rooms
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	rooms, ok := h.clientRooms[client]
	if !ok {
		h.mu.Unlock()
		return
	}
	for room := range rooms {
		h.leaveLocked(client, room)
	}
	delete(h.clientRooms, client)
	close(client.send)

	h.userConns[client.UserID]--
	last := h.userConns[client.UserID] <= 0
	if last {
		delete(h.userConns, client.UserID)
	}
	h.mu.Unlock()

	if last {
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, false)
		}
		h.Publish([]string{}, &model.WSEvent{
			Type: model.WSEventOffline,
			Payload: model.OnlineEvent{
				UserID:   client.UserID,
				IsOnline: false,
			},
		})
	}
	log.Printf("❌ Client disconnected: %s", client.UserID)
}

// Join subscribes a client to a room
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clientRooms[client]; !ok {
		return
	}
	h.joinLocked(client, room)
}

// Leave unsubscribes a client from a room
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, room)
	if rooms, ok := h.clientRooms[client]; ok {
		delete(rooms, room)
	}
}

func (h *Hub) joinLocked(client *Client, room string) {
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	h.clientRooms[client][room] = true
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Publish sends an event to every subscriber of the given rooms. An empty
// room list broadcasts to all connected clients. Delivery goes through Redis
// so every instance fans out to its local subscribers; errors are logged and
// swallowed, a transport outage must never fail the triggering operation.
func (h *Hub) Publish(rooms []string, event *model.WSEvent) {
	data, err := json.Marshal(&roomEvent{Rooms: rooms, Event: event})
	if err != nil {
		log.Printf("Error marshaling event for Redis: %v", err)
		return
	}
	if err := h.rdb.Publish(context.Background(), redisChannel, data).Err(); err != nil {
		log.Printf("Error publishing to Redis: %v", err)
	}
}

// PublishToConversation sends an event to the conversation's room
func (h *Hub) PublishToConversation(conversationID uuid.UUID, event *model.WSEvent) {
	h.Publish([]string{ConversationRoom(conversationID)}, event)
}

// PublishToUsers sends an event to the user rooms of every given user
func (h *Hub) PublishToUsers(userIDs []uuid.UUID, event *model.WSEvent) {
	rooms := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		rooms = append(rooms, UserRoom(id))
	}
	h.Publish(rooms, event)
}

// deliverLocal fans an event out to the local subscribers of the given rooms.
// A client subscribed to several of the rooms receives the event once.
func (h *Hub) deliverLocal(rooms []string, event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	targets := make(map[*Client]bool)
	if len(rooms) == 0 {
		for client := range h.clientRooms {
			targets[client] = true
		}
	} else {
		for _, room := range rooms {
			for client := range h.rooms[room] {
				targets[client] = true
			}
		}
	}

	for client := range targets {
		select {
		case client.send <- data:
		default:
			// Client's send buffer is full, drop the connection
			h.dropLocked(client)
		}
	}
}

func (h *Hub) dropLocked(client *Client) {
	if rooms, ok := h.clientRooms[client]; ok {
		for room := range rooms {
			h.leaveLocked(client, room)
		}
		delete(h.clientRooms, client)
		close(client.send)
		h.userConns[client.UserID]--
		if h.userConns[client.UserID] <= 0 {
			delete(h.userConns, client.UserID)
		}
	}
}

// IsUserOnline checks if a user has any active connections on this instance
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.userConns[userID] > 0
}

// consumeRedis drains the event channel subscribed in NewHub and delivers
// to local clients
func (h *Hub) consumeRedis(ctx context.Context) {
	defer h.pubsub.Close()

	ch := h.pubsub.Channel()
	log.Println("📡 Redis Pub/Sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev roomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("Error unmarshaling Redis message: %v", err)
				continue
			}
			if ev.Event != nil {
				h.deliverLocal(ev.Rooms, ev.Event)
			}
		}
	}
}
