package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/longvu/wavechat/internal/model"
	"github.com/longvu/wavechat/internal/service"
	"github.com/longvu/wavechat/internal/ws"
	"github.com/longvu/wavechat/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, validate origin
	},
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub                 *ws.Hub
	conversationService *service.ConversationService
	jwtManager          *auth.JWTManager
}

func NewWSHandler(hub *ws.Hub, conversationService *service.ConversationService, jwtManager *auth.JWTManager) *WSHandler {
	return &WSHandler{
		hub:                 hub,
		conversationService: conversationService,
		jwtManager:          jwtManager,
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection.
// Client connects with: ws://host/ws?token=<jwt_token>
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// Authenticate via query parameter (WebSocket can't use Authorization header)
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtManager.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID, claims.Name)
	h.hub.Register(client)

	// Subscribe to the rooms of every conversation the user belongs to.
	// Rooms for conversations created later are joined on the
	// join_conversation event the client sends after conversation_created.
	if convIDs, err := h.conversationService.GetUserConversationIDs(claims.UserID); err == nil {
		for _, id := range convIDs {
			h.hub.Join(client, ws.ConversationRoom(id))
		}
	} else {
		log.Printf("Error loading conversations for %s: %v", claims.UserID, err)
	}

	log.Printf("✅ WS Connected: UserID=%s Name=%s", claims.UserID, claims.Name)

	go client.WritePump()
	go client.ReadPump(h.handleWSMessage)
}

// handleWSMessage processes incoming WebSocket messages from clients
func (h *WSHandler) handleWSMessage(client *ws.Client, event model.WSEvent) {
	switch event.Type {
	case model.WSEventJoinConversation:
		h.handleJoinConversation(client, event)

	case model.WSEventTyping, model.WSEventStopTyping:
		h.handleTyping(client, event)

	default:
		log.Printf("Unknown WebSocket event type: %s", event.Type)
	}
}

// handleJoinConversation subscribes the client to a conversation's room
// after verifying membership
func (h *WSHandler) handleJoinConversation(client *ws.Client, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	isMember, err := h.conversationService.IsMember(payload.ConversationID, client.UserID)
	if err != nil || !isMember {
		log.Printf("Rejected join_conversation from %s for conv %s", client.UserID, payload.ConversationID)
		return
	}

	h.hub.Join(client, ws.ConversationRoom(payload.ConversationID))
}

// handleTyping relays typing indicators to the conversation's room
func (h *WSHandler) handleTyping(client *ws.Client, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	isMember, err := h.conversationService.IsMember(payload.ConversationID, client.UserID)
	if err != nil || !isMember {
		return
	}

	h.hub.PublishToConversation(payload.ConversationID, &model.WSEvent{
		Type: event.Type,
		Payload: model.TypingEvent{
			ConversationID: payload.ConversationID,
			UserID:         client.UserID,
			Name:           client.Name,
		},
	})
}
