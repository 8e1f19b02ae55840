package model

import "github.com/google/uuid"

// ========== Auth DTOs ==========

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required"`
	DeviceType string `json:"device_type" binding:"required"`
}

// ========== Message DTOs ==========

// SendMessageRequest carries a message send. Either ConversationID (send into
// a known conversation) or UserIDs (resolve/create the conversation for these
// recipients) must be set.
type SendMessageRequest struct {
	ConversationID *uuid.UUID  `json:"conversation_id"`
	UserIDs        []uuid.UUID `json:"user_ids"`
	Type           MessageType `json:"type" binding:"omitempty,oneof=text image file"`
	Content        string      `json:"content"`
	FileID         *uuid.UUID  `json:"file_id"`
}

type ReactToMessageRequest struct {
	Reaction string `json:"reaction" binding:"required,max=50"`
}

type MessageListRequest struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

// PageMeta describes an offset-paginated result set
type PageMeta struct {
	TotalItems int64 `json:"total_items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// MessagePage is one page of messages, newest first
type MessagePage struct {
	Items []Message `json:"items"`
	Meta  PageMeta  `json:"meta"`
}

// ========== Conversation DTOs ==========

type ConversationResponse struct {
	Conversation
	UnreadCount int `json:"unread_count"`
}

// ========== WebSocket Event DTOs ==========

type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocket event types
const (
	WSEventConversationCreated = "conversation_created"
	WSEventMessageSent         = "message_sent"
	WSEventMessageViewed       = "message_viewed"
	WSEventJoinConversation    = "join_conversation"
	WSEventTyping              = "typing"
	WSEventStopTyping          = "stop_typing"
	WSEventOnline              = "online"
	WSEventOffline             = "offline"
)

// ConversationCreatedEvent is sent to every participant's user room when a
// first message spawns a new conversation (no one is subscribed to the
// conversation room yet).
type ConversationCreatedEvent struct {
	Conversation Conversation `json:"conversation"`
	CreatorID    uuid.UUID    `json:"creator_id"`
}

type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
}

type OnlineEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
