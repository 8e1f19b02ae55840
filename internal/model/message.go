package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType defines the type of message content
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// ReadStatus defines whether a recipient has seen a message
type ReadStatus string

const (
	ReadStatusUnread ReadStatus = "unread"
	ReadStatusRead   ReadStatus = "read"
)

// Message represents a chat message. Messages are immutable once created.
type Message struct {
	ID             uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID   `json:"conversation_id" gorm:"type:uuid;index;not null"`
	SenderID       uuid.UUID   `json:"sender_id" gorm:"type:uuid;index;not null"`
	Type           MessageType `json:"type" gorm:"type:varchar(20);default:'text'"`
	Content        string      `json:"content" gorm:"type:text"`
	FileID         *uuid.UUID  `json:"file_id,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time   `json:"created_at" gorm:"index"`

	// Relations
	Sender       User              `json:"sender" gorm:"foreignKey:SenderID"`
	Conversation Conversation      `json:"-" gorm:"foreignKey:ConversationID"`
	File         *File             `json:"file,omitempty" gorm:"foreignKey:FileID"`
	UserInfos    []MessageUserInfo `json:"user_infos" gorm:"foreignKey:MessageID"`
}

// BeforeCreate assigns a UUID when none was set
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MessageUserInfo is the per-recipient state of a message: whether that user
// has read it and which reaction (if any) they left. Rows are created lazily
// on first read; absence means "unseen, no reaction".
type MessageUserInfo struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID  `json:"message_id" gorm:"type:uuid;uniqueIndex:idx_msg_user;not null"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_msg_user;not null"`
	Status    ReadStatus `json:"status" gorm:"type:varchar(20);default:'unread'"`
	Reaction  string     `json:"reaction" gorm:"size:50"` // empty = no reaction
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Relations
	Message Message `json:"-" gorm:"foreignKey:MessageID"`
	User    User    `json:"user" gorm:"foreignKey:UserID"`
}

// BeforeCreate assigns a UUID when none was set
func (i *MessageUserInfo) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
