package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemberRole defines the role of a member in a conversation
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

// Conversation represents a chat conversation (direct or group)
type Conversation struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	IsGroup          bool       `json:"is_group" gorm:"not null;default:false"`
	Name             string     `json:"name" gorm:"size:255"`
	AvatarFileID     *uuid.UUID `json:"avatar_file_id,omitempty" gorm:"type:uuid"`
	LastActivityTime time.Time  `json:"last_activity_time" gorm:"index"`

	// Canonical key over the member set, guards against duplicate
	// conversations for the same participants (see ConversationMemberKey).
	MemberKey string `json:"-" gorm:"size:64;uniqueIndex;not null"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Members     []ConversationMember `json:"members,omitempty" gorm:"foreignKey:ConversationID"`
	AvatarFile  *File                `json:"avatar_file,omitempty" gorm:"foreignKey:AvatarFileID"`
	LastMessage *Message             `json:"last_message,omitempty" gorm:"-"` // populated manually
}

// BeforeCreate assigns a UUID when none was set
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ConversationMember represents a user's membership in a conversation
type ConversationMember struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID  `json:"conversation_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	Role           MemberRole `json:"role" gorm:"type:varchar(20);default:'member'"`
	AddedByID      *uuid.UUID `json:"added_by_id,omitempty" gorm:"type:uuid"` // inviting user, nil for the creator
	JoinedAt       time.Time  `json:"joined_at"`

	// Relations
	User         User         `json:"user" gorm:"foreignKey:UserID"`
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
}

// BeforeCreate assigns a UUID when none was set
func (m *ConversationMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ConversationMemberKey computes the canonical key for a participant set:
// sha256 over the sorted member UUIDs. Order of the input does not matter.
func ConversationMemberKey(userIDs []uuid.UUID) string {
	ids := make([]string, 0, len(userIDs))
	seen := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil))
}
