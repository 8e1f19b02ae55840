package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository handles database operations for Conversation
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ConversationRepository) WithTx(tx *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

// Create inserts a conversation guarded by the member-key unique index.
// Returns false when a conversation with the same member set already exists
// (the row is left untouched and the caller should re-fetch by member key).
// Members are inserted separately so a skipped insert creates no orphan rows.
func (r *ConversationRepository) Create(conv *model.Conversation) (bool, error) {
	members := conv.Members
	conv.Members = nil

	res := r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_key"}},
			DoNothing: true,
		}).
		Create(conv)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	for i := range members {
		members[i].ConversationID = conv.ID
	}
	if len(members) > 0 {
		if err := r.db.Create(&members).Error; err != nil {
			return false, err
		}
	}
	conv.Members = members
	return true, nil
}

// FindByID finds a conversation by ID with members
func (r *ConversationRepository) FindByID(id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Members.User").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByMemberKey finds the conversation whose member set matches the
// canonical key exactly
func (r *ConversationRepository) FindByMemberKey(memberKey string, isGroup bool) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Members.User").
		Where("member_key = ? AND is_group = ?", memberKey, isGroup).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByMessageID finds the conversation a message belongs to
func (r *ConversationRepository) FindByMessageID(messageID uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Joins("JOIN messages ON messages.conversation_id = conversations.id").
		Where("messages.id = ?", messageID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetUserConversations returns all conversations for a user, ordered by latest activity
func (r *ConversationRepository) GetUserConversations(userID uuid.UUID) ([]model.Conversation, error) {
	var conversations []model.Conversation
	err := r.db.
		Joins("JOIN conversation_members ON conversation_members.conversation_id = conversations.id").
		Where("conversation_members.user_id = ?", userID).
		Preload("Members.User").
		Order("conversations.last_activity_time DESC").
		Find(&conversations).Error
	return conversations, err
}

// GetUserConversationIDs returns the IDs of all conversations a user belongs to
func (r *ConversationRepository) GetUserConversationIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&model.ConversationMember{}).
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error
	return ids, err
}

// IsMember checks if a user is a member of a conversation
func (r *ConversationRepository) IsMember(conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// TouchLastActivity bumps the last-activity timestamp (conversations sort by it)
func (r *ConversationRepository) TouchLastActivity(conversationID uuid.UUID, at time.Time) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_activity_time", at).Error
}
