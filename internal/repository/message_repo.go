package repository

import (
	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/model"
	"gorm.io/gorm"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

// Create inserts a new message
func (r *MessageRepository) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}

// FindByID finds a message by ID hydrated with sender, file and per-recipient state
func (r *MessageRepository) FindByID(id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("Sender").
		Preload("File").
		Preload("UserInfos.User").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Exists reports whether a message with the given ID exists
func (r *MessageRepository) Exists(id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.Message{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// GetConversationMessages returns one page of messages for a conversation,
// newest first, with the total row count for pagination metadata
func (r *MessageRepository) GetConversationMessages(conversationID uuid.UUID, page, limit int) ([]model.Message, int64, error) {
	var total int64
	if err := r.db.Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	messages := []model.Message{}
	err := r.db.
		Preload("Sender").
		Preload("File").
		Preload("UserInfos.User").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	return messages, total, err
}

// GetLastMessage returns the most recent message in a conversation
func (r *MessageRepository) GetLastMessage(conversationID uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CountUnread counts messages from other senders in a conversation that the
// user has no read state row for
func (r *MessageRepository) CountUnread(conversationID, userID uuid.UUID) (int64, error) {
	var count int64
	subQuery := r.db.Model(&model.MessageUserInfo{}).
		Select("message_id").
		Where("user_id = ? AND status = ?", userID, model.ReadStatusRead)

	err := r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id != ?", conversationID, userID).
		Where("id NOT IN (?)", subQuery).
		Count(&count).Error
	return count, err
}
