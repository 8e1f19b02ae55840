package repository

import (
	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/model"
	"gorm.io/gorm"
)

// MessageUserInfoRepository handles the per-(user, message) read/reaction state
type MessageUserInfoRepository struct {
	db *gorm.DB
}

func NewMessageUserInfoRepository(db *gorm.DB) *MessageUserInfoRepository {
	return &MessageUserInfoRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *MessageUserInfoRepository) WithTx(tx *gorm.DB) *MessageUserInfoRepository {
	return &MessageUserInfoRepository{db: tx}
}

// Find returns the state row for a (user, message) pair
func (r *MessageUserInfoRepository) Find(messageID, userID uuid.UUID) (*model.MessageUserInfo, error) {
	var info model.MessageUserInfo
	err := r.db.
		Preload("User").
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&info).Error
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Save inserts or updates a state row. The (message_id, user_id) unique index
// guarantees at most one row per pair.
func (r *MessageUserInfoRepository) Save(info *model.MessageUserInfo) error {
	return r.db.Save(info).Error
}
