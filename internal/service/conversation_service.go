package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/apperr"
	"github.com/longvu/wavechat/internal/model"
	"github.com/longvu/wavechat/internal/repository"
	"gorm.io/gorm"
)

// ConversationService answers conversation listing and detail queries
type ConversationService struct {
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
}

func NewConversationService(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
) *ConversationService {
	return &ConversationService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
	}
}

// GetConversations returns all conversations for a user, most recently
// active first, each with its latest message and the user's unread count
func (s *ConversationService) GetConversations(userID uuid.UUID) ([]model.ConversationResponse, error) {
	conversations, err := s.convRepo.GetUserConversations(userID)
	if err != nil {
		return nil, err
	}

	result := []model.ConversationResponse{}
	for i := range conversations {
		conv := conversations[i]

		lastMsg, err := s.msgRepo.GetLastMessage(conv.ID)
		if err == nil {
			conv.LastMessage = lastMsg
		}

		unreadCount, _ := s.msgRepo.CountUnread(conv.ID, userID)

		// A direct conversation shows the counterpart's name and avatar
		if !conv.IsGroup {
			for _, m := range conv.Members {
				if m.UserID != userID {
					conv.Name = m.User.Name
					break
				}
			}
		}

		result = append(result, model.ConversationResponse{
			Conversation: conv,
			UnreadCount:  int(unreadCount),
		})
	}

	return result, nil
}

// GetUserConversationIDs returns the IDs of all conversations a user belongs to
func (s *ConversationService) GetUserConversationIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	return s.convRepo.GetUserConversationIDs(userID)
}

// IsMember checks whether a user belongs to a conversation
func (s *ConversationService) IsMember(conversationID, userID uuid.UUID) (bool, error) {
	return s.convRepo.IsMember(conversationID, userID)
}

// GetConversation returns a specific conversation the user is a member of
func (s *ConversationService) GetConversation(conversationID, userID uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, apperr.ErrNotFound)
		}
		return nil, err
	}

	isMember, err := s.convRepo.IsMember(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, fmt.Errorf("caller is not a member of conversation %s: %w", conversationID, apperr.ErrNotAuthorized)
	}

	return conv, nil
}
