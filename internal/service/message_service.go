package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/apperr"
	"github.com/longvu/wavechat/internal/model"
	"github.com/longvu/wavechat/internal/repository"
	"gorm.io/gorm"
)

// Publisher delivers realtime events to room subscribers. The websocket hub
// implements it; the service never talks to the transport directly.
type Publisher interface {
	PublishToConversation(conversationID uuid.UUID, event *model.WSEvent)
	PublishToUsers(userIDs []uuid.UUID, event *model.WSEvent)
}

// Notifier pushes "you have a new message" nudges to recipients' devices.
// Implementations must be best-effort; errors never reach the sender.
type Notifier interface {
	NotifyMessage(recipientIDs []uuid.UUID, msg *model.Message)
}

// MessageService orchestrates the messaging core: conversation resolution,
// message persistence, per-recipient read/reaction state and realtime fan-out.
type MessageService struct {
	db       *gorm.DB
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
	infoRepo *repository.MessageUserInfoRepository
	fileRepo *repository.FileRepository
	userRepo *repository.UserRepository
	pub      Publisher
	notifier Notifier // optional

	convLocks conversationLocks
}

func NewMessageService(
	db *gorm.DB,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	infoRepo *repository.MessageUserInfoRepository,
	fileRepo *repository.FileRepository,
	userRepo *repository.UserRepository,
	pub Publisher,
	notifier Notifier,
) *MessageService {
	return &MessageService{
		db:       db,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		infoRepo: infoRepo,
		fileRepo: fileRepo,
		userRepo: userRepo,
		pub:      pub,
		notifier: notifier,
		convLocks: conversationLocks{
			locks: make(map[uuid.UUID]*convLock),
		},
	}
}

// Send resolves the target conversation (creating one when the recipients
// have none yet), persists the message and bumps the conversation's activity
// time, all in one transaction. After commit it publishes either
// conversation_created to every participant's user room or message_sent to
// the conversation room. A per-conversation lock is held from resolution
// until the events are published, so fan-out follows commit order.
func (s *MessageService) Send(senderID uuid.UUID, req model.SendMessageRequest) (*model.Message, error) {
	var (
		msg     *model.Message
		conv    *model.Conversation
		created bool
		unlock  func()
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		c, isNew, err := s.resolveConversation(tx, senderID, req)
		if err != nil {
			return err
		}
		conv, created = c, isNew
		unlock = s.convLocks.lock(conv.ID)

		now := time.Now()
		if err := s.convRepo.WithTx(tx).TouchLastActivity(conv.ID, now); err != nil {
			return err
		}
		conv.LastActivityTime = now

		m, err := s.buildMessage(tx, senderID, conv.ID, req)
		if err != nil {
			return err
		}
		if err := s.msgRepo.WithTx(tx).Create(m); err != nil {
			return err
		}
		msg = m
		return nil
	})
	if unlock != nil {
		defer unlock()
	}
	if err != nil {
		return nil, err
	}

	// Hydrate for the response and the fan-out payload
	if full, err := s.msgRepo.FindByID(msg.ID); err == nil {
		msg = full
	}

	memberIDs := make([]uuid.UUID, 0, len(conv.Members))
	for _, m := range conv.Members {
		memberIDs = append(memberIDs, m.UserID)
	}

	if created {
		// No one is subscribed to the new conversation's room yet, so the
		// event goes to every participant's user room instead.
		s.pub.PublishToUsers(memberIDs, &model.WSEvent{
			Type: model.WSEventConversationCreated,
			Payload: model.ConversationCreatedEvent{
				Conversation: *conv,
				CreatorID:    senderID,
			},
		})
	} else {
		s.pub.PublishToConversation(conv.ID, &model.WSEvent{
			Type:    model.WSEventMessageSent,
			Payload: msg,
		})
	}

	if s.notifier != nil {
		recipients := make([]uuid.UUID, 0, len(memberIDs))
		for _, id := range memberIDs {
			if id != senderID {
				recipients = append(recipients, id)
			}
		}
		if len(recipients) > 0 {
			s.notifier.NotifyMessage(recipients, msg)
		}
	}

	return msg, nil
}

// resolveConversation returns the conversation a send belongs to. With an
// explicit id the sender must be a member; otherwise the participant set is
// matched exactly against existing conversations via the canonical member
// key, creating a new conversation on miss. The bool result reports whether
// a conversation was created.
func (s *MessageService) resolveConversation(tx *gorm.DB, senderID uuid.UUID, req model.SendMessageRequest) (*model.Conversation, bool, error) {
	convRepo := s.convRepo.WithTx(tx)

	if req.ConversationID != nil {
		conv, err := convRepo.FindByID(*req.ConversationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, fmt.Errorf("conversation %s: %w", req.ConversationID, apperr.ErrNotFound)
			}
			return nil, false, err
		}
		isMember, err := convRepo.IsMember(conv.ID, senderID)
		if err != nil {
			return nil, false, err
		}
		if !isMember {
			return nil, false, fmt.Errorf("sender is not a member of conversation %s: %w", conv.ID, apperr.ErrNotAuthorized)
		}
		return conv, false, nil
	}

	targets := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, id := range req.UserIDs {
		if id != senderID {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return nil, false, fmt.Errorf("at least one recipient is required: %w", apperr.ErrValidation)
	}

	isGroup := len(targets) >= 2
	participants := append([]uuid.UUID{senderID}, targets...)
	memberKey := model.ConversationMemberKey(participants)

	conv, err := convRepo.FindByMemberKey(memberKey, isGroup)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	return s.createConversation(tx, senderID, targets, isGroup, memberKey)
}

// createConversation builds a conversation named after its participants
// (sender first) with one member row per participant. The member-key unique
// index arbitrates concurrent creation: the loser of the race reuses the
// winner's row, reported by the bool result.
func (s *MessageService) createConversation(tx *gorm.DB, senderID uuid.UUID, targets []uuid.UUID, isGroup bool, memberKey string) (*model.Conversation, bool, error) {
	userRepo := s.userRepo.WithTx(tx)
	convRepo := s.convRepo.WithTx(tx)

	sender, err := userRepo.FindByID(senderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("sender %s: %w", senderID, apperr.ErrNotFound)
		}
		return nil, false, err
	}
	targetUsers, err := userRepo.FindByIDs(targets)
	if err != nil {
		return nil, false, err
	}
	if len(targetUsers) != len(targets) {
		return nil, false, fmt.Errorf("one or more recipients do not exist: %w", apperr.ErrNotFound)
	}

	byID := make(map[uuid.UUID]model.User, len(targetUsers))
	for _, u := range targetUsers {
		byID[u.ID] = u
	}

	names := make([]string, 0, len(targets)+1)
	names = append(names, sender.Name)
	for _, id := range targets {
		names = append(names, byID[id].Name)
	}

	now := time.Now()
	senderRole := model.MemberRoleMember
	if isGroup {
		senderRole = model.MemberRoleAdmin
	}
	members := []model.ConversationMember{
		{UserID: senderID, Role: senderRole, JoinedAt: now},
	}
	for _, id := range targets {
		member := model.ConversationMember{
			UserID:   id,
			Role:     model.MemberRoleMember,
			JoinedAt: now,
		}
		if isGroup {
			addedBy := senderID
			member.AddedByID = &addedBy
		}
		members = append(members, member)
	}

	conv := &model.Conversation{
		IsGroup:          isGroup,
		Name:             strings.Join(names, ", "),
		MemberKey:        memberKey,
		LastActivityTime: now,
		Members:          members,
	}

	inserted, err := convRepo.Create(conv)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Another sender created the same conversation concurrently
		existing, err := convRepo.FindByMemberKey(memberKey, isGroup)
		return existing, false, err
	}
	return conv, true, nil
}

// buildMessage validates the payload and attaches the file for image/file
// sends. The file must exist and belong to the sender.
func (s *MessageService) buildMessage(tx *gorm.DB, senderID, conversationID uuid.UUID, req model.SendMessageRequest) (*model.Message, error) {
	msgType := req.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           msgType,
		Content:        req.Content,
	}

	switch msgType {
	case model.MessageTypeText:
		if strings.TrimSpace(req.Content) == "" {
			return nil, fmt.Errorf("text message requires content: %w", apperr.ErrValidation)
		}
	case model.MessageTypeImage, model.MessageTypeFile:
		if req.FileID == nil {
			return nil, fmt.Errorf("%s message requires a file: %w", msgType, apperr.ErrValidation)
		}
		file, err := s.fileRepo.WithTx(tx).FindOwned(*req.FileID, senderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("file %s does not exist or is not owned by sender: %w", req.FileID, apperr.ErrValidation)
			}
			return nil, err
		}
		msg.FileID = &file.ID
	default:
		return nil, fmt.Errorf("unknown message type %q: %w", msgType, apperr.ErrValidation)
	}

	return msg, nil
}

// MarkRead upserts the (user, message) state row and sets it to read.
// Calling it twice is a no-op beyond the second write. The message_viewed
// event is best-effort: a failed conversation lookup or publish is logged
// and never fails the operation.
func (s *MessageService) MarkRead(messageID, userID uuid.UUID) (*model.MessageUserInfo, error) {
	var info *model.MessageUserInfo

	err := s.db.Transaction(func(tx *gorm.DB) error {
		exists, err := s.msgRepo.WithTx(tx).Exists(messageID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
		}

		infoRepo := s.infoRepo.WithTx(tx)
		row, err := infoRepo.Find(messageID, userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			row = &model.MessageUserInfo{
				MessageID: messageID,
				UserID:    userID,
				Status:    model.ReadStatusUnread,
			}
		}
		row.Status = model.ReadStatusRead
		if err := infoRepo.Save(row); err != nil {
			return err
		}
		info = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	if full, err := s.infoRepo.Find(messageID, userID); err == nil {
		info = full
	}

	conv, err := s.convRepo.FindByMessageID(messageID)
	if err != nil {
		log.Printf("⚠️  Skipping message_viewed event for message %s: %v", messageID, err)
		return info, nil
	}
	s.pub.PublishToConversation(conv.ID, &model.WSEvent{
		Type:    model.WSEventMessageViewed,
		Payload: info,
	})

	return info, nil
}

// React overwrites the user's reaction on a message. The state row must
// already exist from a prior read; reacting to a message the user never
// opened is rejected.
func (s *MessageService) React(messageID, userID uuid.UUID, reaction string) (*model.MessageUserInfo, error) {
	info, err := s.infoRepo.Find(messageID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no read state for message %s: %w", messageID, apperr.ErrNotFound)
		}
		return nil, err
	}

	info.Reaction = reaction
	if err := s.infoRepo.Save(info); err != nil {
		return nil, err
	}
	return info, nil
}

// ListMessages returns one page of a conversation's messages, newest first.
// The caller must be a member.
func (s *MessageService) ListMessages(conversationID, userID uuid.UUID, page, limit int) (*model.MessagePage, error) {
	isMember, err := s.convRepo.IsMember(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		if _, err := s.convRepo.FindByID(conversationID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("conversation %s: %w", conversationID, apperr.ErrNotFound)
			}
			return nil, err
		}
		return nil, fmt.Errorf("caller is not a member of conversation %s: %w", conversationID, apperr.ErrNotAuthorized)
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	items, total, err := s.msgRepo.GetConversationMessages(conversationID, page, limit)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &model.MessagePage{
		Items: items,
		Meta: model.PageMeta{
			TotalItems: total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}, nil
}

// conversationLocks hands out one mutex per conversation id so commit order
// and publish order cannot diverge for a conversation. Entries are reference
// counted and dropped when unused.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func (l *conversationLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &convLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
