package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.UserDevice{},
		&model.File{},
		&model.Conversation{},
		&model.ConversationMember{},
		&model.Message{},
		&model.MessageUserInfo{},
	))
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, n int) []model.User {
	t.Helper()
	users := make([]model.User, n)
	for i := range users {
		users[i] = model.User{
			Name:  fmt.Sprintf("User %d", i+1),
			Email: fmt.Sprintf("user%d-%s@wavechat.local", i+1, uuid.NewString()[:8]),
		}
		require.NoError(t, db.Create(&users[i]).Error)
	}
	return users
}

func TestConversationCreateDeduplicatesByMemberKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	users := seedUsers(t, db, 2)

	key := model.ConversationMemberKey([]uuid.UUID{users[0].ID, users[1].ID})
	conv := &model.Conversation{
		MemberKey:        key,
		LastActivityTime: time.Now(),
		Members: []model.ConversationMember{
			{UserID: users[0].ID, Role: model.MemberRoleMember, JoinedAt: time.Now()},
			{UserID: users[1].ID, Role: model.MemberRoleMember, JoinedAt: time.Now()},
		},
	}

	inserted, err := repo.Create(conv)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same member set again: insert is skipped, no orphan member rows
	dup := &model.Conversation{
		MemberKey:        key,
		LastActivityTime: time.Now(),
		Members: []model.ConversationMember{
			{UserID: users[0].ID, JoinedAt: time.Now()},
			{UserID: users[1].ID, JoinedAt: time.Now()},
		},
	}
	inserted, err = repo.Create(dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	var convCount, memberCount int64
	db.Model(&model.Conversation{}).Count(&convCount)
	db.Model(&model.ConversationMember{}).Count(&memberCount)
	assert.Equal(t, int64(1), convCount)
	assert.Equal(t, int64(2), memberCount)
}

func TestFindByMemberKeyMatchesExactSet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	users := seedUsers(t, db, 3)

	directKey := model.ConversationMemberKey([]uuid.UUID{users[0].ID, users[1].ID})
	direct := &model.Conversation{MemberKey: directKey, LastActivityTime: time.Now(), Members: []model.ConversationMember{
		{UserID: users[0].ID, JoinedAt: time.Now()},
		{UserID: users[1].ID, JoinedAt: time.Now()},
	}}
	_, err := repo.Create(direct)
	require.NoError(t, err)

	// Key is order independent
	sameKey := model.ConversationMemberKey([]uuid.UUID{users[1].ID, users[0].ID})
	found, err := repo.FindByMemberKey(sameKey, false)
	require.NoError(t, err)
	assert.Equal(t, direct.ID, found.ID)
	assert.Len(t, found.Members, 2)

	// Superset key misses
	groupKey := model.ConversationMemberKey([]uuid.UUID{users[0].ID, users[1].ID, users[2].ID})
	_, err = repo.FindByMemberKey(groupKey, true)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindByMessageID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	users := seedUsers(t, db, 2)

	conv := &model.Conversation{
		MemberKey:        model.ConversationMemberKey([]uuid.UUID{users[0].ID, users[1].ID}),
		LastActivityTime: time.Now(),
	}
	_, err := repo.Create(conv)
	require.NoError(t, err)

	msg := &model.Message{ConversationID: conv.ID, SenderID: users[0].ID, Type: model.MessageTypeText, Content: "hi"}
	require.NoError(t, db.Create(msg).Error)

	found, err := repo.FindByMessageID(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	_, err = repo.FindByMessageID(uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTouchLastActivityOrdersConversations(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	users := seedUsers(t, db, 3)

	older := &model.Conversation{
		MemberKey:        model.ConversationMemberKey([]uuid.UUID{users[0].ID, users[1].ID}),
		LastActivityTime: time.Now().Add(-time.Hour),
		Members: []model.ConversationMember{
			{UserID: users[0].ID, JoinedAt: time.Now()},
			{UserID: users[1].ID, JoinedAt: time.Now()},
		},
	}
	newer := &model.Conversation{
		MemberKey:        model.ConversationMemberKey([]uuid.UUID{users[0].ID, users[2].ID}),
		LastActivityTime: time.Now(),
		Members: []model.ConversationMember{
			{UserID: users[0].ID, JoinedAt: time.Now()},
			{UserID: users[2].ID, JoinedAt: time.Now()},
		},
	}
	_, err := repo.Create(older)
	require.NoError(t, err)
	_, err = repo.Create(newer)
	require.NoError(t, err)

	convs, err := repo.GetUserConversations(users[0].ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, newer.ID, convs[0].ID)

	// Activity on the older conversation moves it to the front
	require.NoError(t, repo.TouchLastActivity(older.ID, time.Now().Add(time.Minute)))
	convs, err = repo.GetUserConversations(users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, older.ID, convs[0].ID)
}

func TestMessagePagination(t *testing.T) {
	db := setupTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	users := seedUsers(t, db, 2)

	conv := &model.Conversation{
		MemberKey:        model.ConversationMemberKey([]uuid.UUID{users[0].ID, users[1].ID}),
		LastActivityTime: time.Now(),
	}
	_, err := convRepo.Create(conv)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 7; i++ {
		msg := &model.Message{
			ConversationID: conv.ID,
			SenderID:       users[0].ID,
			Type:           model.MessageTypeText,
			Content:        fmt.Sprintf("m%d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(msg).Error)
	}

	items, total, err := msgRepo.GetConversationMessages(conv.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, items, 3)
	assert.Equal(t, "m7", items[0].Content)
	assert.Equal(t, "m5", items[2].Content)

	items, _, err = msgRepo.GetConversationMessages(conv.ID, 3, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "m1", items[0].Content)
}

func TestCountUnread(t *testing.T) {
	db := setupTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	users := seedUsers(t, db, 2)

	conv := &model.Conversation{
		MemberKey:        model.ConversationMemberKey([]uuid.UUID{users[0].ID, users[1].ID}),
		LastActivityTime: time.Now(),
	}
	_, err := convRepo.Create(conv)
	require.NoError(t, err)

	var msgs []model.Message
	for i := 0; i < 3; i++ {
		msg := model.Message{ConversationID: conv.ID, SenderID: users[0].ID, Type: model.MessageTypeText, Content: "hi"}
		require.NoError(t, db.Create(&msg).Error)
		msgs = append(msgs, msg)
	}
	// Own message never counts as unread for the sender
	own := model.Message{ConversationID: conv.ID, SenderID: users[1].ID, Type: model.MessageTypeText, Content: "mine"}
	require.NoError(t, db.Create(&own).Error)

	count, err := msgRepo.CountUnread(conv.ID, users[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, db.Create(&model.MessageUserInfo{
		MessageID: msgs[0].ID,
		UserID:    users[1].ID,
		Status:    model.ReadStatusRead,
	}).Error)

	count, err = msgRepo.CountUnread(conv.ID, users[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMessageUserInfoUniquePerUserAndMessage(t *testing.T) {
	db := setupTestDB(t)
	infoRepo := NewMessageUserInfoRepository(db)
	users := seedUsers(t, db, 2)

	conv := &model.Conversation{
		MemberKey:        model.ConversationMemberKey([]uuid.UUID{users[0].ID, users[1].ID}),
		LastActivityTime: time.Now(),
	}
	require.NoError(t, db.Create(conv).Error)
	msg := &model.Message{ConversationID: conv.ID, SenderID: users[0].ID, Type: model.MessageTypeText, Content: "hi"}
	require.NoError(t, db.Create(msg).Error)

	row := &model.MessageUserInfo{MessageID: msg.ID, UserID: users[1].ID, Status: model.ReadStatusRead}
	require.NoError(t, infoRepo.Save(row))

	// Saving the same row updates in place
	row.Reaction = "👍"
	require.NoError(t, infoRepo.Save(row))

	found, err := infoRepo.Find(msg.ID, users[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "👍", found.Reaction)
	assert.Equal(t, model.ReadStatusRead, found.Status)

	// A second row for the same (message, user) violates the unique index
	dup := &model.MessageUserInfo{MessageID: msg.ID, UserID: users[1].ID, Status: model.ReadStatusUnread}
	assert.Error(t, db.Create(dup).Error)
}
