package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/apperr"
	"github.com/longvu/wavechat/internal/model"
	"github.com/longvu/wavechat/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newConversationTestService(t *testing.T) (*ConversationService, *MessageService, *gorm.DB) {
	t.Helper()
	msgSvc, _, _, db := newTestService(t)
	convSvc := NewConversationService(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
	)
	return convSvc, msgSvc, db
}

func TestGetConversationsListsByActivity(t *testing.T) {
	convSvc, msgSvc, db := newConversationTestService(t)
	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	carol := createTestUser(t, db, "Carol")

	withBob, err := msgSvc.Send(alice.ID, model.SendMessageRequest{
		UserIDs: []uuid.UUID{bob.ID},
		Content: "hey bob",
	})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	withCarol, err := msgSvc.Send(alice.ID, model.SendMessageRequest{
		UserIDs: []uuid.UUID{carol.ID},
		Content: "hey carol",
	})
	require.NoError(t, err)

	convs, err := convSvc.GetConversations(alice.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	// Most recently active first
	assert.Equal(t, withCarol.ConversationID, convs[0].ID)
	assert.Equal(t, withBob.ConversationID, convs[1].ID)

	// Direct conversations carry the counterpart's name
	assert.Equal(t, "Carol", convs[0].Name)
	assert.Equal(t, "Bob", convs[1].Name)

	// Latest message hydrated
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "hey carol", convs[0].LastMessage.Content)
}

func TestGetConversationsUnreadCount(t *testing.T) {
	convSvc, msgSvc, db := newConversationTestService(t)
	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")

	first, err := msgSvc.Send(alice.ID, model.SendMessageRequest{
		UserIDs: []uuid.UUID{bob.ID},
		Content: "one",
	})
	require.NoError(t, err)
	convID := first.ConversationID

	_, err = msgSvc.Send(alice.ID, model.SendMessageRequest{
		ConversationID: &convID,
		Content:        "two",
	})
	require.NoError(t, err)

	// From Bob's side both messages are unread; Alice sees none
	bobConvs, err := convSvc.GetConversations(bob.ID)
	require.NoError(t, err)
	require.Len(t, bobConvs, 1)
	assert.Equal(t, 2, bobConvs[0].UnreadCount)

	aliceConvs, err := convSvc.GetConversations(alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceConvs, 1)
	assert.Equal(t, 0, aliceConvs[0].UnreadCount)

	// Reading one message drops the count
	_, err = msgSvc.MarkRead(first.ID, bob.ID)
	require.NoError(t, err)

	bobConvs, err = convSvc.GetConversations(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, bobConvs[0].UnreadCount)
}

func TestGetConversationMembership(t *testing.T) {
	convSvc, msgSvc, db := newConversationTestService(t)
	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	mallory := createTestUser(t, db, "Mallory")

	first, err := msgSvc.Send(alice.ID, model.SendMessageRequest{
		UserIDs: []uuid.UUID{bob.ID},
		Content: "private",
	})
	require.NoError(t, err)

	conv, err := convSvc.GetConversation(first.ConversationID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, conv.ID)
	assert.Len(t, conv.Members, 2)

	_, err = convSvc.GetConversation(first.ConversationID, mallory.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsNotAuthorized(err))

	_, err = convSvc.GetConversation(uuid.New(), alice.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestGetUserConversationIDs(t *testing.T) {
	convSvc, msgSvc, db := newConversationTestService(t)
	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	carol := createTestUser(t, db, "Carol")

	withBob, err := msgSvc.Send(alice.ID, model.SendMessageRequest{
		UserIDs: []uuid.UUID{bob.ID},
		Content: "hi",
	})
	require.NoError(t, err)
	group, err := msgSvc.Send(alice.ID, model.SendMessageRequest{
		UserIDs: []uuid.UUID{bob.ID, carol.ID},
		Content: "hi all",
	})
	require.NoError(t, err)

	ids, err := convSvc.GetUserConversationIDs(carol.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{group.ConversationID}, ids)

	ids, err = convSvc.GetUserConversationIDs(alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{withBob.ConversationID, group.ConversationID}, ids)
}
