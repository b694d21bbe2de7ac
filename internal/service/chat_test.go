package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backoffice_web/internal/models"
	"backoffice_web/internal/repository"
	"backoffice_web/internal/storage"
)

// setupTestDB 建立測試用的 in-memory SQLite 資料庫
func setupTestDB(t *testing.T) *storage.PostgresDB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Participant{},
		&models.Message{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return &storage.PostgresDB{DB: db}
}

func setupChatService(t *testing.T) (*ChatService, *repository.Repositories) {
	t.Helper()
	repos := repository.NewRepositories(setupTestDB(t))
	return NewChatService(repos.Conversation, repos.Message, repos.User), repos
}

func createTestUser(t *testing.T, repos *repository.Repositories, name string) *models.User {
	t.Helper()
	user := &models.User{
		Username:    name,
		Password:    "hashed",
		Name:        name,
		Email:       fmt.Sprintf("%s@example.com", name),
		Role:        models.RoleUser,
		Permissions: models.DefaultPermissions(models.RoleUser),
	}
	if err := repos.User.Create(user); err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return user
}

func TestCreateConversationDirect(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")

	conv, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ConversationDirect, conv.Type)
	assert.Len(t, conv.Participants, 2)
	assert.True(t, conv.HasParticipant(a.ID))
	assert.True(t, conv.HasParticipant(b.ID))

	// direct 對話的參與者人數必須恰好為二
	c := createTestUser(t, repos, "carol")
	_, err = svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID, c.ID})
	assert.ErrorIs(t, err, ErrInvalidParticipants)
	_, err = svc.CreateConversation(a.ID, models.ConversationDirect, "", nil)
	assert.ErrorIs(t, err, ErrInvalidParticipants)

	// 參與者必須存在
	_, err = svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{9999})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSendMessageDirectResolvesReceiver(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")

	conv, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)

	msg, gotConv, err := svc.SendMessage(a.ID, conv.ID, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, gotConv.ID)
	assert.Equal(t, a.ID, msg.SenderID)
	require.NotNil(t, msg.ReceiverID)
	assert.Equal(t, b.ID, *msg.ReceiverID, "receiver must be the other participant")
	require.NotNil(t, msg.Content)
	assert.Equal(t, "hi", *msg.Content)
	assert.Equal(t, models.MessageText, msg.Type, "type defaults to text")
	assert.False(t, msg.IsRead)
	assert.False(t, msg.IsEdited)
	assert.False(t, msg.IsDeleted)
	assert.Equal(t, a.Name, msg.Sender.Name, "sender must be preloaded for broadcast")
}

func TestSendMessageGroupHasNoReceiver(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")
	c := createTestUser(t, repos, "carol")

	conv, err := svc.CreateConversation(a.ID, models.ConversationGroup, "team", []uint{b.ID, c.ID})
	require.NoError(t, err)

	msg, _, err := svc.SendMessage(a.ID, conv.ID, "hello team", models.MessageText)
	require.NoError(t, err)
	assert.Nil(t, msg.ReceiverID)
}

func TestSendMessageRequiresParticipant(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")
	outsider := createTestUser(t, repos, "mallory")

	conv, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)

	_, _, err = svc.SendMessage(outsider.ID, conv.ID, "let me in", "")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, _, err = svc.SendMessage(a.ID, 9999, "hi", "")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, _, err = svc.SendMessage(a.ID, conv.ID, "hi", "video")
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestMarkMessagesReadIdempotent(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")

	conv, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)

	m1, _, err := svc.SendMessage(a.ID, conv.ID, "first", "")
	require.NoError(t, err)
	m2, _, err := svc.SendMessage(a.ID, conv.ID, "second", "")
	require.NoError(t, err)

	ids, err := svc.MarkMessagesRead(b.ID, conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{m1.ID, m2.ID}, ids)

	updated, err := repos.Message.FindByID(m1.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsRead)

	// 第二次呼叫沒有新的未讀消息，回傳空集合
	ids, err = svc.MarkMessagesRead(b.ID, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMarkMessagesReadSkipsOwnMessages(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")

	conv, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)

	sent, _, err := svc.SendMessage(a.ID, conv.ID, "to bob", "")
	require.NoError(t, err)

	// 發送者標記已讀不影響自己寄出的消息
	ids, err := svc.MarkMessagesRead(a.ID, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	found, err := repos.Message.FindByID(sent.ID)
	require.NoError(t, err)
	assert.False(t, found.IsRead)
}

func TestUpdateMessageOwnershipAndEditFlag(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")

	conv, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)

	msg, _, err := svc.SendMessage(a.ID, conv.ID, "original", "")
	require.NoError(t, err)

	// 非發送者編輯被拒絕且資料不變
	_, err = svc.UpdateMessage(b.ID, conv.ID, msg.ID, "hacked")
	assert.ErrorIs(t, err, ErrNotMessageOwner)
	unchanged, err := repos.Message.FindByID(msg.ID)
	require.NoError(t, err)
	require.NotNil(t, unchanged.Content)
	assert.Equal(t, "original", *unchanged.Content)
	assert.False(t, unchanged.IsEdited)

	// 發送者本人可以編輯
	updated, err := svc.UpdateMessage(a.ID, conv.ID, msg.ID, "edited")
	require.NoError(t, err)
	require.NotNil(t, updated.Content)
	assert.Equal(t, "edited", *updated.Content)
	assert.True(t, updated.IsEdited)

	// 不存在的消息
	_, err = svc.UpdateMessage(a.ID, conv.ID, 9999, "x")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	// 消息必須屬於指定的對話
	other, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)
	_, err = svc.UpdateMessage(a.ID, other.ID, msg.ID, "x")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestDeleteMessageClearsContentAndBlocksEdit(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")

	conv, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)

	msg, _, err := svc.SendMessage(a.ID, conv.ID, "secret", "")
	require.NoError(t, err)

	// 非發送者刪除被拒絕
	err = svc.DeleteMessage(b.ID, conv.ID, msg.ID)
	assert.ErrorIs(t, err, ErrNotMessageOwner)

	require.NoError(t, svc.DeleteMessage(a.ID, conv.ID, msg.ID))

	deleted, err := repos.Message.FindByID(msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Nil(t, deleted.Content, "content must be cleared on delete")

	// 已刪除的消息拒絕編輯，內容保持 NULL
	_, err = svc.UpdateMessage(a.ID, conv.ID, msg.ID, "resurrect")
	assert.ErrorIs(t, err, ErrMessageDeleted)
	still, err := repos.Message.FindByID(msg.ID)
	require.NoError(t, err)
	assert.Nil(t, still.Content)

	// 重複刪除也被拒絕
	err = svc.DeleteMessage(a.ID, conv.ID, msg.ID)
	assert.ErrorIs(t, err, ErrMessageDeleted)
}

func TestHistoryOrdersAndMarksRead(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")

	conv, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)

	first, _, err := svc.SendMessage(a.ID, conv.ID, "one", "")
	require.NoError(t, err)
	second, _, err := svc.SendMessage(b.ID, conv.ID, "two", "")
	require.NoError(t, err)

	messages, readIDs, err := svc.History(b.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID, "history is ordered oldest first")
	assert.Equal(t, second.ID, messages[1].ID)
	assert.Equal(t, []uint{first.ID}, readIDs, "only messages addressed to the reader flip")

	// 非參與者不能讀取歷史
	outsider := createTestUser(t, repos, "mallory")
	_, _, err = svc.History(outsider.ID, conv.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestAddParticipant(t *testing.T) {
	svc, repos := setupChatService(t)
	a := createTestUser(t, repos, "alice")
	b := createTestUser(t, repos, "bob")
	c := createTestUser(t, repos, "carol")

	group, err := svc.CreateConversation(a.ID, models.ConversationGroup, "team", []uint{b.ID})
	require.NoError(t, err)

	require.NoError(t, svc.AddParticipant(a.ID, group.ID, c.ID))
	ok, err := svc.IsParticipant(group.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// 重複加入
	err = svc.AddParticipant(a.ID, group.ID, c.ID)
	assert.ErrorIs(t, err, ErrAlreadyParticipant)

	// 呼叫者必須是參與者
	outsider := createTestUser(t, repos, "mallory")
	err = svc.AddParticipant(outsider.ID, group.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	// direct 對話不能新增參與者
	direct, err := svc.CreateConversation(a.ID, models.ConversationDirect, "", []uint{b.ID})
	require.NoError(t, err)
	err = svc.AddParticipant(a.ID, direct.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotGroupConversation)
}
