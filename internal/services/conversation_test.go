package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/deepchat-backend/internal/repos"
	"github.com/yungbote/deepchat-backend/internal/types"
)

type conversationFixture struct {
	svc    ConversationService
	db     *gorm.DB
	userID uuid.UUID
}

func newConversationFixture(t *testing.T, dedupWindow time.Duration) *conversationFixture {
	t.Helper()
	log := newTestLogger(t)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.User{}, &types.Conversation{}, &types.Message{}))

	user := &types.User{Username: "tester"}
	require.NoError(t, db.Create(user).Error)

	svc := NewConversationService(
		db, log,
		repos.NewUserRepo(db, log),
		repos.NewConversationRepo(db, log),
		repos.NewMessageRepo(db, log),
		dedupWindow,
	)
	return &conversationFixture{svc: svc, db: db, userID: user.ID}
}

func TestConversationService_CreateAndList(t *testing.T) {
	f := newConversationFixture(t, 5*time.Second)
	ctx := context.Background()

	first, err := f.svc.CreateConversation(ctx, f.userID, "  ")
	require.NoError(t, err)
	require.Equal(t, "New Conversation", first.Title)

	second, err := f.svc.CreateConversation(ctx, f.userID, "Thesis notes")
	require.NoError(t, err)
	require.Equal(t, "Thesis notes", second.Title)

	// Appending to the older conversation moves it to the front.
	require.NoError(t, f.db.Model(&types.Conversation{}).
		Where("id = ?", second.ID).
		Update("updated_at", time.Now().UTC().Add(-time.Hour)).Error)
	_, err = f.svc.AppendMessage(ctx, first.ID, types.RoleUser, "hello", nil)
	require.NoError(t, err)

	list, err := f.svc.ListConversations(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.ID, list[0].ID)
}

func TestConversationService_CreateUnknownUser(t *testing.T) {
	f := newConversationFixture(t, 5*time.Second)

	_, err := f.svc.CreateConversation(context.Background(), uuid.New(), "x")
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestConversationService_AppendValidation(t *testing.T) {
	f := newConversationFixture(t, 5*time.Second)
	ctx := context.Background()
	convo, err := f.svc.CreateConversation(ctx, f.userID, "c")
	require.NoError(t, err)

	_, err = f.svc.AppendMessage(ctx, convo.ID, "narrator", "x", nil)
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, "   ", nil)
	require.ErrorIs(t, err, ErrEmptyContent)

	_, err = f.svc.AppendMessage(ctx, uuid.New(), types.RoleUser, "x", nil)
	require.ErrorIs(t, err, ErrUnknownConversation)
}

func TestConversationService_DedupWindow(t *testing.T) {
	f := newConversationFixture(t, 200*time.Millisecond)
	ctx := context.Background()
	convo, err := f.svc.CreateConversation(ctx, f.userID, "c")
	require.NoError(t, err)

	first, err := f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, "same text", nil)
	require.NoError(t, err)
	require.False(t, first.Deduplicated)

	// Identical role/content inside the window resolves to the first row.
	repeat, err := f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, "same text", nil)
	require.NoError(t, err)
	require.True(t, repeat.Deduplicated)
	require.Equal(t, first.MessageID, repeat.MessageID)

	// Different content or role inserts normally.
	other, err := f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, "different text", nil)
	require.NoError(t, err)
	require.False(t, other.Deduplicated)
	assistant, err := f.svc.AppendMessage(ctx, convo.ID, types.RoleAssistant, "same text", nil)
	require.NoError(t, err)
	require.False(t, assistant.Deduplicated)

	// Once the window passes, the same text is a legitimate repeat.
	time.Sleep(250 * time.Millisecond)
	late, err := f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, "same text", nil)
	require.NoError(t, err)
	require.False(t, late.Deduplicated)
	require.NotEqual(t, first.MessageID, late.MessageID)
}

func TestConversationService_ClientMessageID(t *testing.T) {
	f := newConversationFixture(t, 5*time.Second)
	ctx := context.Background()
	convo, err := f.svc.CreateConversation(ctx, f.userID, "c")
	require.NoError(t, err)

	clientID := "turn-42"
	first, err := f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, "original", &clientID)
	require.NoError(t, err)
	require.False(t, first.Deduplicated)

	// A retry with the same client id resolves to the original row even if
	// the content drifted.
	retry, err := f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, "retried wording", &clientID)
	require.NoError(t, err)
	require.True(t, retry.Deduplicated)
	require.Equal(t, first.MessageID, retry.MessageID)

	messages, err := f.svc.ListMessages(ctx, convo.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "original", messages[0].Content)
}

func TestConversationService_MessageOrdering(t *testing.T) {
	f := newConversationFixture(t, time.Millisecond)
	ctx := context.Background()
	convo, err := f.svc.CreateConversation(ctx, f.userID, "c")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, fmt.Sprintf("message %d", i), nil)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	messages, err := f.svc.ListMessages(ctx, convo.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, m := range messages {
		require.Equal(t, fmt.Sprintf("message %d", i), m.Content)
	}
}

// failingConversationRepo fails the conversation-row delete after the
// message delete already ran inside the same transaction.
type failingConversationRepo struct {
	repos.ConversationRepo
}

func (r *failingConversationRepo) DeleteByID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) error {
	return fmt.Errorf("disk full")
}

func TestConversationService_DeleteRollsBackOnFailure(t *testing.T) {
	f := newConversationFixture(t, time.Millisecond)
	ctx := context.Background()
	log := newTestLogger(t)

	convo, err := f.svc.CreateConversation(ctx, f.userID, "c")
	require.NoError(t, err)
	_, err = f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, "one", nil)
	require.NoError(t, err)
	_, err = f.svc.AppendMessage(ctx, convo.ID, types.RoleAssistant, "two", nil)
	require.NoError(t, err)

	broken := NewConversationService(
		f.db, log,
		repos.NewUserRepo(f.db, log),
		&failingConversationRepo{ConversationRepo: repos.NewConversationRepo(f.db, log)},
		repos.NewMessageRepo(f.db, log),
		time.Millisecond,
	)

	err = broken.DeleteConversation(ctx, convo.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")

	// The failure after the message delete rolls the whole thing back:
	// conversation and messages all survive.
	messages, err := f.svc.ListMessages(ctx, convo.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "one", messages[0].Content)
	require.Equal(t, "two", messages[1].Content)

	list, err := f.svc.ListConversations(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestConversationService_DeleteIsAtomicAndComplete(t *testing.T) {
	f := newConversationFixture(t, time.Millisecond)
	ctx := context.Background()
	convo, err := f.svc.CreateConversation(ctx, f.userID, "c")
	require.NoError(t, err)
	keep, err := f.svc.CreateConversation(ctx, f.userID, "keep")
	require.NoError(t, err)

	_, err = f.svc.AppendMessage(ctx, convo.ID, types.RoleUser, "one", nil)
	require.NoError(t, err)
	_, err = f.svc.AppendMessage(ctx, keep.ID, types.RoleUser, "untouched", nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteConversation(ctx, convo.ID))

	_, err = f.svc.ListMessages(ctx, convo.ID)
	require.ErrorIs(t, err, ErrUnknownConversation)

	var orphans int64
	require.NoError(t, f.db.Model(&types.Message{}).Where("conversation_id = ?", convo.ID).Count(&orphans).Error)
	require.Zero(t, orphans)

	kept, err := f.svc.ListMessages(ctx, keep.ID)
	require.NoError(t, err)
	require.Len(t, kept, 1)

	require.ErrorIs(t, f.svc.DeleteConversation(ctx, convo.ID), ErrUnknownConversation)
}
