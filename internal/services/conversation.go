package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/repos"
	"github.com/yungbote/deepchat-backend/internal/types"
)

var (
	ErrUnknownUser         = repos.ErrUserNotFound
	ErrUnknownConversation = repos.ErrConversationNotFound
	ErrInvalidRole         = errors.New("invalid message role")
	ErrEmptyContent        = errors.New("message content cannot be empty")
)

// AppendResult reports where a message landed. Deduplicated means the call
// was suppressed as an idempotent no-op and MessageID points at the
// earlier row.
type AppendResult struct {
	MessageID    uuid.UUID
	Deduplicated bool
}

type ConversationService interface {
	CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*types.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]*types.Conversation, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*types.Message, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, clientMessageID *string) (AppendResult, error)
	DeleteConversation(ctx context.Context, conversationID uuid.UUID) error
}

type conversationService struct {
	db          *gorm.DB
	log         *logger.Logger
	userRepo    repos.UserRepo
	convoRepo   repos.ConversationRepo
	messageRepo repos.MessageRepo
	dedupWindow time.Duration
}

func NewConversationService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, convoRepo repos.ConversationRepo, messageRepo repos.MessageRepo, dedupWindow time.Duration) ConversationService {
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Second
	}
	return &conversationService{
		db:          db,
		log:         baseLog.With("service", "ConversationService"),
		userRepo:    userRepo,
		convoRepo:   convoRepo,
		messageRepo: messageRepo,
		dedupWindow: dedupWindow,
	}
}

func (s *conversationService) CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*types.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New Conversation"
	}

	var created *types.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.userRepo.Exists(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUnknownUser
		}
		created, err = s.convoRepo.Create(ctx, tx, &types.Conversation{
			UserID: userID,
			Title:  title,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("Conversation created", "conversation_id", created.ID, "user_id", userID)
	return created, nil
}

func (s *conversationService) ListConversations(ctx context.Context, userID uuid.UUID) ([]*types.Conversation, error) {
	return s.convoRepo.ListByUserID(ctx, nil, userID)
}

func (s *conversationService) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*types.Message, error) {
	if _, err := s.convoRepo.GetByID(ctx, nil, conversationID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByConversationID(ctx, nil, conversationID)
}

// AppendMessage inserts a message and bumps the conversation's updated_at
// in one transaction. A client message id that was already recorded, or an
// identical (role, content) row inside the trailing dedup window, resolves
// to the existing row instead of a second insert.
func (s *conversationService) AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, clientMessageID *string) (AppendResult, error) {
	if !types.ValidRole(role) {
		return AppendResult{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if strings.TrimSpace(content) == "" {
		return AppendResult{}, ErrEmptyContent
	}

	var result AppendResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Existence check and insert share the transaction so the
		// conversation cannot vanish between them.
		if _, err := s.convoRepo.GetByID(ctx, tx, conversationID); err != nil {
			return err
		}

		if clientMessageID != nil && strings.TrimSpace(*clientMessageID) != "" {
			existing, err := s.messageRepo.FindByClientMessageID(ctx, tx, conversationID, *clientMessageID)
			if err != nil {
				return err
			}
			if existing != nil {
				result = AppendResult{MessageID: existing.ID, Deduplicated: true}
				return nil
			}
		}

		since := time.Now().UTC().Add(-s.dedupWindow)
		duplicate, err := s.messageRepo.FindRecentDuplicate(ctx, tx, conversationID, role, content, since)
		if err != nil {
			return err
		}
		if duplicate != nil {
			result = AppendResult{MessageID: duplicate.ID, Deduplicated: true}
			return nil
		}

		message := &types.Message{
			ConversationID:  conversationID,
			Role:            role,
			Content:         content,
			ClientMessageID: clientMessageID,
		}
		if _, err := s.messageRepo.Create(ctx, tx, message); err != nil {
			return err
		}
		if err := s.convoRepo.TouchUpdatedAt(ctx, tx, conversationID, time.Now().UTC()); err != nil {
			return err
		}
		result = AppendResult{MessageID: message.ID}
		return nil
	})
	if err != nil {
		return AppendResult{}, err
	}
	if result.Deduplicated {
		s.log.Debug("Duplicate message suppressed", "conversation_id", conversationID, "message_id", result.MessageID)
	}
	return result, nil
}

// DeleteConversation removes the messages first and the conversation
// second inside one transaction; partial deletion is never observable.
func (s *conversationService) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.convoRepo.GetByID(ctx, tx, conversationID); err != nil {
			return err
		}
		if err := s.messageRepo.DeleteByConversationID(ctx, tx, conversationID); err != nil {
			return err
		}
		return s.convoRepo.DeleteByID(ctx, tx, conversationID)
	})
}
