package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/deepchat-backend/internal/logger"
  "github.com/yungbote/deepchat-backend/internal/types"
)

type MessageRepo interface {
  Create(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, error)
  ListByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.Message, error)
  FindRecentDuplicate(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, role, content string, since time.Time) (*types.Message, error)
  FindByClientMessageID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, clientMessageID string) (*types.Message, error)
  DeleteByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) error
}

type messageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
  repoLog := baseLog.With("repo", "MessageRepo")
  return &messageRepo{db: db, log: repoLog}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).Create(message).Error; err != nil {
    return nil, err
  }
  return message, nil
}

func (r *messageRepo) ListByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Message
  if err := transaction.WithContext(ctx).
    Where("conversation_id = ?", conversationID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *messageRepo) FindRecentDuplicate(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, role, content string, since time.Time) (*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var message types.Message
  err := transaction.WithContext(ctx).
    Where("conversation_id = ? AND role = ? AND content = ? AND created_at >= ?", conversationID, role, content, since).
    Order("created_at DESC").
    First(&message).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &message, nil
}

func (r *messageRepo) FindByClientMessageID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, clientMessageID string) (*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var message types.Message
  err := transaction.WithContext(ctx).
    Where("conversation_id = ? AND client_message_id = ?", conversationID, clientMessageID).
    First(&message).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &message, nil
}

func (r *messageRepo) DeleteByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("conversation_id = ?", conversationID).
    Delete(&types.Message{}).Error; err != nil {
    return err
  }
  return nil
}
