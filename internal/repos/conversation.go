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

var ErrConversationNotFound = errors.New("conversation does not exist")

type ConversationRepo interface {
  Create(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) (*types.Conversation, error)
  GetByID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (*types.Conversation, error)
  ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error)
  TouchUpdatedAt(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, at time.Time) error
  DeleteByID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) error
}

type conversationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
  repoLog := baseLog.With("repo", "ConversationRepo")
  return &conversationRepo{db: db, log: repoLog}
}

func (r *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) (*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).Create(conversation).Error; err != nil {
    return nil, err
  }
  return conversation, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var conversation types.Conversation
  if err := transaction.WithContext(ctx).
    Where("id = ?", conversationID).
    First(&conversation).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrConversationNotFound
    }
    return nil, err
  }
  return &conversation, nil
}

func (r *conversationRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Conversation
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("updated_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *conversationRepo) TouchUpdatedAt(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, at time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  result := transaction.WithContext(ctx).
    Model(&types.Conversation{}).
    Where("id = ?", conversationID).
    Update("updated_at", at)
  if result.Error != nil {
    return result.Error
  }
  if result.RowsAffected == 0 {
    return ErrConversationNotFound
  }
  return nil
}

func (r *conversationRepo) DeleteByID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("id = ?", conversationID).
    Delete(&types.Conversation{}).Error; err != nil {
    return err
  }
  return nil
}
