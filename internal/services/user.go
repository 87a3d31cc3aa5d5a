package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/repos"
	"github.com/yungbote/deepchat-backend/internal/types"
)

var ErrEmptyUsername = errors.New("username cannot be empty")

type UserService interface {
	CreateUser(ctx context.Context, username, email string) (*types.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo) UserService {
	return &userService{
		db:       db,
		log:      baseLog.With("service", "UserService"),
		userRepo: userRepo,
	}
}

func (s *userService) CreateUser(ctx context.Context, username, email string) (*types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	user, err := s.userRepo.Create(ctx, nil, &types.User{
		Username: username,
		Email:    strings.TrimSpace(email),
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("User created", "user_id", user.ID, "username", username)
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return s.userRepo.GetByID(ctx, nil, userID)
}
