package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/services"
)

type UserHandler struct {
	log         *logger.Logger
	userService services.UserService
}

func NewUserHandler(log *logger.Logger, userService services.UserService) *UserHandler {
	return &UserHandler{
		log:         log.With("handler", "UserHandler"),
		userService: userService,
	}
}

// POST /api/users
func (uh *UserHandler) Create(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}

	user, err := uh.userService.CreateUser(c.Request.Context(), req.Username, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrEmptyUsername) {
			RespondError(c, http.StatusBadRequest, "invalid_username", err)
			return
		}
		uh.log.Warn("Failed to create user", "username", req.Username, "error", err)
		RespondError(c, http.StatusConflict, "create_failed", errors.New("username is already taken"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// GET /api/users/:id
func (uh *UserHandler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", errors.New("user id must be a UUID"))
		return
	}

	user, err := uh.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUnknownUser) {
			RespondError(c, http.StatusNotFound, "unknown_user", err)
			return
		}
		uh.log.Error("Failed to load user", "user_id", userID, "error", err)
		RespondInternal(c, "get_failed")
		return
	}
	RespondOK(c, gin.H{"user": user})
}
