package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/services"
)

type ChatHandler struct {
	log         *logger.Logger
	coordinator *services.Coordinator
}

func NewChatHandler(log *logger.Logger, coordinator *services.Coordinator) *ChatHandler {
	return &ChatHandler{
		log:         log.With("handler", "ChatHandler"),
		coordinator: coordinator,
	}
}

type chatRequest struct {
	Message        string `json:"message"`
	TaskID         string `json:"task_id"`
	ConversationID string `json:"conversation_id"`
}

// POST /api/chat
// One-shot generation task over a text payload; the reply arrives on the
// task's event stream.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		RespondError(c, http.StatusBadRequest, "empty_message", errors.New("message cannot be empty"))
		return
	}

	turn, err := parseChatTurn(req.ConversationID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}

	task, err := h.coordinator.SubmitChat(c.Request.Context(), req.Message, req.TaskID, turn)
	if err != nil {
		RespondError(c, http.StatusConflict, "task_rejected", err)
		return
	}

	h.log.Info("Chat task accepted", "task_id", task.ID, "message_chars", len(req.Message))
	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"task_id": task.ID,
	})
}
