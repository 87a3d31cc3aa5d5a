package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/middleware"
	"github.com/yungbote/deepchat-backend/internal/services"
)

type ConversationHandler struct {
	log                 *logger.Logger
	conversationService services.ConversationService
}

func NewConversationHandler(log *logger.Logger, csvc services.ConversationService) *ConversationHandler {
	return &ConversationHandler{
		log:                 log.With("handler", "ConversationHandler"),
		conversationService: csvc,
	}
}

type createConversationRequest struct {
	Title string `json:"title"`
}

type appendMessageRequest struct {
	Role            string  `json:"role"`
	Content         string  `json:"content"`
	ClientMessageID *string `json:"client_message_id"`
}

// POST /api/conversations
func (ch *ConversationHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "missing_user", errors.New("request user not resolved"))
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}

	conversation, err := ch.conversationService.CreateConversation(c.Request.Context(), userID, req.Title)
	if err != nil {
		if errors.Is(err, services.ErrUnknownUser) {
			RespondError(c, http.StatusNotFound, "unknown_user", err)
			return
		}
		ch.log.Error("Failed to create conversation", "user_id", userID, "error", err)
		RespondInternal(c, "create_failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"conversation_id": conversation.ID,
		"title":           conversation.Title,
	})
}

// GET /api/conversations
// Most recently updated first.
func (ch *ConversationHandler) List(c *gin.Context) {
	userID, ok := middleware.RequestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "missing_user", errors.New("request user not resolved"))
		return
	}

	conversations, err := ch.conversationService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		ch.log.Error("Failed to list conversations", "user_id", userID, "error", err)
		RespondInternal(c, "list_failed")
		return
	}
	RespondOK(c, gin.H{"conversations": conversations})
}

// GET /api/conversations/:id/messages
// Creation order.
func (ch *ConversationHandler) ListMessages(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_conversation_id", errors.New("conversation id must be a UUID"))
		return
	}

	messages, err := ch.conversationService.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, services.ErrUnknownConversation) {
			RespondError(c, http.StatusNotFound, "unknown_conversation", err)
			return
		}
		ch.log.Error("Failed to list messages", "conversation_id", conversationID, "error", err)
		RespondInternal(c, "list_failed")
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}

// POST /api/conversations/:id/messages
// A repeated client_message_id or an identical role/content pair inside
// the dedup window resolves to the earlier message.
func (ch *ConversationHandler) AppendMessage(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_conversation_id", errors.New("conversation id must be a UUID"))
		return
	}

	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}

	result, err := ch.conversationService.AppendMessage(c.Request.Context(), conversationID, req.Role, req.Content, req.ClientMessageID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownConversation):
			RespondError(c, http.StatusNotFound, "unknown_conversation", err)
		case errors.Is(err, services.ErrInvalidRole), errors.Is(err, services.ErrEmptyContent):
			RespondError(c, http.StatusBadRequest, "invalid_message", err)
		default:
			ch.log.Error("Failed to append message", "conversation_id", conversationID, "error", err)
			RespondInternal(c, "append_failed")
		}
		return
	}

	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"message_id":   result.MessageID,
		"deduplicated": result.Deduplicated,
	})
}

// DELETE /api/conversations/:id
func (ch *ConversationHandler) Delete(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_conversation_id", errors.New("conversation id must be a UUID"))
		return
	}

	if err := ch.conversationService.DeleteConversation(c.Request.Context(), conversationID); err != nil {
		if errors.Is(err, services.ErrUnknownConversation) {
			RespondError(c, http.StatusNotFound, "unknown_conversation", err)
			return
		}
		ch.log.Error("Failed to delete conversation", "conversation_id", conversationID, "error", err)
		RespondInternal(c, "delete_failed")
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
