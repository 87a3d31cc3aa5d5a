package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/services"
)

type UploadHandler struct {
	log         *logger.Logger
	coordinator *services.Coordinator
	maxSize     int64
}

func NewUploadHandler(log *logger.Logger, coordinator *services.Coordinator, maxSize int64) *UploadHandler {
	return &UploadHandler{
		log:         log.With("handler", "UploadHandler"),
		coordinator: coordinator,
		maxSize:     maxSize,
	}
}

// POST /api/upload
// Multipart upload; optional task_id lets the client open its event
// stream before submitting, optional conversation_id records the exchange.
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Errorf("file exceeds the %d byte limit", h.maxSize))
			return
		}
		RespondError(c, http.StatusBadRequest, "missing_file", errors.New("no file provided"))
		return
	}
	if fileHeader.Size > h.maxSize {
		RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Errorf("file exceeds the %d byte limit", h.maxSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(file)
	if err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Errorf("file exceeds the %d byte limit", h.maxSize))
			return
		}
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	if len(raw) == 0 {
		RespondError(c, http.StatusBadRequest, "empty_file", errors.New("uploaded file is empty"))
		return
	}

	doc := services.NewDocument(raw, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))

	turn, err := parseChatTurn(c.PostForm("conversation_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}

	outcome, err := h.coordinator.SubmitDocument(c.Request.Context(), doc, c.PostForm("task_id"), turn)
	if err != nil {
		RespondError(c, http.StatusConflict, "task_rejected", err)
		return
	}

	h.log.Info("Upload accepted", "task_id", outcome.Task.ID, "file_name", doc.FileName, "size", doc.Size(), "cache_hit", outcome.CacheHit)

	if outcome.CacheHit {
		RespondOK(c, gin.H{
			"status":    "success",
			"task_id":   outcome.Task.ID,
			"file_name": outcome.Task.FileName,
			"type":      outcome.Task.Kind,
			"summary":   outcome.Summary,
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":    "accepted",
		"task_id":   outcome.Task.ID,
		"file_name": outcome.Task.FileName,
		"type":      outcome.Task.Kind,
	})
}

func parseChatTurn(conversationID string) (*services.ChatTurn, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, errors.New("conversation_id must be a UUID")
	}
	return &services.ChatTurn{ConversationID: id}, nil
}
