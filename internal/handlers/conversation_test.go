package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/middleware"
	"github.com/yungbote/deepchat-backend/internal/services"
	"github.com/yungbote/deepchat-backend/internal/types"
)

// stubConversationService fails every operation with the same backend
// error so handler responses can be checked for leakage.
type stubConversationService struct {
	err error
}

func (s *stubConversationService) CreateConversation(context.Context, uuid.UUID, string) (*types.Conversation, error) {
	return nil, s.err
}

func (s *stubConversationService) ListConversations(context.Context, uuid.UUID) ([]*types.Conversation, error) {
	return nil, s.err
}

func (s *stubConversationService) ListMessages(context.Context, uuid.UUID) ([]*types.Message, error) {
	return nil, s.err
}

func (s *stubConversationService) AppendMessage(context.Context, uuid.UUID, string, string, *string) (services.AppendResult, error) {
	return services.AppendResult{}, s.err
}

func (s *stubConversationService) DeleteConversation(context.Context, uuid.UUID) error {
	return s.err
}

func newConversationTestRouter(t *testing.T, svc services.ConversationService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	require.NoError(t, err)

	handler := NewConversationHandler(log, svc)
	router := gin.New()
	group := router.Group("/api/conversations", middleware.NewRequestUserMiddleware(log).RequireUser())
	group.POST("", handler.Create)
	group.GET("", handler.List)
	group.GET("/:id/messages", handler.ListMessages)
	group.POST("/:id/messages", handler.AppendMessage)
	group.DELETE("/:id", handler.Delete)
	return router
}

// Backend failures must come back as a generic message; the real error
// belongs in the log, not the response body.
func TestConversationHandler_InternalErrorsAreOpaque(t *testing.T) {
	backendErr := errors.New(`pq: relation "messages" does not exist`)
	router := newConversationTestRouter(t, &stubConversationService{err: backendErr})
	userID := uuid.NewString()
	convoID := uuid.NewString()

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		code   string
	}{
		{"create", "POST", "/api/conversations", `{"title":"x"}`, "create_failed"},
		{"list", "GET", "/api/conversations", "", "list_failed"},
		{"messages", "GET", "/api/conversations/" + convoID + "/messages", "", "list_failed"},
		{"append", "POST", "/api/conversations/" + convoID + "/messages", `{"role":"user","content":"x"}`, "append_failed"},
		{"delete", "DELETE", "/api/conversations/" + convoID, "", "delete_failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("X-User-ID", userID)
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			var envelope ErrorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			require.Equal(t, tc.code, envelope.Error.Code)
			require.Equal(t, "internal error", envelope.Error.Message)
			require.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}
