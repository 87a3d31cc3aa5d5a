package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/deepchat-backend/internal/logger"
)

const userIDKey = "request_user_id"

type RequestUserMiddleware struct {
	log *logger.Logger
}

func NewRequestUserMiddleware(log *logger.Logger) *RequestUserMiddleware {
	return &RequestUserMiddleware{log: log.With("Middleware", "RequestUserMiddleware")}
}

// RequireUser reads the caller's identity from the X-User-ID header.
// Identity is explicit per request; there is no ambient session.
func (rm *RequestUserMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID must be a UUID"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RequestUserID returns the identity RequireUser stored on the context.
func RequestUserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}
