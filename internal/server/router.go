package server

import (
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"
  "github.com/yungbote/deepchat-backend/internal/handlers"
  "github.com/yungbote/deepchat-backend/internal/middleware"
)

type RouterConfig struct {
  UploadHandler         *handlers.UploadHandler
  ChatHandler           *handlers.ChatHandler
  TaskHandler           *handlers.TaskHandler
  ConversationHandler   *handlers.ConversationHandler
  UserHandler           *handlers.UserHandler
  RequestUser           *middleware.RequestUserMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5173",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-User-ID"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  api := router.Group("/api")
  {
    // Ingestion
    api.POST("/upload", cfg.UploadHandler.Upload)
    api.POST("/chat", cfg.ChatHandler.Chat)
    // Tasks
    api.GET("/tasks/:task_id/events", cfg.TaskHandler.Events)
    api.GET("/tasks/:task_id/result", cfg.TaskHandler.Result)
    api.POST("/tasks/:task_id/cancel", cfg.TaskHandler.Cancel)
    // Users
    api.POST("/users", cfg.UserHandler.Create)
    api.GET("/users/:id", cfg.UserHandler.Get)
  }

// ===============
// || Per-user  ||
// ===============
  conversations := api.Group("/conversations")
  conversations.Use(cfg.RequestUser.RequireUser())
  conversations.POST("", cfg.ConversationHandler.Create)
  conversations.GET("", cfg.ConversationHandler.List)
  conversations.GET("/:id/messages", cfg.ConversationHandler.ListMessages)
  conversations.POST("/:id/messages", cfg.ConversationHandler.AppendMessage)
  conversations.DELETE("/:id", cfg.ConversationHandler.Delete)

  return router
}
