package main

import (
  "context"
  "fmt"
  "net/http"
  "os"
  "os/signal"
  "syscall"
  "time"
  "golang.org/x/sync/errgroup"
  "github.com/yungbote/deepchat-backend/internal/app"
  "github.com/yungbote/deepchat-backend/internal/cache"
  redisclient "github.com/yungbote/deepchat-backend/internal/clients/redis"
  "github.com/yungbote/deepchat-backend/internal/db"
  "github.com/yungbote/deepchat-backend/internal/handlers"
  "github.com/yungbote/deepchat-backend/internal/logger"
  "github.com/yungbote/deepchat-backend/internal/middleware"
  "github.com/yungbote/deepchat-backend/internal/repos"
  "github.com/yungbote/deepchat-backend/internal/server"
  "github.com/yungbote/deepchat-backend/internal/services"
  "github.com/yungbote/deepchat-backend/internal/sse"
  "github.com/yungbote/deepchat-backend/internal/tasks"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  cfg := app.LoadConfig(log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  conversationRepo := repos.NewConversationRepo(thePG, log)
  messageRepo := repos.NewMessageRepo(thePG, log)

  // Task registry + hub
  log.Info("Setting up task registry and hub from main...")
  registry := tasks.NewRegistry(log)
  taskHub := sse.NewTaskHub(log)

  ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
  defer stop()

  // Redis task bus (optional; single-node deployments skip it)
  var taskBus redisclient.TaskBus
  if cfg.RedisAddr != "" {
    taskBus, err = redisclient.NewTaskBus(log, cfg.RedisAddr, cfg.RedisTaskChannel)
    if err != nil {
      log.Error("Could not init redis task bus", "error", err)
      os.Exit(1)
    }
    defer taskBus.Close()
    if err := taskBus.StartForwarder(ctx, taskHub.Publish); err != nil {
      log.Error("Could not start redis task forwarder", "error", err)
      os.Exit(1)
    }
  }

  // Services
  log.Info("Setting up Services from main...")
  summaryCache, err := cache.NewFSCache(cfg.CacheDir, log)
  if err != nil {
    log.Error("Could not init summary cache", "error", err)
    os.Exit(1)
  }
  llmClient, err := services.NewLLMClient(log, cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.LLMModel)
  if err != nil {
    log.Error("Could not init LLM client", "error", err)
    os.Exit(1)
  }
  extractor := services.NewExtractor(log, cfg.ExtractorURL)
  summaryGenerator := services.NewSummaryGenerator(log, extractor, llmClient, cfg.SummaryTemperature, cfg.SummaryMaxTokens)
  userService := services.NewUserService(thePG, log, userRepo)
  conversationService := services.NewConversationService(thePG, log, userRepo, conversationRepo, messageRepo, cfg.DedupWindow)
  taskNotifier := services.NewTaskNotifier(log, taskHub, taskBus)
  coordinator := services.NewCoordinator(log, registry, summaryCache, summaryGenerator, llmClient, conversationService, taskNotifier, services.CoordinatorConfig{
    GenerationTimeout: cfg.GenerationTimeout,
    ChatTemperature:   cfg.LLMTemperature,
    ChatMaxTokens:     cfg.LLMMaxTokens,
    TaskRetention:     cfg.TaskRetention,
  })

  // Handlers
  log.Info("Setting up handlers from main...")
  uploadHandler := handlers.NewUploadHandler(log, coordinator, cfg.UploadMaxSize)
  chatHandler := handlers.NewChatHandler(log, coordinator)
  taskHandler := handlers.NewTaskHandler(log, registry, taskHub, coordinator)
  conversationHandler := handlers.NewConversationHandler(log, conversationService)
  userHandler := handlers.NewUserHandler(log, userService)

  // Middleware
  log.Info("Setting up middleware from main...")
  requestUser := middleware.NewRequestUserMiddleware(log)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    UploadHandler:       uploadHandler,
    ChatHandler:         chatHandler,
    TaskHandler:         taskHandler,
    ConversationHandler: conversationHandler,
    UserHandler:         userHandler,
    RequestUser:         requestUser,
  })

  httpServer := &http.Server{
    Addr:    ":" + cfg.Port,
    Handler: router,
  }

  g, gctx := errgroup.WithContext(ctx)
  g.Go(func() error {
    fmt.Printf("Server listening on :%s\n", cfg.Port)
    if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
      return err
    }
    return nil
  })
  g.Go(func() error {
    <-gctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    return httpServer.Shutdown(shutdownCtx)
  })

  if err := g.Wait(); err != nil {
    log.Warn("Server stopped", "error", err)
  }
}
