package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/llm"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/loop"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/tools"
	"github.com/Utkarshchaudhary009/IRIS/internal/auth"
	"github.com/Utkarshchaudhary009/IRIS/internal/conf"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/biz"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/data"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/models"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/service"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/database"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/logger"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/redis"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/workerpool"
	"github.com/Utkarshchaudhary009/IRIS/internal/server"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize database
	db, err := database.New(&config.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := models.AutoMigrate(db.DB); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize redis
	rdb, err := redis.New(&config.Redis, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Tool registry and executor
	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, tools.BuiltinConfig{
		TavilyAPIKey:     config.Tools.Tavily.APIKey,
		TavilyAPIHost:    config.Tools.Tavily.APIHost,
		OpenMeteoBaseURL: config.Tools.OpenMeteo.BaseURL,
	}); err != nil {
		log.Fatal("failed to register builtin tools", zap.Error(err))
	}

	pool, err := workerpool.New(8, log.Logger)
	if err != nil {
		log.Fatal("failed to create worker pool", zap.Error(err))
	}
	defer pool.Release()

	executor := tools.NewExecutor(registry, pool, config.Agent.ToolTimeout, log.Logger)

	// Model gateway and token accounting
	gateway, err := llm.NewOpenAIGateway(llm.OpenAIConfig{
		APIKey:  config.Agent.APIKey,
		BaseURL: config.Agent.BaseURL,
	}, log.Logger)
	if err != nil {
		log.Fatal("failed to create model gateway", zap.Error(err))
	}

	counter := llm.NewTokenCounter(log.Logger)

	// Initialize repositories
	conversationRepo := data.NewConversationRepo(db.DB)
	messageRepo := data.NewMessageRepo(db.DB)
	attachmentRepo := data.NewAttachmentRepo(db.DB)

	// Initialize use cases
	conversationUseCase := biz.NewConversationUseCase(conversationRepo, messageRepo, biz.Defaults{
		Model:        config.Agent.Model,
		SystemPrompt: config.Agent.SystemPrompt,
		Temperature:  float32(config.Agent.Temperature),
		MaxTokens:    config.Agent.MaxTokens,
	})
	messageUseCase := biz.NewMessageUseCase(messageRepo)
	attachmentUseCase := biz.NewAttachmentUseCase(attachmentRepo, conversationUseCase)

	turnStore := biz.NewTurnStore(conversationUseCase, messageUseCase)
	controller := loop.NewController(gateway, registry, executor, turnStore, counter, log.Logger)

	// Initialize services
	chatService := service.NewChatService(
		conversationUseCase,
		messageUseCase,
		controller,
		registry,
		rdb,
		service.TurnDefaults{
			MaxSteps:     config.Agent.MaxSteps,
			TurnDeadline: config.Agent.TurnDeadline,
		},
		log.Logger,
	)
	conversationService := service.NewConversationService(conversationUseCase, messageUseCase)
	attachmentService := service.NewAttachmentService(attachmentUseCase)

	jwtManager := auth.NewJWTManager(config.Auth.JWTSecret, config.Auth.JWTIssuer)

	httpServer := server.NewHTTPServer(
		config,
		log,
		jwtManager,
		chatService,
		conversationService,
		attachmentService,
	)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
