package bootstrap

import (
	"context"
	"log"

	"court-advisor-be/internal/config"
	"court-advisor-be/internal/constant"
	"court-advisor-be/internal/controller"
	"court-advisor-be/internal/handler"
	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/internal/repository/memory"
	"court-advisor-be/internal/repository/redisstore"
	"court-advisor-be/internal/repository/unitofwork"
	"court-advisor-be/internal/service"
	"court-advisor-be/internal/websocket"
	"court-advisor-be/pkg/conversation"
	"court-advisor-be/pkg/events"
	"court-advisor-be/pkg/llm/factory"
	pktNats "court-advisor-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController  controller.IChatController
	AdminController controller.IAdminController

	// Background Services (Exposed for main.go to run)
	// ConsumerService is nil when the analytics worker owns the event log.
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	// NATS is optional; analytics stay in-process without it.
	var remote events.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			remote = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}
	publisher, consumeLocally := eventRoute(events.NewChannelBus(pubSub), remote)

	// Redis backs shared sessions and cross-instance stream delivery.
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	// 3. Conversation
	provider, err := factory.NewConversationProvider(factory.Settings{
		Provider:          cfg.Chat.Provider,
		BaseURL:           cfg.Chat.ProviderBaseURL(),
		APIKey:            cfg.Chat.APIKey,
		Model:             cfg.Chat.Model,
		ReadTimeout:       cfg.Chat.ReadTimeout,
		SuggestionTimeout: cfg.Chat.SuggestionTimeout,
	}, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize conversation provider: %v", err)
	}
	if cfg.Chat.Provider == "dify" && cfg.Chat.APIKey == "" {
		log.Printf("[WARN] DIFY_API_KEY is empty; every turn will fail with a configuration error")
	}
	log.Printf("[INFO] Using conversation provider: %s", cfg.Chat.Provider)

	var sessionRepo contract.SessionRepository
	switch {
	case cfg.App.SessionStore == constant.SessionStoreRedis && rdb != nil:
		sessionRepo = redisstore.NewSessionRepository(rdb, cfg.App.SessionTTL)
	default:
		if cfg.App.SessionStore == constant.SessionStoreRedis {
			log.Printf("[WARN] SESSION_STORE=redis without REDIS_URL; using in-memory sessions")
		}
		sessionRepo = memory.NewSessionRepository(cfg.App.SessionTTL)
	}

	// 4. Services
	feedbackService := service.NewFeedbackService(uowFactory, publisher, sysLogger)

	opts := []conversation.Option{
		conversation.WithInstruction(cfg.Chat.PromptInstruction),
		conversation.WithPublisher(publisher),
	}
	if cfg.Chat.Provider == "ollama" {
		opts = append(opts, conversation.WithHistoryReplay())
	}
	manager := conversation.NewManager(provider, feedbackService, sysLogger, opts...)

	chatService := service.NewChatService(sessionRepo, manager, feedbackService, sysLogger)

	adminService, err := service.NewAdminService(feedbackService, sysLogger, service.AdminSettings{
		Password:  cfg.Admin.Password,
		JWTSecret: cfg.Admin.JWTSecret,
		TokenTTL:  cfg.Admin.TokenTTL,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize admin service: %v", err)
	}

	if consumeLocally {
		analyticsLogger := logger.NewIsolatedLogger(cfg.App.AnalyticsLogPath)
		c.ConsumerService = service.NewConsumerService(pubSub, events.AnalyticsTopic, analyticsLogger, sysLogger)
	} else {
		log.Printf("[INFO] Analytics events go to NATS; run cmd/analytics to record them")
	}

	// 5. WebSocket Hub
	c.WebSocketHub = websocket.NewHub(rdb, sysLogger)
	streamHandler := handler.NewChatStreamHandler(chatService, c.WebSocketHub, sysLogger)

	// 6. Controllers
	c.ChatController = controller.NewChatController(chatService, streamHandler)
	c.AdminController = controller.NewAdminController(adminService, cfg.Admin.JWTSecret)

	return c
}

// eventRoute sends events to JetStream when it is connected, where the
// analytics worker records them. Otherwise the in-process consumer does.
// Never both: the two would write every event to the same log twice.
func eventRoute(local, remote events.Publisher) (pub events.Fanout, consumeLocally bool) {
	if remote != nil {
		return events.Fanout{remote}, false
	}
	return events.Fanout{local}, true
}

// Close releases broker and cache connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
