package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/whatsapp-inbox/internal/config"
	gateway "github.com/nimasrn/whatsapp-inbox/internal/gateways"
	"github.com/nimasrn/whatsapp-inbox/internal/handlers"
	"github.com/nimasrn/whatsapp-inbox/internal/queue"
	"github.com/nimasrn/whatsapp-inbox/internal/repository"
	"github.com/nimasrn/whatsapp-inbox/internal/services"
	xhttp "github.com/nimasrn/whatsapp-inbox/pkg/http"
	"github.com/nimasrn/whatsapp-inbox/pkg/logger"
	"github.com/nimasrn/whatsapp-inbox/pkg/pg"
	"github.com/nimasrn/whatsapp-inbox/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	webhookQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	whatsappClient, err := gateway.NewClient(&gateway.Config{
		BaseURL:         config.Get().WhatsAppAPIBaseURL,
		PhoneNumberID:   config.Get().WhatsAppPhoneNumberID,
		AccessToken:     config.Get().WhatsAppAccessToken,
		Timeout:         time.Second * 10,
		MaxRetries:      3,
		RetryDelay:      time.Millisecond * 500,
		MaxConns:        1000,
		ReadBufferSize:  1024 * 4,
		WriteBufferSize: 1024 * 4,
	})
	if err != nil {
		logger.Error("failed to create whatsapp client", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)
	contactRepo := repository.NewContactRepository(db)

	// services
	inboxService := services.NewInboxService(messageRepo, contactRepo, whatsappClient, config.Get().WhatsAppBusinessPhone)
	contactService := services.NewContactService(contactRepo)
	healthService := services.NewHealthService()

	// provider-facing webhook, no admin auth
	webhookHandler := handlers.NewWebhookHandler(webhookQueue, config.Get().WhatsAppVerifyToken)
	handlers.RegisterWebhookRoutes(s.Router, webhookHandler)

	// v1 admin surface
	conversationHandler := handlers.NewConversationHandler(inboxService)
	contactHandler := handlers.NewContactHandler(contactService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	admin := handlers.NewAdminGroup(g, config.Get().AdminAPIToken)
	handlers.RegisterConversationRoutes(admin, conversationHandler)
	handlers.RegisterContactRoutes(admin, contactHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
