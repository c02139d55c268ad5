package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"social-chat/internal/chat"
	"social-chat/internal/config"
	"social-chat/internal/db"
	"social-chat/internal/handlers"
	"social-chat/internal/middleware"
	"social-chat/internal/observability"
	"social-chat/internal/presence"
	"social-chat/internal/rabbitmq"
	"social-chat/internal/ratelimit"
	"social-chat/internal/repositories"
	"social-chat/internal/telemetry"
	"social-chat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, "social-chat", cfg.Environment)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	broker, err := rabbitmq.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer broker.Close()

	limiter := ratelimit.New(cfg.RateLimitBurst, cfg.RateLimitWindow)
	hub := ws.NewHub()
	tracker := presence.NewTracker(conversationRepo, userRepo, hub, cfg.HeartbeatTimeout, cfg.SweepInterval)

	ingress := chat.NewIngress(conversationRepo, limiter, broker, cfg.MaxMessageLength)
	processor := chat.NewProcessor(conversationRepo, messageRepo, broker)
	broadcaster := chat.NewBroadcaster(conversationRepo, userRepo, hub)
	conversationService := chat.NewConversationService(conversationRepo, messageRepo, userRepo)

	if err := broker.Consume(ctx, rabbitmq.InputQueue, cfg.ConsumerWorkers, processor.Handle); err != nil {
		log.Fatalf("input consumer: %v", err)
	}
	if err := broker.Consume(ctx, rabbitmq.OutputQueue, cfg.ConsumerWorkers, broadcaster.Handle); err != nil {
		log.Fatalf("output consumer: %v", err)
	}
	go tracker.Run(ctx)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("social-chat"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(cfg.JWTSecret)

	chatHandler := handlers.NewChatHandler(ingress, conversationService, tracker)
	chatHandler.Register(router.Group("/api/chat", auth))

	wsHandler := ws.NewHandler(hub, tracker, conversationService)
	router.GET("/ws", auth, wsHandler.Personal)
	router.GET("/ws/conversations/:id", auth, wsHandler.LiveView)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("chat service listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
