package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-hub/internal/auth"
	"chat-hub/internal/config"
	"chat-hub/internal/db"
	"chat-hub/internal/grpcserver"
	"chat-hub/internal/handlers"
	"chat-hub/internal/middleware"
	"chat-hub/internal/observability"
	"chat-hub/internal/rabbitmq"
	"chat-hub/internal/repositories"
	"chat-hub/internal/telemetry"
	"chat-hub/internal/tracing"
	"chat-hub/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			jww.WARN.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer database.Close()
	jww.INFO.Printf("database ready driver=%s", cfg.DBDriver)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	// Without a configured secret REST tokens are signed with a per-process
	// key and the websocket auth event is accepted without a token.
	var wsTokens ws.TokenVerifier
	secret := cfg.JWTSecret
	if secret == "" {
		jww.WARN.Printf("JWT_SECRET not set: websocket auth will not require a token, login tokens expire on restart")
		secret = uuid.NewString()
	}
	tokens, err := auth.NewTokenManager(secret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}
	if cfg.JWTSecret != "" {
		wsTokens = tokens
	}

	users := repositories.NewUserRepo(database)
	messages := repositories.NewMessageRepo(database)
	channels := repositories.NewChannelRepo(database)
	reactions := repositories.NewReactionRepo(database)
	notifications := repositories.NewNotificationRepo(database)

	sessions := ws.NewRegistry()
	typing := ws.NewTypingTracker(cfg.TypingTTL)
	defer typing.Close()
	router := ws.NewRouter(sessions, typing, ws.Stores{
		Users:         users,
		Messages:      messages,
		Channels:      channels,
		Reactions:     reactions,
		Notifications: notifications,
	}, publisher)

	engine := gin.Default()
	engine.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	engine.Use(otelgin.Middleware(cfg.ServiceName))
	engine.Use(observability.HTTPMetricsMiddleware())

	handlers.Handlers{
		Auth:          handlers.NewAuthHandler(users, tokens, audit),
		Messages:      handlers.NewMessageHandler(users, messages, reactions, router),
		Channels:      handlers.NewChannelHandler(channels, messages, users, audit),
		Notifications: handlers.NewNotificationHandler(notifications),
	}.Register(engine, middleware.AuthMiddleware(tokens))

	engine.GET("/ws", ws.NewHandler(router, wsTokens, audit, cfg.AllowedOrigins).Handle)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": sessions.Len(),
			"amqp":     rabbitmq.PublisherMode(publisher),
		})
	})
	handlers.RegisterDebugRoutes(engine, audit, cfg.DebugRoutes)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcserver.New()
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		jww.INFO.Printf("http listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	grpcSrv.SetServing(true)

	var runErr error
	select {
	case <-ctx.Done():
		jww.INFO.Printf("shutdown signal received")
	case runErr = <-errCh:
		jww.ERROR.Printf("server failed: %v", runErr)
	}

	grpcSrv.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		jww.WARN.Printf("http shutdown: %v", err)
	}
	// Hijacked websocket connections are not closed by Shutdown.
	if n := router.Shutdown(shutdownCtx, websocket.CloseGoingAway, "server shutting down"); n > 0 {
		jww.INFO.Printf("closed %d websocket sessions", n)
	}
	grpcSrv.Stop()
	return runErr
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Device-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
