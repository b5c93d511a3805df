package main

// @title Inbox Backend API
// @version 1.0
// @description 收件箱后端 API 文档
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 使用格式：Bearer {token}

//go:generate swag init -d ../../ -g cmd/server/main.go -o ../../docs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "inbox/backend/internal/auth/jwt"
	"inbox/backend/internal/config"
	"inbox/backend/internal/domain"
	"inbox/backend/internal/health"
	"inbox/backend/internal/logger"
	"inbox/backend/internal/middleware"
	"inbox/backend/internal/monitoring"
	"inbox/backend/internal/service"
	"inbox/backend/internal/session"
	httptransport "inbox/backend/internal/transport/http"
	"inbox/backend/internal/websocket"

	_ "inbox/backend/docs" // Swagger docs
)

// rateLimiterIdle 限流器中客户端的最长空闲时间
const rateLimiterIdle = 10 * time.Minute

// main 启动收件箱 HTTP 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting inbox server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Duration("session_ttl", cfg.Session.TTL),
		zap.Int("max_sessions", cfg.Session.MaxSessions),
	)

	metrics := monitoring.NewMetrics()

	// 会话与邮件存储
	registry := session.NewRegistry(
		func() []domain.Message { return domain.SeedMessages(time.Now().UTC()) },
		cfg.Session.TTL,
		session.WithMaxSessions(cfg.Session.MaxSessions),
	)
	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)

	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("expiry", cfg.JWT.Expiry),
	)

	// 服务层
	sessionService := service.NewSessionService(registry, jwtManager, metrics, log)
	messageService := service.NewMessageService(registry, metrics, log)

	// WebSocket Hub：接收邮件变更，会话结束时断开连接
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, sessionService, metrics, log)
	messageService.SetNotifier(wsHub)
	sessionService.SetListener(wsHub)

	healthChecker := health.NewChecker(registry, cfg.Session.MaxSessions, log)

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, metrics)
	}

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		SessionService: sessionService,
		MessageService: messageService,
		WebSocketHub:   wsHub,
		Health:         healthChecker,
		Metrics:        metrics,
		RateLimiter:    rateLimiter,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期会话 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Session.CleanupInterval)
		defer ticker.Stop()

		log.Info("starting expired session cleanup task", zap.Duration("interval", cfg.Session.CleanupInterval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				sessionService.PruneExpired()
				if rateLimiter != nil {
					rateLimiter.Prune(rateLimiterIdle)
				}
			}
		}
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped", zap.Int("open_sessions", registry.Count()))
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
