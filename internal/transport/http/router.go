package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"inbox/backend/internal/config"
	"inbox/backend/internal/health"
	"inbox/backend/internal/middleware"
	"inbox/backend/internal/monitoring"
	"inbox/backend/internal/service"
	"inbox/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	SessionService *service.SessionService
	MessageService *service.MessageService
	WebSocketHub   *websocket.Hub
	Health         *health.Checker
	Metrics        *monitoring.Metrics
	RateLimiter    *middleware.RateLimiter // 可为 nil，表示不限流
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Session-Token"},
		ExposeHeaders:    []string{"Content-Length", "X-Max-Body-Size", middleware.RenewedTokenHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 运维接口
	if deps.Health != nil {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, deps.Health.Status())
		})
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	sessionHandler := NewSessionHandler(deps.SessionService)
	messageHandler := NewMessageHandler(deps.MessageService)
	sessionAuth := middleware.NewSessionAuth(deps.SessionService, deps.Logger)

	v1 := router.Group("/v1")
	if deps.RateLimiter != nil {
		v1.Use(deps.RateLimiter.Middleware())
	}

	v1.POST("/sessions", sessionHandler.Open)

	// WebSocket 自行完成令牌认证（浏览器无法设置请求头，令牌通过 URL 参数传递）
	if deps.WebSocketHub != nil {
		v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	authed := v1.Group("")
	authed.Use(sessionAuth.RequireSession())
	{
		authed.POST("/sessions/refresh", sessionHandler.Refresh)
		authed.DELETE("/sessions/current", sessionHandler.Close)

		authed.GET("/messages", messageHandler.List)
		authed.PUT("/messages", middleware.BodySizeLimit(middleware.DefaultBodyLimit), messageHandler.Replace)
		authed.POST("/messages/reset", messageHandler.Reset)
		authed.GET("/messages/:id", messageHandler.Get)
		authed.PATCH("/messages/:id", middleware.BodySizeLimit(middleware.DefaultBodyLimit), messageHandler.Update)
		authed.DELETE("/messages/:id", messageHandler.Delete)
		authed.POST("/messages/:id/archive", messageHandler.Archive)
		authed.POST("/messages/:id/read", messageHandler.MarkRead)
		authed.POST("/messages/:id/star", messageHandler.ToggleStar)
	}

	return router
}
