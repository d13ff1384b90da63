package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/agentgate/service"
)

// RouterConfig holds transport settings
type RouterConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// SetupRouter sets up the Gin router
func SetupRouter(
	authService *service.AuthService,
	chatService *service.ChatService,
	logger *slog.Logger,
	cfg RouterConfig,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	// Create handlers
	authHandlers := NewAuthHandlers(authService, logger)
	chatHandlers := NewChatHandlers(chatService, logger)

	router.GET("/health", Health)
	router.GET("/agent-info", chatHandlers.AgentInfo)

	// Auth routes
	auth := router.Group("/auth")
	auth.Use(RateLimitMiddleware(NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)))
	{
		auth.GET("/nonce", authHandlers.Nonce)
		auth.POST("/verify", authHandlers.Verify)
	}

	// Chat relay, callable from any origin
	chat := router.Group("/chat")
	chat.Use(CORSMiddleware())
	{
		chat.POST("", chatHandlers.Chat)
		chat.OPTIONS("", func(c *gin.Context) {})
	}

	return router
}
