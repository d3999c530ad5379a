package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/castfold/casting-server/internal/auth"
	"github.com/castfold/casting-server/internal/config"
	"github.com/castfold/casting-server/internal/core"
	"github.com/castfold/casting-server/internal/service/rooms"
)

// NewServer builds the HTTP server: REST endpoints for auth and room
// management plus the WebSocket entry point for live sessions.
func NewServer(hub *core.Hub, authService *auth.Service, directory *rooms.Service, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(directory, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)
		api.POST("/guest", apiHandlers.GuestLogin)

		api.GET("/rooms/:code", roomHandlers.GetRoom)

		protected := api.Group("")
		protected.Use(AuthMiddleware(authService, logger))
		{
			protected.POST("/rooms", roomHandlers.CreateRoom)
		}
	}

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, cfg.MessageRateLimit, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
