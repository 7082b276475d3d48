package routes

import (
	"net/http"

	"colorgrid/handlers"
	"colorgrid/middleware"
	"colorgrid/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	authService *services.AuthService,
	authHandler *handlers.AuthHandler,
	gameHandler *handlers.GameHandler,
	wsHandler *handlers.WSHandler,
) {
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		api.GET("/lobby/qr.png", gameHandler.LobbyQRCode)

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(authService))
		{
			protected.GET("/auth/profile", authHandler.GetProfile)
			protected.GET("/lobby", gameHandler.GetLobby)
			protected.GET("/games/:id", gameHandler.GetGame)
		}
	}

	// WebSocket endpoints authenticate themselves before upgrading.
	ws := router.Group("/ws")
	{
		ws.GET("/lobby", wsHandler.Lobby)
		ws.GET("/games/:id", wsHandler.Game)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
