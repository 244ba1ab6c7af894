package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fieldops/internal/auth"
	"fieldops/internal/comm"
	"fieldops/internal/config"
	"fieldops/internal/database"
	"fieldops/internal/handlers"
	"fieldops/internal/inventory"
	"fieldops/internal/realtime"
)

func SetupRouter(db *database.DB, cfg *config.Config, hub *realtime.Hub, logger *zap.Logger) *gin.Engine {
	router := gin.Default()

	// Custom CORS middleware
	router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.CORS.AllowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Length, Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT)

	// Initialize stores and core services
	commStore := database.NewCommStore(db)
	inventoryStore := database.NewInventoryStore(db)
	dispatcher := comm.NewDispatcher(commStore, hub, logger.Named("dispatcher"))
	ledger := inventory.NewLedger(inventoryStore, logger.Named("ledger"))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, jwtManager)
	communicationHandler := handlers.NewCommunicationHandler(commStore, dispatcher)
	inventoryHandler := handlers.NewInventoryHandler(inventoryStore, ledger)
	wsHandler := handlers.NewWebSocketHandler(hub)

	startedAt := time.Now()

	api := router.Group("/api")
	{
		// Auth routes
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Realtime channel; identity is claimed in the join handshake
		api.GET("/ws", wsHandler.HandleWebSocket)

		// Communication routes
		communication := api.Group("/communication")
		{
			communication.POST("/send-message", communicationHandler.SendMessage)
			communication.GET("/messages/:userId", communicationHandler.GetMessages)
			communication.GET("/conversation/:user1/:user2", communicationHandler.GetConversation)
			communication.GET("/project-messages/:projectId", communicationHandler.GetProjectMessages)
			communication.PUT("/mark-message-read/:messageId", communicationHandler.MarkMessageRead)
			communication.PUT("/mark-conversation-read/:userId/:otherUserId", communicationHandler.MarkConversationRead)
			communication.POST("/create-notification", communicationHandler.CreateNotification)
			communication.POST("/send-notification", communicationHandler.CreateNotification)
			communication.GET("/notifications/:userId", communicationHandler.GetNotifications)
			communication.PUT("/mark-notification-read/:notificationId", communicationHandler.MarkNotificationRead)
			communication.GET("/unread-count/:userId", communicationHandler.GetUnreadCount)
			communication.GET("/unread-by-sender/:userId", communicationHandler.GetUnreadBySender)
			communication.GET("/chat-users", communicationHandler.GetChatUsers)
		}

		// Inventory routes
		inventoryGroup := api.Group("/inventory")
		{
			inventoryGroup.GET("/items", inventoryHandler.GetItems)
			inventoryGroup.GET("/categories", inventoryHandler.GetCategories)
			inventoryGroup.POST("/items", inventoryHandler.AddItem)
			inventoryGroup.PUT("/items/:id", inventoryHandler.UpdateItem)
			inventoryGroup.DELETE("/items/:id", inventoryHandler.DeleteItem)
			inventoryGroup.POST("/usage", inventoryHandler.RecordUsage)
			inventoryGroup.GET("/usage/item/:item_id", inventoryHandler.GetUsageByItem)
			inventoryGroup.GET("/usage/task/:task_id", inventoryHandler.GetUsageByTask)
		}

		// Debug endpoint
		api.GET("/debug/connected-users", wsHandler.GetConnectedUsers)

		// Health check endpoint
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":          "OK",
				"timestamp":       time.Now().UTC().Format(time.RFC3339),
				"connected_users": hub.ConnectedCount(),
				"uptime_seconds":  int(time.Since(startedAt).Seconds()),
			})
		})

		// Protected routes
		protected := api.Group("")
		protected.Use(auth.JWTMiddleware(jwtManager))
		{
			protected.GET("/users/me", authHandler.Me)
		}
	}

	return router
}
