package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_live/internal/api/handlers"
	"debate_live/internal/middleware"
	"debate_live/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User)
	sessionHandler := handlers.NewSessionHandler(services.Session, services.Debate)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocket, services.Session, services.Debate)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 公開路由
	{
		// 用戶認證相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware())
	{
		// 辯論會話相關，會話一律以代碼定位
		sessions := authorized.Group("/sessions")
		{
			// 基本操作
			sessions.GET("", sessionHandler.ListSessions)       // 獲取會話列表
			sessions.POST("", sessionHandler.CreateSession)     // 建立會話
			sessions.GET("/:code", sessionHandler.GetSession)   // 以代碼查詢會話

			// 會話參與
			sessions.POST("/:code/join", sessionHandler.JoinSession) // 加入會話
			sessions.GET("/:code/phase", sessionHandler.GetPhase)    // 階段快照

			// WebSocket 連接
			sessions.GET("/:code/ws", wsHandler.HandleWebSocket) // 即時通道連接點
		}
	}
}
