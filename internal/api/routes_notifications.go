package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notifystream/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("/counts", handler.Counts)
		group.POST("/actions", handler.Apply)
		group.POST("", handler.Create)
	}
}

func registerRealtimeRoutes(r gin.IRouter, handler *handlers.RealtimeHandler) {
	r.GET("/ws/notifications", handler.Stream)
}
