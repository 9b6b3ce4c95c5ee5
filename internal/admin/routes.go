package admin

import (
	"github.com/gin-gonic/gin"

	"apigate/internal/auth"
	"apigate/internal/config"
	"apigate/internal/db"
)

func SetupRoutes(router *gin.Engine, dbService db.Service, cfg *config.Config) {
	handler := NewHandler(dbService)

	adminGroup := router.Group("/admin")
	adminGroup.Use(auth.AdminMiddleware(cfg.Admin.Password))
	{
		keysGroup := adminGroup.Group("/keys")
		{
			keysGroup.GET("", handler.ListKeysHandler)
			keysGroup.POST("", handler.CreateKeyHandler)
			keysGroup.GET("/:id", handler.GetKeyHandler)
			keysGroup.PUT("/:id", handler.UpdateKeyHandler)
			keysGroup.DELETE("/:id", handler.DeleteKeyHandler)
		}

		usageGroup := adminGroup.Group("/usage")
		{
			usageGroup.GET("/summary", handler.UsageSummaryHandler)
			usageGroup.GET("/series", handler.UsageSeriesHandler)
		}
	}
}
