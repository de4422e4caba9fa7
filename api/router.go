package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/api/handlers"
	"github.com/yourusername/tunevault-go/api/middleware"
	"github.com/yourusername/tunevault-go/internal/app"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	orchestrator *app.Orchestrator,
	bus *app.EventBus,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(orchestrator)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		jobHandler := handlers.NewJobHandler(orchestrator, log)
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.AddJob)
			jobs.POST("/batch", jobHandler.AddBatch)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stats", jobHandler.GetStats)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.POST("/:id/cancel", jobHandler.CancelJob)
			jobs.POST("/:id/retry", jobHandler.RetryJob)
			jobs.DELETE("/:id", jobHandler.DeleteJob)
		}

		preview := v1.Group("/preview")
		{
			preview.GET("/video", jobHandler.VideoPreview)
			preview.GET("/playlist", jobHandler.PlaylistPreview)
		}

		v1.GET("/collections/:id", jobHandler.GetCollection)

		eventHandler := handlers.NewEventWebSocketHandler(bus, log)
		v1.GET("/events", eventHandler.HandleWebSocket)
	}

	return router
}
