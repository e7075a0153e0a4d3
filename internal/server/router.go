package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/remodelai/remodel-backend/internal/handlers"
	"github.com/remodelai/remodel-backend/internal/middleware"
	"github.com/remodelai/remodel-backend/internal/platform/envutil"
	"github.com/remodelai/remodel-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ChatHandler *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if envutil.String("APP_ENV", "dev") == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(cfg.Log))
	router.Use(otelgin.Middleware("remodelai"))

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.POST("/chat", cfg.ChatHandler.Chat)
		api.GET("/chat/:session_id/history", cfg.ChatHandler.History)
	}

	return router
}
