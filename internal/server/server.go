package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"github.com/eikaru/canvasgen/internal/generation"
	"github.com/eikaru/canvasgen/internal/logger"
	"github.com/eikaru/canvasgen/internal/metrics"
	"github.com/eikaru/canvasgen/internal/server/handler"
)

func Start(host, port, apiKey string, model *generation.Model) {
	router := InitRouter(apiKey, model)
	if err := router.Run(host + ":" + port); err != nil {
		panic(err)
	}
}

func PermissionCheckMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestKey := c.GetHeader("API-KEY")
		if requestKey != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid API key",
			})
			return
		}
		c.Next()
	}
}

func InitRouter(apiKey string, model *generation.Model) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.RecoveryWithZap(logger.ZapLogger, true))
	router.Use(ginzap.Ginzap(logger.ZapLogger, time.RFC3339Nano, true))
	router.Use(cors.Default())
	pprof.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	h := handler.New(model)
	apiGroup := router.Group("", PermissionCheckMiddleware(apiKey))
	apiGroup.POST("/generate", h.Generate)
	apiGroup.POST("/generate/control", h.GenerateControlLayer)
	apiGroup.POST("/upscale", h.Upscale)
	apiGroup.POST("/cancel", h.Cancel)

	apiGroup.POST("/live", h.ToggleLive)
	apiGroup.POST("/live/record", h.ToggleRecord)
	apiGroup.POST("/live/apply", h.CopyLiveResult)

	apiGroup.POST("/animation/generate", h.GenerateAnimation)

	apiGroup.POST("/results/apply", h.ApplyResult)
	apiGroup.POST("/results/save", h.SaveResult)
	apiGroup.GET("/jobs", h.ListJobs)

	apiGroup.GET("/state", h.GetState)
	apiGroup.PUT("/state", h.UpdateState)
	return router
}
