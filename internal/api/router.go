package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"formbuilder/internal/api/middleware"
	"formbuilder/internal/metrics"
)

// ListRoute 是未匹配路径的重定向目标，对应模板列表。
const ListRoute = "/v1/templates"

// NewRouter 构建 Gin 路由引擎：请求日志、Correlation ID、指标采集、健康检查与 /metrics。
func NewRouter(logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware("/health", "/metrics"),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, ListRoute)
	})

	return router
}
