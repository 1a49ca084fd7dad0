package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"formbuilder/internal/api/middleware"
	"formbuilder/internal/builder"
	"formbuilder/internal/config"
	"formbuilder/internal/dashboard"
	"formbuilder/internal/runtime"
	"formbuilder/internal/store"
)

// Deps 汇总路由所需的控制器与基础设施。Redis 为 nil 时不注册通知推送，也不限流上传。
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *store.Store
	Dashboard *dashboard.Dashboard
	Builder   *builder.Builder
	Runtime   *runtime.Controller
	Redis     redis.UniversalClient
}

// RegisterRoutes 注册 /v1 下的全部 API。
func RegisterRoutes(router *gin.Engine, deps Deps) {
	templateHandler := NewTemplateHandler(deps.Dashboard, deps.Store)
	builderHandler := NewBuilderHandler(deps.Builder)
	formHandler := NewFormHandler(deps.Runtime)

	router.MaxMultipartMemory = deps.Config.Upload.MaxBytes

	uploadLimit := func(c *gin.Context) { c.Next() }
	if deps.Redis != nil {
		uploadLimit = middleware.RateLimitMiddleware(deps.Redis, deps.Config.Redis.Prefix, deps.Config.Upload.RateLimit, time.Minute)
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/palette", ListPalette)

		if deps.Redis != nil {
			wsHandler := NewWsHandler(deps.Redis, "", deps.Logger, deps.Config.API.AllowedOrigins)
			v1.GET("/notifications/ws", wsHandler.HandleConnection)
		}

		templates := v1.Group("/templates")
		{
			templates.GET("", templateHandler.ListTemplates)
			templates.POST("", templateHandler.CreateTemplate)
			templates.GET("/:id", templateHandler.GetTemplate)
			templates.DELETE("/:id", templateHandler.DeleteTemplate)
			templates.GET("/:id/open", templateHandler.OpenTemplate)
			templates.GET("/:id/answers", templateHandler.GetAnswers)

			templates.POST("/:id/sections", builderHandler.AddSection)
			templates.PATCH("/:id/sections/:sid", builderHandler.RenameSection)
			templates.DELETE("/:id/sections/:sid", builderHandler.DeleteSection)
			templates.POST("/:id/sections/:sid/fields", builderHandler.DropField)
			templates.DELETE("/:id/sections/:sid/fields/:fid", builderHandler.DeleteField)
			templates.PUT("/:id/sections/:sid/fields/:fid/upload-type", builderHandler.SetUploadType)

			templates.GET("/:id/fields/:fid/draft", builderHandler.EditField)
			templates.POST("/:id/fields/:fid/draft", builderHandler.ConfirmEdit)
			templates.PUT("/:id/fields/:fid", builderHandler.SaveField)

			templates.GET("/:id/drag", builderHandler.ActiveDrag)
			templates.POST("/:id/drag/start", builderHandler.DragStart)
			templates.POST("/:id/drag/end", builderHandler.DragEnd)

			templates.GET("/:id/preview", builderHandler.Preview)
			templates.POST("/:id/draft", builderHandler.SaveDraft)
		}

		v1.POST("/forms/:id/sessions", formHandler.StartSession)

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:sid", formHandler.GetSession)
			sessions.DELETE("/:sid", formHandler.CloseSession)
			sessions.PUT("/:sid/answers/:fid", formHandler.SetAnswer)
			sessions.POST("/:sid/uploads/:fid", uploadLimit, formHandler.Upload)
			sessions.POST("/:sid/submit", formHandler.Submit)
			sessions.POST("/:sid/restart", formHandler.Restart)
		}
	}
}
