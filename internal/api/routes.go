package api

import (
	"github.com/gin-gonic/gin"

	"cvCanvas/internal/api/middleware"
)

// Handlers 汇总所有路由处理器。
type Handlers struct {
	Auth      *AuthHandler
	Documents *DocumentHandler
	Templates *TemplateHandler
	Exports   *ExportHandler
	Assets    *AssetHandler
	Ws        *WsHandler
	Tokens    middleware.TokenValidator
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, h Handlers) {
	authMiddleware := middleware.AuthMiddleware(h.Tokens)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", h.Ws.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
			authGroup.POST("/refresh", h.Auth.Refresh)
			authGroup.POST("/logout", h.Auth.Logout)
		}

		templateGroup := v1.Group("/templates")
		templateGroup.Use(authMiddleware)
		{
			templateGroup.GET("", h.Templates.ListTemplates)
			templateGroup.GET("/:id", h.Templates.GetTemplate)
		}

		docGroup := v1.Group("/documents")
		docGroup.Use(authMiddleware)
		{
			docGroup.GET("", h.Documents.List)
			docGroup.POST("", h.Documents.Create)
			docGroup.GET("/:id", h.Documents.Get)
			docGroup.PATCH("/:id", h.Documents.Patch)
			docGroup.DELETE("/:id", h.Documents.Delete)
			docGroup.POST("/:id/duplicate", h.Documents.Duplicate)

			docGroup.GET("/:id/pages", h.Documents.Pages)
			docGroup.POST("/:id/pages", h.Documents.AddPage)
			docGroup.GET("/:id/placement", h.Documents.Placement)
			docGroup.POST("/:id/move", h.Documents.Move)
			docGroup.POST("/:id/undo", h.Documents.Undo)
			docGroup.POST("/:id/redo", h.Documents.Redo)

			docGroup.POST("/:id/components", h.Documents.AddComponent)
			docGroup.PUT("/:id/components/:cid", h.Documents.UpdateComponent)
			docGroup.DELETE("/:id/components/:cid", h.Documents.RemoveComponent)
			docGroup.POST("/:id/components/:cid/visibility", h.Documents.ToggleVisibility)
			docGroup.POST("/:id/components/:cid/split", h.Documents.Split)
			docGroup.GET("/:id/components/:cid/overflow", h.Documents.Overflow)

			docGroup.POST("/:id/export", h.Exports.Enqueue)
			docGroup.GET("/:id/export", h.Exports.Status)
		}

		assetGroup := v1.Group("/assets")
		assetGroup.Use(authMiddleware)
		{
			assetGroup.GET("", h.Assets.ListAssets)
			assetGroup.POST("/upload", h.Assets.UploadAsset)
			assetGroup.GET("/view", h.Assets.GetAssetURL)
			assetGroup.DELETE("", h.Assets.DeleteAsset)
		}
	}
}
