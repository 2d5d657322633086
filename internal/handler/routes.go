package handler

import (
	"github.com/bitfantasy/nimo-admin/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册 /api/v1 下的业务路由，api 组需已挂载JWT认证
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	api.GET("/materials", h.Order.ListMaterials)
	api.GET("/orders", h.Order.ListOrders)
	api.PUT("/orders/:id/status", h.Order.UpdateOrderStatus)

	drafts := api.Group("/orders/drafts")
	{
		drafts.POST("", h.Order.NewDraft)
		drafts.GET("/:id", h.Order.GetDraft)
		drafts.PATCH("/:id", h.Order.UpdateDraft)
		drafts.POST("/:id/lines", h.Order.AddLine)
		drafts.DELETE("/:id/lines/:index", h.Order.RemoveLine)
		drafts.PATCH("/:id/lines/:index", h.Order.EditLine)
		drafts.POST("/:id/submit", h.Order.SubmitDraft)
		drafts.GET("/:id/export", h.Order.ExportDraft)
	}

	recipes := api.Group("/recipes")
	{
		recipes.GET("", h.Production.ListRecipes)
		recipes.POST("", h.Production.CreateRecipe)
		recipes.PUT("/:id", h.Production.UpdateRecipe)
		recipes.DELETE("/:id", h.Production.DeleteRecipe)
	}

	batches := api.Group("/batches")
	{
		batches.GET("", h.Production.ListBatches)
		batches.POST("", h.Production.CreateBatch)
		batches.POST("/from-recipe", h.Production.CreateBatchFromRecipe)
		batches.PUT("/:id/status", h.Production.UpdateBatchStatus)
		batches.DELETE("/:id", h.Production.DeleteBatch)
	}

	api.POST("/generation/:jobId/watch", h.Generation.Watch)
	api.DELETE("/generation/:jobId/watch", h.Generation.Unwatch)

	api.GET("/sse/events", h.SSE.Stream)
	activity := api.Group("/activity", middleware.RequireRole("admin"))
	{
		activity.GET("", h.Activity.List)
		activity.GET("/:entityType/:entityId", h.Activity.History)
	}
}
