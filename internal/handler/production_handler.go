package handler

import (
	"github.com/bitfantasy/nimo-admin/internal/middleware"
	"github.com/bitfantasy/nimo-admin/internal/production"
	"github.com/bitfantasy/nimo-admin/internal/service"
	"github.com/gin-gonic/gin"
)

type ProductionHandler struct {
	base
	svc *service.ProductionService
}

// ListRecipes GET /recipes
func (h *ProductionHandler) ListRecipes(c *gin.Context) {
	recipes, err := h.svc.ListRecipes(h.ctx(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, ListResponse{Items: recipes})
}

// CreateRecipe POST /recipes
func (h *ProductionHandler) CreateRecipe(c *gin.Context) {
	var form production.RecipeForm
	if err := c.ShouldBindJSON(&form); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	recipe, err := h.svc.CreateRecipe(h.ctx(c), middleware.GetUserID(c), form)
	if err != nil {
		h.fail(c, err)
		return
	}
	Created(c, recipe)
}

// UpdateRecipe PUT /recipes/:id
func (h *ProductionHandler) UpdateRecipe(c *gin.Context) {
	var form production.RecipeForm
	if err := c.ShouldBindJSON(&form); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	recipe, err := h.svc.UpdateRecipe(h.ctx(c), middleware.GetUserID(c), c.Param("id"), form)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, recipe)
}

// DeleteRecipe DELETE /recipes/:id
func (h *ProductionHandler) DeleteRecipe(c *gin.Context) {
	if err := h.svc.DeleteRecipe(h.ctx(c), middleware.GetUserID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, nil)
}

// ListBatches GET /batches
func (h *ProductionHandler) ListBatches(c *gin.Context) {
	batches, err := h.svc.ListBatches(h.ctx(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, ListResponse{Items: batches})
}

// CreateBatch POST /batches
func (h *ProductionHandler) CreateBatch(c *gin.Context) {
	var form production.BatchForm
	if err := c.ShouldBindJSON(&form); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	batch, err := h.svc.CreateBatch(h.ctx(c), middleware.GetUserID(c), form)
	if err != nil {
		h.fail(c, err)
		return
	}
	Created(c, batch)
}

// CreateBatchFromRecipe POST /batches/from-recipe
func (h *ProductionHandler) CreateBatchFromRecipe(c *gin.Context) {
	var req service.ScaleBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	batch, err := h.svc.CreateBatchFromRecipe(h.ctx(c), middleware.GetUserID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	Created(c, batch)
}

// UpdateBatchStatus PUT /batches/:id/status
// 库存不足时返回 409，data 中包含 insufficient_materials 和逐条渲染的 lines
func (h *ProductionHandler) UpdateBatchStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	batch, err := h.svc.TransitionBatch(h.ctx(c), middleware.GetUserID(c), c.Param("id"), req.From, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, batch)
}

// DeleteBatch DELETE /batches/:id?status=planned
func (h *ProductionHandler) DeleteBatch(c *gin.Context) {
	status := c.Query("status")
	if status == "" {
		BadRequest(c, "status is required")
		return
	}
	if err := h.svc.DeleteBatch(h.ctx(c), middleware.GetUserID(c), c.Param("id"), status); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, nil)
}
