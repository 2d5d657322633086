package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-admin/internal/export"
	"github.com/bitfantasy/nimo-admin/internal/middleware"
	"github.com/bitfantasy/nimo-admin/internal/order"
	"github.com/bitfantasy/nimo-admin/internal/service"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	base
	svc *service.OrderService
}

// ListMaterials GET /materials
func (h *OrderHandler) ListMaterials(c *gin.Context) {
	materials, err := h.svc.ListMaterials(h.ctx(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, ListResponse{Items: materials})
}

// ListOrders GET /orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.svc.ListOrders(h.ctx(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, ListResponse{Items: orders})
}

// NewDraft POST /orders/drafts
func (h *OrderHandler) NewDraft(c *gin.Context) {
	view, err := h.svc.NewDraft(h.ctx(c), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	Created(c, view)
}

// GetDraft GET /orders/drafts/:id
func (h *OrderHandler) GetDraft(c *gin.Context) {
	view, err := h.svc.GetDraft(h.ctx(c), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, view)
}

// UpdateDraft PATCH /orders/drafts/:id
func (h *OrderHandler) UpdateDraft(c *gin.Context) {
	var req service.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	view, err := h.svc.UpdateDraft(h.ctx(c), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, view)
}

// AddLine POST /orders/drafts/:id/lines
func (h *OrderHandler) AddLine(c *gin.Context) {
	view, err := h.svc.AddLine(h.ctx(c), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, view)
}

// RemoveLine DELETE /orders/drafts/:id/lines/:index
func (h *OrderHandler) RemoveLine(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	view, err := h.svc.RemoveLine(h.ctx(c), middleware.GetUserID(c), c.Param("id"), index)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, view)
}

// EditLineRequest 一次字段编辑
type EditLineRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// EditLine PATCH /orders/drafts/:id/lines/:index
func (h *OrderHandler) EditLine(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req EditLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	edit := order.Edit{Field: order.Field(req.Field), Value: req.Value}
	view, err := h.svc.EditLine(h.ctx(c), middleware.GetUserID(c), c.Param("id"), index, edit)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, view)
}

// SubmitDraft POST /orders/drafts/:id/submit
func (h *OrderHandler) SubmitDraft(c *gin.Context) {
	created, err := h.svc.SubmitDraft(h.ctx(c), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	Created(c, created)
}

// ExportDraft GET /orders/drafts/:id/export?archive=true
func (h *OrderHandler) ExportDraft(c *gin.Context) {
	archive := c.Query("archive") == "true"
	res, err := h.svc.ExportDraft(h.ctx(c), middleware.GetUserID(c), c.Param("id"), archive)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer res.File.Close()

	c.Header("Content-Type", export.ContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+res.Filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	if res.Object != "" {
		c.Header("X-Archive-Object", res.Object)
	}

	if err := res.File.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

// StatusRequest 状态变更请求，from 为页面上的当前状态
type StatusRequest struct {
	From   string `json:"from" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatus PUT /orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	updated, err := h.svc.UpdateOrderStatus(h.ctx(c), middleware.GetUserID(c), c.Param("id"), req.From, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, updated)
}

func lineIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		BadRequest(c, "Invalid line index")
		return 0, false
	}
	return index, true
}
