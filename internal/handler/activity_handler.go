package handler

import (
	"github.com/bitfantasy/nimo-admin/internal/audit"
	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	repo *audit.Repository
}

// List GET /activity?entity_type=batch&entity_id=xxx&operator_id=xxx
func (h *ActivityHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.repo.List(c.Request.Context(), audit.Filter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		OperatorID: c.Query("operator_id"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		InternalError(c, "获取操作日志失败: "+err.Error())
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// History GET /activity/:entityType/:entityId
func (h *ActivityHandler) History(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.repo.FindByEntity(c.Request.Context(), c.Param("entityType"), c.Param("entityId"), page, pageSize)
	if err != nil {
		InternalError(c, "获取操作日志失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items, "total": total})
}
