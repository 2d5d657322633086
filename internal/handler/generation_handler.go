package handler

import (
	"github.com/bitfantasy/nimo-admin/internal/middleware"
	"github.com/bitfantasy/nimo-admin/internal/service"
	"github.com/gin-gonic/gin"
)

type GenerationHandler struct {
	base
	svc *service.GenerationService
}

// Watch POST /generation/:jobId/watch
// 进度通过 SSE generation_update 事件推送
func (h *GenerationHandler) Watch(c *gin.Context) {
	jobID := c.Param("jobId")
	started := h.svc.Watch(h.ctx(c), middleware.GetUserID(c), jobID)
	Success(c, gin.H{"job_id": jobID, "watching": true, "started": started})
}

// Unwatch DELETE /generation/:jobId/watch
func (h *GenerationHandler) Unwatch(c *gin.Context) {
	jobID := c.Param("jobId")
	if !h.svc.Unwatch(middleware.GetUserID(c), jobID) {
		NotFound(c, "generation job is not being watched")
		return
	}
	Success(c, gin.H{"job_id": jobID, "watching": false})
}
