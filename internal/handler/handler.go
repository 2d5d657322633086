package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/bitfantasy/nimo-admin/internal/backend"
	"github.com/bitfantasy/nimo-admin/internal/middleware"
	"github.com/bitfantasy/nimo-admin/internal/order"
	"github.com/bitfantasy/nimo-admin/internal/production"
	"github.com/bitfantasy/nimo-admin/internal/service"
	"github.com/bitfantasy/nimo-admin/internal/session"
	"github.com/bitfantasy/nimo-admin/internal/sse"
	"github.com/bitfantasy/nimo-admin/internal/validation"
	"github.com/gin-gonic/gin"
)

// 业务错误码，HTTP状态码 = code / 100
const (
	CodeBadRequest         = 40000
	CodeValidation         = 40001
	CodeSessionExpired     = 40101
	CodeNotFound           = 40401
	CodeInsufficient       = 40901
	CodeInvalidTransition  = 40902
	CodeSubmitInProgress   = 40903
	CodeNotDeletable       = 40904
	CodeLastRow            = 40905
	CodeDerivedField       = 42201
	CodeUnknownField       = 42202
	CodeBackendUnavailable = 50201
	CodeInternal           = 50000
)

// Handlers 处理器集合
type Handlers struct {
	Order      *OrderHandler
	Production *ProductionHandler
	Generation *GenerationHandler
	SSE        *SSEHandler
	Activity   *ActivityHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	b := base{session: svc.Session}
	return &Handlers{
		Order:      &OrderHandler{base: b, svc: svc.Order},
		Production: &ProductionHandler{base: b, svc: svc.Production},
		Generation: &GenerationHandler{base: b, svc: svc.Generation},
		SSE:        NewSSEHandler(hub),
		Activity:   &ActivityHandler{repo: svc.Activity},
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData 带数据的错误响应
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = http.StatusInternalServerError
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, CodeBadRequest, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, CodeNotFound, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, CodeInternal, message)
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}

// base 各处理器共用：token转发与错误映射
type base struct {
	session *service.SessionService
}

// ctx 请求context，附带转发给平台的token
func (b base) ctx(c *gin.Context) context.Context {
	return backend.WithToken(c.Request.Context(), middleware.GetToken(c))
}

// fail 把领域错误映射为响应
func (b base) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	if ve, ok := validation.As(err); ok {
		ErrorWithData(c, CodeValidation, ve.Message, gin.H{"field": ve.Field})
		return
	}
	if errors.Is(err, backend.ErrSessionExpired) {
		b.session.Expire(context.WithoutCancel(c.Request.Context()), middleware.GetUserID(c))
		Error(c, CodeSessionExpired, "session expired")
		return
	}
	if ie, ok := backend.AsInsufficiency(err); ok {
		ErrorWithData(c, CodeInsufficient, ie.Message, gin.H{
			"insufficient_materials": ie.Materials,
			"lines":                  ie.Lines(),
		})
		return
	}
	if re, ok := backend.AsRequestError(err); ok {
		if re.Status >= 400 && re.Status < 500 {
			Error(c, re.Status*100+50, re.Message)
			return
		}
		Error(c, CodeBackendUnavailable, re.Message)
		return
	}

	switch {
	case errors.Is(err, session.ErrDraftNotFound), errors.Is(err, order.ErrLineNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, production.ErrInvalidTransition),
		errors.Is(err, production.ErrUnknownStatus),
		errors.Is(err, service.ErrInvalidOrderTransition):
		Error(c, CodeInvalidTransition, err.Error())
	case errors.Is(err, service.ErrSubmitInProgress):
		Error(c, CodeSubmitInProgress, err.Error())
	case errors.Is(err, production.ErrNotDeletable):
		Error(c, CodeNotDeletable, err.Error())
	case errors.Is(err, order.ErrLastLine):
		Error(c, CodeLastRow, err.Error())
	case errors.Is(err, order.ErrDerivedField):
		Error(c, CodeDerivedField, err.Error())
	case errors.Is(err, order.ErrUnknownField), errors.Is(err, order.ErrInvalidFlag):
		Error(c, CodeUnknownField, err.Error())
	default:
		InternalError(c, err.Error())
	}
}
