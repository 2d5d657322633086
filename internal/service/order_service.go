package service

import (
	"context"
	"fmt"
	"math"

	"github.com/bitfantasy/nimo-admin/internal/audit"
	"github.com/bitfantasy/nimo-admin/internal/backend"
	"github.com/bitfantasy/nimo-admin/internal/export"
	"github.com/bitfantasy/nimo-admin/internal/order"
	"github.com/bitfantasy/nimo-admin/internal/session"
	"github.com/bitfantasy/nimo-admin/internal/sse"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// OrderService 采购订单录入
type OrderService struct {
	client   *backend.Client
	sessions *session.Store
	activity *audit.Repository
	archive  *export.Archive
	hub      *sse.Hub
	logger   *zap.Logger
}

func NewOrderService(client *backend.Client, sessions *session.Store, activity *audit.Repository, archive *export.Archive, hub *sse.Hub, logger *zap.Logger) *OrderService {
	return &OrderService{
		client:   client,
		sessions: sessions,
		activity: activity,
		archive:  archive,
		hub:      hub,
		logger:   logger.Named("order"),
	}
}

// LineView 行的展示值，只用于显示，不回写表单
type LineView struct {
	Total      float64 `json:"total"`
	TotalBoxes int     `json:"totalBoxes"`
	BoxesToBuy int     `json:"boxesToBuy"`
}

// DraftView 草稿及合计
type DraftView struct {
	Draft        *order.Form `json:"draft"`
	Lines        []LineView  `json:"lines"`
	Total        float64     `json:"total"`
	TotalDisplay string      `json:"totalDisplay"`
}

func newDraftView(f *order.Form) *DraftView {
	v := &DraftView{Draft: f, Lines: make([]LineView, len(f.Lines))}
	for i, l := range f.Lines {
		size := l.BoxSize()
		qty := l.Quantity.Float()
		v.Lines[i] = LineView{
			Total:      order.ItemTotal(l),
			TotalBoxes: int(math.Floor(qty / size)),
			BoxesToBuy: int(math.Ceil(qty / size)),
		}
	}
	v.Total = f.Total()
	v.TotalDisplay = fmt.Sprintf("%.2f", v.Total)
	return v
}

// NewDraft 新建草稿
func (s *OrderService) NewDraft(ctx context.Context, userID string) (*DraftView, error) {
	f := order.NewForm()
	if err := s.sessions.SaveDraft(ctx, userID, f); err != nil {
		return nil, err
	}
	return newDraftView(f), nil
}

// GetDraft 读取草稿
func (s *OrderService) GetDraft(ctx context.Context, userID, id string) (*DraftView, error) {
	f, err := s.sessions.LoadDraft(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return newDraftView(f), nil
}

// UpdateDraftRequest 修改草稿抬头
type UpdateDraftRequest struct {
	Supplier *string `json:"supplier"`
	Notes    *string `json:"notes"`
}

// UpdateDraft 修改供应商、备注
func (s *OrderService) UpdateDraft(ctx context.Context, userID, id string, req UpdateDraftRequest) (*DraftView, error) {
	return s.mutate(ctx, userID, id, func(f *order.Form) error {
		if req.Supplier != nil {
			f.Supplier = *req.Supplier
		}
		if req.Notes != nil {
			f.Notes = *req.Notes
		}
		return nil
	})
}

// AddLine 追加空行
func (s *OrderService) AddLine(ctx context.Context, userID, id string) (*DraftView, error) {
	return s.mutate(ctx, userID, id, func(f *order.Form) error {
		f.AddLine()
		return nil
	})
}

// RemoveLine 删除行，至少保留一行
func (s *OrderService) RemoveLine(ctx context.Context, userID, id string, index int) (*DraftView, error) {
	return s.mutate(ctx, userID, id, func(f *order.Form) error {
		return f.RemoveLine(index)
	})
}

// EditLine 对行应用一次字段编辑
func (s *OrderService) EditLine(ctx context.Context, userID, id string, index int, e order.Edit) (*DraftView, error) {
	return s.mutate(ctx, userID, id, func(f *order.Form) error {
		return f.Edit(index, e)
	})
}

func (s *OrderService) mutate(ctx context.Context, userID, id string, fn func(*order.Form) error) (*DraftView, error) {
	f, err := s.sessions.LoadDraft(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(f); err != nil {
		return nil, err
	}
	if err := s.sessions.SaveDraft(ctx, userID, f); err != nil {
		return nil, err
	}
	return newDraftView(f), nil
}

// SubmitDraft 校验、规范化并创建订单，成功后删除草稿
func (s *OrderService) SubmitDraft(ctx context.Context, userID, id string) (*order.Order, error) {
	ok, err := s.sessions.AcquireSubmit(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubmitInProgress
	}
	defer func() {
		if err := s.sessions.ReleaseSubmit(context.WithoutCancel(ctx), userID, id); err != nil {
			s.logger.Warn("release submit lock", zap.String("draft_id", id), zap.Error(err))
		}
	}()

	f, err := s.sessions.LoadDraft(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	req, err := f.Payload()
	if err != nil {
		return nil, err
	}

	created, err := s.client.CreateOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.sessions.DeleteDraft(ctx, userID, id); err != nil {
		s.logger.Warn("delete submitted draft", zap.String("draft_id", id), zap.Error(err))
	}

	s.activity.LogActivity(ctx, audit.EntityOrder, created.ID, created.OrderNumber,
		audit.ActionCreate, "", created.Status,
		fmt.Sprintf("created order with %d lines, total %.2f", len(req.Items), req.TotalAmount),
		userID, audit.JSONB{"draft_id": id, "total_amount": req.TotalAmount})
	s.hub.Publish("", sse.EventOrderUpdate, map[string]string{"order_id": created.ID, "action": "created"})

	return created, nil
}

// ExportResult 导出结果
type ExportResult struct {
	File     *excelize.File
	Filename string
	Object   string
}

// ExportDraft 导出xlsx，archive为true时同时归档到对象存储
func (s *OrderService) ExportDraft(ctx context.Context, userID, id string, archive bool) (*ExportResult, error) {
	f, err := s.sessions.LoadDraft(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	materials, err := s.client.ListMaterials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}
	byID := make(map[string]order.Material, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
	}

	file, filename, err := export.OrderSheet(f, byID)
	if err != nil {
		return nil, err
	}
	res := &ExportResult{File: file, Filename: filename}

	if archive && s.archive.Enabled() {
		object, err := s.archive.Put(ctx, userID, filename, file)
		if err != nil {
			return nil, err
		}
		res.Object = object
		s.activity.LogActivity(ctx, audit.EntityOrder, id, "", audit.ActionExport, "", "",
			"archived order draft export", userID, audit.JSONB{"object": object})
	}
	return res, nil
}

// ListMaterials 原材料列表
func (s *OrderService) ListMaterials(ctx context.Context) ([]order.Material, error) {
	return s.client.ListMaterials(ctx)
}

// ListOrders 订单列表
func (s *OrderService) ListOrders(ctx context.Context) ([]order.Order, error) {
	return s.client.ListOrders(ctx)
}

// UpdateOrderStatus 只更新状态；from 为页面上的当前状态，服务端仍是最终裁决
func (s *OrderService) UpdateOrderStatus(ctx context.Context, userID, id, from, to string) (*order.Order, error) {
	if !order.CanTransition(from, to) {
		return nil, fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidOrderTransition)
	}
	updated, err := s.client.UpdateOrderStatus(ctx, id, to)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	s.activity.LogActivity(ctx, audit.EntityOrder, id, updated.OrderNumber,
		audit.ActionStatusChange, from, to,
		fmt.Sprintf("order status changed: %s → %s", from, to), userID, nil)
	s.hub.Publish("", sse.EventOrderUpdate, map[string]string{"order_id": id, "action": "status_change"})
	return updated, nil
}
