package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-admin/internal/audit"
	"github.com/bitfantasy/nimo-admin/internal/backend"
	"github.com/bitfantasy/nimo-admin/internal/production"
	"github.com/bitfantasy/nimo-admin/internal/sse"
	"go.uber.org/zap"
)

// ProductionService 配方与生产批次
type ProductionService struct {
	client   *backend.Client
	activity *audit.Repository
	hub      *sse.Hub
	logger   *zap.Logger
}

func NewProductionService(client *backend.Client, activity *audit.Repository, hub *sse.Hub, logger *zap.Logger) *ProductionService {
	return &ProductionService{
		client:   client,
		activity: activity,
		hub:      hub,
		logger:   logger.Named("production"),
	}
}

// BatchView 批次及可用操作
type BatchView struct {
	production.Batch
	NextStatuses []string `json:"nextStatuses"`
	Deletable    bool     `json:"deletable"`
}

func newBatchView(b production.Batch) BatchView {
	return BatchView{
		Batch:        b,
		NextStatuses: production.NextStatuses(b.Status),
		Deletable:    production.Deletable(b.Status),
	}
}

// ListRecipes 配方列表
func (s *ProductionService) ListRecipes(ctx context.Context) ([]production.Recipe, error) {
	return s.client.ListRecipes(ctx)
}

// CreateRecipe 校验后创建配方
func (s *ProductionService) CreateRecipe(ctx context.Context, userID string, form production.RecipeForm) (*production.Recipe, error) {
	payload, err := production.ValidateRecipeSubmission(form)
	if err != nil {
		return nil, err
	}
	recipe, err := s.client.CreateRecipe(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("create recipe: %w", err)
	}
	s.activity.LogActivity(ctx, audit.EntityRecipe, recipe.ID, recipe.Name, audit.ActionCreate, "", "",
		fmt.Sprintf("created recipe %s", payload.Name), userID, nil)
	return recipe, nil
}

// UpdateRecipe 校验后整体替换配方
func (s *ProductionService) UpdateRecipe(ctx context.Context, userID, id string, form production.RecipeForm) (*production.Recipe, error) {
	payload, err := production.ValidateRecipeSubmission(form)
	if err != nil {
		return nil, err
	}
	recipe, err := s.client.UpdateRecipe(ctx, id, payload)
	if err != nil {
		return nil, fmt.Errorf("update recipe: %w", err)
	}
	s.activity.LogActivity(ctx, audit.EntityRecipe, id, payload.Name, audit.ActionUpdate, "", "",
		fmt.Sprintf("updated recipe %s", payload.Name), userID, nil)
	return recipe, nil
}

// DeleteRecipe 删除配方
func (s *ProductionService) DeleteRecipe(ctx context.Context, userID, id string) error {
	if err := s.client.DeleteRecipe(ctx, id); err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	s.activity.LogActivity(ctx, audit.EntityRecipe, id, "", audit.ActionDelete, "", "", "deleted recipe", userID, nil)
	return nil
}

// ListBatches 批次列表，附带可迁移状态
func (s *ProductionService) ListBatches(ctx context.Context) ([]BatchView, error) {
	batches, err := s.client.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, newBatchView(b))
	}
	return views, nil
}

// CreateBatch 手工创建批次
func (s *ProductionService) CreateBatch(ctx context.Context, userID string, form production.BatchForm) (*BatchView, error) {
	payload, err := production.ValidateBatchSubmission(form, userID)
	if err != nil {
		return nil, err
	}
	batch, err := s.client.CreateBatch(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	s.afterCreate(ctx, userID, batch, "created production batch", nil)
	v := newBatchView(*batch)
	return &v, nil
}

// ScaleBatchRequest 按配方放大请求，数值保留输入原文
type ScaleBatchRequest struct {
	RecipeID    string `json:"recipeId"`
	ScaleFactor string `json:"scaleFactor"`
	StartDate   string `json:"startDate"`
}

// CreateBatchFromRecipe 校验放大参数并交给平台计算
func (s *ProductionService) CreateBatchFromRecipe(ctx context.Context, userID string, req ScaleBatchRequest) (*BatchView, error) {
	scale, err := production.ScaleRecipe(req.RecipeID, req.ScaleFactor, req.StartDate, userID)
	if err != nil {
		return nil, err
	}
	batch, err := s.client.CreateBatchFromRecipe(ctx, scale)
	if err != nil {
		return nil, fmt.Errorf("create batch from recipe: %w", err)
	}
	s.afterCreate(ctx, userID, batch, fmt.Sprintf("created batch from recipe %s at scale %g", scale.RecipeID, scale.ScaleFactor),
		audit.JSONB{"recipe_id": scale.RecipeID, "scale_factor": scale.ScaleFactor})
	v := newBatchView(*batch)
	return &v, nil
}

func (s *ProductionService) afterCreate(ctx context.Context, userID string, b *production.Batch, content string, meta audit.JSONB) {
	s.activity.LogActivity(ctx, audit.EntityBatch, b.ID, b.BatchNumber, audit.ActionCreate, "", b.Status, content, userID, meta)
	s.hub.Publish("", sse.EventBatchUpdate, map[string]string{"batch_id": b.ID, "action": "created"})
}

// TransitionBatch 批次状态变更
// 先本地校验状态机，再请求平台；库存是否充足只由平台判断
// 返回的错误为 *backend.InsufficiencyError 或 *backend.RequestError
func (s *ProductionService) TransitionBatch(ctx context.Context, userID, id, from, to string) (*BatchView, error) {
	if err := production.CanTransition(from, to); err != nil {
		return nil, err
	}

	batch, err := s.client.UpdateBatchStatus(ctx, id, to)
	if err != nil {
		if ie, ok := backend.AsInsufficiency(err); ok {
			s.activity.LogActivity(ctx, audit.EntityBatch, id, "", audit.ActionRejected, from, to,
				ie.Message, userID, audit.JSONB{"insufficient_materials": ie.Lines()})
		}
		return nil, fmt.Errorf("update batch status: %w", err)
	}

	s.activity.LogActivity(ctx, audit.EntityBatch, id, batch.BatchNumber, audit.ActionStatusChange, from, to,
		fmt.Sprintf("batch status changed: %s → %s", from, to), userID, nil)
	s.hub.Publish("", sse.EventBatchUpdate, map[string]string{"batch_id": id, "action": "status_change", "status": to})

	v := newBatchView(*batch)
	return &v, nil
}

// DeleteBatch 删除批次，终态批次不能删除
func (s *ProductionService) DeleteBatch(ctx context.Context, userID, id, status string) error {
	if !production.Deletable(status) {
		return fmt.Errorf("batch %s (%s): %w", id, status, production.ErrNotDeletable)
	}
	if err := s.client.DeleteBatch(ctx, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	s.activity.LogActivity(ctx, audit.EntityBatch, id, "", audit.ActionDelete, status, "", "deleted production batch", userID, nil)
	s.hub.Publish("", sse.EventBatchUpdate, map[string]string{"batch_id": id, "action": "deleted"})
	return nil
}
