package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bitfantasy/nimo-admin/internal/production"
)

// ListRecipes 配方列表
func (c *Client) ListRecipes(ctx context.Context) ([]production.Recipe, error) {
	var recipes []production.Recipe
	if err := c.doRequest(ctx, http.MethodGet, "/production/recipes", nil, &recipes, "Failed to load recipes"); err != nil {
		return nil, err
	}
	return recipes, nil
}

// CreateRecipe 创建配方
func (c *Client) CreateRecipe(ctx context.Context, p production.RecipePayload) (*production.Recipe, error) {
	var recipe production.Recipe
	if err := c.doRequest(ctx, http.MethodPost, "/production/recipes", p, &recipe, "Failed to create recipe"); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// UpdateRecipe 整体替换配方
func (c *Client) UpdateRecipe(ctx context.Context, id string, p production.RecipePayload) (*production.Recipe, error) {
	var recipe production.Recipe
	path := "/production/recipes/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodPut, path, p, &recipe, "Failed to update recipe"); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// DeleteRecipe 删除配方
func (c *Client) DeleteRecipe(ctx context.Context, id string) error {
	path := "/production/recipes/" + url.PathEscape(id)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil, "Failed to delete recipe")
}

// ListBatches 生产批次列表
func (c *Client) ListBatches(ctx context.Context) ([]production.Batch, error) {
	var batches []production.Batch
	if err := c.doRequest(ctx, http.MethodGet, "/production/batches", nil, &batches, "Failed to load production batches"); err != nil {
		return nil, err
	}
	return batches, nil
}

// CreateBatch 手工创建批次
func (c *Client) CreateBatch(ctx context.Context, p production.BatchPayload) (*production.Batch, error) {
	var batch production.Batch
	if err := c.doRequest(ctx, http.MethodPost, "/production/batches", p, &batch, "Failed to create production batch"); err != nil {
		return nil, err
	}
	return &batch, nil
}

// CreateBatchFromRecipe 按配方放大创建批次，数量由平台计算
func (c *Client) CreateBatchFromRecipe(ctx context.Context, req production.ScaleRequest) (*production.Batch, error) {
	var batch production.Batch
	if err := c.doRequest(ctx, http.MethodPost, "/production/batches/from-recipe", req, &batch, "Failed to create batch from recipe"); err != nil {
		return nil, err
	}
	return &batch, nil
}

// UpdateBatchStatus 批次状态变更
// 库存不足时返回 *InsufficiencyError，其他拒绝返回 *RequestError
func (c *Client) UpdateBatchStatus(ctx context.Context, id, status string) (*production.Batch, error) {
	var batch production.Batch
	body := map[string]string{"status": status}
	path := "/production/batches/" + url.PathEscape(id) + "/status"
	if err := c.doRequest(ctx, http.MethodPut, path, body, &batch, "Failed to update batch status"); err != nil {
		return nil, err
	}
	return &batch, nil
}

// DeleteBatch 删除批次
func (c *Client) DeleteBatch(ctx context.Context, id string) error {
	path := "/production/batches/" + url.PathEscape(id)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil, "Failed to delete production batch")
}
