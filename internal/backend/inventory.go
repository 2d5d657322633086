package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bitfantasy/nimo-admin/internal/order"
)

// ListMaterials 原材料列表
func (c *Client) ListMaterials(ctx context.Context) ([]order.Material, error) {
	var materials []order.Material
	if err := c.doRequest(ctx, http.MethodGet, "/inventory/raw-materials", nil, &materials, "Failed to load raw materials"); err != nil {
		return nil, err
	}
	return materials, nil
}

// ListOrders 采购订单列表
func (c *Client) ListOrders(ctx context.Context) ([]order.Order, error) {
	var orders []order.Order
	if err := c.doRequest(ctx, http.MethodGet, "/inventory/orders", nil, &orders, "Failed to load orders"); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder 提交采购订单
func (c *Client) CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error) {
	var created order.Order
	if err := c.doRequest(ctx, http.MethodPost, "/inventory/orders", req, &created, "Failed to create order"); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateOrderStatus 只更新订单状态
func (c *Client) UpdateOrderStatus(ctx context.Context, id, status string) (*order.Order, error) {
	var updated order.Order
	body := map[string]string{"status": status}
	path := "/inventory/orders/" + url.PathEscape(id) + "/status"
	if err := c.doRequest(ctx, http.MethodPut, path, body, &updated, "Failed to update order status"); err != nil {
		return nil, err
	}
	return &updated, nil
}
