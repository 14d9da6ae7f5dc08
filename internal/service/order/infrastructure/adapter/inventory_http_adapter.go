package adapter

import (
	"context"
	"errors"
	"net/http"

	"cloudretail/internal/pkg/httpclient"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/domain/port"
)

const (
	InventoryServiceName = "inventory-service"
	inventoryReservePath = "/api/v1/inventory/reserve"
	inventoryReleasePath = "/api/v1/inventory/release"
)

type inventoryRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	OrderID   string `json:"orderId"`
}

// InventoryHTTPAdapter 实现了 port.InventoryService 接口。
type InventoryHTTPAdapter struct {
	client *httpclient.Client
}

var _ port.InventoryService = (*InventoryHTTPAdapter)(nil)

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器。
func NewInventoryHTTPAdapter(client *httpclient.Client) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client}
}

// Reserve 预占单个商品的库存，400 表示库存不足
func (a *InventoryHTTPAdapter) Reserve(ctx context.Context, orderID string, item domain.OrderItem) error {
	req := inventoryRequest{ProductID: item.ProductID, Quantity: item.Quantity, OrderID: orderID}
	err := a.client.PostJSON(ctx, InventoryServiceName, inventoryReservePath, req, nil)
	if err == nil {
		return nil
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest {
		return &domain.InsufficientStockError{ProductID: item.ProductID, Message: statusErr.Message}
	}
	return &domain.TransportError{Service: InventoryServiceName, Op: "reserve", Err: err}
}

// Release 是 Reserve 的补偿操作
func (a *InventoryHTTPAdapter) Release(ctx context.Context, orderID string, item domain.OrderItem) error {
	req := inventoryRequest{ProductID: item.ProductID, Quantity: item.Quantity, OrderID: orderID}
	if err := a.client.PostJSON(ctx, InventoryServiceName, inventoryReleasePath, req, nil); err != nil {
		return &domain.TransportError{Service: InventoryServiceName, Op: "release", Err: err}
	}
	return nil
}
