package service

import (
	"context"
	"fmt"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
)

// LowStockMonitor reports the products whose stock is strictly below their
// minimum threshold. Every call reads the store; nothing is cached.
type LowStockMonitor interface {
	LowStock(ctx context.Context) ([]model.Product, error)
	LowStockAlerts(ctx context.Context) ([]model.LowStockAlert, error)
}

type lowStockMonitor struct {
	productRepo repository.ProductRepository
	metrics     *Metrics
}

func NewLowStockMonitor(productRepo repository.ProductRepository, metrics *Metrics) LowStockMonitor {
	return &lowStockMonitor{
		productRepo: productRepo,
		metrics:     metrics,
	}
}

func (m *lowStockMonitor) LowStock(ctx context.Context) ([]model.Product, error) {
	products, err := m.productRepo.ListLowStockProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("product repository list low stock products: %w", err)
	}

	m.metrics.LowStockProduct.Set(float64(len(products)))

	return products, nil
}

func (m *lowStockMonitor) LowStockAlerts(ctx context.Context) ([]model.LowStockAlert, error) {
	products, err := m.LowStock(ctx)
	if err != nil {
		return nil, err
	}

	return model.NewLowStockAlerts(products), nil
}
