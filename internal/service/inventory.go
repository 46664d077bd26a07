package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/config"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/validator"
)

// InventoryService manages the product catalog and its stock levels.
type InventoryService interface {
	GetProduct(ctx context.Context, id int64) (model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (model.Product, error)
	// UpsertProduct inserts a product without an id and otherwise replaces
	// every mutable field of the stored product.
	UpsertProduct(ctx context.Context, product model.Product) (model.Product, error)
	// DeleteProduct removes a product with no stock left together with the
	// sale and order lines referencing it. Deleting an unknown product is a
	// no-op.
	DeleteProduct(ctx context.Context, id int64) error

	LowStockMonitor
}

type inventoryService struct {
	LowStockMonitor

	tx            txRunner
	logger        *slog.Logger
	metrics       *Metrics
	validator     validator.Validator
	now           func() time.Time
	productRepo   repository.ProductRepository
	saleRepo      repository.SaleRepository
	orderLineRepo repository.OrderLineRepository
	outboxMsgRepo repository.OutboxMsgRepository
}

type InventoryServiceParams struct {
	DB            db.DB
	Config        config.Inventory
	Logger        *slog.Logger
	Metrics       *Metrics
	Validator     validator.Validator
	LowStock      LowStockMonitor
	ProductRepo   repository.ProductRepository
	SaleRepo      repository.SaleRepository
	OrderLineRepo repository.OrderLineRepository
	OutboxMsgRepo repository.OutboxMsgRepository
}

func NewInventoryService(p InventoryServiceParams) InventoryService {
	logger := p.Logger.With(slog.String("service", "inventory"))

	return &inventoryService{
		LowStockMonitor: p.LowStock,
		tx: txRunner{
			db:      p.DB,
			cfg:     p.Config,
			metrics: p.Metrics,
			logger:  logger,
		},
		logger:        logger,
		metrics:       p.Metrics,
		validator:     p.Validator,
		now:           time.Now,
		productRepo:   p.ProductRepo,
		saleRepo:      p.SaleRepo,
		orderLineRepo: p.OrderLineRepo,
		outboxMsgRepo: p.OutboxMsgRepo,
	}
}

func (s *inventoryService) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	product, err := s.productRepo.GetProduct(ctx, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product: %w", err)
	}

	return product, nil
}

func (s *inventoryService) ListProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.productRepo.ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("product repository list all products: %w", err)
	}

	return products, nil
}

func (s *inventoryService) FindProductByBarcode(ctx context.Context, barcode string) (model.Product, error) {
	product, err := s.productRepo.FindProductByBarcode(ctx, barcode)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository find product by barcode: %w", err)
	}

	return product, nil
}

func (s *inventoryService) UpsertProduct(ctx context.Context, product model.Product) (model.Product, error) {
	if err := s.validator.Validate(product); err != nil {
		return model.Product{}, apperr.InvalidProductErr.WrapParent(err)
	}

	product.UpdatedAt = s.now().UTC()

	if product.IsNew() {
		product.CreatedAt = product.UpdatedAt
		created, err := s.productRepo.CreateProduct(ctx, product)
		if err != nil {
			return model.Product{}, fmt.Errorf("product repository create product: %w", err)
		}

		s.logger.InfoContext(ctx, "product created", slog.Int64("product_id", created.ID))
		return created, nil
	}

	updated, err := s.productRepo.UpdateProduct(ctx, product)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository update product: %w", err)
	}

	return updated, nil
}
