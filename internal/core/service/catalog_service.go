package service

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

type CatalogService struct {
	repo port.CatalogRepository
	sync *StockSync
}

// NewCatalogService builds the product store. sync may be nil.
func NewCatalogService(repo port.CatalogRepository, sync *StockSync) *CatalogService {
	return &CatalogService{repo: repo, sync: sync}
}

// Upsert updates the product when an id is given and inserts it otherwise.
// The stored record is returned.
func (s *CatalogService) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}

	id := product.ID
	if id != 0 {
		found, err := s.repo.UpdateProduct(ctx, product)
		if err != nil {
			return nil, domain.Storage("update product", err)
		}
		if !found {
			return nil, domain.NotFound("product %d not found", id)
		}
	} else {
		newID, err := s.repo.CreateProduct(ctx, product)
		if err != nil {
			return nil, domain.Storage("create product", err)
		}
		id = newID
	}

	stored, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.sync.Publish(StockUpdate{ProductID: stored.ID, Quantity: stored.Quantity, Version: stored.Version})
	return stored, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, domain.Storage("get product", err)
	}
	if product == nil {
		return nil, domain.NotFound("product %d not found", id)
	}
	return product, nil
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, domain.Storage("list products", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// LowStock lists the products whose quantity is strictly below threshold.
func (s *CatalogService) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	if threshold < 0 {
		return nil, domain.InvalidArgument("threshold must not be negative")
	}
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	low := products[:0]
	for _, p := range products {
		if p.Quantity < threshold {
			low = append(low, p)
		}
	}
	return low, nil
}

// Delete removes the product. Deleting an unknown id succeeds.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return domain.Storage("delete product", err)
	}
	if err := s.sync.Remove(ctx, id); err != nil {
		return domain.Storage("clear stock mirror", err)
	}
	return nil
}
