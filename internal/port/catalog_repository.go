package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type CatalogRepository interface {
	// CreateProduct inserts a product and returns the assigned id
	CreateProduct(ctx context.Context, product domain.Product) (int64, error)

	// UpdateProduct overwrites every field and bumps the version, returns false if the id is absent
	UpdateProduct(ctx context.Context, product domain.Product) (bool, error)

	// GetProduct retrieves a product by id, nil if absent
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// ListProducts returns every product ordered by id
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// DeleteProduct removes a product, absent ids are not an error
	DeleteProduct(ctx context.Context, id int64) error
}
