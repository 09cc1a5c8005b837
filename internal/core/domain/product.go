package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// maxPrice is the first value a DECIMAL(12,2) column cannot store.
var maxPrice = decimal.New(1, 10)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Version     int             `json:"-"` // optimistic locking
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Validate checks the fields every write path must honor.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return InvalidArgument("product name is required")
	}
	if p.Price.IsNegative() {
		return InvalidArgument("price must not be negative")
	}
	if p.Price.GreaterThanOrEqual(maxPrice) {
		return InvalidArgument("price must be below %s", maxPrice.String())
	}
	if p.Quantity < 0 {
		return InvalidArgument("quantity must not be negative")
	}
	if p.Quantity > MaxQuantity {
		return InvalidArgument("quantity must not exceed %d", MaxQuantity)
	}
	return nil
}
