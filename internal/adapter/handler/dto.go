package handler

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=72"`
}

// UpdateUserRequest fields are optional; at least one must be present.
type UpdateUserRequest struct {
	NewUsername *string `json:"newUsername" validate:"omitempty,max=128"`
	Password    *string `json:"password" validate:"omitempty,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpsertProductRequest struct {
	ID          int64           `json:"id" validate:"gte=0"`
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Category    string          `json:"category" validate:"max=128"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"gte=0,lte=2147483647"`
}

func (r UpsertProductRequest) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		Quantity:    r.Quantity,
	}
}

// AdjustQuantityRequest keeps quantityChange as a float so fractional input
// is reported as an invalid argument instead of a decode failure.
type AdjustQuantityRequest struct {
	QuantityChange *float64 `json:"quantityChange" validate:"required"`
	Type           string   `json:"type" validate:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}
