package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Direction string

// MaxQuantity is the largest stock level the products table can hold.
const MaxQuantity = math.MaxInt32

const (
	DirectionAdd    Direction = "add"
	DirectionDeduct Direction = "deduct"
)

func (d Direction) Valid() bool {
	return d == DirectionAdd || d == DirectionDeduct
}

// StockTransaction is an immutable record of one committed quantity change.
// ProductID is a weak reference: the record outlives the product.
type StockTransaction struct {
	ID            string    `json:"id"`
	ProductID     int64     `json:"product_id"`
	Kind          Direction `json:"type"`
	Amount        int       `json:"amount"`
	QuantityAfter int       `json:"quantity_after"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewStockTransaction(productID int64, kind Direction, amount, quantityAfter int, at time.Time) StockTransaction {
	return StockTransaction{
		ID:            uuid.New().String(),
		ProductID:     productID,
		Kind:          kind,
		Amount:        amount,
		QuantityAfter: quantityAfter,
		CreatedAt:     at.UTC(),
	}
}

// Apply computes the quantity that results from moving amount in direction d.
func (d Direction) Apply(current, amount int) (int, error) {
	if amount <= 0 {
		return current, InvalidArgument("amount must be a positive integer")
	}
	switch d {
	case DirectionAdd:
		if amount > MaxQuantity-current {
			return current, InvalidArgument("cannot add %d, quantity would exceed %d", amount, MaxQuantity)
		}
		return current + amount, nil
	case DirectionDeduct:
		if amount > current {
			return current, InsufficientStock("cannot deduct %d, only %d in stock", amount, current)
		}
		return current - amount, nil
	default:
		return current, InvalidArgument("invalid operation type %q, use \"add\" or \"deduct\"", string(d))
	}
}
