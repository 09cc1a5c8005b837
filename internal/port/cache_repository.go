package port

import "context"

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency drops a key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	// SetStock mirrors a quantity, ignoring writes older than the stored version
	SetStock(ctx context.Context, productID int64, quantity, version int) error

	// GetStock reads the mirrored quantity, ok is false on a miss
	GetStock(ctx context.Context, productID int64) (quantity int, ok bool, err error)

	// DeleteStock marks a removed product; later SetStock calls for it are ignored
	DeleteStock(ctx context.Context, productID int64) error

	// ResetStock drops the mirror entry, including a deletion mark
	ResetStock(ctx context.Context, productID int64) error
}
