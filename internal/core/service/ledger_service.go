package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/metrics"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	idempotencyKeyPrefix = "adjust:"
	defaultHistoryLimit  = 50
	maxHistoryLimit      = 500
	releaseTimeout       = 2 * time.Second
)

type LedgerConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

type AdjustCommand struct {
	ProductID      int64
	Amount         int
	Direction      domain.Direction
	IdempotencyKey string
}

type Adjustment struct {
	Product     domain.Product          `json:"product"`
	Transaction domain.StockTransaction `json:"transaction"`
}

type StockLevel struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Source    string `json:"source"`
}

// LedgerService owns the stock adjustment protocol. The read of the current
// quantity and the conditional write are never exposed separately.
type LedgerService struct {
	catalog port.CatalogRepository
	ledger  port.LedgerRepository
	cfg     LedgerConfig

	cache   port.CacheRepository
	sync    *StockSync
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

type LedgerOption func(*LedgerService)

func WithCache(cache port.CacheRepository) LedgerOption {
	return func(s *LedgerService) { s.cache = cache }
}

func WithStockSync(sync *StockSync) LedgerOption {
	return func(s *LedgerService) { s.sync = sync }
}

func WithMetrics(m *metrics.Metrics) LedgerOption {
	return func(s *LedgerService) { s.metrics = m }
}

func WithLogger(logger *zap.Logger) LedgerOption {
	return func(s *LedgerService) { s.logger = logger }
}

func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(catalog port.CatalogRepository, ledger port.LedgerRepository, cfg LedgerConfig, opts ...LedgerOption) *LedgerService {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	s := &LedgerService{
		catalog: catalog,
		ledger:  ledger,
		cfg:     cfg,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Adjust adds or deducts stock. Arguments are validated before any storage
// access. The new quantity is committed with a compare-and-swap on the product
// version together with the transaction record; a lost race re-reads and
// retries up to MaxRetries times.
func (s *LedgerService) Adjust(ctx context.Context, cmd AdjustCommand) (adj *Adjustment, err error) {
	defer func() { s.metrics.ObserveAdjust(cmd.Direction, err) }()

	if !cmd.Direction.Valid() {
		return nil, domain.InvalidArgument("invalid operation type %q, use \"add\" or \"deduct\"", string(cmd.Direction))
	}
	if cmd.Amount <= 0 {
		return nil, domain.InvalidArgument("quantity change must be a positive integer")
	}

	if cmd.IdempotencyKey != "" && s.cache != nil {
		key := idempotencyKeyPrefix + cmd.IdempotencyKey
		ok, serr := s.cache.SetIdempotency(ctx, key)
		if serr != nil {
			return nil, domain.Storage("idempotency check", serr)
		}
		if !ok {
			return nil, domain.Conflict("duplicate request")
		}
		defer func() {
			if err != nil {
				s.releaseKey(ctx, key)
			}
		}()
	}

	for attempt := 1; ; attempt++ {
		adj, err = s.tryAdjust(ctx, cmd)
		if !errors.Is(err, port.ErrOptimisticLock) {
			break
		}

		s.metrics.ObserveRetry()
		if attempt >= s.cfg.MaxRetries {
			s.logger.Warn("adjust retries exhausted",
				zap.Int64("product_id", cmd.ProductID),
				zap.Int("attempts", attempt))
			return nil, domain.Conflict("product %d is being modified concurrently, retry later", cmd.ProductID)
		}
		if werr := s.backoff(ctx, attempt); werr != nil {
			return nil, domain.Storage("adjust stock", werr)
		}
	}
	if err != nil {
		return nil, err
	}

	s.sync.Publish(StockUpdate{
		ProductID: adj.Product.ID,
		Quantity:  adj.Product.Quantity,
		Version:   adj.Product.Version,
	})
	s.logger.Debug("stock adjusted",
		zap.Int64("product_id", adj.Product.ID),
		zap.String("direction", string(cmd.Direction)),
		zap.Int("amount", cmd.Amount),
		zap.Int("quantity", adj.Product.Quantity))
	return adj, nil
}

// tryAdjust runs one read-compute-CAS round. port.ErrOptimisticLock is
// returned unwrapped so the caller can retry.
func (s *LedgerService) tryAdjust(ctx context.Context, cmd AdjustCommand) (*Adjustment, error) {
	product, err := s.catalog.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return nil, domain.Storage("load product", err)
	}
	if product == nil {
		return nil, domain.NotFound("product %d not found", cmd.ProductID)
	}

	newQuantity, err := cmd.Direction.Apply(product.Quantity, cmd.Amount)
	if err != nil {
		return nil, err
	}

	tx := domain.NewStockTransaction(product.ID, cmd.Direction, cmd.Amount, newQuantity, s.now())
	if err := s.ledger.ApplyAdjustment(ctx, product.ID, product.Version, newQuantity, tx); err != nil {
		if errors.Is(err, port.ErrOptimisticLock) {
			return nil, port.ErrOptimisticLock
		}
		return nil, domain.Storage("commit adjustment", err)
	}

	product.Quantity = newQuantity
	product.Version++
	product.UpdatedAt = tx.CreatedAt
	return &Adjustment{Product: *product, Transaction: tx}, nil
}

func (s *LedgerService) backoff(ctx context.Context, attempt int) error {
	if s.cfg.RetryBackoff <= 0 {
		return ctx.Err()
	}
	base := s.cfg.RetryBackoff * time.Duration(attempt)
	wait := base + rand.N(s.cfg.RetryBackoff)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *LedgerService) releaseKey(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.cache.ReleaseIdempotency(ctx, key); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// History returns the newest transaction records of a product. Records of
// deleted products remain readable.
func (s *LedgerService) History(ctx context.Context, productID int64, limit int) ([]domain.StockTransaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	txs, err := s.ledger.ListTransactions(ctx, productID, limit)
	if err != nil {
		return nil, domain.Storage("list stock transactions", err)
	}
	if txs == nil {
		txs = []domain.StockTransaction{}
	}
	return txs, nil
}

// CachedQuantity serves the mirrored quantity and falls back to the catalog on
// a miss or a cache failure.
func (s *LedgerService) CachedQuantity(ctx context.Context, productID int64) (*StockLevel, error) {
	if s.cache != nil {
		qty, ok, err := s.cache.GetStock(ctx, productID)
		if err != nil {
			s.logger.Warn("stock mirror read failed, falling back to catalog",
				zap.Int64("product_id", productID), zap.Error(err))
		} else if ok {
			return &StockLevel{ProductID: productID, Quantity: qty, Source: "cache"}, nil
		}
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, domain.Storage("get product", err)
	}
	if product == nil {
		return nil, domain.NotFound("product %d not found", productID)
	}
	s.sync.Publish(StockUpdate{ProductID: product.ID, Quantity: product.Quantity, Version: product.Version})
	return &StockLevel{ProductID: productID, Quantity: product.Quantity, Source: "catalog"}, nil
}
