package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/metrics"
	"github.com/rl1809/stock-ledger/internal/port"
)

const syncWriteTimeout = 5 * time.Second

// StockUpdate is a committed quantity queued for the read-side mirror.
type StockUpdate struct {
	ProductID int64
	Quantity  int
	Version   int
	Deleted   bool
}

// StockSync fans committed quantities out to the cache mirror and the
// quantity gauge. Publishing never blocks the request path: a full queue
// drops the update and the next write or the startup reconcile repairs it.
type StockSync struct {
	queue   chan StockUpdate
	cache   port.CacheRepository
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewStockSync(queueSize int, cache port.CacheRepository, m *metrics.Metrics, logger *zap.Logger) *StockSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockSync{
		queue:   make(chan StockUpdate, queueSize),
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// Publish enqueues u without blocking. Safe on a nil receiver and after Close.
func (s *StockSync) Publish(u StockUpdate) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- u:
	default:
		s.metrics.ObserveSyncDrop()
		s.logger.Warn("stock sync queue full, dropping update",
			zap.Int64("product_id", u.ProductID),
			zap.Int("quantity", u.Quantity))
	}
}

// Start launches n workers draining the queue.
func (s *StockSync) Start(n int) {
	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(id)
		}(i)
	}
	s.logger.Info("stock sync workers started", zap.Int("workers", n))
}

func (s *StockSync) workerLoop(id int) {
	for u := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), syncWriteTimeout)
		if err := s.apply(ctx, u); err != nil {
			s.logger.Error("stock sync failed",
				zap.Int("worker", id),
				zap.Int64("product_id", u.ProductID),
				zap.Error(err))
		}
		cancel()
	}
}

func (s *StockSync) apply(ctx context.Context, u StockUpdate) error {
	if u.Deleted {
		s.metrics.DeleteQuantity(u.ProductID)
		if s.cache == nil {
			return nil
		}
		return s.cache.DeleteStock(ctx, u.ProductID)
	}

	s.metrics.SetQuantity(u.ProductID, u.Quantity)
	if s.cache == nil {
		return nil
	}
	return s.cache.SetStock(ctx, u.ProductID, u.Quantity, u.Version)
}

// Remove clears the mirror entry and gauge of a deleted product synchronously,
// so the deletion cannot be dropped from a full queue.
func (s *StockSync) Remove(ctx context.Context, productID int64) error {
	if s == nil {
		return nil
	}
	return s.apply(ctx, StockUpdate{ProductID: productID, Deleted: true})
}

// Reconcile overwrites the mirror entry of every product, whatever version it
// holds. Run it at startup so updates dropped before a restart do not linger.
func (s *StockSync) Reconcile(ctx context.Context, products []domain.Product) error {
	for _, p := range products {
		if s.cache != nil {
			if err := s.cache.ResetStock(ctx, p.ID); err != nil {
				return domain.Storage("reconcile stock mirror", err)
			}
		}
		if err := s.apply(ctx, StockUpdate{ProductID: p.ID, Quantity: p.Quantity, Version: p.Version}); err != nil {
			return domain.Storage("reconcile stock mirror", err)
		}
	}
	s.logger.Info("stock mirror reconciled", zap.Int("products", len(products)))
	return nil
}

// Close stops accepting updates and waits for the workers to drain the queue.
func (s *StockSync) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
