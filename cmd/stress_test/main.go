package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
)

// Fires concurrent deductions at one product and checks that exactly
// initialStock of them win, nothing is lost and every win is recorded.
func main() {
	useMemory := flag.Bool("memory", false, "run against the in-memory store instead of MySQL")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var catalog port.CatalogRepository
	var ledgerRepo port.LedgerRepository
	if *useMemory {
		mem := storage.NewMemoryAdapter()
		catalog, ledgerRepo = mem, mem
	} else {
		db, err := storage.OpenMySQL(ctx, storage.MySQLConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Name:     cfg.Database.Name,
		})
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		defer db.Close()

		migrator, err := storage.NewMigrator(db, zap.NewNop())
		if err != nil {
			log.Fatalf("failed to create migrator: %v", err)
		}
		if err := migrator.Up(); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		migrator.Close()

		adapter := storage.NewMySQLAdapter(db)
		catalog, ledgerRepo = adapter, adapter
	}

	products := service.NewCatalogService(catalog, nil)
	product, err := products.Upsert(ctx, domain.Product{
		Name:     fmt.Sprintf("stress-item-%d", time.Now().UnixNano()),
		Price:    decimal.NewFromInt(1),
		Quantity: initialStock,
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}
	defer products.Delete(ctx, product.ID)

	ledger := service.NewLedgerService(catalog, ledgerRepo, service.LedgerConfig{
		MaxRetries:   cfg.Ledger.MaxRetries * 10,
		RetryBackoff: cfg.Ledger.RetryBackoff,
	})

	// Counters
	var successCount, shortCount, conflictCount, errorCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := ledger.Adjust(ctx, service.AdjustCommand{
				ProductID: product.ID,
				Amount:    1,
				Direction: domain.DirectionDeduct,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				shortCount.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflictCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("adjust failed: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	short := shortCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:      %d\n", initialStock)
	fmt.Printf("Total Requests:     %d\n", totalRequests)
	fmt.Printf("Successful:         %d\n", success)
	fmt.Printf("Insufficient Stock: %d\n", short)
	fmt.Printf("Retry Exhausted:    %d\n", conflictCount.Load())
	fmt.Printf("Errors:             %d\n", errorCount.Load())
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialStock) && short == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d deductions succeeded, %d were refused\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d refused, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, short)
	}

	// Verify final stock and ledger
	final, err := products.Get(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to read product: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", final.Quantity)
	if final.Quantity == initialStock-int(success) {
		fmt.Println("PASS: No lost updates")
	} else {
		fmt.Printf("FAIL: Expected stock %d, got %d\n", initialStock-int(success), final.Quantity)
	}

	history, err := ledger.History(ctx, product.ID, totalRequests)
	if err != nil {
		log.Fatalf("failed to read history: %v", err)
	}
	if len(history) == int(success) {
		fmt.Println("PASS: Every committed deduction has a transaction record")
	} else {
		fmt.Printf("FAIL: Expected %d transaction records, got %d\n", success, len(history))
	}
}
