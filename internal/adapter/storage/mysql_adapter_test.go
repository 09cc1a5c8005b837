package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/stockledger?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	migrator, err := NewMigrator(db, zap.NewNop())
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	defer migrator.Close()
	if err := migrator.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	return db
}

func TestProductLifecycle(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	id, err := adapter.CreateProduct(ctx, domain.Product{
		Name:     "lifecycle-tea",
		Category: "drinks",
		Price:    decimal.RequireFromString("4.50"),
		Quantity: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	defer adapter.DeleteProduct(ctx, id)

	p, err := adapter.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if p == nil {
		t.Fatal("expected product, got nil")
	}
	if !p.Price.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("expected price 4.50, got %s", p.Price)
	}
	if p.Version != 0 {
		t.Errorf("expected version 0, got %d", p.Version)
	}

	p.Name = "lifecycle-green-tea"
	found, err := adapter.UpdateProduct(ctx, *p)
	if err != nil || !found {
		t.Fatalf("UpdateProduct failed: found=%v err=%v", found, err)
	}

	p, _ = adapter.GetProduct(ctx, id)
	if p.Version != 1 {
		t.Errorf("expected version 1, got %d", p.Version)
	}

	if err := adapter.DeleteProduct(ctx, id); err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}
	// Deleting again is not an error
	if err := adapter.DeleteProduct(ctx, id); err != nil {
		t.Fatalf("second DeleteProduct failed: %v", err)
	}

	p, err = adapter.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Error("expected nil for deleted product")
	}
}

func TestApplyAdjustment_OptimisticLock(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	id, err := adapter.CreateProduct(ctx, domain.Product{Name: "lock-test-item", Quantity: 100})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM stock_transactions WHERE product_id = ?`, id)
	defer adapter.DeleteProduct(ctx, id)

	// Update with correct version
	st := domain.NewStockTransaction(id, domain.DirectionDeduct, 10, 90, time.Now())
	if err := adapter.ApplyAdjustment(ctx, id, 0, 90, st); err != nil {
		t.Fatalf("ApplyAdjustment failed: %v", err)
	}

	var version, quantity int
	db.QueryRowContext(ctx, `SELECT version, quantity FROM products WHERE id = ?`, id).Scan(&version, &quantity)
	if version != 1 || quantity != 90 {
		t.Errorf("expected version 1 quantity 90, got %d %d", version, quantity)
	}

	// Try update with stale version
	stale := domain.NewStockTransaction(id, domain.DirectionDeduct, 10, 90, time.Now())
	err = adapter.ApplyAdjustment(ctx, id, 0, 90, stale)
	if err != port.ErrOptimisticLock {
		t.Errorf("expected ErrOptimisticLock, got: %v", err)
	}

	txs, err := adapter.ListTransactions(ctx, id, 10)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].ID != st.ID || txs[0].QuantityAfter != 90 {
		t.Errorf("unexpected transaction: %+v", txs[0])
	}
}

func TestUserUniqueness(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	db.ExecContext(ctx, `DELETE FROM users WHERE username IN ('uniq-alice', 'uniq-bob')`)
	defer db.ExecContext(ctx, `DELETE FROM users WHERE username IN ('uniq-alice', 'uniq-bob')`)

	if _, err := adapter.CreateUser(ctx, domain.User{Username: "uniq-alice", PasswordHash: "h1"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := adapter.CreateUser(ctx, domain.User{Username: "uniq-bob", PasswordHash: "h2"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, err := adapter.CreateUser(ctx, domain.User{Username: "uniq-alice", PasswordHash: "h3"})
	if domain.KindOf(err) != domain.KindConflict {
		t.Errorf("expected conflict, got %v", err)
	}

	bob := "uniq-bob"
	_, err = adapter.UpdateUser(ctx, "uniq-alice", &bob, nil)
	if domain.KindOf(err) != domain.KindConflict {
		t.Errorf("expected conflict on rename, got %v", err)
	}

	u, _ := adapter.GetUser(ctx, "uniq-alice")
	if u == nil || u.PasswordHash != "h1" {
		t.Errorf("expected original user untouched, got %+v", u)
	}
}
