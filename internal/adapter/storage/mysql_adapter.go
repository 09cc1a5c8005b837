package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const productColumns = `id, name, description, category, price, quantity, version, created_at, updated_at`

// MySQLAdapter implements the catalog, ledger and account repositories on one
// connection pool.
type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	now := m.now()
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO products (name, description, category, price, quantity, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		p.Name, p.Description, p.Category, p.Price, p.Quantity, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, category = ?, price = ?, quantity = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Category, p.Price, p.Quantity, m.now(), p.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update product: %w", err)
	}

	// version always moves, so a matched row is always a changed row
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// ApplyAdjustment writes the new quantity and the transaction record in one
// database transaction, guarded by the version read by the caller.
func (m *MySQLAdapter) ApplyAdjustment(ctx context.Context, productID int64, expectedVersion, newQuantity int, st domain.StockTransaction) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		newQuantity, st.CreatedAt, productID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update product quantity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return port.ErrOptimisticLock
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_transactions (id, product_id, type, amount, quantity_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		st.ID, st.ProductID, string(st.Kind), st.Amount, st.QuantityAfter, st.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stock transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListTransactions(ctx context.Context, productID int64, limit int) ([]domain.StockTransaction, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, product_id, type, amount, quantity_after, created_at
		FROM stock_transactions
		WHERE product_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("query stock transactions: %w", err)
	}
	defer rows.Close()

	txs := []domain.StockTransaction{}
	for rows.Next() {
		var st domain.StockTransaction
		var kind string
		if err := rows.Scan(&st.ID, &st.ProductID, &kind, &st.Amount, &st.QuantityAfter, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock transaction: %w", err)
		}
		st.Kind = domain.Direction(kind)
		txs = append(txs, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock transactions: %w", err)
	}
	return txs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.Quantity, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
