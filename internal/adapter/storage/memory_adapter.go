package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// MemoryAdapter keeps products, users and transaction records in process. It
// honors the same version check as MySQLAdapter and is meant for local runs
// and handler tests.
type MemoryAdapter struct {
	mu         sync.Mutex
	products   map[int64]domain.Product
	users      map[string]domain.User
	txs        []domain.StockTransaction
	productSeq int64
	userSeq    int64
	now        func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products: make(map[int64]domain.Product),
		users:    make(map[string]domain.User),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.productSeq++
	now := m.now()
	p.ID = m.productSeq
	p.Version = 0
	p.CreatedAt = now
	p.UpdatedAt = now
	m.products[p.ID] = p
	return p.ID, nil
}

func (m *MemoryAdapter) UpdateProduct(ctx context.Context, p domain.Product) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.products[p.ID]
	if !ok {
		return false, nil
	}
	p.Version = cur.Version + 1
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = m.now()
	m.products[p.ID] = p
	return true, nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *MemoryAdapter) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.products, id)
	return nil
}

func (m *MemoryAdapter) ApplyAdjustment(ctx context.Context, productID int64, expectedVersion, newQuantity int, st domain.StockTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok || p.Version != expectedVersion {
		return port.ErrOptimisticLock
	}
	p.Quantity = newQuantity
	p.Version++
	p.UpdatedAt = st.CreatedAt
	m.products[productID] = p
	m.txs = append(m.txs, st)
	return nil
}

func (m *MemoryAdapter) ListTransactions(ctx context.Context, productID int64, limit int) ([]domain.StockTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := []domain.StockTransaction{}
	for i := len(m.txs) - 1; i >= 0 && len(txs) < limit; i-- {
		if m.txs[i].ProductID == productID {
			txs = append(txs, m.txs[i])
		}
	}
	return txs, nil
}

func (m *MemoryAdapter) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.Username]; ok {
		return nil, domain.Conflict("username %q already exists", u.Username)
	}
	m.userSeq++
	now := m.now()
	u.ID = m.userSeq
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.Username] = u
	return &u, nil
}

func (m *MemoryAdapter) GetUser(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryAdapter) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (m *MemoryAdapter) UpdateUser(ctx context.Context, username string, newUsername, newPasswordHash *string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	if newUsername != nil && *newUsername != username {
		if _, taken := m.users[*newUsername]; taken {
			return nil, domain.Conflict("username %q already exists", *newUsername)
		}
		delete(m.users, username)
		u.Username = *newUsername
	}
	if newPasswordHash != nil {
		u.PasswordHash = *newPasswordHash
	}
	u.UpdatedAt = m.now()
	m.users[u.Username] = u
	return &u, nil
}

func (m *MemoryAdapter) DeleteUser(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.users, username)
	return nil
}
