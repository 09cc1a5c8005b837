package service

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// mockStore implements CatalogRepository and LedgerRepository over one map so
// the version check behaves like the database row.
type mockStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	txs      []domain.StockTransaction
	nextID   int64

	getErr        error
	applyErr      error
	conflictsLeft int // ApplyAdjustment reports a lock conflict this many times
	applyCalls    int
}

func newMockStore() *mockStore {
	return &mockStore{products: make(map[int64]domain.Product)}
}

func (m *mockStore) seed(p domain.Product) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return p
}

func (m *mockStore) quantity(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Quantity
}

func (m *mockStore) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	return m.seed(p).ID, nil
}

func (m *mockStore) UpdateProduct(ctx context.Context, p domain.Product) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.products[p.ID]
	if !ok {
		return false, nil
	}
	p.Version = cur.Version + 1
	m.products[p.ID] = p
	return true, nil
}

func (m *mockStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

func (m *mockStore) ApplyAdjustment(ctx context.Context, productID int64, expectedVersion, newQuantity int, tx domain.StockTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	if m.applyErr != nil {
		return m.applyErr
	}
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return port.ErrOptimisticLock
	}
	p, ok := m.products[productID]
	if !ok || p.Version != expectedVersion {
		return port.ErrOptimisticLock
	}
	p.Quantity = newQuantity
	p.Version++
	m.products[productID] = p
	m.txs = append(m.txs, tx)
	return nil
}

func (m *mockStore) ListTransactions(ctx context.Context, productID int64, limit int) ([]domain.StockTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StockTransaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].ProductID == productID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	stock          map[int64][2]int // quantity, version
	deleted        map[int64]bool
	getErr         error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		idempotencySet: make(map[string]bool),
		stock:          make(map[int64][2]int),
		deleted:        make(map[int64]bool),
	}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) SetStock(ctx context.Context, productID int64, quantity, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted[productID] {
		return nil
	}
	if cur, ok := m.stock[productID]; ok && cur[1] > version {
		return nil
	}
	m.stock[productID] = [2]int{quantity, version}
	return nil
}

func (m *mockCacheRepo) GetStock(ctx context.Context, productID int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, false, m.getErr
	}
	v, ok := m.stock[productID]
	return v[0], ok, nil
}

func (m *mockCacheRepo) DeleteStock(ctx context.Context, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stock, productID)
	m.deleted[productID] = true
	return nil
}

func (m *mockCacheRepo) ResetStock(ctx context.Context, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stock, productID)
	delete(m.deleted, productID)
	return nil
}

func (m *mockCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idempotencySet[key]
}

func (m *mockCacheRepo) stockOf(id int64) ([2]int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.stock[id]
	return v, ok
}

// Mock AccountRepository
type mockAccountRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
	err   error
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{users: make(map[string]domain.User)}
}

func (m *mockAccountRepo) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.users[u.Username]; ok {
		return nil, domain.Conflict("username %q already exists", u.Username)
	}
	u.ID = int64(len(m.users) + 1)
	m.users[u.Username] = u
	return &u, nil
}

func (m *mockAccountRepo) GetUser(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *mockAccountRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.User
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *mockAccountRepo) UpdateUser(ctx context.Context, username string, newUsername, newHash *string) (*domain.User, error) {
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
	if newHash != nil {
		u.PasswordHash = *newHash
	}
	m.users[u.Username] = u
	return &u, nil
}

func (m *mockAccountRepo) DeleteUser(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.users, username)
	return nil
}

// plainHasher keeps tests fast; it is not a real hash.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Verify(hash, password string) bool  { return hash == "hashed:"+password }
