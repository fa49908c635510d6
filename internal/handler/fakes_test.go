package handler_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "handler_test_secret"

// メモリ上のストア。handlerテスト用
type memStore struct {
	mu       sync.Mutex
	products map[int64]model.Product
	orders   map[int64]model.Order
	items    map[int64][]model.OrderItem
	users    map[int64]*model.User
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		products: map[int64]model.Product{},
		orders:   map[int64]model.Order{},
		items:    map[int64][]model.OrderItem{},
		users:    map[int64]*model.User{},
	}
}

type memProducts struct{ s *memStore }

func (r memProducts) ListAll(context.Context) ([]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memProducts) FindByID(_ context.Context, id int64) (model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r memProducts) Create(_ context.Context, p model.Product) (model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.products {
		if existing.Sku == p.Sku {
			return model.Product{}, repo.ErrConflict
		}
	}
	r.s.nextID++
	p.ID = r.s.nextID
	r.s.products[p.ID] = p
	return p, nil
}

func (r memProducts) Update(_ context.Context, p model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.products[p.ID]
	if !ok {
		return repo.ErrNotFound
	}
	//gormのUpdatesと同じくcreated_atは変えない
	p.CreatedAt = cur.CreatedAt
	r.s.products[p.ID] = p
	return nil
}

func (r memProducts) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

type memOrders struct{ s *memStore }

func (r memOrders) FindByID(_ context.Context, id int64) (model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r memOrders) ListByUserID(_ context.Context, userID int64) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Order{}
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memOrders) Create(_ context.Context, o model.Order) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextID++
	o.ID = r.s.nextID
	o.Items = nil
	o.CreatedAt = time.Now()
	r.s.orders[o.ID] = o
	return o.ID, nil
}

func (r memOrders) SettleStatus(_ context.Context, id int64, status model.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return repo.ErrNotFound
	}
	o.Status = status
	r.s.orders[id] = o
	return nil
}

func (r memOrders) ListStalePending(context.Context, time.Time, int) ([]model.Order, error) {
	return nil, nil
}

type memItems struct{ s *memStore }

func (r memItems) CreateBulk(_ context.Context, orderID int64, items []model.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range items {
		items[i].OrderID = orderID
	}
	r.s.items[orderID] = append(r.s.items[orderID], items...)
	return nil
}

func (r memItems) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.items[orderID], nil
}

func (r memItems) ListByOrderIDs(_ context.Context, ids []int64) (map[int64][]model.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64][]model.OrderItem, len(ids))
	for _, id := range ids {
		out[id] = r.s.items[id]
	}
	return out, nil
}

type memUsers struct{ s *memStore }

func (r memUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return u, nil
}

type memTx struct{ s *memStore }

func (t memTx) Orders() repo.OrderRepository         { return memOrders(t) }
func (t memTx) OrderItems() repo.OrderItemRepository { return memItems(t) }
func (t memTx) Products() repo.ProductRepository     { return memProducts(t) }

func (t memTx) WithinTx(_ context.Context, fn func(r repo.TxRepos) error) error {
	return fn(t)
}

// 決済は結果を固定で返す
type stubGateway struct {
	paid  bool
	calls int
}

func (g *stubGateway) Charge(context.Context, model.Money, string) bool {
	g.calls++
	return g.paid
}

func bearer(t *testing.T, userID int64, role model.Role) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"tv":   0,
		"exp":  9999999999,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return "Bearer " + tok
}

var (
	_ repo.ProductRepository   = memProducts{}
	_ repo.OrderRepository     = memOrders{}
	_ repo.OrderItemRepository = memItems{}
	_ repo.UserRepository      = memUsers{}
	_ repo.TransactionManager  = memTx{}
)
