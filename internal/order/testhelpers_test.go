package order

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/printworks/storefront-api/internal/store"
)

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "orders_provider_provider_id_key"}
}

// mockOrderStore is an in-memory Store/TxStore. InOrderTx snapshots state and
// restores it when fn fails, mirroring a rollback. CreateOrder enforces the
// same unique constraints as the schema.
type mockOrderStore struct {
	mu      sync.Mutex
	carts   map[pgtype.UUID]store.Cart
	lines   map[pgtype.UUID][]store.CartLine
	credits map[pgtype.UUID]int64
	orders  []store.Order
	items   map[pgtype.UUID][]store.OrderItem

	failOrderItem   bool
	failCreateOrder error
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		carts:   map[pgtype.UUID]store.Cart{},
		lines:   map[pgtype.UUID][]store.CartLine{},
		credits: map[pgtype.UUID]int64{},
		items:   map[pgtype.UUID][]store.OrderItem{},
	}
}

func (m *mockOrderStore) addCart(sid string, userID pgtype.UUID, shipping []byte) store.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := store.Cart{
		ID:               newID(),
		SID:              sid,
		UserID:           userID,
		Status:           store.CartStatusOpen,
		Currency:         "USD",
		SelectedShipping: shipping,
	}
	m.carts[c.ID] = c
	return c
}

func (m *mockOrderStore) addLine(cartID pgtype.UUID, productID string, qty int32, unit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[cartID] = append(m.lines[cartID], store.CartLine{
		ID:             newID(),
		CartID:         cartID,
		ProductID:      productID,
		Quantity:       qty,
		UnitPriceCents: unit,
		LineTotalCents: unit * int64(qty),
		Currency:       "USD",
	})
}

func (m *mockOrderStore) GetOrderByProvider(_ context.Context, arg store.GetOrderByProviderParams) (store.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Provider == arg.Provider && o.ProviderID == arg.ProviderID {
			return o, nil
		}
	}
	return store.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) GetOrderByCart(_ context.Context, cartID pgtype.UUID) (store.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.CartID == cartID {
			return o, nil
		}
	}
	return store.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) GetCartByID(_ context.Context, id pgtype.UUID) (store.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockOrderStore) GetOpenCartBySID(_ context.Context, sid string) (store.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.carts {
		if c.SID == sid && c.Status != store.CartStatusClosed {
			return c, nil
		}
	}
	return store.Cart{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListCartLines(_ context.Context, cartID pgtype.UUID) ([]store.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.CartLine(nil), m.lines[cartID]...), nil
}

func (m *mockOrderStore) SumCartCredits(_ context.Context, cartID pgtype.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits[cartID], nil
}

func (m *mockOrderStore) InOrderTx(_ context.Context, fn func(tx TxStore) error) error {
	m.mu.Lock()
	snapCarts := map[pgtype.UUID]store.Cart{}
	for k, v := range m.carts {
		snapCarts[k] = v
	}
	snapCredits := map[pgtype.UUID]int64{}
	for k, v := range m.credits {
		snapCredits[k] = v
	}
	snapOrders := append([]store.Order(nil), m.orders...)
	snapItems := map[pgtype.UUID][]store.OrderItem{}
	for k, v := range m.items {
		snapItems[k] = append([]store.OrderItem(nil), v...)
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.carts = snapCarts
		m.credits = snapCredits
		m.orders = snapOrders
		m.items = snapItems
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *mockOrderStore) GetCartForUpdate(ctx context.Context, id pgtype.UUID) (store.Cart, error) {
	return m.GetCartByID(ctx, id)
}

func (m *mockOrderStore) CreateOrder(_ context.Context, arg store.CreateOrderParams) (store.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateOrder != nil {
		err := m.failCreateOrder
		m.failCreateOrder = nil
		return store.Order{}, err
	}
	for _, o := range m.orders {
		if (o.Provider == arg.Provider && o.ProviderID == arg.ProviderID) || o.CartID == arg.CartID {
			return store.Order{}, uniqueViolation()
		}
	}
	o := store.Order{
		ID:            newID(),
		OwnerID:       arg.OwnerID,
		CartID:        arg.CartID,
		Provider:      arg.Provider,
		ProviderID:    arg.ProviderID,
		Currency:      arg.Currency,
		SubtotalCents: arg.SubtotalCents,
		ShippingCents: arg.ShippingCents,
		TaxCents:      arg.TaxCents,
		DiscountCents: arg.DiscountCents,
		CreditsCents:  arg.CreditsCents,
		TotalCents:    arg.TotalCents,
		TaxSource:     arg.TaxSource,
		Status:        arg.Status,
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *mockOrderStore) CreateOrderItem(_ context.Context, arg store.CreateOrderItemParams) (store.OrderItem, error) {
	if m.failOrderItem {
		return store.OrderItem{}, pgx.ErrTxClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it := store.OrderItem{
		ID:             newID(),
		OrderID:        arg.OrderID,
		ProductID:      arg.ProductID,
		Quantity:       arg.Quantity,
		UnitPriceCents: arg.UnitPriceCents,
		LineTotalCents: arg.LineTotalCents,
		OptionIDs:      arg.OptionIDs,
	}
	m.items[arg.OrderID] = append(m.items[arg.OrderID], it)
	return it, nil
}

func (m *mockOrderStore) CloseCart(_ context.Context, id pgtype.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = store.CartStatusClosed
	m.carts[id] = c
	return nil
}

func (m *mockOrderStore) DeleteCartCredits(_ context.Context, cartID pgtype.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.credits, cartID)
	return nil
}
