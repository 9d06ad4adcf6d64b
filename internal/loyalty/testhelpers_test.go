package loyalty

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/printworks/storefront-api/internal/store"
)

// mockStore is an in-memory Store. InWalletTx applies fn directly; a returned
// error discards nothing because each mutation already wrote, so tests that
// need rollback semantics snapshot state first.
type mockStore struct {
	mu      sync.Mutex
	wallets map[string]store.LoyaltyWallet
	txns    []store.LoyaltyTransaction
}

func newMockStore() *mockStore {
	return &mockStore{wallets: map[string]store.LoyaltyWallet{}}
}

func (m *mockStore) GetWallet(_ context.Context, customerID string) (store.LoyaltyWallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[customerID]
	if !ok {
		return store.LoyaltyWallet{}, pgx.ErrNoRows
	}
	return w, nil
}

func (m *mockStore) ListLoyaltyTransactions(_ context.Context, customerID string) ([]store.LoyaltyTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.LoyaltyTransaction
	for i := len(m.txns) - 1; i >= 0; i-- {
		if m.txns[i].CustomerID == customerID {
			out = append(out, m.txns[i])
		}
	}
	return out, nil
}

func (m *mockStore) InWalletTx(_ context.Context, fn func(tx WalletTx) error) error {
	return fn(m)
}

func (m *mockStore) GetWalletForUpdate(ctx context.Context, customerID string) (store.LoyaltyWallet, error) {
	return m.GetWallet(ctx, customerID)
}

func (m *mockStore) CreateWallet(_ context.Context, customerID string) (store.LoyaltyWallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := store.LoyaltyWallet{
		ID:         pgtype.UUID{Bytes: uuid.New(), Valid: true},
		CustomerID: customerID,
	}
	m.wallets[customerID] = w
	return w, nil
}

func (m *mockStore) UpdateWallet(_ context.Context, arg store.UpdateWalletParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, w := range m.wallets {
		if w.ID == arg.ID {
			w.PointsBalance = arg.PointsBalance
			w.LifetimeEarned = arg.LifetimeEarned
			w.LifetimeRedeemed = arg.LifetimeRedeemed
			m.wallets[key] = w
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockStore) InsertLoyaltyTransaction(_ context.Context, arg store.InsertLoyaltyTransactionParams) (store.LoyaltyTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := store.LoyaltyTransaction{
		ID:         pgtype.UUID{Bytes: uuid.New(), Valid: true},
		WalletID:   arg.WalletID,
		CustomerID: arg.CustomerID,
		Points:     arg.Points,
		Type:       arg.Type,
		Note:       arg.Note,
		OrderID:    arg.OrderID,
	}
	m.txns = append(m.txns, t)
	return t, nil
}
