package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/printworks/storefront-api/internal/options"
	"github.com/printworks/storefront-api/internal/printvendor"
	"github.com/printworks/storefront-api/internal/store"
)

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

type mockQueries struct {
	mu      sync.Mutex
	carts   map[pgtype.UUID]store.Cart
	lines   map[pgtype.UUID]store.CartLine
	credits map[pgtype.UUID]map[string]store.CartCredit

	failUpsertCredit error
}

func newMockQueries() *mockQueries {
	return &mockQueries{
		carts:   map[pgtype.UUID]store.Cart{},
		lines:   map[pgtype.UUID]store.CartLine{},
		credits: map[pgtype.UUID]map[string]store.CartCredit{},
	}
}

func (m *mockQueries) CreateCart(_ context.Context, arg store.CreateCartParams) (store.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := store.Cart{
		ID:       newID(),
		SID:      arg.SID,
		UserID:   arg.UserID,
		Status:   store.CartStatusOpen,
		Currency: arg.Currency,
	}
	m.carts[c.ID] = c
	return c, nil
}

func (m *mockQueries) GetCartByID(_ context.Context, id pgtype.UUID) (store.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockQueries) GetOpenCartBySID(_ context.Context, sid string) (store.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.carts {
		if c.SID == sid && c.Status != store.CartStatusClosed {
			return c, nil
		}
	}
	return store.Cart{}, pgx.ErrNoRows
}

func (m *mockQueries) GetOpenCartByUser(_ context.Context, userID pgtype.UUID) (store.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.carts {
		if c.UserID == userID && c.UserID.Valid && c.Status != store.CartStatusClosed {
			return c, nil
		}
	}
	return store.Cart{}, pgx.ErrNoRows
}

func (m *mockQueries) BindCartUser(_ context.Context, arg store.BindCartUserParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.UserID = arg.UserID
	m.carts[arg.ID] = c
	return nil
}

func (m *mockQueries) UpdateCartShipping(_ context.Context, arg store.UpdateCartShippingParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.SelectedShipping = arg.SelectedShipping
	m.carts[arg.ID] = c
	return nil
}

func (m *mockQueries) CreateCartLine(_ context.Context, arg store.CreateCartLineParams) (store.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := store.CartLine{
		ID:             newID(),
		CartID:         arg.CartID,
		ProductID:      arg.ProductID,
		Quantity:       arg.Quantity,
		OptionIDs:      arg.OptionIDs,
		UnitPriceCents: arg.UnitPriceCents,
		LineTotalCents: arg.LineTotalCents,
		Currency:       arg.Currency,
		ArtworkRefs:    arg.ArtworkRefs,
	}
	m.lines[l.ID] = l
	return l, nil
}

func (m *mockQueries) GetCartLineByID(_ context.Context, id pgtype.UUID) (store.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[id]
	if !ok {
		return store.CartLine{}, pgx.ErrNoRows
	}
	return l, nil
}

func (m *mockQueries) UpdateCartLine(_ context.Context, arg store.UpdateCartLineParams) (store.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[arg.ID]
	if !ok {
		return store.CartLine{}, pgx.ErrNoRows
	}
	l.Quantity = arg.Quantity
	l.OptionIDs = arg.OptionIDs
	l.UnitPriceCents = arg.UnitPriceCents
	l.LineTotalCents = arg.LineTotalCents
	m.lines[arg.ID] = l
	return l, nil
}

func (m *mockQueries) DeleteCartLine(_ context.Context, arg store.DeleteCartLineParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[arg.ID]
	if !ok || l.CartID != arg.CartID {
		return nil
	}
	delete(m.lines, arg.ID)
	return nil
}

func (m *mockQueries) ListCartLines(_ context.Context, cartID pgtype.UUID) ([]store.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.CartLine
	for _, l := range m.lines {
		if l.CartID == cartID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockQueries) UpsertCartCredit(_ context.Context, arg store.UpsertCartCreditParams) (store.CartCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsertCredit != nil {
		return store.CartCredit{}, m.failUpsertCredit
	}
	byReason, ok := m.credits[arg.CartID]
	if !ok {
		byReason = map[string]store.CartCredit{}
		m.credits[arg.CartID] = byReason
	}
	credit, ok := byReason[arg.Reason]
	if !ok {
		credit = store.CartCredit{ID: newID(), CartID: arg.CartID, Reason: arg.Reason}
	}
	credit.AmountCents = arg.AmountCents
	credit.Points = arg.Points
	byReason[arg.Reason] = credit
	return credit, nil
}

func (m *mockQueries) GetCartCredit(_ context.Context, arg store.GetCartCreditParams) (store.CartCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	credit, ok := m.credits[arg.CartID][arg.Reason]
	if !ok {
		return store.CartCredit{}, pgx.ErrNoRows
	}
	return credit, nil
}

func (m *mockQueries) ListCartCredits(_ context.Context, cartID pgtype.UUID) ([]store.CartCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.CartCredit
	for _, credit := range m.credits[cartID] {
		out = append(out, credit)
	}
	return out, nil
}

func (m *mockQueries) SumCartCredits(_ context.Context, cartID pgtype.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, credit := range m.credits[cartID] {
		total += credit.AmountCents
	}
	return total, nil
}

// fakeVendor serves canned option groups, prices and rates.
type fakeVendor struct {
	groups map[string][]options.Group
	prices map[string]int64
	rates  []printvendor.Rate

	priceErr error
}

func (f *fakeVendor) OptionGroups(_ context.Context, productID string) ([]options.Group, error) {
	return f.groups[productID], nil
}

func (f *fakeVendor) Price(_ context.Context, productID string, _ map[string]string) (int64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.prices[productID], nil
}

func (f *fakeVendor) ShippingEstimate(_ context.Context, _ []printvendor.QuoteItem, _ printvendor.Address) ([]printvendor.Rate, error) {
	if len(f.rates) == 0 {
		return nil, printvendor.ErrShippingUnavailable
	}
	return f.rates, nil
}
