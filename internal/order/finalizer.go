// Package order turns paid carts into immutable orders. Finalization is
// idempotent at two levels: the processor's payment reference and the cart
// itself each admit at most one order, enforced both by pre-checks and by
// unique constraints inside the finalization transaction.
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/cart"
	"github.com/printworks/storefront-api/internal/events"
	"github.com/printworks/storefront-api/internal/loyalty"
	"github.com/printworks/storefront-api/internal/obs"
	"github.com/printworks/storefront-api/internal/payment"
	"github.com/printworks/storefront-api/internal/store"
	"github.com/printworks/storefront-api/internal/tax"
)

// TxStore is the transactional surface of a finalization.
type TxStore interface {
	GetCartForUpdate(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	GetOrderByProvider(ctx context.Context, arg store.GetOrderByProviderParams) (store.Order, error)
	GetOrderByCart(ctx context.Context, cartID pgtype.UUID) (store.Order, error)
	CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error)
	CreateOrderItem(ctx context.Context, arg store.CreateOrderItemParams) (store.OrderItem, error)
	CloseCart(ctx context.Context, id pgtype.UUID) error
	DeleteCartCredits(ctx context.Context, cartID pgtype.UUID) error
}

// Store is the persistence surface the finalizer needs.
type Store interface {
	GetOrderByProvider(ctx context.Context, arg store.GetOrderByProviderParams) (store.Order, error)
	GetOrderByCart(ctx context.Context, cartID pgtype.UUID) (store.Order, error)
	GetCartByID(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	GetOpenCartBySID(ctx context.Context, sid string) (store.Cart, error)
	ListCartLines(ctx context.Context, cartID pgtype.UUID) ([]store.CartLine, error)
	SumCartCredits(ctx context.Context, cartID pgtype.UUID) (int64, error)
	InOrderTx(ctx context.Context, fn func(tx TxStore) error) error
}

type pgStore struct{ s *store.Store }

// NewPgStore adapts the pgx store to the finalizer's persistence surface.
func NewPgStore(s *store.Store) Store {
	return pgStore{s: s}
}

func (p pgStore) GetOrderByProvider(ctx context.Context, arg store.GetOrderByProviderParams) (store.Order, error) {
	return p.s.GetOrderByProvider(ctx, arg)
}

func (p pgStore) GetOrderByCart(ctx context.Context, cartID pgtype.UUID) (store.Order, error) {
	return p.s.GetOrderByCart(ctx, cartID)
}

func (p pgStore) GetCartByID(ctx context.Context, id pgtype.UUID) (store.Cart, error) {
	return p.s.GetCartByID(ctx, id)
}

func (p pgStore) GetOpenCartBySID(ctx context.Context, sid string) (store.Cart, error) {
	return p.s.GetOpenCartBySID(ctx, sid)
}

func (p pgStore) ListCartLines(ctx context.Context, cartID pgtype.UUID) ([]store.CartLine, error) {
	return p.s.ListCartLines(ctx, cartID)
}

func (p pgStore) SumCartCredits(ctx context.Context, cartID pgtype.UUID) (int64, error) {
	return p.s.SumCartCredits(ctx, cartID)
}

func (p pgStore) InOrderTx(ctx context.Context, fn func(tx TxStore) error) error {
	return p.s.InTx(ctx, func(q *store.Queries) error {
		return fn(q)
	})
}

// errRaced aborts the transaction when a concurrent finalization won the
// unique-constraint race; the winner's order is looked up afterwards.
var errRaced = errors.New("order: lost finalization race")

// Finalizer creates orders from verified payment events.
type Finalizer struct {
	S   Store
	Tax tax.Reconciler
	// Journal records order.paid events; optional.
	Journal *events.Journal
	// EnqueueAccrual schedules loyalty point accrual after commit; optional.
	EnqueueAccrual func(ctx context.Context, p loyalty.AccruePayload) error
	Log            zerolog.Logger
}

// Finalize creates the order for a payment event. It returns the order id,
// or "" when the event matched no cart. Calling it again with the same event
// (or a different event for the same cart) returns the existing order's id.
func (f *Finalizer) Finalize(ctx context.Context, evt payment.Event) (string, error) {
	if f == nil || f.S == nil {
		return "", errors.New("order finalizer not configured")
	}

	providerName := evt.Provider
	if providerName == "" {
		providerName = "stripe"
	}
	providerID := evt.ProviderID
	if providerID == "" {
		providerID = evt.SessionID
	}
	if providerID == "" {
		return "", fmt.Errorf("order: event %s carries no payment reference", evt.Type)
	}
	providerKey := store.GetOrderByProviderParams{Provider: providerName, ProviderID: providerID}

	if existing, err := f.S.GetOrderByProvider(ctx, providerKey); err == nil {
		f.count("already_finalized")
		return store.UUIDString(existing.ID), nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	c, found, err := f.resolveCart(ctx, evt)
	if err != nil {
		return "", err
	}
	if !found {
		f.count("no_cart")
		return "", nil
	}

	if c.Status == store.CartStatusClosed {
		if existing, err := f.S.GetOrderByCart(ctx, c.ID); err == nil {
			f.count("already_finalized")
			return store.UUIDString(existing.ID), nil
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return "", err
		}
		f.count("no_cart")
		return "", nil
	}

	lines, err := f.S.ListCartLines(ctx, c.ID)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		f.Log.Warn().Str("cart_id", store.UUIDString(c.ID)).Msg("paid cart has no lines")
		f.count("no_cart")
		return "", nil
	}
	credits, err := f.S.SumCartCredits(ctx, c.ID)
	if err != nil {
		return "", err
	}

	subtotal := cart.SubtotalCents(lines)
	shipping := cart.ShippingCents(c.SelectedShipping)
	net := subtotal - credits
	if net < 0 {
		net = 0
	}
	taxRes := f.Tax.Resolve(ctx, evt.TaxCalculationID, net, shipping, evt.AmountCents)
	total := net + shipping + taxRes.Cents

	if evt.AmountCents != nil && *evt.AmountCents != total {
		f.Log.Warn().
			Str("cart_id", store.UUIDString(c.ID)).
			Int64("computed_total", total).
			Int64("charged_total", *evt.AmountCents).
			Str("tax_source", taxRes.Source).
			Msg("order total differs from charged amount")
		if obs.OrderTotalMismatchTotal != nil {
			obs.OrderTotalMismatchTotal.Inc()
		}
	}

	ownerID := c.SID
	if c.UserID.Valid {
		ownerID = store.UUIDString(c.UserID)
	}

	var finalized store.Order
	err = f.S.InOrderTx(ctx, func(tx TxStore) error {
		locked, err := tx.GetCartForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		if locked.Status == store.CartStatusClosed {
			return errRaced
		}
		if _, err := tx.GetOrderByProvider(ctx, providerKey); err == nil {
			return errRaced
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		o, err := tx.CreateOrder(ctx, store.CreateOrderParams{
			OwnerID:       ownerID,
			CartID:        c.ID,
			Provider:      providerName,
			ProviderID:    providerID,
			Currency:      c.Currency,
			SubtotalCents: subtotal,
			ShippingCents: shipping,
			TaxCents:      taxRes.Cents,
			DiscountCents: credits,
			CreditsCents:  credits,
			TotalCents:    total,
			TaxSource:     taxRes.Source,
			Status:        store.OrderStatusPaid,
		})
		if store.IsUniqueViolation(err) {
			return errRaced
		}
		if err != nil {
			return err
		}
		for _, l := range lines {
			// Snapshot the same effective total the subtotal was built from,
			// so item rows always sum to the order subtotal.
			if _, err := tx.CreateOrderItem(ctx, store.CreateOrderItemParams{
				OrderID:        o.ID,
				ProductID:      l.ProductID,
				Quantity:       l.Quantity,
				UnitPriceCents: l.UnitPriceCents,
				LineTotalCents: cart.LineTotalCents(l),
				OptionIDs:      l.OptionIDs,
			}); err != nil {
				return err
			}
		}
		if err := tx.CloseCart(ctx, c.ID); err != nil {
			return err
		}
		if err := tx.DeleteCartCredits(ctx, c.ID); err != nil {
			return err
		}
		finalized = o
		return nil
	})
	if errors.Is(err, errRaced) {
		return f.lookupWinner(ctx, providerKey, c.ID)
	}
	if err != nil {
		f.count("error")
		return "", err
	}

	f.count("created")
	orderID := store.UUIDString(finalized.ID)
	f.Log.Info().
		Str("order_id", orderID).
		Str("cart_id", store.UUIDString(c.ID)).
		Str("owner_id", ownerID).
		Int64("total_cents", total).
		Str("tax_source", taxRes.Source).
		Msg("order finalized")

	f.Journal.Emit(ctx, events.TopicOrderPaid, finalized.ID, map[string]any{
		"orderId":    orderID,
		"cartId":     store.UUIDString(c.ID),
		"ownerId":    ownerID,
		"totalCents": total,
		"currency":   finalized.Currency,
		"taxSource":  taxRes.Source,
	})

	if f.EnqueueAccrual != nil && c.UserID.Valid {
		if err := f.EnqueueAccrual(ctx, loyalty.AccruePayload{
			CustomerID:  store.UUIDString(c.UserID),
			OrderID:     orderID,
			AmountCents: total,
			Currency:    finalized.Currency,
		}); err != nil {
			f.Log.Error().Err(err).Str("order_id", orderID).Msg("loyalty accrual enqueue failed")
		}
	}
	return orderID, nil
}

func (f *Finalizer) resolveCart(ctx context.Context, evt payment.Event) (store.Cart, bool, error) {
	if evt.CartID != "" {
		id := store.ToUUID(evt.CartID)
		if id.Valid {
			c, err := f.S.GetCartByID(ctx, id)
			if err == nil {
				return c, true, nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return store.Cart{}, false, err
			}
		}
	}
	if evt.SID != "" {
		c, err := f.S.GetOpenCartBySID(ctx, evt.SID)
		if err == nil {
			return c, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, false, err
		}
	}
	return store.Cart{}, false, nil
}

func (f *Finalizer) lookupWinner(ctx context.Context, providerKey store.GetOrderByProviderParams, cartID pgtype.UUID) (string, error) {
	if existing, err := f.S.GetOrderByProvider(ctx, providerKey); err == nil {
		f.count("already_finalized")
		return store.UUIDString(existing.ID), nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	existing, err := f.S.GetOrderByCart(ctx, cartID)
	if err != nil {
		f.count("error")
		return "", fmt.Errorf("order: finalization raced but winner not found: %w", err)
	}
	f.count("already_finalized")
	return store.UUIDString(existing.ID), nil
}

func (f *Finalizer) count(result string) {
	if obs.OrdersFinalizedTotal != nil {
		obs.OrdersFinalizedTotal.WithLabelValues(result).Inc()
	}
}
