package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, owner_id, cart_id, provider, provider_id, currency, subtotal_cents, shipping_cents, tax_cents, discount_cents, credits_cents, total_cents, tax_source, status, placed_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OwnerID, &o.CartID, &o.Provider, &o.ProviderID, &o.Currency,
		&o.SubtotalCents, &o.ShippingCents, &o.TaxCents, &o.DiscountCents, &o.CreditsCents,
		&o.TotalCents, &o.TaxSource, &o.Status, &o.PlacedAt)
	return o, err
}

// CreateOrderParams are the inputs for CreateOrder.
type CreateOrderParams struct {
	OwnerID       string
	CartID        pgtype.UUID
	Provider      string
	ProviderID    string
	Currency      string
	SubtotalCents int64
	ShippingCents int64
	TaxCents      int64
	DiscountCents int64
	CreditsCents  int64
	TotalCents    int64
	TaxSource     string
	Status        string
}

// CreateOrder inserts the immutable order record. Unique constraints on
// (provider, provider_id) and on cart_id back the finalizer's idempotency.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (owner_id, cart_id, provider, provider_id, currency,
			subtotal_cents, shipping_cents, tax_cents, discount_cents, credits_cents,
			total_cents, tax_source, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+orderColumns,
		arg.OwnerID, arg.CartID, arg.Provider, arg.ProviderID, arg.Currency,
		arg.SubtotalCents, arg.ShippingCents, arg.TaxCents, arg.DiscountCents, arg.CreditsCents,
		arg.TotalCents, arg.TaxSource, arg.Status)
	return scanOrder(row)
}

// GetOrderByProviderParams are the inputs for GetOrderByProvider.
type GetOrderByProviderParams struct {
	Provider   string
	ProviderID string
}

// GetOrderByProvider looks up an order by the payment provider's reference.
func (q *Queries) GetOrderByProvider(ctx context.Context, arg GetOrderByProviderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE provider = $1 AND provider_id = $2`, arg.Provider, arg.ProviderID)
	return scanOrder(row)
}

// GetOrderByCart looks up the order produced from a cart, if any.
func (q *Queries) GetOrderByCart(ctx context.Context, cartID pgtype.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE cart_id = $1`, cartID)
	return scanOrder(row)
}

// GetOrderByID fetches an order by primary key.
func (q *Queries) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrdersByOwner returns an owner's orders, newest first.
func (q *Queries) ListOrdersByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE owner_id = $1 ORDER BY placed_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CreateOrderItemParams are the inputs for CreateOrderItem.
type CreateOrderItemParams struct {
	OrderID        pgtype.UUID
	ProductID      string
	Quantity       int32
	UnitPriceCents int64
	LineTotalCents int64
	OptionIDs      []string
}

// CreateOrderItem snapshots a cart line onto an order.
func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents, line_total_cents, option_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_id, product_id, quantity, unit_price_cents, line_total_cents, option_ids`,
		arg.OrderID, arg.ProductID, arg.Quantity, arg.UnitPriceCents, arg.LineTotalCents, arg.OptionIDs)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.LineTotalCents, &it.OptionIDs)
	return it, err
}

// ListOrderItems returns the items of an order in insertion order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price_cents, line_total_cents, option_ids
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.LineTotalCents, &it.OptionIDs); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
