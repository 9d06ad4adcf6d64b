package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const cartColumns = `id, sid, user_id, status, currency, selected_shipping, created_at, updated_at`

func scanCart(row interface{ Scan(dest ...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.SID, &c.UserID, &c.Status, &c.Currency, &c.SelectedShipping, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCartParams are the inputs for CreateCart.
type CreateCartParams struct {
	SID      string
	UserID   pgtype.UUID
	Currency string
}

// CreateCart inserts a new open cart.
func (q *Queries) CreateCart(ctx context.Context, arg CreateCartParams) (Cart, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO carts (sid, user_id, status, currency)
		VALUES ($1, $2, 'open', $3)
		RETURNING `+cartColumns,
		arg.SID, arg.UserID, arg.Currency)
	return scanCart(row)
}

// GetCartByID fetches a cart by primary key.
func (q *Queries) GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// GetOpenCartBySID returns the most recent non-closed cart for a session key.
func (q *Queries) GetOpenCartBySID(ctx context.Context, sid string) (Cart, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE sid = $1 AND status <> 'closed'
		ORDER BY created_at DESC
		LIMIT 1`, sid)
	return scanCart(row)
}

// GetOpenCartByUser returns the most recent non-closed cart bound to a user.
func (q *Queries) GetOpenCartByUser(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE user_id = $1 AND status <> 'closed'
		ORDER BY created_at DESC
		LIMIT 1`, userID)
	return scanCart(row)
}

// GetCartForUpdate locks the cart row for the duration of the transaction.
func (q *Queries) GetCartForUpdate(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, id)
	return scanCart(row)
}

// BindCartUserParams are the inputs for BindCartUser.
type BindCartUserParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

// BindCartUser attaches an authenticated user to a guest cart.
func (q *Queries) BindCartUser(ctx context.Context, arg BindCartUserParams) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET user_id = $2, updated_at = now() WHERE id = $1`, arg.ID, arg.UserID)
	return err
}

// UpdateCartShippingParams are the inputs for UpdateCartShipping.
type UpdateCartShippingParams struct {
	ID               pgtype.UUID
	SelectedShipping []byte
}

// UpdateCartShipping stores the selected shipping choice as JSON.
func (q *Queries) UpdateCartShipping(ctx context.Context, arg UpdateCartShippingParams) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET selected_shipping = $2, updated_at = now() WHERE id = $1`, arg.ID, arg.SelectedShipping)
	return err
}

// CloseCart transitions a cart to closed. Called only by the order finalizer
// inside the finalization transaction.
func (q *Queries) CloseCart(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET status = 'closed', updated_at = now() WHERE id = $1`, id)
	return err
}
