package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const cartCreditColumns = `id, cart_id, reason, amount_cents, points, created_at`

func scanCartCredit(row interface{ Scan(dest ...any) error }) (CartCredit, error) {
	var c CartCredit
	err := row.Scan(&c.ID, &c.CartID, &c.Reason, &c.AmountCents, &c.Points, &c.CreatedAt)
	return c, err
}

// UpsertCartCreditParams are the inputs for UpsertCartCredit.
type UpsertCartCreditParams struct {
	CartID      pgtype.UUID
	Reason      string
	AmountCents int64
	Points      int32
}

// UpsertCartCredit creates or replaces the credit row for (cart, reason).
// Reapplication replaces, never accumulates.
func (q *Queries) UpsertCartCredit(ctx context.Context, arg UpsertCartCreditParams) (CartCredit, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO cart_credits (cart_id, reason, amount_cents, points)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, reason)
		DO UPDATE SET amount_cents = EXCLUDED.amount_cents, points = EXCLUDED.points, created_at = now()
		RETURNING `+cartCreditColumns,
		arg.CartID, arg.Reason, arg.AmountCents, arg.Points)
	return scanCartCredit(row)
}

// GetCartCreditParams are the inputs for GetCartCredit.
type GetCartCreditParams struct {
	CartID pgtype.UUID
	Reason string
}

// GetCartCredit fetches a single credit row.
func (q *Queries) GetCartCredit(ctx context.Context, arg GetCartCreditParams) (CartCredit, error) {
	row := q.db.QueryRow(ctx, `SELECT `+cartCreditColumns+` FROM cart_credits WHERE cart_id = $1 AND reason = $2`, arg.CartID, arg.Reason)
	return scanCartCredit(row)
}

// SumCartCredits totals all credit rows for a cart.
func (q *Queries) SumCartCredits(ctx context.Context, cartID pgtype.UUID) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM cart_credits WHERE cart_id = $1`, cartID).Scan(&total)
	return total, err
}

// ListCartCredits returns all credit rows for a cart.
func (q *Queries) ListCartCredits(ctx context.Context, cartID pgtype.UUID) ([]CartCredit, error) {
	rows, err := q.db.Query(ctx, `SELECT `+cartCreditColumns+` FROM cart_credits WHERE cart_id = $1 ORDER BY reason`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var credits []CartCredit
	for rows.Next() {
		credit, err := scanCartCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}
	return credits, rows.Err()
}

// DeleteCartCredits removes all credits for a cart. Called by the finalizer
// when credits are consumed into the order's discount.
func (q *Queries) DeleteCartCredits(ctx context.Context, cartID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_credits WHERE cart_id = $1`, cartID)
	return err
}
