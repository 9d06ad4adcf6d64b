package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const cartLineColumns = `id, cart_id, product_id, quantity, option_ids, unit_price_cents, line_total_cents, currency, artwork_refs, created_at, updated_at`

func scanCartLine(row interface{ Scan(dest ...any) error }) (CartLine, error) {
	var l CartLine
	err := row.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.OptionIDs, &l.UnitPriceCents, &l.LineTotalCents, &l.Currency, &l.ArtworkRefs, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// CreateCartLineParams are the inputs for CreateCartLine.
type CreateCartLineParams struct {
	CartID         pgtype.UUID
	ProductID      string
	Quantity       int32
	OptionIDs      []string
	UnitPriceCents int64
	LineTotalCents int64
	Currency       string
	ArtworkRefs    []string
}

// CreateCartLine inserts a priced line.
func (q *Queries) CreateCartLine(ctx context.Context, arg CreateCartLineParams) (CartLine, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO cart_lines (cart_id, product_id, quantity, option_ids, unit_price_cents, line_total_cents, currency, artwork_refs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+cartLineColumns,
		arg.CartID, arg.ProductID, arg.Quantity, arg.OptionIDs, arg.UnitPriceCents, arg.LineTotalCents, arg.Currency, arg.ArtworkRefs)
	return scanCartLine(row)
}

// GetCartLineByID fetches a line by primary key.
func (q *Queries) GetCartLineByID(ctx context.Context, id pgtype.UUID) (CartLine, error) {
	row := q.db.QueryRow(ctx, `SELECT `+cartLineColumns+` FROM cart_lines WHERE id = $1`, id)
	return scanCartLine(row)
}

// UpdateCartLineParams are the inputs for UpdateCartLine.
type UpdateCartLineParams struct {
	ID             pgtype.UUID
	Quantity       int32
	OptionIDs      []string
	UnitPriceCents int64
	LineTotalCents int64
}

// UpdateCartLine re-prices an existing line.
func (q *Queries) UpdateCartLine(ctx context.Context, arg UpdateCartLineParams) (CartLine, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE cart_lines
		SET quantity = $2, option_ids = $3, unit_price_cents = $4, line_total_cents = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+cartLineColumns,
		arg.ID, arg.Quantity, arg.OptionIDs, arg.UnitPriceCents, arg.LineTotalCents)
	return scanCartLine(row)
}

// DeleteCartLineParams are the inputs for DeleteCartLine.
type DeleteCartLineParams struct {
	ID     pgtype.UUID
	CartID pgtype.UUID
}

// DeleteCartLine removes a line, scoped to its cart to prevent cross-cart deletes.
func (q *Queries) DeleteCartLine(ctx context.Context, arg DeleteCartLineParams) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND cart_id = $2`, arg.ID, arg.CartID)
	return err
}

// ListCartLines returns all lines for a cart in insertion order.
func (q *Queries) ListCartLines(ctx context.Context, cartID pgtype.UUID) ([]CartLine, error) {
	rows, err := q.db.Query(ctx, `SELECT `+cartLineColumns+` FROM cart_lines WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []CartLine
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
