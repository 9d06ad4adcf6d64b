package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const walletColumns = `id, customer_id, points_balance, lifetime_earned, lifetime_redeemed, created_at, updated_at`

func scanWallet(row interface{ Scan(dest ...any) error }) (LoyaltyWallet, error) {
	var w LoyaltyWallet
	err := row.Scan(&w.ID, &w.CustomerID, &w.PointsBalance, &w.LifetimeEarned, &w.LifetimeRedeemed, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

// GetWallet fetches a wallet by customer key.
func (q *Queries) GetWallet(ctx context.Context, customerID string) (LoyaltyWallet, error) {
	row := q.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM loyalty_wallets WHERE customer_id = $1`, customerID)
	return scanWallet(row)
}

// GetWalletForUpdate locks the wallet row for a balance mutation.
func (q *Queries) GetWalletForUpdate(ctx context.Context, customerID string) (LoyaltyWallet, error) {
	row := q.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM loyalty_wallets WHERE customer_id = $1 FOR UPDATE`, customerID)
	return scanWallet(row)
}

// CreateWallet inserts a zero-balance wallet for a customer.
func (q *Queries) CreateWallet(ctx context.Context, customerID string) (LoyaltyWallet, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO loyalty_wallets (customer_id)
		VALUES ($1)
		RETURNING `+walletColumns, customerID)
	return scanWallet(row)
}

// UpdateWalletParams are the inputs for UpdateWallet.
type UpdateWalletParams struct {
	ID               pgtype.UUID
	PointsBalance    int64
	LifetimeEarned   int64
	LifetimeRedeemed int64
}

// UpdateWallet writes the new balance and lifetime counters.
func (q *Queries) UpdateWallet(ctx context.Context, arg UpdateWalletParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE loyalty_wallets
		SET points_balance = $2, lifetime_earned = $3, lifetime_redeemed = $4, updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.PointsBalance, arg.LifetimeEarned, arg.LifetimeRedeemed)
	return err
}

// InsertLoyaltyTransactionParams are the inputs for InsertLoyaltyTransaction.
type InsertLoyaltyTransactionParams struct {
	WalletID   pgtype.UUID
	CustomerID string
	Points     int64
	Type       string
	Note       string
	OrderID    pgtype.UUID
}

// InsertLoyaltyTransaction records the audit row paired with a wallet mutation.
func (q *Queries) InsertLoyaltyTransaction(ctx context.Context, arg InsertLoyaltyTransactionParams) (LoyaltyTransaction, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO loyalty_transactions (wallet_id, customer_id, points, type, note, order_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, wallet_id, customer_id, points, type, note, order_id, created_at`,
		arg.WalletID, arg.CustomerID, arg.Points, arg.Type, arg.Note, arg.OrderID)
	var t LoyaltyTransaction
	err := row.Scan(&t.ID, &t.WalletID, &t.CustomerID, &t.Points, &t.Type, &t.Note, &t.OrderID, &t.CreatedAt)
	return t, err
}

// ListLoyaltyTransactions returns a customer's transactions, newest first.
func (q *Queries) ListLoyaltyTransactions(ctx context.Context, customerID string) ([]LoyaltyTransaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, wallet_id, customer_id, points, type, note, order_id, created_at
		FROM loyalty_transactions WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []LoyaltyTransaction
	for rows.Next() {
		var t LoyaltyTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.CustomerID, &t.Points, &t.Type, &t.Note, &t.OrderID, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
