package loyalty

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/obs"
	"github.com/printworks/storefront-api/internal/store"
)

// ErrInsufficientBalance is returned when an adjustment would take a wallet
// below zero. The wallet is left untouched.
var ErrInsufficientBalance = errors.New("loyalty: insufficient balance")

// WalletTx is the transactional surface of a wallet mutation.
type WalletTx interface {
	GetWalletForUpdate(ctx context.Context, customerID string) (store.LoyaltyWallet, error)
	CreateWallet(ctx context.Context, customerID string) (store.LoyaltyWallet, error)
	UpdateWallet(ctx context.Context, arg store.UpdateWalletParams) error
	InsertLoyaltyTransaction(ctx context.Context, arg store.InsertLoyaltyTransactionParams) (store.LoyaltyTransaction, error)
}

// Store is the persistence surface the service needs.
type Store interface {
	GetWallet(ctx context.Context, customerID string) (store.LoyaltyWallet, error)
	ListLoyaltyTransactions(ctx context.Context, customerID string) ([]store.LoyaltyTransaction, error)
	InWalletTx(ctx context.Context, fn func(tx WalletTx) error) error
}

type pgStore struct{ s *store.Store }

// NewPgStore adapts the pgx store to the loyalty persistence surface.
func NewPgStore(s *store.Store) Store {
	return pgStore{s: s}
}

func (p pgStore) GetWallet(ctx context.Context, customerID string) (store.LoyaltyWallet, error) {
	return p.s.GetWallet(ctx, customerID)
}

func (p pgStore) ListLoyaltyTransactions(ctx context.Context, customerID string) ([]store.LoyaltyTransaction, error) {
	return p.s.ListLoyaltyTransactions(ctx, customerID)
}

func (p pgStore) InWalletTx(ctx context.Context, fn func(tx WalletTx) error) error {
	return p.s.InTx(ctx, func(q *store.Queries) error {
		return fn(q)
	})
}

// Service mutates loyalty wallets.
type Service struct {
	Cfg Config
	S   Store
	Log zerolog.Logger
}

// Wallet returns a customer's wallet. Customers who never earned a point get
// a zero-balance view rather than a not-found error.
func (s *Service) Wallet(ctx context.Context, customerID string) (store.LoyaltyWallet, error) {
	if s == nil || s.S == nil {
		return store.LoyaltyWallet{}, errors.New("loyalty service not configured")
	}
	w, err := s.S.GetWallet(ctx, customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.LoyaltyWallet{CustomerID: customerID}, nil
	}
	return w, err
}

// Transactions returns a customer's point history, newest first.
func (s *Service) Transactions(ctx context.Context, customerID string) ([]store.LoyaltyTransaction, error) {
	if s == nil || s.S == nil {
		return nil, errors.New("loyalty service not configured")
	}
	return s.S.ListLoyaltyTransactions(ctx, customerID)
}

// Adjust moves a wallet balance by points (negative redeems) and records the
// paired audit transaction in the same database transaction. The wallet is
// created on first touch. Balances never go negative.
func (s *Service) Adjust(ctx context.Context, customerID string, points int64, typ, note string, orderID pgtype.UUID) (store.LoyaltyWallet, error) {
	if s == nil || s.S == nil {
		return store.LoyaltyWallet{}, errors.New("loyalty service not configured")
	}
	if points == 0 {
		return s.Wallet(ctx, customerID)
	}

	var updated store.LoyaltyWallet
	err := s.S.InWalletTx(ctx, func(tx WalletTx) error {
		w, err := tx.GetWalletForUpdate(ctx, customerID)
		if errors.Is(err, pgx.ErrNoRows) {
			w, err = tx.CreateWallet(ctx, customerID)
		}
		if err != nil {
			return err
		}

		newBalance := w.PointsBalance + points
		if newBalance < 0 {
			return ErrInsufficientBalance
		}
		earned, redeemed := w.LifetimeEarned, w.LifetimeRedeemed
		if points > 0 {
			earned += points
		} else {
			redeemed += -points
		}
		if err := tx.UpdateWallet(ctx, store.UpdateWalletParams{
			ID:               w.ID,
			PointsBalance:    newBalance,
			LifetimeEarned:   earned,
			LifetimeRedeemed: redeemed,
		}); err != nil {
			return err
		}
		if _, err := tx.InsertLoyaltyTransaction(ctx, store.InsertLoyaltyTransactionParams{
			WalletID:   w.ID,
			CustomerID: customerID,
			Points:     points,
			Type:       typ,
			Note:       note,
			OrderID:    orderID,
		}); err != nil {
			return err
		}
		w.PointsBalance = newBalance
		w.LifetimeEarned = earned
		w.LifetimeRedeemed = redeemed
		updated = w
		return nil
	})
	if err != nil {
		result := "error"
		if errors.Is(err, ErrInsufficientBalance) {
			result = "insufficient"
		}
		countAdjust(result)
		return store.LoyaltyWallet{}, err
	}

	countAdjust("ok")
	s.Log.Info().
		Str("customer_id", customerID).
		Int64("points", points).
		Str("type", typ).
		Int64("balance", updated.PointsBalance).
		Msg("loyalty wallet adjusted")
	return updated, nil
}

func countAdjust(result string) {
	if obs.LoyaltyAdjustTotal != nil {
		obs.LoyaltyAdjustTotal.WithLabelValues(result).Inc()
	}
}
