package payment

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/cart"
	"github.com/printworks/storefront-api/internal/store"
)

// ErrEmptyCart is returned when checkout starts on a cart with no lines.
var ErrEmptyCart = errors.New("payment: cart has no lines")

type cartViewer interface {
	Get(ctx context.Context, cartID string) (cart.View, error)
}

// CheckoutService starts hosted checkout sessions from cart state.
type CheckoutService struct {
	Provider   Provider
	Carts      cartViewer
	SuccessURL string
	CancelURL  string
	Log        zerolog.Logger
}

// Start creates a checkout session charging the cart's net total plus
// shipping. Tax is calculated processor-side during checkout and reconciled
// at finalization.
func (s *CheckoutService) Start(ctx context.Context, cartID string) (Session, error) {
	if s == nil || s.Provider == nil || s.Carts == nil {
		return Session{}, errors.New("checkout service not configured")
	}
	view, err := s.Carts.Get(ctx, cartID)
	if err != nil {
		return Session{}, err
	}
	if len(view.Lines) == 0 {
		return Session{}, ErrEmptyCart
	}

	sess, err := s.Provider.CreateCheckoutSession(ctx, SessionRequest{
		CartID:      store.UUIDString(view.Cart.ID),
		SID:         view.Cart.SID,
		Currency:    view.Cart.Currency,
		AmountCents: view.NetCents,
		SuccessURL:  s.SuccessURL,
		CancelURL:   s.CancelURL,
	})
	if err != nil {
		return Session{}, err
	}
	s.Log.Info().
		Str("cart_id", cartID).
		Str("session_id", sess.ID).
		Int64("amount_cents", view.NetCents).
		Msg("checkout session created")
	return sess, nil
}
