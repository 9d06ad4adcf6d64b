// Package cart manages the shopping cart lifecycle: session-scoped cart
// resolution, line pricing through the vendor and markup engine, shipping
// selection and loyalty credits.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/common"
	"github.com/printworks/storefront-api/internal/loyalty"
	"github.com/printworks/storefront-api/internal/markup"
	"github.com/printworks/storefront-api/internal/options"
	"github.com/printworks/storefront-api/internal/printvendor"
	"github.com/printworks/storefront-api/internal/store"
)

// CreditReasonLoyalty tags the cart credit row produced by a loyalty
// redemption.
const CreditReasonLoyalty = "loyalty"

var (
	// ErrCartClosed is returned for writes against a finalized cart.
	ErrCartClosed = errors.New("cart: cart is closed")
	// ErrNotFound is returned when a cart or line does not exist.
	ErrNotFound = errors.New("cart: not found")
	// ErrSignInRequired is returned when a loyalty action has no user.
	ErrSignInRequired = errors.New("cart: sign-in required")
)

type queryProvider interface {
	CreateCart(ctx context.Context, arg store.CreateCartParams) (store.Cart, error)
	GetCartByID(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	GetOpenCartBySID(ctx context.Context, sid string) (store.Cart, error)
	GetOpenCartByUser(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	BindCartUser(ctx context.Context, arg store.BindCartUserParams) error
	UpdateCartShipping(ctx context.Context, arg store.UpdateCartShippingParams) error
	CreateCartLine(ctx context.Context, arg store.CreateCartLineParams) (store.CartLine, error)
	GetCartLineByID(ctx context.Context, id pgtype.UUID) (store.CartLine, error)
	UpdateCartLine(ctx context.Context, arg store.UpdateCartLineParams) (store.CartLine, error)
	DeleteCartLine(ctx context.Context, arg store.DeleteCartLineParams) error
	ListCartLines(ctx context.Context, cartID pgtype.UUID) ([]store.CartLine, error)
	UpsertCartCredit(ctx context.Context, arg store.UpsertCartCreditParams) (store.CartCredit, error)
	GetCartCredit(ctx context.Context, arg store.GetCartCreditParams) (store.CartCredit, error)
	ListCartCredits(ctx context.Context, cartID pgtype.UUID) ([]store.CartCredit, error)
	SumCartCredits(ctx context.Context, cartID pgtype.UUID) (int64, error)
}

type vendorAPI interface {
	OptionGroups(ctx context.Context, productID string) ([]options.Group, error)
	Price(ctx context.Context, productID string, selections map[string]string) (int64, error)
	ShippingEstimate(ctx context.Context, items []printvendor.QuoteItem, shipTo printvendor.Address) ([]printvendor.Rate, error)
}

// Service implements cart operations.
type Service struct {
	Q        queryProvider
	Vendor   vendorAPI
	Markup   markup.Config
	Loyalty  *loyalty.Service
	Currency string
	Logger   zerolog.Logger
}

// View is the cart as returned to clients, with derived totals.
type View struct {
	Cart          store.Cart
	Lines         []store.CartLine
	Credits       []store.CartCredit
	SubtotalCents int64
	ShippingCents int64
	CreditsCents  int64
	// NetCents is subtotal minus credits plus shipping; tax is resolved at
	// finalization, never estimated here.
	NetCents int64
}

// Ensure returns the caller's open cart, creating one when none exists. An
// authenticated caller's guest cart is bound to the user on first touch.
func (s *Service) Ensure(ctx context.Context, sid string) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	userID, authed := common.UserID(ctx)

	if authed {
		c, err := s.Q.GetOpenCartByUser(ctx, store.ToUUID(userID))
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, err
		}
	}

	if sid != "" {
		c, err := s.Q.GetOpenCartBySID(ctx, sid)
		if err == nil {
			if authed && !c.UserID.Valid {
				uid := store.ToUUID(userID)
				if err := s.Q.BindCartUser(ctx, store.BindCartUserParams{ID: c.ID, UserID: uid}); err != nil {
					return store.Cart{}, err
				}
				c.UserID = uid
			}
			return c, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, err
		}
	}

	params := store.CreateCartParams{SID: sid, Currency: s.Currency}
	if authed {
		params.UserID = store.ToUUID(userID)
	}
	return s.Q.CreateCart(ctx, params)
}

// Get loads a cart with its lines, credits and derived totals.
func (s *Service) Get(ctx context.Context, cartID string) (View, error) {
	c, err := s.openCart(ctx, cartID)
	if err != nil && !errors.Is(err, ErrCartClosed) {
		return View{}, err
	}
	return s.view(ctx, c)
}

func (s *Service) view(ctx context.Context, c store.Cart) (View, error) {
	lines, err := s.Q.ListCartLines(ctx, c.ID)
	if err != nil {
		return View{}, err
	}
	credits, err := s.Q.ListCartCredits(ctx, c.ID)
	if err != nil {
		return View{}, err
	}
	var creditCents int64
	for _, cr := range credits {
		creditCents += cr.AmountCents
	}
	subtotal := SubtotalCents(lines)
	shipping := ShippingCents(c.SelectedShipping)
	net := subtotal - creditCents
	if net < 0 {
		net = 0
	}
	return View{
		Cart:          c,
		Lines:         lines,
		Credits:       credits,
		SubtotalCents: subtotal,
		ShippingCents: shipping,
		CreditsCents:  creditCents,
		NetCents:      net + shipping,
	}, nil
}

// AddItemParams describe a line to add.
type AddItemParams struct {
	ProductID   string
	Quantity    int
	OptionIDs   []string
	ArtworkRefs []string
}

// AddItem validates the option selection against the vendor's groups, prices
// the line at vendor cost plus markup, and stores it.
func (s *Service) AddItem(ctx context.Context, cartID string, p AddItemParams) (store.CartLine, error) {
	c, err := s.openCart(ctx, cartID)
	if err != nil {
		return store.CartLine{}, err
	}
	if p.Quantity < 1 {
		p.Quantity = 1
	}

	normalized, quote, err := s.priceLine(ctx, p.ProductID, p.Quantity, p.OptionIDs)
	if err != nil {
		return store.CartLine{}, err
	}

	line, err := s.Q.CreateCartLine(ctx, store.CreateCartLineParams{
		CartID:         c.ID,
		ProductID:      p.ProductID,
		Quantity:       int32(p.Quantity),
		OptionIDs:      normalized.IDs,
		UnitPriceCents: quote.UnitCents,
		LineTotalCents: quote.LineCents,
		Currency:       c.Currency,
		ArtworkRefs:    p.ArtworkRefs,
	})
	if err != nil {
		return store.CartLine{}, err
	}
	s.Logger.Info().
		Str("cart_id", store.UUIDString(c.ID)).
		Str("product_id", p.ProductID).
		Int("quantity", p.Quantity).
		Int64("line_total_cents", quote.LineCents).
		Msg("cart line added")
	return line, nil
}

// UpdateLineParams describe a line mutation. Zero Quantity keeps the current
// quantity; nil OptionIDs keeps the current selection.
type UpdateLineParams struct {
	Quantity  int
	OptionIDs []string
}

// UpdateLine re-validates and re-prices a line after a quantity or option
// change.
func (s *Service) UpdateLine(ctx context.Context, cartID, lineID string, p UpdateLineParams) (store.CartLine, error) {
	c, err := s.openCart(ctx, cartID)
	if err != nil {
		return store.CartLine{}, err
	}
	line, err := s.cartLine(ctx, c, lineID)
	if err != nil {
		return store.CartLine{}, err
	}

	qty := p.Quantity
	if qty < 1 {
		qty = int(line.Quantity)
	}
	optionIDs := p.OptionIDs
	if optionIDs == nil {
		optionIDs = line.OptionIDs
	}

	normalized, quote, err := s.priceLine(ctx, line.ProductID, qty, optionIDs)
	if err != nil {
		return store.CartLine{}, err
	}
	return s.Q.UpdateCartLine(ctx, store.UpdateCartLineParams{
		ID:             line.ID,
		Quantity:       int32(qty),
		OptionIDs:      normalized.IDs,
		UnitPriceCents: quote.UnitCents,
		LineTotalCents: quote.LineCents,
	})
}

// RemoveLine deletes a line from an open cart.
func (s *Service) RemoveLine(ctx context.Context, cartID, lineID string) error {
	c, err := s.openCart(ctx, cartID)
	if err != nil {
		return err
	}
	line, err := s.cartLine(ctx, c, lineID)
	if err != nil {
		return err
	}
	return s.Q.DeleteCartLine(ctx, store.DeleteCartLineParams{ID: line.ID, CartID: c.ID})
}

// QuoteShipping returns vendor shipping rates for the cart's current lines.
func (s *Service) QuoteShipping(ctx context.Context, cartID string, shipTo printvendor.Address) ([]printvendor.Rate, error) {
	c, err := s.openCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	lines, err := s.Q.ListCartLines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart has no lines", ErrNotFound)
	}
	items := make([]printvendor.QuoteItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, printvendor.QuoteItem{
			ProductID: l.ProductID,
			Quantity:  int(l.Quantity),
			OptionIDs: l.OptionIDs,
		})
	}
	return s.Vendor.ShippingEstimate(ctx, items, shipTo)
}

// SelectShipping stores the chosen rate on the cart.
func (s *Service) SelectShipping(ctx context.Context, cartID string, rate printvendor.Rate) error {
	c, err := s.openCart(ctx, cartID)
	if err != nil {
		return err
	}
	if rate.CostCents < 0 {
		return fmt.Errorf("cart: negative shipping cost")
	}
	selected, err := json.Marshal(rate)
	if err != nil {
		return err
	}
	return s.Q.UpdateCartShipping(ctx, store.UpdateCartShippingParams{ID: c.ID, SelectedShipping: selected})
}

// ApplyLoyaltyCredit redeems points into a cart credit. The requested amount
// is normalized to program rules; any previously applied credit is refunded
// first so reapplication replaces rather than stacks. Zero points clears the
// credit.
func (s *Service) ApplyLoyaltyCredit(ctx context.Context, cartID string, requestedPoints int64) (store.CartCredit, error) {
	if s.Loyalty == nil {
		return store.CartCredit{}, errors.New("cart: loyalty not configured")
	}
	userID, authed := common.UserID(ctx)
	if !authed {
		return store.CartCredit{}, ErrSignInRequired
	}
	c, err := s.openCart(ctx, cartID)
	if err != nil {
		return store.CartCredit{}, err
	}

	prev, err := s.Q.GetCartCredit(ctx, store.GetCartCreditParams{CartID: c.ID, Reason: CreditReasonLoyalty})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return store.CartCredit{}, err
	}
	if err == nil && prev.Points > 0 {
		note := fmt.Sprintf("cart %s credit replaced", store.UUIDString(c.ID))
		if _, err := s.Loyalty.Adjust(ctx, userID, int64(prev.Points), store.LoyaltyTxnAdjust, note, pgtype.UUID{}); err != nil {
			return store.CartCredit{}, err
		}
	}

	points := s.Loyalty.Cfg.NormalizeRedeem(requestedPoints)
	if points == 0 {
		credit, err := s.Q.UpsertCartCredit(ctx, store.UpsertCartCreditParams{
			CartID: c.ID,
			Reason: CreditReasonLoyalty,
		})
		return credit, err
	}

	note := fmt.Sprintf("cart %s credit", store.UUIDString(c.ID))
	if _, err := s.Loyalty.Adjust(ctx, userID, -points, store.LoyaltyTxnRedeem, note, pgtype.UUID{}); err != nil {
		return store.CartCredit{}, err
	}
	credit, err := s.Q.UpsertCartCredit(ctx, store.UpsertCartCreditParams{
		CartID:      c.ID,
		Reason:      CreditReasonLoyalty,
		AmountCents: s.Loyalty.Cfg.CreditCents(points),
		Points:      int32(points),
	})
	if err != nil {
		// The credit row never landed, so the redeemed points must go back.
		refund := fmt.Sprintf("cart %s credit failed", store.UUIDString(c.ID))
		if _, rerr := s.Loyalty.Adjust(context.WithoutCancel(ctx), userID, points, store.LoyaltyTxnAdjust, refund, pgtype.UUID{}); rerr != nil {
			s.Logger.Error().Err(rerr).
				Str("user_id", userID).
				Int64("points", points).
				Msg("loyalty refund after credit failure did not apply")
		}
		return store.CartCredit{}, err
	}
	return credit, nil
}

func (s *Service) priceLine(ctx context.Context, productID string, qty int, optionIDs []string) (options.Normalized, markup.Quote, error) {
	groups, err := s.Vendor.OptionGroups(ctx, productID)
	if err != nil {
		return options.Normalized{}, markup.Quote{}, err
	}
	normalized, err := options.Normalize(groups, optionIDs)
	if err != nil {
		return options.Normalized{}, markup.Quote{}, err
	}
	costCents, err := s.Vendor.Price(ctx, productID, normalized.ByGroup)
	if err != nil {
		return options.Normalized{}, markup.Quote{}, err
	}
	return normalized, markup.Price(s.Markup, qty, costCents), nil
}

func (s *Service) openCart(ctx context.Context, cartID string) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	id := store.ToUUID(cartID)
	if !id.Valid {
		return store.Cart{}, ErrNotFound
	}
	c, err := s.Q.GetCartByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Cart{}, ErrNotFound
	}
	if err != nil {
		return store.Cart{}, err
	}
	if c.Status == store.CartStatusClosed {
		return c, ErrCartClosed
	}
	return c, nil
}

func (s *Service) cartLine(ctx context.Context, c store.Cart, lineID string) (store.CartLine, error) {
	id := store.ToUUID(lineID)
	if !id.Valid {
		return store.CartLine{}, ErrNotFound
	}
	line, err := s.Q.GetCartLineByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.CartLine{}, ErrNotFound
	}
	if err != nil {
		return store.CartLine{}, err
	}
	if line.CartID != c.ID {
		return store.CartLine{}, ErrNotFound
	}
	return line, nil
}
