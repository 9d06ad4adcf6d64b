package store

import "github.com/jackc/pgx/v5/pgtype"

// Cart statuses. A cart is "open" until the finalizer closes it; lookups by
// session key always exclude closed carts.
const (
	CartStatusOpen    = "open"
	CartStatusPending = "pending"
	CartStatusClosed  = "closed"
)

// Order statuses.
const (
	OrderStatusPaid = "paid"
)

// Loyalty transaction types.
const (
	LoyaltyTxnEarn   = "earn"
	LoyaltyTxnRedeem = "redeem"
	LoyaltyTxnAdjust = "adjust"
)

// Cart represents an in-progress purchase intent.
type Cart struct {
	ID               pgtype.UUID
	SID              string
	UserID           pgtype.UUID
	Status           string
	Currency         string
	SelectedShipping []byte // raw JSON; legacy shapes tolerated by the cart aggregator
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

// CartLine is one priced product configuration within a cart.
type CartLine struct {
	ID             pgtype.UUID
	CartID         pgtype.UUID
	ProductID      string
	Quantity       int32
	OptionIDs      []string
	UnitPriceCents int64
	LineTotalCents int64
	Currency       string
	ArtworkRefs    []string
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

// CartCredit is a reason-tagged discount applied to a cart. At most one row
// per (cart, reason); reapplication replaces.
type CartCredit struct {
	ID          pgtype.UUID
	CartID      pgtype.UUID
	Reason      string
	AmountCents int64
	Points      int32
	CreatedAt   pgtype.Timestamptz
}

// Order is the immutable record of a completed purchase.
type Order struct {
	ID            pgtype.UUID
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
	PlacedAt      pgtype.Timestamptz
}

// OrderItem is a line snapshot copied from a CartLine at finalization time.
type OrderItem struct {
	ID             pgtype.UUID
	OrderID        pgtype.UUID
	ProductID      string
	Quantity       int32
	UnitPriceCents int64
	LineTotalCents int64
	OptionIDs      []string
}

// LoyaltyWallet is a per-customer running point balance.
type LoyaltyWallet struct {
	ID               pgtype.UUID
	CustomerID       string
	PointsBalance    int64
	LifetimeEarned   int64
	LifetimeRedeemed int64
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

// LoyaltyTransaction is the audit row paired with every wallet mutation.
type LoyaltyTransaction struct {
	ID         pgtype.UUID
	WalletID   pgtype.UUID
	CustomerID string
	Points     int64
	Type       string
	Note       string
	OrderID    pgtype.UUID
	CreatedAt  pgtype.Timestamptz
}

// DomainEvent is an audit journal entry.
type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}
