package loyalty

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/common"
	"github.com/printworks/storefront-api/internal/store"
)

// Handler serves the loyalty wallet endpoints. All routes require an
// authenticated user.
type Handler struct {
	Svc *Service
	Log zerolog.Logger
}

type walletResponse struct {
	PointsBalance    int64 `json:"pointsBalance"`
	LifetimeEarned   int64 `json:"lifetimeEarned"`
	LifetimeRedeemed int64 `json:"lifetimeRedeemed"`
	// RedeemableCents is the current balance's cash value under program
	// rules, zero when below the redemption minimum.
	RedeemableCents int64 `json:"redeemableCents"`
}

type transactionResponse struct {
	Points    int64     `json:"points"`
	Type      string    `json:"type"`
	Note      string    `json:"note,omitempty"`
	OrderID   string    `json:"orderId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Wallet handles GET /loyalty/wallet.
func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "SIGN_IN_REQUIRED", "loyalty requires a signed-in user", nil)
		return
	}
	wallet, err := h.Svc.Wallet(r.Context(), userID)
	if err != nil {
		h.Log.Error().Err(err).Msg("wallet lookup failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load wallet", nil)
		return
	}
	redeemable := h.Svc.Cfg.NormalizeRedeem(wallet.PointsBalance)
	common.JSON(w, http.StatusOK, walletResponse{
		PointsBalance:    wallet.PointsBalance,
		LifetimeEarned:   wallet.LifetimeEarned,
		LifetimeRedeemed: wallet.LifetimeRedeemed,
		RedeemableCents:  h.Svc.Cfg.CreditCents(redeemable),
	})
}

// Transactions handles GET /loyalty/transactions.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "SIGN_IN_REQUIRED", "loyalty requires a signed-in user", nil)
		return
	}
	txns, err := h.Svc.Transactions(r.Context(), userID)
	if err != nil {
		h.Log.Error().Err(err).Msg("transaction history failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load transactions", nil)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionResponse{
			Points:    t.Points,
			Type:      t.Type,
			Note:      t.Note,
			OrderID:   store.UUIDString(t.OrderID),
			CreatedAt: t.CreatedAt.Time,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"transactions": out})
}
