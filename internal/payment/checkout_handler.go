package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/cart"
	"github.com/printworks/storefront-api/internal/common"
)

// CheckoutHandler serves the hosted-checkout endpoint.
type CheckoutHandler struct {
	Svc *CheckoutService
	Log zerolog.Logger
}

type checkoutRequest struct {
	CartID string `json:"cartId"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Start handles POST /checkout/session.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", nil)
		return
	}
	if req.CartID == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "cartId is required", nil)
		return
	}

	sess, err := h.Svc.Start(r.Context(), req.CartID)
	switch {
	case err == nil:
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "CART_NOT_FOUND", "cart not found", nil)
		return
	case errors.Is(err, cart.ErrCartClosed):
		common.JSONError(w, http.StatusConflict, "CART_CLOSED", "cart is already closed", nil)
		return
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusConflict, "EMPTY_CART", "cart has no lines", nil)
		return
	default:
		h.Log.Error().Err(err).Str("cart_id", req.CartID).Msg("start checkout session")
		common.JSONError(w, http.StatusBadGateway, "CHECKOUT_FAILED", "could not start checkout", nil)
		return
	}

	common.JSON(w, http.StatusCreated, checkoutResponse{SessionID: sess.ID, URL: sess.URL})
}
