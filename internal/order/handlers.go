package order

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/common"
	"github.com/printworks/storefront-api/internal/store"
)

type readQueries interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID string) ([]store.Order, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]store.OrderItem, error)
}

// Handler serves order retrieval endpoints. Orders are scoped to their
// owner: the authenticated user, or the anonymous session for guest orders.
type Handler struct {
	Q   readQueries
	Log zerolog.Logger
}

type itemResponse struct {
	ProductID      string   `json:"productId"`
	Quantity       int32    `json:"quantity"`
	UnitPriceCents int64    `json:"unitPriceCents"`
	LineTotalCents int64    `json:"lineTotalCents"`
	OptionIDs      []string `json:"optionIds"`
}

type orderResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Currency      string         `json:"currency"`
	SubtotalCents int64          `json:"subtotalCents"`
	ShippingCents int64          `json:"shippingCents"`
	TaxCents      int64          `json:"taxCents"`
	TaxSource     string         `json:"taxSource"`
	CreditsCents  int64          `json:"creditsCents"`
	TotalCents    int64          `json:"totalCents"`
	PlacedAt      time.Time      `json:"placedAt"`
	Items         []itemResponse `json:"items,omitempty"`
}

func toOrderResponse(o store.Order, items []store.OrderItem) orderResponse {
	resp := orderResponse{
		ID:            store.UUIDString(o.ID),
		Status:        o.Status,
		Currency:      o.Currency,
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TaxCents:      o.TaxCents,
		TaxSource:     o.TaxSource,
		CreditsCents:  o.CreditsCents,
		TotalCents:    o.TotalCents,
		PlacedAt:      o.PlacedAt.Time,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, itemResponse{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			LineTotalCents: it.LineTotalCents,
			OptionIDs:      it.OptionIDs,
		})
	}
	return resp
}

func ownerFromContext(ctx context.Context) (string, bool) {
	if userID, ok := common.UserID(ctx); ok && userID != "" {
		return userID, true
	}
	if sid, ok := common.SID(ctx); ok && sid != "" {
		return sid, true
	}
	return "", false
}

// List handles GET /orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "NO_PRINCIPAL", "no user or session identity", nil)
		return
	}
	orders, err := h.Q.ListOrdersByOwner(r.Context(), owner)
	if err != nil {
		h.Log.Error().Err(err).Msg("list orders failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not list orders", nil)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o, nil))
	}
	common.JSON(w, http.StatusOK, map[string]any{"orders": out})
}

// Get handles GET /orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "NO_PRINCIPAL", "no user or session identity", nil)
		return
	}
	id := store.ToUUID(chi.URLParam(r, "orderID"))
	if !id.Valid {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	o, err := h.Q.GetOrderByID(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && o.OwnerID != owner) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("get order failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load order", nil)
		return
	}
	items, err := h.Q.ListOrderItems(r.Context(), o.ID)
	if err != nil {
		h.Log.Error().Err(err).Msg("get order items failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, toOrderResponse(o, items))
}
