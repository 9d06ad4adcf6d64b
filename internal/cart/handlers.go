package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/common"
	"github.com/printworks/storefront-api/internal/loyalty"
	"github.com/printworks/storefront-api/internal/options"
	"github.com/printworks/storefront-api/internal/printvendor"
	"github.com/printworks/storefront-api/internal/store"
)

// Handler exposes cart operations over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Log      zerolog.Logger
}

type lineResponse struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"productId"`
	Quantity       int32     `json:"quantity"`
	OptionIDs      []string  `json:"optionIds"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	LineTotalCents int64     `json:"lineTotalCents"`
	Currency       string    `json:"currency"`
	ArtworkRefs    []string  `json:"artworkRefs,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type creditResponse struct {
	Reason      string `json:"reason"`
	AmountCents int64  `json:"amountCents"`
	Points      int32  `json:"points"`
}

type cartResponse struct {
	ID               string           `json:"id"`
	Status           string           `json:"status"`
	Currency         string           `json:"currency"`
	Lines            []lineResponse   `json:"lines"`
	Credits          []creditResponse `json:"credits"`
	SelectedShipping json.RawMessage  `json:"selectedShipping,omitempty"`
	SubtotalCents    int64            `json:"subtotalCents"`
	ShippingCents    int64            `json:"shippingCents"`
	CreditsCents     int64            `json:"creditsCents"`
	NetCents         int64            `json:"netCents"`
}

func toLineResponse(l store.CartLine) lineResponse {
	return lineResponse{
		ID:             store.UUIDString(l.ID),
		ProductID:      l.ProductID,
		Quantity:       l.Quantity,
		OptionIDs:      l.OptionIDs,
		UnitPriceCents: l.UnitPriceCents,
		LineTotalCents: l.LineTotalCents,
		Currency:       l.Currency,
		ArtworkRefs:    l.ArtworkRefs,
		UpdatedAt:      l.UpdatedAt.Time,
	}
}

func toCartResponse(v View) cartResponse {
	resp := cartResponse{
		ID:               store.UUIDString(v.Cart.ID),
		Status:           v.Cart.Status,
		Currency:         v.Cart.Currency,
		Lines:            make([]lineResponse, 0, len(v.Lines)),
		Credits:          make([]creditResponse, 0, len(v.Credits)),
		SelectedShipping: v.Cart.SelectedShipping,
		SubtotalCents:    v.SubtotalCents,
		ShippingCents:    v.ShippingCents,
		CreditsCents:     v.CreditsCents,
		NetCents:         v.NetCents,
	}
	for _, l := range v.Lines {
		resp.Lines = append(resp.Lines, toLineResponse(l))
	}
	for _, c := range v.Credits {
		resp.Credits = append(resp.Credits, creditResponse{Reason: c.Reason, AmountCents: c.AmountCents, Points: c.Points})
	}
	return resp
}

// Ensure handles POST /carts.
func (h *Handler) Ensure(w http.ResponseWriter, r *http.Request) {
	sid, _ := common.SID(r.Context())
	c, err := h.Svc.Ensure(r.Context(), sid)
	if err != nil {
		h.renderError(w, err)
		return
	}
	view, err := h.Svc.view(r.Context(), c)
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, toCartResponse(view))
}

// Get handles GET /carts/{cartID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, toCartResponse(view))
}

type addItemRequest struct {
	ProductID   string   `json:"productId" validate:"required"`
	Quantity    int      `json:"quantity" validate:"gte=1,lte=100000"`
	OptionIDs   []string `json:"optionIds"`
	ArtworkRefs []string `json:"artworkRefs" validate:"max=10"`
}

// AddItem handles POST /carts/{cartID}/lines.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "cartID"), AddItemParams{
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		OptionIDs:   req.OptionIDs,
		ArtworkRefs: req.ArtworkRefs,
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, toLineResponse(line))
}

type updateLineRequest struct {
	Quantity  int      `json:"quantity" validate:"gte=0,lte=100000"`
	OptionIDs []string `json:"optionIds"`
}

// UpdateLine handles PATCH /carts/{cartID}/lines/{lineID}.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	var req updateLineRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, err := h.Svc.UpdateLine(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "lineID"), UpdateLineParams{
		Quantity:  req.Quantity,
		OptionIDs: req.OptionIDs,
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, toLineResponse(line))
}

// RemoveLine handles DELETE /carts/{cartID}/lines/{lineID}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.RemoveLine(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "lineID")); err != nil {
		h.renderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type quoteShippingRequest struct {
	Country string `json:"country" validate:"required,len=2"`
	State   string `json:"state"`
	Zip     string `json:"zip" validate:"required"`
}

// QuoteShipping handles POST /carts/{cartID}/shipping/quote.
func (h *Handler) QuoteShipping(w http.ResponseWriter, r *http.Request) {
	var req quoteShippingRequest
	if !h.decode(w, r, &req) {
		return
	}
	rates, err := h.Svc.QuoteShipping(r.Context(), chi.URLParam(r, "cartID"), printvendor.Address{
		Country: req.Country,
		State:   req.State,
		Zip:     req.Zip,
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"rates": rates})
}

type selectShippingRequest struct {
	Carrier   string `json:"carrier" validate:"required"`
	Service   string `json:"service" validate:"required"`
	CostCents int64  `json:"costCents" validate:"gte=0"`
	Days      *int   `json:"days"`
}

// SelectShipping handles PUT /carts/{cartID}/shipping.
func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	var req selectShippingRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.Svc.SelectShipping(r.Context(), chi.URLParam(r, "cartID"), printvendor.Rate{
		Carrier:   req.Carrier,
		Service:   req.Service,
		CostCents: req.CostCents,
		Days:      req.Days,
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, toCartResponse(view))
}

type applyCreditRequest struct {
	Points int64 `json:"points" validate:"gte=0,lte=1000000"`
}

// ApplyCredit handles PUT /carts/{cartID}/credit.
func (h *Handler) ApplyCredit(w http.ResponseWriter, r *http.Request) {
	var req applyCreditRequest
	if !h.decode(w, r, &req) {
		return
	}
	credit, err := h.Svc.ApplyLoyaltyCredit(r.Context(), chi.URLParam(r, "cartID"), req.Points)
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, creditResponse{Reason: credit.Reason, AmountCents: credit.AmountCents, Points: credit.Points})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed", err.Error())
			return false
		}
	}
	return true
}

func (h *Handler) renderError(w http.ResponseWriter, err error) {
	var verr *options.ValidationError
	switch {
	case errors.As(err, &verr):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_OPTIONS", "option selection rejected", map[string]any{
			"reason":   verr.Reason,
			"subjects": verr.Subjects,
		})
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart or line not found", nil)
	case errors.Is(err, ErrCartClosed):
		common.JSONError(w, http.StatusConflict, "CART_CLOSED", "cart has been finalized", nil)
	case errors.Is(err, ErrSignInRequired):
		common.JSONError(w, http.StatusUnauthorized, "SIGN_IN_REQUIRED", "loyalty credit requires a signed-in user", nil)
	case errors.Is(err, loyalty.ErrInsufficientBalance):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_POINTS", "not enough points for this credit", nil)
	case errors.Is(err, printvendor.ErrPricingUnavailable), errors.Is(err, printvendor.ErrShippingUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "VENDOR_UNAVAILABLE", "vendor is temporarily unavailable", nil)
	default:
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		h.Log.Error().Err(err).Msg("cart request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
