package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/common"
	"github.com/printworks/storefront-api/internal/obs"
)

const maxWebhookBody = 1 << 20

// Finalizer turns a verified payment event into an order.
type Finalizer interface {
	// Finalize returns the order id, or "" when the event matched no cart
	// and was acknowledged without effect.
	Finalize(ctx context.Context, evt Event) (string, error)
}

// WebhookHandler receives processor webhooks. Verification failures are
// rejected; everything after verification must answer 200 unless order
// persistence itself failed, because the processor retries on any other
// status.
type WebhookHandler struct {
	Providers map[string]Provider
	R         *redis.Client
	ReplayTTL time.Duration
	Finalizer Finalizer
	Log       zerolog.Logger
}

// Handle processes POST /webhooks/payment/{provider}.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.Providers[name]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "UNKNOWN_PROVIDER", "unknown payment provider", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BODY_READ_FAILED", "could not read webhook body", nil)
		return
	}

	evt, err := provider.VerifyWebhook(r, body)
	if err != nil {
		h.count(name, "rejected")
		status := http.StatusBadRequest
		code := "INVALID_PAYLOAD"
		if errors.Is(err, ErrMissingSignature) || errors.Is(err, ErrBadSignature) || errors.Is(err, ErrStaleTimestamp) {
			status = http.StatusUnauthorized
			code = "INVALID_SIGNATURE"
		}
		h.Log.Warn().Err(err).Str("provider", name).Msg("webhook rejected")
		common.JSONError(w, status, code, "webhook verification failed", nil)
		return
	}

	evt.Provider = name

	if evt.Type != EventPaymentSucceeded && evt.Type != EventCheckoutCompleted {
		h.count(name, "ignored")
		common.JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	replayKey, duplicate := h.guardReplay(r.Context(), name, body)
	if duplicate {
		h.count(name, "duplicate")
		common.JSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	orderID, err := h.Finalizer.Finalize(r.Context(), evt)
	if err != nil {
		// release the replay guard so the processor's retry can land
		if replayKey != "" {
			_ = h.R.Del(context.WithoutCancel(r.Context()), replayKey).Err()
		}
		h.count(name, "error")
		h.Log.Error().Err(err).
			Str("provider", name).
			Str("provider_id", evt.ProviderID).
			Msg("order finalization failed")
		common.JSONError(w, http.StatusInternalServerError, "FINALIZE_FAILED", "order finalization failed", nil)
		return
	}
	if orderID == "" {
		h.count(name, "no_cart")
		h.Log.Warn().
			Str("provider", name).
			Str("provider_id", evt.ProviderID).
			Msg("webhook matched no cart")
		common.JSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
		return
	}

	h.count(name, "finalized")
	common.JSON(w, http.StatusOK, map[string]any{"status": "finalized", "orderId": orderID})
}

// guardReplay marks the event body as seen and reports whether this delivery
// is a replay. Redis being down fails open: a replayed event is still caught
// by the finalizer's idempotency.
func (h *WebhookHandler) guardReplay(ctx context.Context, name string, body []byte) (key string, duplicate bool) {
	if h.R == nil {
		return "", false
	}
	ttl := h.ReplayTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	key = fmt.Sprintf("wh:%s:%s", name, common.Sha256Hex(body))
	set, err := h.R.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		h.Log.Warn().Err(err).Msg("webhook replay guard unavailable")
		return "", false
	}
	if !set {
		return "", true
	}
	return key, false
}

func (h *WebhookHandler) count(provider, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}
