package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubFinalizer struct {
	calls   int
	orderID string
	err     error
}

func (f *stubFinalizer) Finalize(_ context.Context, _ Event) (string, error) {
	f.calls++
	return f.orderID, f.err
}

func newWebhookRig(t *testing.T, fin *stubFinalizer) (*WebhookHandler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &WebhookHandler{
		Providers: map[string]Provider{"stripe": fixedStripe()},
		R:         rdb,
		ReplayTTL: time.Hour,
		Finalizer: fin,
		Log:       zerolog.Nop(),
	}, mr
}

func postWebhook(h *WebhookHandler, provider, body, signature string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/payment/"+provider, strings.NewReader(body))
	if signature != "" {
		r.Header.Set("Stripe-Signature", signature)
	}
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("provider", provider)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	w := httptest.NewRecorder()
	h.Handle(w, r)
	return w
}

const succeededBody = `{"type": "payment_intent.succeeded", "data": {"object": {"id": "pi_1", "amount_received": 9570, "metadata": {"cartId": "cart-1"}}}}`

func TestWebhookFinalizesOrder(t *testing.T) {
	fin := &stubFinalizer{orderID: "order-1"}
	h, _ := newWebhookRig(t, fin)

	w := postWebhook(h, "stripe", succeededBody, signBody(t, testSecret, 1700000090, []byte(succeededBody)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "finalized", resp["status"])
	require.Equal(t, "order-1", resp["orderId"])
	require.Equal(t, 1, fin.calls)
}

func TestWebhookDuplicateDeliveryAcked(t *testing.T) {
	fin := &stubFinalizer{orderID: "order-1"}
	h, _ := newWebhookRig(t, fin)
	sig := signBody(t, testSecret, 1700000090, []byte(succeededBody))

	first := postWebhook(h, "stripe", succeededBody, sig)
	require.Equal(t, http.StatusOK, first.Code)

	second := postWebhook(h, "stripe", succeededBody, sig)
	require.Equal(t, http.StatusOK, second.Code)
	require.Contains(t, second.Body.String(), "duplicate")
	require.Equal(t, 1, fin.calls)
}

func TestWebhookInvalidSignature(t *testing.T) {
	fin := &stubFinalizer{}
	h, _ := newWebhookRig(t, fin)

	w := postWebhook(h, "stripe", succeededBody, "t=1700000090,v1=deadbeef")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, 0, fin.calls)
}

func TestWebhookUnknownProvider(t *testing.T) {
	h, _ := newWebhookRig(t, &stubFinalizer{})

	w := postWebhook(h, "paypal", succeededBody, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookIrrelevantEventIgnored(t *testing.T) {
	fin := &stubFinalizer{}
	h, _ := newWebhookRig(t, fin)
	body := `{"type": "charge.refunded", "data": {"object": {"id": "ch_1"}}}`

	w := postWebhook(h, "stripe", body, signBody(t, testSecret, 1700000090, []byte(body)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ignored")
	require.Equal(t, 0, fin.calls)
}

func TestWebhookNoCartAcknowledged(t *testing.T) {
	fin := &stubFinalizer{orderID: ""}
	h, _ := newWebhookRig(t, fin)

	w := postWebhook(h, "stripe", succeededBody, signBody(t, testSecret, 1700000090, []byte(succeededBody)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "acknowledged")
}

func TestWebhookFinalizerErrorReturns500AndAllowsRetry(t *testing.T) {
	fin := &stubFinalizer{err: errors.New("db down")}
	h, mr := newWebhookRig(t, fin)
	sig := signBody(t, testSecret, 1700000090, []byte(succeededBody))

	w := postWebhook(h, "stripe", succeededBody, sig)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Zero(t, len(mr.Keys()), "replay guard must be released on failure")

	fin.err = nil
	fin.orderID = "order-1"
	retry := postWebhook(h, "stripe", succeededBody, sig)
	require.Equal(t, http.StatusOK, retry.Code)
	require.Contains(t, retry.Body.String(), "finalized")
	require.Equal(t, 2, fin.calls)
}

func TestWebhookRedisDownFailsOpen(t *testing.T) {
	fin := &stubFinalizer{orderID: "order-1"}
	h, mr := newWebhookRig(t, fin)
	mr.Close()

	w := postWebhook(h, "stripe", succeededBody, signBody(t, testSecret, 1700000090, []byte(succeededBody)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "finalized")
}
