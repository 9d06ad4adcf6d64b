package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/printworks/storefront-api/internal/resilience"
)

// Webhook verification failures. Signature errors map to 401, everything
// else about a bad payload maps to 400.
var (
	ErrMissingSignature = errors.New("payment: missing webhook signature")
	ErrBadSignature     = errors.New("payment: webhook signature mismatch")
	ErrStaleTimestamp   = errors.New("payment: webhook timestamp outside tolerance")
)

const defaultTolerance = 5 * time.Minute

// Stripe implements Provider against the Stripe API.
type Stripe struct {
	APIBase       string
	SecretKey     string
	WebhookSecret string
	Tolerance     time.Duration
	HTTP          resilience.Client
	// Now is stubbed in tests.
	Now func() time.Time
}

// VerifyWebhook checks the Stripe-Signature header (HMAC-SHA256 over
// "<timestamp>.<body>") and parses the event payload.
func (s *Stripe) VerifyWebhook(r *http.Request, body []byte) (Event, error) {
	header := r.Header.Get("Stripe-Signature")
	if header == "" {
		return Event{}, ErrMissingSignature
	}
	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return Event{}, err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	tolerance := s.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	age := now().Sub(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return Event{}, ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			verified = true
			break
		}
	}
	if !verified {
		return Event{}, ErrBadSignature
	}
	return parseEvent(body)
}

func parseSignatureHeader(header string) (timestamp int64, signatures []string, err error) {
	for _, pair := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMissingSignature
			}
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, ErrMissingSignature
	}
	return timestamp, signatures, nil
}

func parseEvent(body []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID             string            `json:"id"`
				PaymentIntent  string            `json:"payment_intent"`
				AmountTotal    *int64            `json:"amount_total"`
				AmountReceived *int64            `json:"amount_received"`
				Metadata       map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Event{}, fmt.Errorf("payment: malformed event: %w", err)
	}
	obj := envelope.Data.Object

	evt := Event{
		Type:             envelope.Type,
		CartID:           obj.Metadata["cartId"],
		SID:              obj.Metadata["sid"],
		TaxCalculationID: obj.Metadata["taxCalculationId"],
		Raw:              body,
	}
	switch envelope.Type {
	case EventCheckoutCompleted:
		evt.SessionID = obj.ID
		evt.ProviderID = obj.PaymentIntent
		evt.AmountCents = obj.AmountTotal
	case EventPaymentSucceeded:
		evt.ProviderID = obj.ID
		evt.AmountCents = obj.AmountReceived
		if evt.AmountCents == nil {
			evt.AmountCents = obj.AmountTotal
		}
	default:
		evt.ProviderID = obj.ID
	}
	return evt, nil
}

// CreateCheckoutSession creates a hosted Stripe checkout session carrying the
// cart identity in metadata so the webhook can find its way back.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	if s.SecretKey == "" {
		return Session{}, errors.New("payment: stripe secret key not configured")
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("metadata[cartId]", req.CartID)
	form.Set("metadata[sid]", req.SID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Order total")

	httpReq, err := http.NewRequest(http.MethodPost, s.apiBase()+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(s.SecretKey, "")

	var payload struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := s.doJSON(ctx, httpReq, &payload); err != nil {
		return Session{}, fmt.Errorf("payment: create checkout session: %w", err)
	}
	return Session{ID: payload.ID, URL: payload.URL}, nil
}

// TaxCalculation fetches the tax amount of a Stripe tax calculation record.
// Satisfies the tax reconciler's fetcher interface.
func (s *Stripe) TaxCalculation(ctx context.Context, calculationID string) (int64, error) {
	httpReq, err := http.NewRequest(http.MethodGet, s.apiBase()+"/v1/tax/calculations/"+url.PathEscape(calculationID), nil)
	if err != nil {
		return 0, err
	}
	httpReq.SetBasicAuth(s.SecretKey, "")

	var payload struct {
		TaxAmountExclusive int64 `json:"tax_amount_exclusive"`
	}
	if err := s.doJSON(ctx, httpReq, &payload); err != nil {
		return 0, err
	}
	// Inclusive tax is already part of the line amounts; adding it on top
	// would double-charge.
	return payload.TaxAmountExclusive, nil
}

func (s *Stripe) apiBase() string {
	if s.APIBase != "" {
		return strings.TrimRight(s.APIBase, "/")
	}
	return "https://api.stripe.com"
}

func (s *Stripe) doJSON(ctx context.Context, req *http.Request, out any) error {
	client := s.HTTP
	if client.HTTP == nil {
		client.HTTP = http.DefaultClient
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stripe returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
