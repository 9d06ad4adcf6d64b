// Package printvendor is the HTTP client for the upstream print vendor API.
// It resolves product option groups, wholesale pricing and shipping rates.
// The vendor speaks dollars in several legacy response shapes; this package
// normalizes everything to integer cents before the rest of the system sees
// it.
package printvendor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/obs"
	"github.com/printworks/storefront-api/internal/options"
	"github.com/printworks/storefront-api/internal/resilience"
)

// Sentinel errors callers branch on. Both mean the vendor answered but the
// payload carried no usable value, or the vendor was unreachable.
var (
	ErrPricingUnavailable  = errors.New("printvendor: pricing unavailable")
	ErrShippingUnavailable = errors.New("printvendor: shipping unavailable")
)

// Client calls the vendor API through the resilient HTTP client.
type Client struct {
	BaseURL   string
	StoreCode string
	HTTP      resilience.Client
	Logger    zerolog.Logger
}

// Rate is one shipping option quoted by the vendor.
type Rate struct {
	Carrier   string `json:"carrier"`
	Service   string `json:"service"`
	CostCents int64  `json:"costCents"`
	// Days is nil when the vendor gives no transit estimate.
	Days *int `json:"days,omitempty"`
}

// QuoteItem is one line submitted for a shipping estimate.
type QuoteItem struct {
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	OptionIDs []string `json:"options"`
}

// Address is the destination for a shipping estimate, in the vendor's field
// naming.
type Address struct {
	Country string `json:"ShipCountry"`
	State   string `json:"ShipState"`
	Zip     string `json:"ShipZip"`
}

// Price returns the vendor's wholesale cost in cents for a product with the
// given option selections, keyed by group name.
func (c *Client) Price(ctx context.Context, productID string, selections map[string]string) (int64, error) {
	body, err := json.Marshal(struct {
		ProductOptions map[string]string `json:"productOptions"`
	}{ProductOptions: selections})
	if err != nil {
		return 0, err
	}

	path := "/price/" + url.PathEscape(productID) + "/" + url.PathEscape(c.StoreCode)
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	var payload map[string]json.RawMessage
	if err := c.doJSON(ctx, req, &payload); err != nil {
		countPricing("error")
		return 0, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}

	cents, ok := extractPriceCents(payload)
	if !ok {
		countPricing("missing_price")
		return 0, ErrPricingUnavailable
	}
	countPricing("ok")
	return cents, nil
}

func countPricing(result string) {
	if obs.VendorPricingTotal != nil {
		obs.VendorPricingTotal.WithLabelValues(result).Inc()
	}
}

// extractPriceCents walks the vendor's price fallback chain: the modern
// top-level "price", then "response.price", then the legacy "price2.price".
func extractPriceCents(payload map[string]json.RawMessage) (int64, bool) {
	if cents, ok := dollarsFieldToCents(payload["price"]); ok {
		return cents, true
	}
	for _, wrapper := range []string{"response", "price2"} {
		raw, ok := payload[wrapper]
		if !ok {
			continue
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			continue
		}
		if cents, ok := dollarsFieldToCents(nested["price"]); ok {
			return cents, true
		}
	}
	return 0, false
}

// OptionGroups returns the option groups a product exposes, in vendor order.
func (c *Client) OptionGroups(ctx context.Context, productID string) ([]options.Group, error) {
	var payload struct {
		Groups []struct {
			Name    string `json:"name"`
			Options []struct {
				ID string `json:"id"`
			} `json:"options"`
		} `json:"groups"`
	}
	path := "/products/" + url.PathEscape(productID) + "/options"
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("printvendor: option groups for %s: %w", productID, err)
	}
	groups := make([]options.Group, 0, len(payload.Groups))
	for _, g := range payload.Groups {
		ids := make([]string, 0, len(g.Options))
		for _, o := range g.Options {
			ids = append(ids, o.ID)
		}
		groups = append(groups, options.Group{Name: g.Name, OptionIDs: ids})
	}
	return groups, nil
}

// ShippingEstimate quotes shipping for the given items to the destination.
// The vendor answers with positional rows: [carrier, service, price, days].
func (c *Client) ShippingEstimate(ctx context.Context, items []QuoteItem, shipTo Address) ([]Rate, error) {
	body, err := json.Marshal(struct {
		Items        []QuoteItem `json:"items"`
		ShippingInfo Address     `json:"shippingInfo"`
	}{Items: items, ShippingInfo: shipTo})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/order/shippingEstimate", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var rows [][]json.RawMessage
	if err := c.doJSON(ctx, req, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShippingUnavailable, err)
	}

	rates := make([]Rate, 0, len(rows))
	for _, row := range rows {
		rate, ok := parseRateRow(row)
		if !ok {
			c.Logger.Warn().Int("fields", len(row)).Msg("vendor shipping row skipped")
			continue
		}
		rates = append(rates, rate)
	}
	if len(rates) == 0 {
		return nil, ErrShippingUnavailable
	}
	return rates, nil
}

func parseRateRow(row []json.RawMessage) (Rate, bool) {
	if len(row) < 3 {
		return Rate{}, false
	}
	var carrier, service string
	if json.Unmarshal(row[0], &carrier) != nil || json.Unmarshal(row[1], &service) != nil {
		return Rate{}, false
	}
	cents, ok := dollarsFieldToCents(row[2])
	if !ok {
		return Rate{}, false
	}
	rate := Rate{Carrier: carrier, Service: service, CostCents: cents}
	if len(row) > 3 {
		// null stays nil; unmarshalling into a plain int would leave 0.
		var days *int
		if json.Unmarshal(row[3], &days) == nil && days != nil {
			rate.Days = days
		}
	}
	return rate, true
}

// dollarsFieldToCents accepts a JSON number or numeric string of dollars and
// converts to rounded cents. Non-finite and negative values are rejected.
func dollarsFieldToCents(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var dollars float64
	if err := json.Unmarshal(raw, &dollars); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		dollars = parsed
	}
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) || dollars < 0 {
		return 0, false
	}
	return int64(math.Round(dollars * 100)), true
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, req, out)
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vendor returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
