package printvendor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/printworks/storefront-api/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		BaseURL:   srv.URL,
		StoreCode: "store-1",
		HTTP:      resilience.Client{HTTP: srv.Client(), MaxAttempts: 1, Timeout: time.Second},
		Logger:    zerolog.Nop(),
	}
}

func TestPriceModernShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/price/shirt-1/store-1", r.URL.Path)
		var body struct {
			ProductOptions map[string]string `json:"productOptions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]string{"Size": "sz-m"}, body.ProductOptions)
		w.Write([]byte(`{"price": 12.5}`))
	})

	cents, err := c.Price(context.Background(), "shirt-1", map[string]string{"Size": "sz-m"})
	require.NoError(t, err)
	require.Equal(t, int64(1250), cents)
}

func TestPriceLegacyResponseShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": {"price": "9.99"}}`))
	})

	cents, err := c.Price(context.Background(), "shirt-1", nil)
	require.NoError(t, err)
	require.Equal(t, int64(999), cents)
}

func TestPriceLegacyPrice2Shape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price2": {"price": 3}}`))
	})

	cents, err := c.Price(context.Background(), "shirt-1", nil)
	require.NoError(t, err)
	require.Equal(t, int64(300), cents)
}

func TestPricePrefersModernOverLegacy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price": 10, "response": {"price": 99}}`))
	})

	cents, err := c.Price(context.Background(), "shirt-1", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1000), cents)
}

func TestPriceMissingEverywhere(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok"}`))
	})

	_, err := c.Price(context.Background(), "shirt-1", nil)
	require.ErrorIs(t, err, ErrPricingUnavailable)
}

func TestPriceNegativeRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price": -4.2}`))
	})

	_, err := c.Price(context.Background(), "shirt-1", nil)
	require.ErrorIs(t, err, ErrPricingUnavailable)
}

func TestPriceVendorDown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Price(context.Background(), "shirt-1", nil)
	require.ErrorIs(t, err, ErrPricingUnavailable)
}

func TestOptionGroups(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/shirt-1/options", r.URL.Path)
		w.Write([]byte(`{"groups": [
			{"name": "Size", "options": [{"id": "sz-s"}, {"id": "sz-m"}]},
			{"name": "QTY", "options": [{"id": "qty-25"}]}
		]}`))
	})

	groups, err := c.OptionGroups(context.Background(), "shirt-1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, "Size", groups[0].Name)
	require.Equal(t, []string{"sz-s", "sz-m"}, groups[0].OptionIDs)
}

func TestShippingEstimateParsesRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/order/shippingEstimate", r.URL.Path)
		var body struct {
			Items        []QuoteItem       `json:"items"`
			ShippingInfo map[string]string `json:"shippingInfo"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "US", body.ShippingInfo["ShipCountry"])
		w.Write([]byte(`[
			["UPS", "Ground", 8.95, 5],
			["UPS", "2nd Day Air", "24.10", null],
			["FedEx", "Home", 9.99]
		]`))
	})

	rates, err := c.ShippingEstimate(context.Background(),
		[]QuoteItem{{ProductID: "shirt-1", Quantity: 25}},
		Address{Country: "US", State: "NC", Zip: "27513"})
	require.NoError(t, err)
	require.Len(t, rates, 3)

	require.Equal(t, Rate{Carrier: "UPS", Service: "Ground", CostCents: 895, Days: intPtr(5)}, rates[0])
	require.Equal(t, int64(2410), rates[1].CostCents)
	require.Nil(t, rates[1].Days)
	require.Nil(t, rates[2].Days)
}

func TestShippingEstimateSkipsMalformedRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			["UPS"],
			["UPS", "Ground", "not-a-number"],
			["USPS", "Priority", 7.25, 3]
		]`))
	})

	rates, err := c.ShippingEstimate(context.Background(), nil, Address{})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	require.Equal(t, int64(725), rates[0].CostCents)
}

func TestShippingEstimateEmptyIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := c.ShippingEstimate(context.Background(), nil, Address{})
	require.ErrorIs(t, err, ErrShippingUnavailable)
}

func intPtr(v int) *int { return &v }
