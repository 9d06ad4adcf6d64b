package cart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/printworks/storefront-api/internal/store"
)

func TestSubtotalSumsLineTotals(t *testing.T) {
	lines := []store.CartLine{
		{Quantity: 25, UnitPriceCents: 100, LineTotalCents: 2500},
		{Quantity: 2, UnitPriceCents: 1999, LineTotalCents: 3998},
	}
	require.Equal(t, int64(6498), SubtotalCents(lines))
}

func TestSubtotalFallsBackToQtyTimesUnit(t *testing.T) {
	lines := []store.CartLine{
		{Quantity: 3, UnitPriceCents: 500, LineTotalCents: 0},
	}
	require.Equal(t, int64(1500), SubtotalCents(lines))
}

func TestSubtotalEmptyCart(t *testing.T) {
	require.Equal(t, int64(0), SubtotalCents(nil))
}

func TestShippingCentsShapes(t *testing.T) {
	cases := []struct {
		name string
		json string
		want int64
	}{
		{"modern cents", `{"carrier": "UPS", "costCents": 895}`, 895},
		{"top level dollars", `{"carrier": "UPS", "cost": 8.95}`, 895},
		{"top level string dollars", `{"cost": "12.50"}`, 1250},
		{"legacy nested rate", `{"rate": {"carrier": "UPS", "cost": 24.1}}`, 2410},
		{"legacy nested string", `{"rate": {"cost": "7.25"}}`, 725},
		{"zero cost", `{"cost": 0}`, 0},
		{"negative cost", `{"cost": -3}`, 0},
		{"garbage amount", `{"cost": "free"}`, 0},
		{"not json", `not json`, 0},
		{"empty", ``, 0},
		{"no cost anywhere", `{"carrier": "UPS"}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var raw []byte
			if tc.json != "" {
				raw = []byte(tc.json)
			}
			require.Equal(t, tc.want, ShippingCents(raw))
		})
	}
}
