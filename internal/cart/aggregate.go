package cart

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/printworks/storefront-api/internal/store"
)

// LineTotalCents returns the effective total of a single line. A stored total
// that is stale or zero falls back to quantity times unit price.
func LineTotalCents(l store.CartLine) int64 {
	total := l.LineTotalCents
	if total <= 0 {
		total = int64(l.Quantity) * l.UnitPriceCents
	}
	if total < 0 {
		return 0
	}
	return total
}

// SubtotalCents sums effective line totals for a cart.
func SubtotalCents(lines []store.CartLine) int64 {
	var subtotal int64
	for _, l := range lines {
		subtotal += LineTotalCents(l)
	}
	return subtotal
}

// ShippingCents extracts the shipping cost from the cart's selected shipping
// JSON. Older carts stored the raw vendor rate under "rate", newer ones store
// the cost at the top level; the amount may be a number or a numeric string
// of dollars. Anything unparseable counts as zero.
func ShippingCents(selected []byte) int64 {
	if len(selected) == 0 {
		return 0
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(selected, &payload); err != nil {
		return 0
	}

	if raw, ok := payload["costCents"]; ok {
		var cents int64
		if err := json.Unmarshal(raw, &cents); err == nil && cents > 0 {
			return cents
		}
	}
	if cents, ok := dollarsToCents(payload["cost"]); ok {
		return cents
	}
	if rawRate, ok := payload["rate"]; ok {
		var rate map[string]json.RawMessage
		if err := json.Unmarshal(rawRate, &rate); err == nil {
			if cents, ok := dollarsToCents(rate["cost"]); ok {
				return cents
			}
		}
	}
	return 0
}

func dollarsToCents(raw json.RawMessage) (int64, bool) {
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
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) || dollars <= 0 {
		return 0, false
	}
	return int64(math.Round(dollars * 100)), true
}
