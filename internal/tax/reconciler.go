// Package tax resolves the tax amount for a finalized order. The processor's
// tax calculation record is authoritative; when it cannot be fetched the
// amount is reconciled backwards from the charged total, and failing that the
// order is recorded with zero tax and an unknown source tag.
package tax

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Source tags recorded on the order alongside the tax amount.
const (
	SourceCalculation = "stripe_tax_calculation"
	SourceReconciled  = "reconciled_from_total"
	SourceUnknown     = "unknown"
)

// Result is a resolved tax amount and where it came from.
type Result struct {
	Cents  int64
	Source string
}

// CalculationFetcher retrieves the tax amount of a processor-side tax
// calculation record.
type CalculationFetcher interface {
	TaxCalculation(ctx context.Context, calculationID string) (int64, error)
}

// Reconciler resolves tax with a bounded fetch and arithmetic fallback.
type Reconciler struct {
	Calc    CalculationFetcher
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Resolve returns the tax for an order. netSubtotal is the discounted
// subtotal, shipping the selected shipping cost, chargedTotal the
// processor-reported amount (nil when the webhook omitted it). All cents.
func (r Reconciler) Resolve(ctx context.Context, calculationID string, netSubtotal, shipping int64, chargedTotal *int64) Result {
	if calculationID != "" && r.Calc != nil {
		timeout := r.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		cents, err := r.Calc.TaxCalculation(fetchCtx, calculationID)
		cancel()
		// A zero-yield calculation falls through to reconciliation; only a
		// positive figure is authoritative.
		if err == nil && cents > 0 {
			return Result{Cents: cents, Source: SourceCalculation}
		}
		if err != nil {
			r.Logger.Warn().Err(err).Str("calculation_id", calculationID).Msg("tax calculation fetch failed")
		}
	}

	if chargedTotal != nil {
		tax := *chargedTotal - netSubtotal - shipping
		if tax < 0 {
			tax = 0
		}
		return Result{Cents: tax, Source: SourceReconciled}
	}

	return Result{Cents: 0, Source: SourceUnknown}
}
