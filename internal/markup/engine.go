// Package markup turns vendor cost into customer sell price. The engine is
// pure: quantity tiers pick a multiplier, a margin floor bounds the result
// from below, and charm pricing nudges dollar-sized prices to a .99 ending.
package markup

import "math"

// Tier applies Multiplier to lines whose quantity falls in [MinQty, MaxQty].
// MaxQty 0 means open-ended. FloorPct, when higher than the global floor,
// tightens the minimum margin for the tier.
type Tier struct {
	MinQty     int
	MaxQty     int
	Multiplier float64
	FloorPct   float64
}

// Config is the full markup policy.
type Config struct {
	Tiers             []Tier
	DefaultMultiplier float64
	// MarginFloorPct is the minimum margin as a fraction of the sell price,
	// e.g. 0.3 guarantees sell >= cost / 0.7.
	MarginFloorPct float64
	// ApplyPerUnit marks the unit cost up and derives the line from it;
	// otherwise the line is marked up and the unit derived.
	ApplyPerUnit bool
	CharmPricing bool
}

// Quote is a priced line. UnitCents * qty always equals LineCents.
type Quote struct {
	UnitCents int64
	LineCents int64
}

// Price computes the sell price for a line with the given quantity and
// vendor line cost in cents.
func Price(cfg Config, qty int, lineCostCents int64) Quote {
	if qty < 1 {
		qty = 1
	}
	if lineCostCents < 0 {
		lineCostCents = 0
	}

	multiplier, floor := cfg.resolve(qty)

	if cfg.ApplyPerUnit {
		unitCost := int64(math.Round(float64(lineCostCents) / float64(qty)))
		unit := sellPrice(unitCost, multiplier, floor, cfg.CharmPricing)
		return Quote{UnitCents: unit, LineCents: unit * int64(qty)}
	}

	line := sellPrice(lineCostCents, multiplier, floor, cfg.CharmPricing)
	// Deriving the unit rounds up so the reconstructed line never undercuts
	// the margin floor.
	unit := int64(math.Ceil(float64(line) / float64(qty)))
	return Quote{UnitCents: unit, LineCents: unit * int64(qty)}
}

func (cfg Config) resolve(qty int) (multiplier, floor float64) {
	multiplier = cfg.DefaultMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	floor = cfg.MarginFloorPct
	for _, t := range cfg.Tiers {
		if qty < t.MinQty {
			continue
		}
		if t.MaxQty != 0 && qty > t.MaxQty {
			continue
		}
		if t.Multiplier > 0 {
			multiplier = t.Multiplier
		}
		if t.FloorPct > floor {
			floor = t.FloorPct
		}
		return multiplier, floor
	}
	return multiplier, floor
}

func sellPrice(costCents int64, multiplier, floor float64, charm bool) int64 {
	sell := int64(math.Round(float64(costCents) * multiplier))
	if floor > 0 && floor < 1 {
		minSell := int64(math.Ceil(float64(costCents) / (1 - floor)))
		if sell < minSell {
			sell = minSell
		}
	}
	if charm && sell >= 1000 {
		sell = charmUp(sell)
	}
	return sell
}

// charmUp rounds up to the next price ending in 99 cents.
func charmUp(cents int64) int64 {
	if cents%100 == 99 {
		return cents
	}
	return (cents/100+1)*100 - 1
}
