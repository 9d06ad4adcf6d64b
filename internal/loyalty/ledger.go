// Package loyalty manages customer point wallets. Point math lives in pure
// functions; wallet mutations go through Service.Adjust, which pairs every
// balance change with an audit transaction row.
package loyalty

// Config is the loyalty program policy.
type Config struct {
	// EarnPerDollar is how many points a whole dollar of order total earns.
	EarnPerDollar int64
	// RedeemMinPoints is the smallest redeemable amount; requests below it
	// normalize to zero.
	RedeemMinPoints int64
	// RedeemIncrement is the redemption step; requests round down to it.
	RedeemIncrement int64
	// CentsPerHundredPoints sets the cash value of 100 points.
	CentsPerHundredPoints int64
}

// DefaultConfig mirrors the standard program: 1 point per dollar, redeem in
// steps of 100 from a 200 point minimum, 100 points worth one dollar.
func DefaultConfig() Config {
	return Config{
		EarnPerDollar:         1,
		RedeemMinPoints:       200,
		RedeemIncrement:       100,
		CentsPerHundredPoints: 100,
	}
}

// Earn returns the points earned for an order total in cents. Partial
// dollars do not earn.
func (c Config) Earn(amountCents int64) int64 {
	if amountCents <= 0 || c.EarnPerDollar <= 0 {
		return 0
	}
	return amountCents / 100 * c.EarnPerDollar
}

// NormalizeRedeem clamps a requested redemption to program rules: zero when
// below the minimum, otherwise rounded down to the redemption increment.
func (c Config) NormalizeRedeem(points int64) int64 {
	if points < c.RedeemMinPoints || points <= 0 {
		return 0
	}
	if c.RedeemIncrement > 1 {
		points -= points % c.RedeemIncrement
	}
	if points < c.RedeemMinPoints {
		return 0
	}
	return points
}

// CreditCents converts points into their cash value in cents.
func (c Config) CreditCents(points int64) int64 {
	if points <= 0 || c.CentsPerHundredPoints <= 0 {
		return 0
	}
	return points * c.CentsPerHundredPoints / 100
}
