package allowance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hearthkeep/hearth/internal/domain"
)

// FreshWindow is how long a cached exchange rate counts as fresh.
const FreshWindow = 2 * time.Hour

// AnchorCurrency is the cross-rate anchor: only USD-based rates need
// periodic refresh, everything else triangulates through them.
const AnchorCurrency = "USD"

// RateSource tells where a resolved rate came from.
type RateSource string

const (
	SourceIdentity   RateSource = "identity"
	SourceDirect     RateSource = "direct"
	SourceCalculated RateSource = "calculated"
	SourceStale      RateSource = "stale"
)

// RateResult is the outcome of a rate lookup.
type RateResult struct {
	Rate         float64
	OK           bool
	Source       RateSource
	NeedsRefresh bool
	// Derived is a freshly triangulated pair worth writing back to the
	// cache; nil when nothing new was computed.
	Derived *domain.ExchangeRate
}

// Rate resolves the from→to exchange rate against the cache.
//
// Resolution order: identity, fresh direct pair, fresh USD cross-rate
// triangulation (to/from, caching the derivative), stale fallback
// (flagged NeedsRefresh), and finally no rate at all with NeedsRefresh
// set. The function never fetches; refreshing is the caller's job.
func Rate(from, to string, cache map[string]domain.ExchangeRate, now time.Time) RateResult {
	if from == to {
		return RateResult{Rate: 1, OK: true, Source: SourceIdentity}
	}

	direct, haveDirect := cache[domain.RatePairKey(from, to)]
	if haveDirect && fresh(direct, now) {
		return RateResult{Rate: direct.Rate, OK: true, Source: SourceDirect}
	}

	usdFrom, haveFrom := cache[domain.RatePairKey(AnchorCurrency, from)]
	usdTo, haveTo := cache[domain.RatePairKey(AnchorCurrency, to)]
	canCross := haveFrom && haveTo && usdFrom.Rate != 0

	if canCross && fresh(usdFrom, now) && fresh(usdTo, now) {
		rate := usdTo.Rate / usdFrom.Rate
		return RateResult{
			Rate:   rate,
			OK:     true,
			Source: SourceCalculated,
			Derived: &domain.ExchangeRate{
				Base:      from,
				Target:    to,
				Rate:      rate,
				FetchedAt: now,
			},
		}
	}

	// Stale fallbacks: better a dated rate than none, but flag it.
	if haveDirect {
		return RateResult{Rate: direct.Rate, OK: true, Source: SourceStale, NeedsRefresh: true}
	}
	if canCross {
		return RateResult{Rate: usdTo.Rate / usdFrom.Rate, OK: true, Source: SourceStale, NeedsRefresh: true}
	}

	return RateResult{NeedsRefresh: true}
}

func fresh(r domain.ExchangeRate, now time.Time) bool {
	return now.Sub(r.FetchedAt) < FreshWindow
}

// GoalProgress converts an envelope's balances into its goal currency
// and reports the total alongside the fraction of the goal reached.
// Currencies without a resolvable rate are skipped and flagged via
// needsRefresh.
func GoalProgress(env domain.Envelope, cache map[string]domain.ExchangeRate, now time.Time) (total decimal.Decimal, pct float64, needsRefresh bool) {
	if !env.HasGoal() {
		return decimal.Zero, 0, false
	}

	for currency, amount := range env.Balances {
		res := Rate(currency, env.GoalCurrency, cache, now)
		if res.NeedsRefresh {
			needsRefresh = true
		}
		if !res.OK {
			continue
		}
		total = total.Add(amount.Mul(decimal.NewFromFloat(res.Rate)))
	}

	ratio, _ := total.Div(env.GoalAmount).Float64()
	return total, ratio, needsRefresh
}
