package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Envelopes ──────────────────────────────────────────────────────────────

// Balances maps ISO currency code to a signed amount. A currency whose
// balance reaches exactly zero after a debit is removed from the map,
// not kept at zero.
type Balances map[string]decimal.Decimal

// Clone returns an independent copy of the balance map.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for cur, amt := range b {
		out[cur] = amt
	}
	return out
}

// Get returns the balance for a currency, zero when absent.
func (b Balances) Get(currency string) decimal.Decimal {
	if amt, ok := b[currency]; ok {
		return amt
	}
	return decimal.Zero
}

// Envelope is a named sub-account holding multi-currency balances for
// one person. Exactly one envelope per person is the default at all
// times; the ledger's set-default operation maintains that invariant.
type Envelope struct {
	ID           string          `json:"id"`
	OwnerID      PersonID        `json:"owner_id"`
	Name         string          `json:"name"`
	Balances     Balances        `json:"balances"`
	IsDefault    bool            `json:"is_default"`
	GoalAmount   decimal.Decimal `json:"goal_amount"`
	GoalCurrency string          `json:"goal_currency,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HasGoal reports whether a savings goal is configured.
func (e *Envelope) HasGoal() bool {
	return e.GoalCurrency != "" && e.GoalAmount.IsPositive()
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// EntryType is the kind of ledger entry.
type EntryType string

const (
	EntryDeposit     EntryType = "deposit"
	EntryWithdrawal  EntryType = "withdrawal"
	EntryTransferOut EntryType = "transfer-out"
	EntryTransferIn  EntryType = "transfer-in"
	EntryReward      EntryType = "reward"
)

// LedgerEntry is an append-only audit record of a balance change.
// Transfers and envelope deletions produce a pair of entries (out/in)
// with equal magnitude and opposite sign, sharing currency and
// description, so that summing all entries for a currency across
// envelopes nets to zero.
type LedgerEntry struct {
	ID           string          `json:"id"`
	EnvelopeID   string          `json:"envelope_id"`
	Counterparty string          `json:"counterparty,omitempty"`
	Type         EntryType       `json:"type"`
	Amount       decimal.Decimal `json:"amount"` // signed: credits positive, debits negative
	Currency     string          `json:"currency"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ─── Exchange rates ─────────────────────────────────────────────────────────

// ExchangeRate is one cached currency pair. Entries are valid within
// a fixed freshness window of FetchedAt; stale entries may still be
// served as a best-effort fallback, flagged for refresh.
type ExchangeRate struct {
	Base      string    `json:"base"`
	Target    string    `json:"target"`
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}

// RatePairKey builds the cache key for a currency pair.
func RatePairKey(base, target string) string {
	return base + "->" + target
}
