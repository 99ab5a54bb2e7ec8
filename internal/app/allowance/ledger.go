// Package allowance implements the envelope ledger: pure balance
// transforms plus paired audit-entry construction.
//
// Every primitive validates fully before building any mutation, so a
// failed precondition never leaves partial state. Results are new
// envelope values and ledger entries for the caller to persist; nothing
// here touches storage.
package allowance

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hearthkeep/hearth/internal/domain"
)

// DefaultEnvelopeName is the auto-created first envelope for a person.
const DefaultEnvelopeName = "Savings"

// NewSavings builds the default envelope auto-created when a person
// has none.
func NewSavings(owner domain.PersonID, now time.Time) domain.Envelope {
	return domain.Envelope{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Name:      DefaultEnvelopeName,
		Balances:  domain.Balances{},
		IsDefault: true,
		CreatedAt: now,
	}
}

// Deposit credits amount of currency into env. Returns the updated
// envelope and the audit entry.
func Deposit(env domain.Envelope, amount decimal.Decimal, currency, description string, now time.Time) (domain.Envelope, domain.LedgerEntry, error) {
	if err := checkAmount(amount, currency); err != nil {
		return env, domain.LedgerEntry{}, err
	}

	env.Balances = credit(env.Balances, currency, amount)
	entry := domain.LedgerEntry{
		ID:          uuid.NewString(),
		EnvelopeID:  env.ID,
		Type:        domain.EntryDeposit,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		CreatedAt:   now,
	}
	return env, entry, nil
}

// RewardCredit credits a completed chore's allowance into env. Same
// transform as Deposit, but the audit entry is typed as a reward so
// allowance income stays distinguishable from manual deposits.
func RewardCredit(env domain.Envelope, amount decimal.Decimal, currency, description string, now time.Time) (domain.Envelope, domain.LedgerEntry, error) {
	env, entry, err := Deposit(env, amount, currency, description, now)
	if err != nil {
		return env, entry, err
	}
	entry.Type = domain.EntryReward
	return env, entry, nil
}

// Withdraw debits amount of currency from env. The currency key is
// removed from the balance map when the result is exactly zero.
// The audit entry stores the amount as negative.
func Withdraw(env domain.Envelope, amount decimal.Decimal, currency, description string, now time.Time) (domain.Envelope, domain.LedgerEntry, error) {
	if err := checkAmount(amount, currency); err != nil {
		return env, domain.LedgerEntry{}, err
	}
	if amount.GreaterThan(env.Balances.Get(currency)) {
		return env, domain.LedgerEntry{}, fmt.Errorf("%w: %s %s in %q",
			domain.ErrInsufficientFunds, amount, currency, env.Name)
	}

	env.Balances = debit(env.Balances, currency, amount)
	entry := domain.LedgerEntry{
		ID:          uuid.NewString(),
		EnvelopeID:  env.ID,
		Type:        domain.EntryWithdrawal,
		Amount:      amount.Neg(),
		Currency:    currency,
		Description: description,
		CreatedAt:   now,
	}
	return env, entry, nil
}

// Transfer moves amount of currency from src to dst, producing a
// paired out/in entry set with equal magnitude and opposite sign so
// the ledger stays closed: summing all entries for a currency across
// envelopes nets to zero.
func Transfer(src, dst domain.Envelope, amount decimal.Decimal, currency, description string, now time.Time) (domain.Envelope, domain.Envelope, []domain.LedgerEntry, error) {
	if err := checkAmount(amount, currency); err != nil {
		return src, dst, nil, err
	}
	if src.ID == dst.ID {
		return src, dst, nil, fmt.Errorf("%w: cannot transfer an envelope to itself", domain.ErrValidation)
	}
	if amount.GreaterThan(src.Balances.Get(currency)) {
		return src, dst, nil, fmt.Errorf("%w: %s %s in %q",
			domain.ErrInsufficientFunds, amount, currency, src.Name)
	}

	src.Balances = debit(src.Balances, currency, amount)
	dst.Balances = credit(dst.Balances, currency, amount)
	entries := transferPair(src.ID, dst.ID, amount, currency, description, now)
	return src, dst, entries, nil
}

// DeleteOptions controls envelope-deletion edge cases.
type DeleteOptions struct {
	// CarryNegative also transfers negative balances to the surviving
	// envelope instead of silently dropping them. Off by default; the
	// drop-negatives behavior is a flagged product decision, so the
	// policy stays configurable rather than hardcoded.
	CarryNegative bool
}

// DeleteEnvelope removes the target envelope, moving every positive
// balance to transferTo via paired ledger entries. If the target was
// the default, newDefaultID must name the successor. Returns the
// surviving envelopes and the audit entries.
func DeleteEnvelope(all []domain.Envelope, targetID, transferToID, newDefaultID string, opts DeleteOptions, now time.Time) ([]domain.Envelope, []domain.LedgerEntry, error) {
	if targetID == transferToID {
		return nil, nil, fmt.Errorf("%w: cannot transfer balances to the envelope being deleted", domain.ErrValidation)
	}
	if len(all) <= 1 {
		return nil, nil, domain.ErrLastEnvelope
	}
	if newDefaultID == targetID {
		return nil, nil, fmt.Errorf("%w: deleted envelope cannot become the default", domain.ErrValidation)
	}

	target := find(all, targetID)
	dest := find(all, transferToID)
	if target == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrEnvelopeNotFound, targetID)
	}
	if dest == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrEnvelopeNotFound, transferToID)
	}
	if target.IsDefault && newDefaultID == "" {
		return nil, nil, domain.ErrNoDefault
	}
	if newDefaultID != "" && find(all, newDefaultID) == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrEnvelopeNotFound, newDefaultID)
	}

	destBalances := dest.Balances.Clone()
	var entries []domain.LedgerEntry
	for _, currency := range sortedCurrencies(target.Balances) {
		amount := target.Balances[currency]
		if amount.IsZero() {
			continue
		}
		if amount.IsNegative() && !opts.CarryNegative {
			continue
		}
		destBalances = credit(destBalances, currency, amount)
		entries = append(entries, transferPair(target.ID, dest.ID, amount, currency, "envelope deletion", now)...)
	}

	survivors := make([]domain.Envelope, 0, len(all)-1)
	for _, env := range all {
		if env.ID == targetID {
			continue
		}
		env.Balances = env.Balances.Clone()
		if env.ID == dest.ID {
			env.Balances = destBalances
		}
		if target.IsDefault {
			env.IsDefault = env.ID == newDefaultID
		}
		survivors = append(survivors, env)
	}
	return survivors, entries, nil
}

// SetDefault marks the named envelope as default, clearing whichever
// envelope previously held the flag in the same pass. Idempotent.
func SetDefault(all []domain.Envelope, id string) ([]domain.Envelope, error) {
	if find(all, id) == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEnvelopeNotFound, id)
	}
	out := make([]domain.Envelope, len(all))
	for i, env := range all {
		env.IsDefault = env.ID == id
		out[i] = env
	}
	return out, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func checkAmount(amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", domain.ErrValidation, amount)
	}
	if currency == "" {
		return fmt.Errorf("%w: currency is required", domain.ErrValidation)
	}
	return nil
}

// credit returns a copy of balances with amount added to currency.
func credit(balances domain.Balances, currency string, amount decimal.Decimal) domain.Balances {
	out := balances.Clone()
	out[currency] = out.Get(currency).Add(amount)
	if out[currency].IsZero() {
		delete(out, currency)
	}
	return out
}

// debit returns a copy of balances with amount subtracted, removing
// the key when the result is exactly zero.
func debit(balances domain.Balances, currency string, amount decimal.Decimal) domain.Balances {
	out := balances.Clone()
	rest := out.Get(currency).Sub(amount)
	if rest.IsZero() {
		delete(out, currency)
	} else {
		out[currency] = rest
	}
	return out
}

// transferPair builds the out/in audit pair for a movement between
// envelopes. Both entries share currency and description; magnitudes
// are equal with opposite sign.
func transferPair(fromID, toID string, amount decimal.Decimal, currency, description string, now time.Time) []domain.LedgerEntry {
	return []domain.LedgerEntry{
		{
			ID:           uuid.NewString(),
			EnvelopeID:   fromID,
			Counterparty: toID,
			Type:         domain.EntryTransferOut,
			Amount:       amount.Neg(),
			Currency:     currency,
			Description:  description,
			CreatedAt:    now,
		},
		{
			ID:           uuid.NewString(),
			EnvelopeID:   toID,
			Counterparty: fromID,
			Type:         domain.EntryTransferIn,
			Amount:       amount,
			Currency:     currency,
			Description:  description,
			CreatedAt:    now,
		},
	}
}

func find(all []domain.Envelope, id string) *domain.Envelope {
	for i := range all {
		if all[i].ID == id {
			return &all[i]
		}
	}
	return nil
}

func sortedCurrencies(b domain.Balances) []string {
	out := make([]string, 0, len(b))
	for cur := range b {
		out = append(out, cur)
	}
	sort.Strings(out)
	return out
}
