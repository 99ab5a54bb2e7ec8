// Package completion reconciles a person's action on a chore occurrence
// against the existing completion records and decides what to persist.
//
// The reconciler never mutates balances. When a completed record should
// trigger an allowance reward it only signals so via Outcome.RewardDue;
// the caller invokes the envelope ledger separately, keeping completion
// bookkeeping and ledger bookkeeping independently testable.
package completion

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hearthkeep/hearth/internal/domain"
)

// Action is the reconciler's verdict.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionToggle Action = "TOGGLE"
	ActionReject Action = "REJECT"
)

// Outcome is the result of reconciling one completion attempt.
// On CREATE and TOGGLE, Record holds the state to persist. On REJECT,
// RejectionReason is a user-facing message and Record is nil.
type Outcome struct {
	Action          Action
	Record          *domain.CompletionRecord
	RewardDue       bool
	RejectionReason string
}

// Record reconciles an attempt by markedBy to flip forPerson's
// completion state for (chore, date).
//
// Any household member may mark a chore on another's behalf; the
// resulting record keeps both identities. The up-for-grabs check is a
// best-effort first-writer-wins scan, not a lock: the persistence
// layer's native conflict handling governs truly concurrent writes,
// and a rejected second click is benign and re-checkable.
func Record(chore *domain.Chore, date time.Time, forPerson, markedBy domain.PersonID,
	existing []domain.CompletionRecord, names map[domain.PersonID]string, now time.Time) Outcome {

	date = domain.Day(date)

	if _, isGrabs := chore.Mode.(domain.UpForGrabs); isGrabs {
		for i := range existing {
			rec := &existing[i]
			if rec.ChoreID != chore.ID || !domain.SameDay(rec.DueDate, date) {
				continue
			}
			if rec.Completed && rec.PersonID != forPerson {
				name := names[rec.PersonID]
				if name == "" {
					name = string(rec.PersonID)
				}
				return Outcome{
					Action:          ActionReject,
					RejectionReason: fmt.Sprintf("already completed by %s", name),
				}
			}
		}
	}

	for i := range existing {
		rec := existing[i]
		if rec.ChoreID != chore.ID || rec.PersonID != forPerson || !domain.SameDay(rec.DueDate, date) {
			continue
		}

		// Toggle: flip completed, stamp or clear the time.
		rec.Completed = !rec.Completed
		rec.MarkedBy = markedBy
		if rec.Completed {
			t := now
			rec.CompletedAt = &t
		} else {
			rec.CompletedAt = nil
		}
		return Outcome{
			Action:    ActionToggle,
			Record:    &rec,
			RewardDue: rec.Completed && chore.Reward != nil && !rec.AllowanceAwarded,
		}
	}

	t := now
	rec := domain.CompletionRecord{
		ID:          uuid.NewString(),
		ChoreID:     chore.ID,
		DueDate:     date,
		PersonID:    forPerson,
		MarkedBy:    markedBy,
		Completed:   true,
		CompletedAt: &t,
	}
	return Outcome{
		Action:    ActionCreate,
		Record:    &rec,
		RewardDue: chore.Reward != nil,
	}
}

// RewardAmount computes the allowance credit for a completed chore.
// FIXED rewards pay Amount as-is; WEIGHT rewards scale Amount by the
// chore's weight.
func RewardAmount(chore *domain.Chore) (amount decimal.Decimal, currency string, ok bool) {
	if chore.Reward == nil {
		return decimal.Zero, "", false
	}
	amt := chore.Reward.Amount
	if chore.Reward.Type == domain.RewardWeight && chore.Weight > 0 {
		amt = amt.Mul(decimal.NewFromFloat(chore.Weight))
	}
	return amt, chore.Reward.Currency, true
}
