package schedule

import (
	"fmt"
	"time"

	"github.com/hearthkeep/hearth/internal/domain"
)

// ResponsibleOn determines who is responsible for a chore on a date.
//
// Responsibility is a pure derivation of (chore, date): no rotation
// pointer is stored anywhere, so recomputing it for any past or future
// date is idempotent and cannot drift when occurrences are skipped.
// The flip side is intentional: editing the rotation order or start
// date retroactively changes who "was" responsible for past dates.
//
// The empty set is a valid answer (no occurrence that day, or a chore
// nobody is assigned to); only recurrence parse failures error.
func ResponsibleOn(chore *domain.Chore, date time.Time) ([]domain.PersonID, error) {
	occurs, err := ChoreOccursOn(chore, date)
	if err != nil {
		return nil, err
	}
	if !occurs {
		return nil, nil
	}

	switch mode := chore.Mode.(type) {
	case domain.StaticAssignment:
		return append([]domain.PersonID(nil), mode.Assignees...), nil
	case domain.UpForGrabs:
		// Everyone eligible; first-come-first-served is the
		// completion reconciler's concern.
		return append([]domain.PersonID(nil), mode.Eligible...), nil
	case domain.RotatingAssignment:
		return rotationOn(chore, mode, date)
	default:
		return nil, nil
	}
}

// rotationOn resolves a rotating chore for a known occurrence date.
func rotationOn(chore *domain.Chore, mode domain.RotatingAssignment, date time.Time) ([]domain.PersonID, error) {
	if len(mode.Order) == 0 {
		return nil, nil
	}
	if mode.Joint {
		// Joint rotating chores hand the whole order responsibility
		// for every period.
		return append([]domain.PersonID(nil), mode.Order...), nil
	}

	idx, err := periodIndex(chore, mode.Period, date)
	if err != nil {
		return nil, err
	}
	return []domain.PersonID{mode.Order[idx%len(mode.Order)]}, nil
}

// periodIndex counts how many rotation periods have elapsed at date,
// starting from the chore's first occurrence.
//
// DAILY advances once per occurrence. WEEKLY and MONTHLY advance once
// per distinct ISO week / calendar month that actually contains an
// occurrence — a skipped week does not advance the rotation.
func periodIndex(chore *domain.Chore, period domain.RotationPeriod, date time.Time) (int, error) {
	if !chore.IsRecurring() {
		return 0, nil
	}

	if period == domain.RotateDaily {
		n, _, err := OccurrenceIndex(chore.Recurrence, date)
		if err != nil {
			return 0, err
		}
		return n, nil
	}

	occs, err := occurrencesThrough(chore.Recurrence, date)
	if err != nil {
		return 0, err
	}

	distinct := 0
	var prev string
	for _, occ := range occs {
		key := periodKey(occ, period)
		if key != prev {
			distinct++
			prev = key
		}
	}
	if distinct == 0 {
		return 0, nil
	}
	return distinct - 1, nil
}

// occurrencesThrough lists occurrences from the spec's start through
// date, inclusive.
func occurrencesThrough(spec *domain.RecurrenceSpec, date time.Time) ([]time.Time, error) {
	return OccurrencesInRange(spec, spec.StartDate, domain.Day(date).AddDate(0, 0, 1))
}

// periodKey buckets a date into its rotation period.
func periodKey(d time.Time, period domain.RotationPeriod) string {
	switch period {
	case domain.RotateWeekly:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case domain.RotateMonthly:
		return d.Format("2006-01")
	default:
		return d.Format(time.DateOnly)
	}
}
