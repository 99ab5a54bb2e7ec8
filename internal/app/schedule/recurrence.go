// Package schedule derives chore occurrences and responsibility from
// pure data. It is the pipeline the calendar renders through:
// recurrence → assignment, one call per date, no stored state.
//
// Recurrence evaluation is delegated to the RFC 5545 engine
// (teambition/rrule-go); this package maps the household RecurrenceSpec
// onto it and enforces the system's day-granularity rules:
//   - all arithmetic in UTC calendar days
//   - a month-day absent from a month (31 in February) is skipped, not clamped
//   - interval <= 0 defaults to 1
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/hearthkeep/hearth/internal/domain"
)

// weekdayMap translates time.Weekday (Sunday = 0) to RFC 5545 weekdays.
var weekdayMap = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// OccurrencesInRange returns the sorted, deduplicated UTC-midnight
// dates on which spec occurs within [from, to).
//
// An unparseable spec yields an empty slice and an error wrapping
// domain.ErrRecurrenceParse. Callers must treat that as a single
// failed evaluation, never as "no occurrences forever".
func OccurrencesInRange(spec *domain.RecurrenceSpec, from, to time.Time) ([]time.Time, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil spec", domain.ErrRecurrenceParse)
	}
	from, to = domain.Day(from), domain.Day(to)
	if !from.Before(to) {
		return nil, nil
	}

	start := domain.Day(spec.StartDate)
	if spec.Frequency == domain.FreqNone {
		if !start.Before(from) && start.Before(to) {
			return []time.Time{start}, nil
		}
		return nil, nil
	}

	r, err := ruleFor(spec)
	if err != nil {
		return nil, err
	}

	// Between is inclusive on both ends; all occurrences sit at
	// midnight, so backing off one second excludes `to` itself.
	occs := r.Between(from, to.Add(-time.Second), true)
	return dedupeDays(occs), nil
}

// OccurrenceIndex returns the zero-based position of date within the
// full occurrence sequence starting at spec.StartDate, and whether
// date is an occurrence at all.
func OccurrenceIndex(spec *domain.RecurrenceSpec, date time.Time) (int, bool, error) {
	if spec == nil {
		return -1, false, fmt.Errorf("%w: nil spec", domain.ErrRecurrenceParse)
	}
	date = domain.Day(date)
	start := domain.Day(spec.StartDate)

	if spec.Frequency == domain.FreqNone {
		if date.Equal(start) {
			return 0, true, nil
		}
		return -1, false, nil
	}
	if date.Before(start) {
		return -1, false, nil
	}

	r, err := ruleFor(spec)
	if err != nil {
		return -1, false, err
	}

	occs := dedupeDays(r.Between(start, date, true))
	if len(occs) == 0 || !occs[len(occs)-1].Equal(date) {
		return -1, false, nil
	}
	return len(occs) - 1, true, nil
}

// ruleFor builds the RFC 5545 rule for a spec.
func ruleFor(spec *domain.RecurrenceSpec) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Dtstart:  domain.Day(spec.StartDate),
		Interval: spec.Interval,
	}
	if opt.Interval <= 0 {
		opt.Interval = 1
	}

	switch spec.Frequency {
	case domain.FreqDaily:
		opt.Freq = rrule.DAILY
	case domain.FreqWeekly:
		opt.Freq = rrule.WEEKLY
		for _, wd := range spec.ByWeekday {
			if wd < time.Sunday || wd > time.Saturday {
				return nil, fmt.Errorf("%w: weekday %d out of range", domain.ErrRecurrenceParse, wd)
			}
			opt.Byweekday = append(opt.Byweekday, weekdayMap[wd])
		}
	case domain.FreqMonthly:
		opt.Freq = rrule.MONTHLY
		for _, md := range spec.ByMonthDay {
			if md < 1 || md > 31 {
				return nil, fmt.Errorf("%w: month day %d out of range", domain.ErrRecurrenceParse, md)
			}
			opt.Bymonthday = append(opt.Bymonthday, md)
		}
	default:
		return nil, fmt.Errorf("%w: unknown frequency %q", domain.ErrRecurrenceParse, spec.Frequency)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecurrenceParse, err)
	}
	return r, nil
}

// dedupeDays normalizes evaluator output to sorted unique UTC days.
func dedupeDays(ts []time.Time) []time.Time {
	if len(ts) == 0 {
		return nil
	}
	out := make([]time.Time, 0, len(ts))
	seen := make(map[time.Time]struct{}, len(ts))
	for _, t := range ts {
		d := domain.Day(t)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// ChoreOccursOn reports whether a chore has an occurrence on date.
// One-time chores occur only on their start date.
func ChoreOccursOn(chore *domain.Chore, date time.Time) (bool, error) {
	if !chore.IsRecurring() {
		return domain.SameDay(chore.StartDate, date), nil
	}
	_, ok, err := OccurrenceIndex(chore.Recurrence, date)
	return ok, err
}

// ChoreOccurrences lists a chore's occurrences within [from, to).
func ChoreOccurrences(chore *domain.Chore, from, to time.Time) ([]time.Time, error) {
	if !chore.IsRecurring() {
		start := domain.Day(chore.StartDate)
		if !start.Before(domain.Day(from)) && start.Before(domain.Day(to)) {
			return []time.Time{start}, nil
		}
		return nil, nil
	}
	return OccurrencesInRange(chore.Recurrence, from, to)
}
