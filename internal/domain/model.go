// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of the service — it depends on nothing but
// the decimal type used for money.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── People ─────────────────────────────────────────────────────────────────

// PersonID identifies a household member.
type PersonID string

// Person is a household member.
type Person struct {
	ID        PersonID  `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ─── Recurrence ─────────────────────────────────────────────────────────────

// Frequency is the base period of a recurrence rule.
type Frequency string

const (
	FreqNone    Frequency = "NONE"
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
)

// RecurrenceSpec describes when a chore repeats. Immutable once built.
// ByWeekday is only meaningful for WEEKLY, ByMonthDay only for MONTHLY.
type RecurrenceSpec struct {
	Frequency  Frequency      `json:"frequency"`
	Interval   int            `json:"interval"`
	ByWeekday  []time.Weekday `json:"by_weekday,omitempty"`
	ByMonthDay []int          `json:"by_month_day,omitempty"`
	StartDate  time.Time      `json:"start_date"`
}

// Day truncates t to UTC midnight. All due dates in the system are
// calendar days, identical regardless of viewer timezone.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// ─── Assignment ─────────────────────────────────────────────────────────────

// RotationPeriod is the granularity at which a rotating chore advances.
type RotationPeriod string

const (
	RotateDaily   RotationPeriod = "DAILY"
	RotateWeekly  RotationPeriod = "WEEKLY"
	RotateMonthly RotationPeriod = "MONTHLY"
)

// AssignmentMode is a closed set of ways responsibility is derived.
// Modeling it as a sum type keeps up-for-grabs and rotation from
// coexisting on the same chore.
type AssignmentMode interface {
	assignmentMode()
}

// StaticAssignment gives the same people responsibility on every occurrence.
type StaticAssignment struct {
	Assignees []PersonID `json:"assignees"`
}

// RotatingAssignment cycles through Order, advancing once per Period.
// Joint chores hand the whole order responsibility together.
type RotatingAssignment struct {
	Order  []PersonID     `json:"order"`
	Period RotationPeriod `json:"period"`
	Joint  bool           `json:"joint"`
}

// UpForGrabs lets any eligible person claim an occurrence, first come
// first served. Enforcement of "first" lives in the completion
// reconciler, not here.
type UpForGrabs struct {
	Eligible []PersonID `json:"eligible"`
}

func (StaticAssignment) assignmentMode()   {}
func (RotatingAssignment) assignmentMode() {}
func (UpForGrabs) assignmentMode()         {}

// ─── Chores ─────────────────────────────────────────────────────────────────

// RewardType selects how a completed chore is valued.
type RewardType string

const (
	RewardFixed  RewardType = "FIXED"
	RewardWeight RewardType = "WEIGHT"
)

// Reward is an allowance credit granted on completion.
type Reward struct {
	Type     RewardType      `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Chore is a household obligation, one-time or recurring.
// Recurrence nil means the chore occurs only on StartDate.
type Chore struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	StartDate  time.Time       `json:"start_date"`
	Recurrence *RecurrenceSpec `json:"recurrence,omitempty"`
	Mode       AssignmentMode  `json:"-"`
	Weight     float64         `json:"weight,omitempty"`
	Reward     *Reward         `json:"reward,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// IsRecurring reports whether the chore has a recurrence rule.
func (c *Chore) IsRecurring() bool {
	return c.Recurrence != nil && c.Recurrence.Frequency != FreqNone
}

// ─── Completions ────────────────────────────────────────────────────────────

// CompletionRecord tracks one person's completion state for one chore
// occurrence. PersonID is who the completion is FOR; MarkedBy is who
// performed the action (any member may mark on another's behalf).
type CompletionRecord struct {
	ID               string     `json:"id"`
	ChoreID          string     `json:"chore_id"`
	DueDate          time.Time  `json:"due_date"`
	PersonID         PersonID   `json:"person_id"`
	MarkedBy         PersonID   `json:"marked_by"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	AllowanceAwarded bool       `json:"allowance_awarded"`
}
