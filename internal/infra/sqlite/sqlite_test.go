package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hearthkeep/hearth/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var testNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func TestPersonRoundTrip(t *testing.T) {
	db := newTestDB(t)

	p := domain.Person{ID: "alice", Name: "Alice", Color: "#ff8800", CreatedAt: testNow}
	if err := db.UpsertPerson(p); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetPerson("alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Alice" || got.Color != "#ff8800" {
		t.Errorf("got %+v", got)
	}

	// Upsert updates in place.
	p.Name = "Alice B"
	if err := db.UpsertPerson(p); err != nil {
		t.Fatal(err)
	}
	people, err := db.ListPeople()
	if err != nil {
		t.Fatal(err)
	}
	if len(people) != 1 || people[0].Name != "Alice B" {
		t.Errorf("got %+v", people)
	}

	if _, err := db.GetPerson("nobody"); !errors.Is(err, domain.ErrPersonNotFound) {
		t.Errorf("err = %v, want ErrPersonNotFound", err)
	}
}

func TestChoreRoundTripRotating(t *testing.T) {
	db := newTestDB(t)

	chore := domain.Chore{
		ID:        "c1",
		Title:     "Vacuum",
		StartDate: day(2024, time.January, 1),
		Recurrence: &domain.RecurrenceSpec{
			Frequency: domain.FreqWeekly,
			Interval:  2,
			ByWeekday: []time.Weekday{time.Monday, time.Thursday},
			StartDate: day(2024, time.January, 1),
		},
		Mode: domain.RotatingAssignment{
			Order:  []domain.PersonID{"alice", "bob"},
			Period: domain.RotateWeekly,
			Joint:  false,
		},
		Weight: 2,
		Reward: &domain.Reward{
			Type:     domain.RewardWeight,
			Amount:   decimal.RequireFromString("1.50"),
			Currency: "USD",
		},
		CreatedAt: testNow,
	}
	if err := db.UpsertChore(chore); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetChore("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Recurrence == nil {
		t.Fatal("recurrence lost")
	}
	if got.Recurrence.Interval != 2 || len(got.Recurrence.ByWeekday) != 2 {
		t.Errorf("recurrence = %+v", got.Recurrence)
	}
	mode, ok := got.Mode.(domain.RotatingAssignment)
	if !ok {
		t.Fatalf("mode = %T, want RotatingAssignment", got.Mode)
	}
	if len(mode.Order) != 2 || mode.Period != domain.RotateWeekly || mode.Joint {
		t.Errorf("mode = %+v", mode)
	}
	if got.Reward == nil || !got.Reward.Amount.Equal(decimal.RequireFromString("1.50")) {
		t.Errorf("reward = %+v", got.Reward)
	}
}

func TestChoreRoundTripUpForGrabs(t *testing.T) {
	db := newTestDB(t)

	chore := domain.Chore{
		ID:        "c2",
		Title:     "Walk dog",
		StartDate: day(2024, time.March, 1),
		Mode:      domain.UpForGrabs{Eligible: []domain.PersonID{"alice", "bob", "cara"}},
		CreatedAt: testNow,
	}
	if err := db.UpsertChore(chore); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetChore("c2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Recurrence != nil {
		t.Error("one-time chore grew a recurrence")
	}
	mode, ok := got.Mode.(domain.UpForGrabs)
	if !ok || len(mode.Eligible) != 3 {
		t.Errorf("mode = %+v (%T)", got.Mode, got.Mode)
	}
	if got.Reward != nil {
		t.Error("rewardless chore grew a reward")
	}
}

func TestDeleteChoreCascades(t *testing.T) {
	db := newTestDB(t)

	chore := domain.Chore{
		ID:        "c1",
		Title:     "Dishes",
		StartDate: day(2024, time.January, 1),
		Mode:      domain.StaticAssignment{Assignees: []domain.PersonID{"alice"}},
		CreatedAt: testNow,
	}
	if err := db.UpsertChore(chore); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveCompletion(domain.CompletionRecord{
		ID: "r1", ChoreID: "c1", DueDate: day(2024, time.January, 2),
		PersonID: "alice", MarkedBy: "alice", Completed: true,
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteChore("c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetChore("c1"); !errors.Is(err, domain.ErrChoreNotFound) {
		t.Errorf("err = %v, want ErrChoreNotFound", err)
	}
	recs, err := db.CompletionsFor("c1", day(2024, time.January, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("completions survived the cascade: %v", recs)
	}

	if err := db.DeleteChore("c1"); !errors.Is(err, domain.ErrChoreNotFound) {
		t.Errorf("double delete err = %v, want ErrChoreNotFound", err)
	}
}

func TestCompletionUpsertOnTriple(t *testing.T) {
	db := newTestDB(t)

	due := day(2024, time.May, 10)
	completedAt := testNow
	rec := domain.CompletionRecord{
		ID: "r1", ChoreID: "c1", DueDate: due,
		PersonID: "alice", MarkedBy: "alice",
		Completed: true, CompletedAt: &completedAt,
	}
	if err := db.SaveCompletion(rec); err != nil {
		t.Fatal(err)
	}

	// Toggling writes through the same (chore, due, person) slot.
	rec.Completed = false
	rec.CompletedAt = nil
	rec.MarkedBy = "bob"
	if err := db.SaveCompletion(rec); err != nil {
		t.Fatal(err)
	}

	recs, err := db.CompletionsFor("c1", due)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want the upsert to keep one", len(recs))
	}
	if recs[0].Completed || recs[0].CompletedAt != nil || recs[0].MarkedBy != "bob" {
		t.Errorf("got %+v", recs[0])
	}
}

func TestCompletionsInRange(t *testing.T) {
	db := newTestDB(t)

	for i, d := range []time.Time{
		day(2024, time.May, 1),
		day(2024, time.May, 15),
		day(2024, time.June, 1), // outside [May 1, June 1)
	} {
		rec := domain.CompletionRecord{
			ID: string(rune('a' + i)), ChoreID: "c1", DueDate: d,
			PersonID: "alice", MarkedBy: "alice", Completed: true,
		}
		if err := db.SaveCompletion(rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := db.CompletionsInRange(day(2024, time.May, 1), day(2024, time.June, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2 (end exclusive)", len(recs))
	}
}

func TestMarkAwarded(t *testing.T) {
	db := newTestDB(t)

	rec := domain.CompletionRecord{
		ID: "r1", ChoreID: "c1", DueDate: day(2024, time.May, 1),
		PersonID: "alice", MarkedBy: "alice", Completed: true,
	}
	if err := db.SaveCompletion(rec); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkAwarded("r1"); err != nil {
		t.Fatal(err)
	}

	recs, err := db.CompletionsFor("c1", day(2024, time.May, 1))
	if err != nil {
		t.Fatal(err)
	}
	if !recs[0].AllowanceAwarded {
		t.Error("AllowanceAwarded not persisted")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	db := newTestDB(t)

	env := domain.Envelope{
		ID:      "e1",
		OwnerID: "alice",
		Name:    "Bike fund",
		Balances: domain.Balances{
			"USD": decimal.RequireFromString("12.50"),
			"EUR": decimal.RequireFromString("3"),
		},
		IsDefault:    true,
		GoalAmount:   decimal.RequireFromString("200"),
		GoalCurrency: "USD",
		CreatedAt:    testNow,
	}
	if err := db.SaveEnvelope(env); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetEnvelope("e1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Balances.Get("USD").Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("USD = %s", got.Balances.Get("USD"))
	}
	if !got.IsDefault || !got.HasGoal() {
		t.Errorf("got %+v", got)
	}

	if _, err := db.GetEnvelope("nope"); !errors.Is(err, domain.ErrEnvelopeNotFound) {
		t.Errorf("err = %v, want ErrEnvelopeNotFound", err)
	}
}

func TestEnvelopesForDefaultFirst(t *testing.T) {
	db := newTestDB(t)

	for _, env := range []domain.Envelope{
		{ID: "e1", OwnerID: "alice", Name: "Fun", Balances: domain.Balances{}, CreatedAt: testNow},
		{ID: "e2", OwnerID: "alice", Name: "Savings", Balances: domain.Balances{}, IsDefault: true, CreatedAt: testNow.Add(time.Minute)},
		{ID: "e3", OwnerID: "bob", Name: "Other", Balances: domain.Balances{}, IsDefault: true, CreatedAt: testNow},
	} {
		if err := db.SaveEnvelope(env); err != nil {
			t.Fatal(err)
		}
	}

	envs, err := db.EnvelopesFor("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(envs) != 2 {
		t.Fatalf("got %d envelopes, want alice's 2", len(envs))
	}
	if envs[0].ID != "e2" {
		t.Errorf("default should sort first, got %s", envs[0].ID)
	}
}

func TestApplyLedgerMutation(t *testing.T) {
	db := newTestDB(t)

	keep := domain.Envelope{ID: "keep", OwnerID: "alice", Name: "Keep", Balances: domain.Balances{}, IsDefault: true, CreatedAt: testNow}
	gone := domain.Envelope{ID: "gone", OwnerID: "alice", Name: "Gone", Balances: domain.Balances{}, CreatedAt: testNow}
	for _, env := range []domain.Envelope{keep, gone} {
		if err := db.SaveEnvelope(env); err != nil {
			t.Fatal(err)
		}
	}

	keep.Balances = domain.Balances{"USD": decimal.RequireFromString("5")}
	entries := []domain.LedgerEntry{
		{ID: "l1", EnvelopeID: "gone", Counterparty: "keep", Type: domain.EntryTransferOut, Amount: decimal.RequireFromString("-5"), Currency: "USD", CreatedAt: testNow},
		{ID: "l2", EnvelopeID: "keep", Counterparty: "gone", Type: domain.EntryTransferIn, Amount: decimal.RequireFromString("5"), Currency: "USD", CreatedAt: testNow},
	}
	if err := db.ApplyLedgerMutation([]domain.Envelope{keep}, "gone", entries); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetEnvelope("gone"); !errors.Is(err, domain.ErrEnvelopeNotFound) {
		t.Errorf("deleted envelope err = %v, want ErrEnvelopeNotFound", err)
	}
	got, err := db.GetEnvelope("keep")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Balances.Get("USD").Equal(decimal.RequireFromString("5")) {
		t.Errorf("USD = %s, want 5", got.Balances.Get("USD"))
	}

	ledger, err := db.LedgerFor("keep", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ledger) != 1 || ledger[0].Type != domain.EntryTransferIn {
		t.Errorf("ledger = %+v", ledger)
	}
}

func TestRateRoundTrip(t *testing.T) {
	db := newTestDB(t)

	r := domain.ExchangeRate{Base: "USD", Target: "EUR", Rate: 0.91, FetchedAt: testNow}
	if err := db.UpsertRate(r); err != nil {
		t.Fatal(err)
	}
	// Upsert refreshes in place.
	r.Rate = 0.92
	r.FetchedAt = testNow.Add(time.Hour)
	if err := db.UpsertRate(r); err != nil {
		t.Fatal(err)
	}

	cache, err := db.LoadRates()
	if err != nil {
		t.Fatal(err)
	}
	got, ok := cache[domain.RatePairKey("USD", "EUR")]
	if !ok {
		t.Fatal("pair missing from cache")
	}
	if got.Rate != 0.92 {
		t.Errorf("rate = %v, want the upserted 0.92", got.Rate)
	}
}
