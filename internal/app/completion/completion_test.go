package completion

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hearthkeep/hearth/internal/domain"
)

var (
	alice = domain.PersonID("alice")
	bob   = domain.PersonID("bob")
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func staticChore(reward *domain.Reward) *domain.Chore {
	return &domain.Chore{
		ID:        "chore-1",
		Title:     "Dishes",
		StartDate: day(2024, time.January, 1),
		Mode:      domain.StaticAssignment{Assignees: []domain.PersonID{alice}},
		Reward:    reward,
	}
}

func TestRecordCreate(t *testing.T) {
	chore := staticChore(nil)
	now := time.Date(2024, time.January, 5, 18, 30, 0, 0, time.UTC)

	out := Record(chore, day(2024, time.January, 5), alice, alice, nil, nil, now)

	if out.Action != ActionCreate {
		t.Fatalf("action = %v, want CREATE", out.Action)
	}
	rec := out.Record
	if !rec.Completed {
		t.Error("new record should be completed")
	}
	if rec.CompletedAt == nil || !rec.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", rec.CompletedAt, now)
	}
	if !rec.DueDate.Equal(day(2024, time.January, 5)) {
		t.Errorf("DueDate = %v, want truncated day", rec.DueDate)
	}
	if out.RewardDue {
		t.Error("no reward configured, RewardDue should be false")
	}
}

func TestRecordCreateWithReward(t *testing.T) {
	chore := staticChore(&domain.Reward{
		Type:     domain.RewardFixed,
		Amount:   decimal.NewFromInt(5),
		Currency: "USD",
	})

	out := Record(chore, day(2024, time.January, 5), alice, alice, nil, nil, time.Now().UTC())
	if out.Action != ActionCreate || !out.RewardDue {
		t.Errorf("got (%v, rewardDue=%v), want CREATE with reward due", out.Action, out.RewardDue)
	}
}

func TestRecordMarkedByOther(t *testing.T) {
	// Bob marks the chore on Alice's behalf; both identities survive.
	chore := staticChore(nil)
	out := Record(chore, day(2024, time.January, 5), alice, bob, nil, nil, time.Now().UTC())

	if out.Record.PersonID != alice {
		t.Errorf("PersonID = %s, want alice", out.Record.PersonID)
	}
	if out.Record.MarkedBy != bob {
		t.Errorf("MarkedBy = %s, want bob", out.Record.MarkedBy)
	}
}

func TestRecordToggleOff(t *testing.T) {
	chore := staticChore(&domain.Reward{
		Type:     domain.RewardFixed,
		Amount:   decimal.NewFromInt(5),
		Currency: "USD",
	})
	due := day(2024, time.January, 5)
	completedAt := time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC)
	existing := []domain.CompletionRecord{{
		ID:          "rec-1",
		ChoreID:     chore.ID,
		DueDate:     due,
		PersonID:    alice,
		MarkedBy:    alice,
		Completed:   true,
		CompletedAt: &completedAt,
	}}

	out := Record(chore, due, alice, alice, existing, nil, time.Now().UTC())
	if out.Action != ActionToggle {
		t.Fatalf("action = %v, want TOGGLE", out.Action)
	}
	if out.Record.Completed {
		t.Error("toggle should have uncompleted the record")
	}
	if out.Record.CompletedAt != nil {
		t.Error("CompletedAt should be cleared on uncomplete")
	}
	if out.RewardDue {
		t.Error("uncompleting never triggers a reward")
	}
}

func TestRecordToggleBackOnAwardedOnce(t *testing.T) {
	// Re-completing a record that already paid out must not pay twice.
	chore := staticChore(&domain.Reward{
		Type:     domain.RewardFixed,
		Amount:   decimal.NewFromInt(5),
		Currency: "USD",
	})
	due := day(2024, time.January, 5)
	existing := []domain.CompletionRecord{{
		ID:               "rec-1",
		ChoreID:          chore.ID,
		DueDate:          due,
		PersonID:         alice,
		MarkedBy:         alice,
		Completed:        false,
		AllowanceAwarded: true,
	}}

	out := Record(chore, due, alice, alice, existing, nil, time.Now().UTC())
	if out.Action != ActionToggle || !out.Record.Completed {
		t.Fatalf("got (%v, completed=%v), want TOGGLE back on", out.Action, out.Record.Completed)
	}
	if out.RewardDue {
		t.Error("already-awarded record must not signal a second reward")
	}
}

func TestRecordUpForGrabsRejection(t *testing.T) {
	chore := &domain.Chore{
		ID:        "chore-grabs",
		Title:     "Walk the dog",
		StartDate: day(2024, time.January, 1),
		Mode:      domain.UpForGrabs{Eligible: []domain.PersonID{alice, bob}},
	}
	due := day(2024, time.January, 5)
	completedAt := time.Date(2024, time.January, 5, 8, 0, 0, 0, time.UTC)
	existing := []domain.CompletionRecord{{
		ID:          "rec-1",
		ChoreID:     chore.ID,
		DueDate:     due,
		PersonID:    alice,
		MarkedBy:    alice,
		Completed:   true,
		CompletedAt: &completedAt,
	}}
	names := map[domain.PersonID]string{alice: "Alice", bob: "Bob"}

	out := Record(chore, due, bob, bob, existing, names, time.Now().UTC())
	if out.Action != ActionReject {
		t.Fatalf("action = %v, want REJECT", out.Action)
	}
	if !strings.Contains(out.RejectionReason, "Alice") {
		t.Errorf("rejection should name the completer, got %q", out.RejectionReason)
	}
	if out.Record != nil {
		t.Error("rejection must not carry a record")
	}
}

func TestRecordUpForGrabsOwnToggleAllowed(t *testing.T) {
	// The person who claimed it can still toggle their own record off.
	chore := &domain.Chore{
		ID:        "chore-grabs",
		Title:     "Walk the dog",
		StartDate: day(2024, time.January, 1),
		Mode:      domain.UpForGrabs{Eligible: []domain.PersonID{alice, bob}},
	}
	due := day(2024, time.January, 5)
	completedAt := time.Date(2024, time.January, 5, 8, 0, 0, 0, time.UTC)
	existing := []domain.CompletionRecord{{
		ID:          "rec-1",
		ChoreID:     chore.ID,
		DueDate:     due,
		PersonID:    alice,
		MarkedBy:    alice,
		Completed:   true,
		CompletedAt: &completedAt,
	}}

	out := Record(chore, due, alice, alice, existing, nil, time.Now().UTC())
	if out.Action != ActionToggle || out.Record.Completed {
		t.Errorf("got (%v, completed=%v), want TOGGLE off", out.Action, out.Record.Completed)
	}
}

func TestRewardAmount(t *testing.T) {
	tests := []struct {
		name  string
		chore domain.Chore
		want  string
		ok    bool
	}{
		{
			name: "fixed",
			chore: domain.Chore{
				Weight: 3,
				Reward: &domain.Reward{Type: domain.RewardFixed, Amount: decimal.NewFromInt(5), Currency: "USD"},
			},
			want: "5", ok: true,
		},
		{
			name: "weight scaled",
			chore: domain.Chore{
				Weight: 2.5,
				Reward: &domain.Reward{Type: domain.RewardWeight, Amount: decimal.NewFromInt(2), Currency: "EUR"},
			},
			want: "5", ok: true,
		},
		{
			name:  "no reward",
			chore: domain.Chore{Weight: 1},
			want:  "0", ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amt, _, ok := RewardAmount(&tt.chore)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if amt.String() != tt.want {
				t.Errorf("amount = %s, want %s", amt, tt.want)
			}
		})
	}
}
