package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hearthkeep/hearth/internal/app/allowance"
	"github.com/hearthkeep/hearth/internal/app/completion"
	"github.com/hearthkeep/hearth/internal/app/schedule"
	"github.com/hearthkeep/hearth/internal/domain"
	"github.com/hearthkeep/hearth/internal/infra/observability"
)

// ─── People ─────────────────────────────────────────────────────────────────

// HandleListPeople is GET /api/people.
func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.db.ListPeople()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"people": people})
}

// handleCreatePerson is POST /api/people.
func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := domain.Person{
		ID:        domain.PersonID(uuid.NewString()),
		Name:      req.Name,
		Color:     req.Color,
		CreatedAt: s.now(),
	}
	if err := s.db.UpsertPerson(p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ─── Chores ─────────────────────────────────────────────────────────────────

// Chore request/response shapes. The assignment mode travels as a
// discriminated "mode" field so the two rotation-vs-grabs flags can
// never contradict each other on the wire.
type choreRequest struct {
	Title          string             `json:"title"`
	StartDate      string             `json:"start_date"`
	Recurrence     *recurrenceRequest `json:"recurrence,omitempty"`
	Mode           string             `json:"mode"`
	Assignees      []string           `json:"assignees,omitempty"`
	RotationOrder  []string           `json:"rotation_order,omitempty"`
	RotationPeriod string             `json:"rotation_period,omitempty"`
	Joint          bool               `json:"joint,omitempty"`
	Weight         float64            `json:"weight,omitempty"`
	Reward         *rewardRequest     `json:"reward,omitempty"`
}

type recurrenceRequest struct {
	Frequency  string `json:"frequency"`
	Interval   int    `json:"interval"`
	ByWeekday  []int  `json:"by_weekday,omitempty"`
	ByMonthDay []int  `json:"by_month_day,omitempty"`
}

type rewardRequest struct {
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

const (
	modeStatic     = "static"
	modeRotating   = "rotating"
	modeUpForGrabs = "up_for_grabs"
)

func (req *choreRequest) toChore(id string, now time.Time) (domain.Chore, error) {
	if req.Title == "" {
		return domain.Chore{}, fmt.Errorf("title is required")
	}
	start, err := time.ParseInLocation(time.DateOnly, req.StartDate, time.UTC)
	if err != nil {
		return domain.Chore{}, fmt.Errorf("start_date must be YYYY-MM-DD")
	}

	c := domain.Chore{
		ID:        id,
		Title:     req.Title,
		StartDate: start,
		Weight:    req.Weight,
		CreatedAt: now,
	}

	if req.Recurrence != nil {
		freq := domain.Frequency(req.Recurrence.Frequency)
		switch freq {
		case domain.FreqNone:
			// One-time chore; leave recurrence nil.
		case domain.FreqDaily, domain.FreqWeekly, domain.FreqMonthly:
			spec := domain.RecurrenceSpec{
				Frequency:  freq,
				Interval:   req.Recurrence.Interval,
				ByMonthDay: req.Recurrence.ByMonthDay,
				StartDate:  start,
			}
			for _, wd := range req.Recurrence.ByWeekday {
				if wd < 0 || wd > 6 {
					return domain.Chore{}, fmt.Errorf("by_weekday values must be 0 (Sunday) through 6")
				}
				spec.ByWeekday = append(spec.ByWeekday, time.Weekday(wd))
			}
			c.Recurrence = &spec
		default:
			return domain.Chore{}, fmt.Errorf("unknown frequency %q", req.Recurrence.Frequency)
		}
	}

	switch req.Mode {
	case modeStatic, "":
		c.Mode = domain.StaticAssignment{Assignees: toPersonIDs(req.Assignees)}
	case modeUpForGrabs:
		c.Mode = domain.UpForGrabs{Eligible: toPersonIDs(req.Assignees)}
	case modeRotating:
		period := domain.RotationPeriod(req.RotationPeriod)
		switch period {
		case domain.RotateDaily, domain.RotateWeekly, domain.RotateMonthly:
		default:
			return domain.Chore{}, fmt.Errorf("rotation_period must be DAILY, WEEKLY or MONTHLY")
		}
		c.Mode = domain.RotatingAssignment{
			Order:  toPersonIDs(req.RotationOrder),
			Period: period,
			Joint:  req.Joint,
		}
	default:
		return domain.Chore{}, fmt.Errorf("unknown mode %q", req.Mode)
	}

	if req.Reward != nil {
		rt := domain.RewardType(req.Reward.Type)
		if rt != domain.RewardFixed && rt != domain.RewardWeight {
			return domain.Chore{}, fmt.Errorf("reward type must be FIXED or WEIGHT")
		}
		amt, err := decimal.NewFromString(req.Reward.Amount)
		if err != nil || !amt.IsPositive() {
			return domain.Chore{}, fmt.Errorf("reward amount must be a positive decimal")
		}
		if req.Reward.Currency == "" {
			return domain.Chore{}, fmt.Errorf("reward currency is required")
		}
		c.Reward = &domain.Reward{Type: rt, Amount: amt, Currency: req.Reward.Currency}
	}
	return c, nil
}

func toPersonIDs(in []string) []domain.PersonID {
	out := make([]domain.PersonID, len(in))
	for i, s := range in {
		out[i] = domain.PersonID(s)
	}
	return out
}

// choreJSON flattens a chore (including its interface-typed mode) for
// the wire.
func choreJSON(c domain.Chore) map[string]interface{} {
	out := map[string]interface{}{
		"id":         c.ID,
		"title":      c.Title,
		"start_date": domain.Day(c.StartDate).Format(time.DateOnly),
		"weight":     c.Weight,
		"created_at": c.CreatedAt,
	}
	if c.Recurrence != nil {
		out["recurrence"] = c.Recurrence
	}
	switch mode := c.Mode.(type) {
	case domain.RotatingAssignment:
		out["mode"] = modeRotating
		out["rotation_order"] = mode.Order
		out["rotation_period"] = mode.Period
		out["joint"] = mode.Joint
	case domain.UpForGrabs:
		out["mode"] = modeUpForGrabs
		out["assignees"] = mode.Eligible
	case domain.StaticAssignment:
		out["mode"] = modeStatic
		out["assignees"] = mode.Assignees
	}
	if c.Reward != nil {
		out["reward"] = c.Reward
	}
	return out
}

// handleListChores is GET /api/chores.
func (s *Server) handleListChores(w http.ResponseWriter, r *http.Request) {
	chores, err := s.db.ListChores()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(chores))
	for _, c := range chores {
		out = append(out, choreJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chores": out})
}

// handleCreateChore is POST /api/chores.
func (s *Server) handleCreateChore(w http.ResponseWriter, r *http.Request) {
	s.saveChore(w, r, uuid.NewString(), http.StatusCreated)
}

// handleUpdateChore is PUT /api/chores/{id}.
func (s *Server) handleUpdateChore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.db.GetChore(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.saveChore(w, r, id, http.StatusOK)
}

func (s *Server) saveChore(w http.ResponseWriter, r *http.Request, id string, okStatus int) {
	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	chore, err := req.toChore(id, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.UpsertChore(chore); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, okStatus, choreJSON(chore))
}

// handleGetChore is GET /api/chores/{id}.
func (s *Server) handleGetChore(w http.ResponseWriter, r *http.Request) {
	chore, err := s.db.GetChore(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, choreJSON(chore))
}

// handleDeleteChore is DELETE /api/chores/{id}. Completions cascade.
func (s *Server) handleDeleteChore(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteChore(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ─── Calendar ───────────────────────────────────────────────────────────────

// calendarEntry is one chore occurrence on one date, with resolved
// responsibility and completion state.
type calendarEntry struct {
	ChoreID     string               `json:"chore_id"`
	Title       string               `json:"title"`
	Responsible []domain.PersonID    `json:"responsible"`
	UpForGrabs  bool                 `json:"up_for_grabs"`
	Completions []calendarCompletion `json:"completions,omitempty"`
}

type calendarCompletion struct {
	PersonID  domain.PersonID `json:"person_id"`
	Completed bool            `json:"completed"`
}

// handleCalendar is GET /api/calendar?from=YYYY-MM-DD&to=YYYY-MM-DD.
// It runs the full resolver pipeline (recurrence → assignment →
// completion state) once per chore occurrence in the window.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	from, err1 := time.ParseInLocation(time.DateOnly, r.URL.Query().Get("from"), time.UTC)
	to, err2 := time.ParseInLocation(time.DateOnly, r.URL.Query().Get("to"), time.UTC)
	if err1 != nil || err2 != nil || !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD with from < to")
		return
	}

	chores, err := s.db.ListChores()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	completions, err := s.db.CompletionsInRange(from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type key struct {
		choreID string
		date    string
	}
	completed := make(map[key][]calendarCompletion)
	for _, rec := range completions {
		k := key{rec.ChoreID, domain.Day(rec.DueDate).Format(time.DateOnly)}
		completed[k] = append(completed[k], calendarCompletion{PersonID: rec.PersonID, Completed: rec.Completed})
	}

	days := make(map[string][]calendarEntry)
	for _, chore := range chores {
		occs, err := schedule.ChoreOccurrences(&chore, from, to)
		if err != nil {
			// A malformed recurrence fails this render only; the
			// chore is skipped, never treated as occurrence-free
			// for persistence purposes.
			continue
		}
		for _, occ := range occs {
			responsible, err := schedule.ResponsibleOn(&chore, occ)
			if err != nil {
				continue
			}
			dateStr := occ.Format(time.DateOnly)
			_, grabs := chore.Mode.(domain.UpForGrabs)
			days[dateStr] = append(days[dateStr], calendarEntry{
				ChoreID:     chore.ID,
				Title:       chore.Title,
				Responsible: responsible,
				UpForGrabs:  grabs,
				Completions: completed[key{chore.ID, dateStr}],
			})
		}
	}

	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]map[string]interface{}, 0, len(dates))
	for _, d := range dates {
		out = append(out, map[string]interface{}{
			"date":    d,
			"entries": days[d],
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from": from.Format(time.DateOnly),
		"to":   to.Format(time.DateOnly),
		"days": out,
	})
}

// ─── Completions ────────────────────────────────────────────────────────────

// handleComplete is POST /api/chores/{id}/complete.
// Reconciles the attempt, persists the record, and applies any due
// allowance reward to the person's default envelope.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	chore, err := s.db.GetChore(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req struct {
		DueDate  string `json:"due_date"`
		PersonID string `json:"person_id"`
		MarkedBy string `json:"marked_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	due, err := time.ParseInLocation(time.DateOnly, req.DueDate, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}
	if req.PersonID == "" {
		writeError(w, http.StatusBadRequest, "person_id is required")
		return
	}
	markedBy := domain.PersonID(req.MarkedBy)
	if markedBy == "" {
		markedBy = domain.PersonID(req.PersonID)
	}

	existing, err := s.db.CompletionsFor(chore.ID, due)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	names, err := s.db.PersonNames()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := s.now()
	outcome := completion.Record(&chore, due, domain.PersonID(req.PersonID), markedBy, existing, names, now)
	observability.CompletionsRecorded.WithLabelValues(string(outcome.Action)).Inc()

	if outcome.Action == completion.ActionReject {
		s.hub.Broadcast(ActivityEvent{
			Type:      "rejection",
			ChoreID:   chore.ID,
			Title:     chore.Title,
			PersonID:  req.PersonID,
			Message:   outcome.RejectionReason,
			Timestamp: now.Unix(),
		})
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"action": outcome.Action,
			"reason": outcome.RejectionReason,
		})
		return
	}

	rewarded := false
	if outcome.RewardDue {
		if err := s.applyReward(&chore, outcome.Record, now); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		rewarded = true
		outcome.Record.AllowanceAwarded = true
	}

	if err := s.db.SaveCompletion(*outcome.Record); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.Broadcast(ActivityEvent{
		Type:      "completion",
		ChoreID:   chore.ID,
		Title:     chore.Title,
		PersonID:  string(outcome.Record.PersonID),
		Timestamp: now.Unix(),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"action":   outcome.Action,
		"record":   outcome.Record,
		"rewarded": rewarded,
	})
}

// applyReward credits the allowance into the person's default
// envelope, creating the auto "Savings" envelope when none exist.
func (s *Server) applyReward(chore *domain.Chore, rec *domain.CompletionRecord, now time.Time) error {
	amount, currency, ok := completion.RewardAmount(chore)
	if !ok {
		return nil
	}

	envs, err := s.db.EnvelopesFor(rec.PersonID)
	if err != nil {
		return err
	}
	var target domain.Envelope
	if len(envs) == 0 {
		target = allowance.NewSavings(rec.PersonID, now)
	} else {
		target = envs[0] // default first per store ordering
		for _, env := range envs {
			if env.IsDefault {
				target = env
				break
			}
		}
	}

	desc := fmt.Sprintf("allowance: %s", chore.Title)
	updated, entry, err := allowance.RewardCredit(target, amount, currency, desc, now)
	if err != nil {
		return err
	}
	if err := s.db.ApplyLedgerMutation([]domain.Envelope{updated}, "", []domain.LedgerEntry{entry}); err != nil {
		return err
	}

	observability.RewardsGranted.Inc()
	observability.LedgerEntries.WithLabelValues(string(entry.Type)).Inc()
	s.hub.Broadcast(ActivityEvent{
		Type:      "reward",
		ChoreID:   chore.ID,
		Title:     chore.Title,
		PersonID:  string(rec.PersonID),
		Amount:    amount.String(),
		Currency:  currency,
		Timestamp: now.Unix(),
	})
	return nil
}

// ─── Envelopes ──────────────────────────────────────────────────────────────

// handleListEnvelopes is GET /api/envelopes?person_id=…
// A person with no envelopes gets the default "Savings" auto-created.
func (s *Server) handleListEnvelopes(w http.ResponseWriter, r *http.Request) {
	personID := domain.PersonID(r.URL.Query().Get("person_id"))
	if personID == "" {
		writeError(w, http.StatusBadRequest, "person_id is required")
		return
	}
	if _, err := s.db.GetPerson(personID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	envs, err := s.db.EnvelopesFor(personID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(envs) == 0 {
		savings := allowance.NewSavings(personID, s.now())
		if err := s.db.SaveEnvelope(savings); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		envs = []domain.Envelope{savings}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"envelopes": envs})
}

// handleCreateEnvelope is POST /api/envelopes.
func (s *Server) handleCreateEnvelope(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID      string `json:"owner_id"`
		Name         string `json:"name"`
		GoalAmount   string `json:"goal_amount"`
		GoalCurrency string `json:"goal_currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OwnerID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "owner_id and name are required")
		return
	}
	if _, err := s.db.GetPerson(domain.PersonID(req.OwnerID)); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	goal := decimal.Zero
	if req.GoalAmount != "" {
		var err error
		goal, err = decimal.NewFromString(req.GoalAmount)
		if err != nil || goal.IsNegative() {
			writeError(w, http.StatusBadRequest, "goal_amount must be a non-negative decimal")
			return
		}
	}

	existing, err := s.db.EnvelopesFor(domain.PersonID(req.OwnerID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	env := domain.Envelope{
		ID:           uuid.NewString(),
		OwnerID:      domain.PersonID(req.OwnerID),
		Name:         req.Name,
		Balances:     domain.Balances{},
		IsDefault:    len(existing) == 0, // first envelope is the default
		GoalAmount:   goal,
		GoalCurrency: req.GoalCurrency,
		CreatedAt:    s.now(),
	}
	if err := s.db.SaveEnvelope(env); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, env)
}

type moneyRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	To          string `json:"to,omitempty"`
}

func (m *moneyRequest) decimalAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(m.Amount)
}

// handleDeposit is POST /api/envelopes/{id}/deposit.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.moneyOp(w, r, func(env domain.Envelope, amt decimal.Decimal, req moneyRequest, now time.Time) ([]domain.Envelope, string, []domain.LedgerEntry, error) {
		updated, entry, err := allowance.Deposit(env, amt, req.Currency, req.Description, now)
		return []domain.Envelope{updated}, "", []domain.LedgerEntry{entry}, err
	})
}

// handleWithdraw is POST /api/envelopes/{id}/withdraw.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.moneyOp(w, r, func(env domain.Envelope, amt decimal.Decimal, req moneyRequest, now time.Time) ([]domain.Envelope, string, []domain.LedgerEntry, error) {
		updated, entry, err := allowance.Withdraw(env, amt, req.Currency, req.Description, now)
		return []domain.Envelope{updated}, "", []domain.LedgerEntry{entry}, err
	})
}

// handleTransfer is POST /api/envelopes/{id}/transfer.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	s.moneyOp(w, r, func(env domain.Envelope, amt decimal.Decimal, req moneyRequest, now time.Time) ([]domain.Envelope, string, []domain.LedgerEntry, error) {
		dst, err := s.db.GetEnvelope(req.To)
		if err != nil {
			return nil, "", nil, err
		}
		src, dst, entries, err := allowance.Transfer(env, dst, amt, req.Currency, req.Description, now)
		return []domain.Envelope{src, dst}, "", entries, err
	})
}

// moneyOp runs one ledger primitive against the URL's envelope and
// persists the result atomically.
func (s *Server) moneyOp(w http.ResponseWriter, r *http.Request,
	op func(domain.Envelope, decimal.Decimal, moneyRequest, time.Time) ([]domain.Envelope, string, []domain.LedgerEntry, error)) {

	env, err := s.db.GetEnvelope(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req moneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amt, err := req.decimalAmount()
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a decimal string")
		return
	}

	updated, deleteID, entries, err := op(env, amt, req, s.now())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	if err := s.db.ApplyLedgerMutation(updated, deleteID, entries); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, entry := range entries {
		observability.LedgerEntries.WithLabelValues(string(entry.Type)).Inc()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"envelopes": updated,
		"entries":   entries,
	})
}

// handleSetDefault is POST /api/envelopes/{id}/default. Idempotent.
func (s *Server) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	env, err := s.db.GetEnvelope(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	all, err := s.db.EnvelopesFor(env.OwnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	updated, err := allowance.SetDefault(all, env.ID)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	if err := s.db.ApplyLedgerMutation(updated, "", nil); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"envelopes": updated})
}

// handleDeleteEnvelope is DELETE /api/envelopes/{id}?transfer_to=…&new_default=…
// Balances move to transfer_to; carry_negative=true also moves debts
// instead of dropping them (the historical behavior keeps them dropped).
func (s *Server) handleDeleteEnvelope(w http.ResponseWriter, r *http.Request) {
	env, err := s.db.GetEnvelope(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	q := r.URL.Query()
	all, err := s.db.EnvelopesFor(env.OwnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts := allowance.DeleteOptions{CarryNegative: q.Get("carry_negative") == "true"}
	survivors, entries, err := allowance.DeleteEnvelope(all, env.ID, q.Get("transfer_to"), q.Get("new_default"), opts, s.now())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	if err := s.db.ApplyLedgerMutation(survivors, env.ID, entries); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, entry := range entries {
		observability.LedgerEntries.WithLabelValues(string(entry.Type)).Inc()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"envelopes": survivors,
		"entries":   entries,
	})
}

// handleGoal is GET /api/envelopes/{id}/goal.
func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	env, err := s.db.GetEnvelope(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !env.HasGoal() {
		writeError(w, http.StatusBadRequest, "envelope has no goal configured")
		return
	}

	cache, err := s.db.LoadRates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, pct, needsRefresh := allowance.GoalProgress(env, cache, s.now())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"goal_amount":   env.GoalAmount,
		"goal_currency": env.GoalCurrency,
		"saved":         total,
		"progress":      pct,
		"needs_refresh": needsRefresh,
	})
}

// handleLedger is GET /api/envelopes/{id}/ledger.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.db.LedgerFor(chi.URLParam(r, "id"), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// ─── Exchange Rates ─────────────────────────────────────────────────────────

// handleRate is GET /api/rates?from=EUR&to=NPR.
// Freshly triangulated pairs are written back to the cache.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	cache, err := s.db.LoadRates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res := allowance.Rate(from, to, cache, s.now())
	if res.OK {
		observability.RateLookups.WithLabelValues(string(res.Source)).Inc()
	} else {
		observability.RateLookups.WithLabelValues("miss").Inc()
	}
	if res.Derived != nil {
		if err := s.db.UpsertRate(*res.Derived); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":          from,
		"to":            to,
		"rate":          res.Rate,
		"ok":            res.OK,
		"source":        res.Source,
		"needs_refresh": res.NeedsRefresh,
	})
}

// writeLedgerError maps domain errors onto HTTP statuses.
func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		observability.LedgerRejections.WithLabelValues("insufficient_funds").Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrEnvelopeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrLastEnvelope), errors.Is(err, domain.ErrNoDefault):
		observability.LedgerRejections.WithLabelValues("precondition").Inc()
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		observability.LedgerRejections.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
