package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hearthkeep/hearth/internal/domain"
)

// Mode discriminators for the chores table.
const (
	modeStatic   = "static"
	modeRotating = "rotating"
	modeGrabs    = "grabs"
)

// ─── People ─────────────────────────────────────────────────────────────────

// UpsertPerson inserts or updates a household member.
func (db *DB) UpsertPerson(p domain.Person) error {
	_, err := db.db.Exec(`
		INSERT INTO people (id, name, color, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name  = excluded.name,
			color = excluded.color
	`, string(p.ID), p.Name, p.Color, p.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// ListPeople returns all household members ordered by creation.
func (db *DB) ListPeople() ([]domain.Person, error) {
	rows, err := db.db.Query(`SELECT id, name, color, created_at FROM people ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Person
	for rows.Next() {
		var p domain.Person
		var id, createdStr string
		if err := rows.Scan(&id, &p.Name, &p.Color, &createdStr); err != nil {
			return nil, err
		}
		p.ID = domain.PersonID(id)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPerson fetches one member by id.
func (db *DB) GetPerson(id domain.PersonID) (domain.Person, error) {
	var p domain.Person
	var rawID, createdStr string
	err := db.db.QueryRow(`SELECT id, name, color, created_at FROM people WHERE id = ?`, string(id)).
		Scan(&rawID, &p.Name, &p.Color, &createdStr)
	if err == sql.ErrNoRows {
		return p, domain.ErrPersonNotFound
	}
	if err != nil {
		return p, err
	}
	p.ID = domain.PersonID(rawID)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	return p, nil
}

// PersonNames returns an id→name lookup for message rendering.
func (db *DB) PersonNames() (map[domain.PersonID]string, error) {
	people, err := db.ListPeople()
	if err != nil {
		return nil, err
	}
	names := make(map[domain.PersonID]string, len(people))
	for _, p := range people {
		names[p.ID] = p.Name
	}
	return names, nil
}

// ─── Chores ─────────────────────────────────────────────────────────────────

// UpsertChore inserts or updates a chore, flattening recurrence and
// assignment mode into columns.
func (db *DB) UpsertChore(c domain.Chore) error {
	freq, interval := domain.FreqNone, 1
	byWeekday, byMonthDay := []time.Weekday{}, []int{}
	startDate := domain.Day(c.StartDate)
	if c.Recurrence != nil {
		freq = c.Recurrence.Frequency
		if c.Recurrence.Interval > 0 {
			interval = c.Recurrence.Interval
		}
		if c.Recurrence.ByWeekday != nil {
			byWeekday = c.Recurrence.ByWeekday
		}
		if c.Recurrence.ByMonthDay != nil {
			byMonthDay = c.Recurrence.ByMonthDay
		}
		startDate = domain.Day(c.Recurrence.StartDate)
	}

	mode, assignees, order, period, joint := modeColumns(c.Mode)

	rewardType, rewardAmount, rewardCurrency := "", "0", ""
	if c.Reward != nil {
		rewardType = string(c.Reward.Type)
		rewardAmount = c.Reward.Amount.String()
		rewardCurrency = c.Reward.Currency
	}

	weekdayJSON, _ := json.Marshal(byWeekday)
	monthDayJSON, _ := json.Marshal(byMonthDay)
	assigneesJSON, _ := json.Marshal(assignees)
	orderJSON, _ := json.Marshal(order)

	_, err := db.db.Exec(`
		INSERT INTO chores (id, title, start_date, frequency, interval, by_weekday, by_month_day,
			mode, assignees, rotation_order, rotation_period, joint, weight,
			reward_type, reward_amount, reward_currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title           = excluded.title,
			start_date      = excluded.start_date,
			frequency       = excluded.frequency,
			interval        = excluded.interval,
			by_weekday      = excluded.by_weekday,
			by_month_day    = excluded.by_month_day,
			mode            = excluded.mode,
			assignees       = excluded.assignees,
			rotation_order  = excluded.rotation_order,
			rotation_period = excluded.rotation_period,
			joint           = excluded.joint,
			weight          = excluded.weight,
			reward_type     = excluded.reward_type,
			reward_amount   = excluded.reward_amount,
			reward_currency = excluded.reward_currency
	`, c.ID, c.Title, startDate.Format(time.DateOnly), string(freq), interval,
		string(weekdayJSON), string(monthDayJSON),
		mode, string(assigneesJSON), string(orderJSON), period, boolInt(joint), c.Weight,
		rewardType, rewardAmount, rewardCurrency, c.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// GetChore fetches one chore by id.
func (db *DB) GetChore(id string) (domain.Chore, error) {
	row := db.db.QueryRow(choreSelect+` WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return c, domain.ErrChoreNotFound
	}
	return c, err
}

// ListChores returns all chores ordered by creation.
func (db *DB) ListChores() ([]domain.Chore, error) {
	rows, err := db.db.Query(choreSelect + ` ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChore removes a chore and its completion records.
func (db *DB) DeleteChore(id string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM completions WHERE chore_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrChoreNotFound
	}
	return tx.Commit()
}

const choreSelect = `SELECT id, title, start_date, frequency, interval, by_weekday, by_month_day,
	mode, assignees, rotation_order, rotation_period, joint, weight,
	reward_type, reward_amount, reward_currency, created_at FROM chores`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChore(row rowScanner) (domain.Chore, error) {
	var c domain.Chore
	var startStr, freq, weekdayJSON, monthDayJSON string
	var interval, joint int
	var mode, assigneesJSON, orderJSON, period string
	var rewardType, rewardAmount, rewardCurrency, createdStr string

	err := row.Scan(&c.ID, &c.Title, &startStr, &freq, &interval, &weekdayJSON, &monthDayJSON,
		&mode, &assigneesJSON, &orderJSON, &period, &joint, &c.Weight,
		&rewardType, &rewardAmount, &rewardCurrency, &createdStr)
	if err != nil {
		return c, err
	}

	start, err := time.ParseInLocation(time.DateOnly, startStr, time.UTC)
	if err != nil {
		return c, fmt.Errorf("chore %s: bad start date: %w", c.ID, err)
	}
	c.StartDate = start
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)

	if domain.Frequency(freq) != domain.FreqNone {
		spec := domain.RecurrenceSpec{
			Frequency: domain.Frequency(freq),
			Interval:  interval,
			StartDate: start,
		}
		json.Unmarshal([]byte(weekdayJSON), &spec.ByWeekday)
		json.Unmarshal([]byte(monthDayJSON), &spec.ByMonthDay)
		c.Recurrence = &spec
	}

	var assignees, order []domain.PersonID
	json.Unmarshal([]byte(assigneesJSON), &assignees)
	json.Unmarshal([]byte(orderJSON), &order)

	switch mode {
	case modeRotating:
		c.Mode = domain.RotatingAssignment{
			Order:  order,
			Period: domain.RotationPeriod(period),
			Joint:  joint == 1,
		}
	case modeGrabs:
		c.Mode = domain.UpForGrabs{Eligible: assignees}
	default:
		c.Mode = domain.StaticAssignment{Assignees: assignees}
	}

	if rewardType != "" {
		amt, err := decimal.NewFromString(rewardAmount)
		if err != nil {
			return c, fmt.Errorf("chore %s: bad reward amount: %w", c.ID, err)
		}
		c.Reward = &domain.Reward{
			Type:     domain.RewardType(rewardType),
			Amount:   amt,
			Currency: rewardCurrency,
		}
	}
	return c, nil
}

func modeColumns(m domain.AssignmentMode) (mode string, assignees, order []domain.PersonID, period string, joint bool) {
	assignees, order = []domain.PersonID{}, []domain.PersonID{}
	switch v := m.(type) {
	case domain.RotatingAssignment:
		mode = modeRotating
		if v.Order != nil {
			order = v.Order
		}
		period = string(v.Period)
		joint = v.Joint
	case domain.UpForGrabs:
		mode = modeGrabs
		if v.Eligible != nil {
			assignees = v.Eligible
		}
	case domain.StaticAssignment:
		mode = modeStatic
		if v.Assignees != nil {
			assignees = v.Assignees
		}
	default:
		mode = modeStatic
	}
	return
}

// ─── Completions ────────────────────────────────────────────────────────────

// SaveCompletion inserts or updates a completion record.
func (db *DB) SaveCompletion(rec domain.CompletionRecord) error {
	var completedAt *string
	if rec.CompletedAt != nil {
		s := rec.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &s
	}
	_, err := db.db.Exec(`
		INSERT INTO completions (id, chore_id, due_date, person_id, marked_by, completed, completed_at, allowance_awarded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chore_id, due_date, person_id) DO UPDATE SET
			marked_by         = excluded.marked_by,
			completed         = excluded.completed,
			completed_at      = excluded.completed_at,
			allowance_awarded = excluded.allowance_awarded
	`, rec.ID, rec.ChoreID, domain.Day(rec.DueDate).Format(time.DateOnly),
		string(rec.PersonID), string(rec.MarkedBy), boolInt(rec.Completed), completedAt, boolInt(rec.AllowanceAwarded))
	return err
}

// CompletionsFor returns all records for a chore on a due date.
func (db *DB) CompletionsFor(choreID string, due time.Time) ([]domain.CompletionRecord, error) {
	return db.queryCompletions(`
		SELECT id, chore_id, due_date, person_id, marked_by, completed, completed_at, allowance_awarded
		FROM completions WHERE chore_id = ? AND due_date = ?
	`, choreID, domain.Day(due).Format(time.DateOnly))
}

// CompletionsInRange returns all records with due dates in [from, to).
func (db *DB) CompletionsInRange(from, to time.Time) ([]domain.CompletionRecord, error) {
	return db.queryCompletions(`
		SELECT id, chore_id, due_date, person_id, marked_by, completed, completed_at, allowance_awarded
		FROM completions WHERE due_date >= ? AND due_date < ?
	`, domain.Day(from).Format(time.DateOnly), domain.Day(to).Format(time.DateOnly))
}

// MarkAwarded flags a completion's allowance as granted.
func (db *DB) MarkAwarded(id string) error {
	_, err := db.db.Exec(`UPDATE completions SET allowance_awarded = 1 WHERE id = ?`, id)
	return err
}

func (db *DB) queryCompletions(query string, args ...any) ([]domain.CompletionRecord, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CompletionRecord
	for rows.Next() {
		var rec domain.CompletionRecord
		var dueStr, personID, markedBy string
		var completed, awarded int
		var completedAt sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ChoreID, &dueStr, &personID, &markedBy, &completed, &completedAt, &awarded); err != nil {
			return nil, err
		}
		rec.DueDate, _ = time.ParseInLocation(time.DateOnly, dueStr, time.UTC)
		rec.PersonID = domain.PersonID(personID)
		rec.MarkedBy = domain.PersonID(markedBy)
		rec.Completed = completed == 1
		rec.AllowanceAwarded = awarded == 1
		if completedAt.Valid {
			t, err := time.Parse(time.RFC3339, completedAt.String)
			if err == nil {
				rec.CompletedAt = &t
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ─── Envelopes ──────────────────────────────────────────────────────────────

// SaveEnvelope inserts or updates one envelope.
func (db *DB) SaveEnvelope(env domain.Envelope) error {
	return saveEnvelope(db.db, env)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func saveEnvelope(ex execer, env domain.Envelope) error {
	balances, err := json.Marshal(env.Balances)
	if err != nil {
		return err
	}
	_, err = ex.Exec(`
		INSERT INTO envelopes (id, owner_id, name, balances, is_default, goal_amount, goal_currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name          = excluded.name,
			balances      = excluded.balances,
			is_default    = excluded.is_default,
			goal_amount   = excluded.goal_amount,
			goal_currency = excluded.goal_currency
	`, env.ID, string(env.OwnerID), env.Name, string(balances), boolInt(env.IsDefault),
		env.GoalAmount.String(), env.GoalCurrency, env.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// EnvelopesFor returns a person's envelopes, default first.
func (db *DB) EnvelopesFor(owner domain.PersonID) ([]domain.Envelope, error) {
	rows, err := db.db.Query(`
		SELECT id, owner_id, name, balances, is_default, goal_amount, goal_currency, created_at
		FROM envelopes WHERE owner_id = ? ORDER BY is_default DESC, created_at, id
	`, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEnvelopes(rows)
}

// GetEnvelope fetches one envelope by id.
func (db *DB) GetEnvelope(id string) (domain.Envelope, error) {
	rows, err := db.db.Query(`
		SELECT id, owner_id, name, balances, is_default, goal_amount, goal_currency, created_at
		FROM envelopes WHERE id = ?
	`, id)
	if err != nil {
		return domain.Envelope{}, err
	}
	defer rows.Close()
	envs, err := scanEnvelopes(rows)
	if err != nil {
		return domain.Envelope{}, err
	}
	if len(envs) == 0 {
		return domain.Envelope{}, domain.ErrEnvelopeNotFound
	}
	return envs[0], nil
}

func scanEnvelopes(rows *sql.Rows) ([]domain.Envelope, error) {
	var out []domain.Envelope
	for rows.Next() {
		var env domain.Envelope
		var owner, balancesJSON, goalAmount, createdStr string
		var isDefault int
		if err := rows.Scan(&env.ID, &owner, &env.Name, &balancesJSON, &isDefault, &goalAmount, &env.GoalCurrency, &createdStr); err != nil {
			return nil, err
		}
		env.OwnerID = domain.PersonID(owner)
		env.IsDefault = isDefault == 1
		env.Balances = domain.Balances{}
		if err := json.Unmarshal([]byte(balancesJSON), &env.Balances); err != nil {
			return nil, fmt.Errorf("envelope %s: bad balances: %w", env.ID, err)
		}
		amt, err := decimal.NewFromString(goalAmount)
		if err != nil {
			return nil, fmt.Errorf("envelope %s: bad goal amount: %w", env.ID, err)
		}
		env.GoalAmount = amt
		env.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		out = append(out, env)
	}
	return out, rows.Err()
}

// ApplyLedgerMutation persists the result of a ledger primitive in one
// transaction: updated envelopes, optional envelope deletion, and the
// audit entries. Either everything lands or nothing does.
func (db *DB) ApplyLedgerMutation(envelopes []domain.Envelope, deleteID string, entries []domain.LedgerEntry) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, env := range envelopes {
		if err := saveEnvelope(tx, env); err != nil {
			return err
		}
	}
	if deleteID != "" {
		if _, err := tx.Exec(`DELETE FROM envelopes WHERE id = ?`, deleteID); err != nil {
			return err
		}
	}
	for _, entry := range entries {
		if err := insertLedgerEntry(tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func insertLedgerEntry(ex execer, e domain.LedgerEntry) error {
	_, err := ex.Exec(`
		INSERT INTO ledger_entries (id, envelope_id, counterparty, type, amount, currency, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.EnvelopeID, e.Counterparty, string(e.Type), e.Amount.String(), e.Currency,
		e.Description, e.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// InsertLedgerEntry appends one audit record.
func (db *DB) InsertLedgerEntry(e domain.LedgerEntry) error {
	return insertLedgerEntry(db.db, e)
}

// LedgerFor returns an envelope's most recent entries, newest first.
func (db *DB) LedgerFor(envelopeID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.db.Query(`
		SELECT id, envelope_id, counterparty, type, amount, currency, description, created_at
		FROM ledger_entries WHERE envelope_id = ?
		ORDER BY created_at DESC, id LIMIT ?
	`, envelopeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var typ, amount, createdStr string
		if err := rows.Scan(&e.ID, &e.EnvelopeID, &e.Counterparty, &typ, &amount, &e.Currency, &e.Description, &createdStr); err != nil {
			return nil, err
		}
		e.Type = domain.EntryType(typ)
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %s: bad amount: %w", e.ID, err)
		}
		e.Amount = amt
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Exchange rates ─────────────────────────────────────────────────────────

// UpsertRate stores one currency pair in the cache.
func (db *DB) UpsertRate(r domain.ExchangeRate) error {
	_, err := db.db.Exec(`
		INSERT INTO exchange_rates (base, target, rate, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(base, target) DO UPDATE SET
			rate       = excluded.rate,
			fetched_at = excluded.fetched_at
	`, r.Base, r.Target, r.Rate, r.FetchedAt.UTC().Format(time.RFC3339))
	return err
}

// LoadRates returns the full cache keyed by currency pair.
func (db *DB) LoadRates() (map[string]domain.ExchangeRate, error) {
	rows, err := db.db.Query(`SELECT base, target, rate, fetched_at FROM exchange_rates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.ExchangeRate)
	for rows.Next() {
		var r domain.ExchangeRate
		var fetchedStr string
		if err := rows.Scan(&r.Base, &r.Target, &r.Rate, &fetchedStr); err != nil {
			return nil, err
		}
		r.FetchedAt, _ = time.Parse(time.RFC3339, fetchedStr)
		out[domain.RatePairKey(r.Base, r.Target)] = r
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
