package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

type pgTx struct {
	tx *sql.Tx
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) LockEvent(ctx context.Context, eventID uuid.UUID) error {
	var id uuid.UUID
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&id)
	return notFound(err)
}

const eventColumns = `id, name, date, admin_id, accountant_id, base_currency, exchange_fee, closed, description, created_at, created_by, updated_at, updated_by`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (Event, error) {
	var e Event
	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Date,
		&e.AdminID,
		&e.AccountantID,
		&e.BaseCurrency,
		&e.ExchangeFee,
		&e.Closed,
		&e.Description,
		&e.CreatedAt,
		&e.CreatedBy,
		&e.UpdatedAt,
		&e.UpdatedBy,
	)
	return e, err
}

func (t *pgTx) GetEvent(ctx context.Context, eventID uuid.UUID) (Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(t.tx.QueryRowContext(ctx, query, eventID))
	if err != nil {
		return Event{}, notFound(err)
	}
	return e, nil
}

func (t *pgTx) ListEventsForUser(ctx context.Context, userID uuid.UUID) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
              WHERE admin_id = $1
                 OR id IN (SELECT event_id FROM event_participants WHERE user_id = $1)
              ORDER BY date DESC`

	rows, err := t.tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

func (t *pgTx) InsertEvent(ctx context.Context, e Event) error {
	query := `INSERT INTO events (` + eventColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := t.tx.ExecContext(
		ctx,
		query,
		e.ID,
		e.Name,
		e.Date,
		e.AdminID,
		e.AccountantID,
		e.BaseCurrency,
		e.ExchangeFee,
		e.Closed,
		e.Description,
		e.CreatedAt,
		e.CreatedBy,
		e.UpdatedAt,
		e.UpdatedBy,
	)
	return err
}

func (t *pgTx) UpdateEvent(ctx context.Context, e Event) error {
	query := `UPDATE events
              SET name = $2, date = $3, admin_id = $4, accountant_id = $5, base_currency = $6,
                  exchange_fee = $7, closed = $8, description = $9, updated_at = $10, updated_by = $11
              WHERE id = $1`
	res, err := t.tx.ExecContext(
		ctx,
		query,
		e.ID,
		e.Name,
		e.Date,
		e.AdminID,
		e.AccountantID,
		e.BaseCurrency,
		e.ExchangeFee,
		e.Closed,
		e.Description,
		e.UpdatedAt,
		e.UpdatedBy,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

func (t *pgTx) ListCurrencies(ctx context.Context, eventID uuid.UUID) ([]EventCurrency, error) {
	query := `SELECT event_id, code, exponent, rate, created_at, created_by, updated_at, updated_by
              FROM event_currencies WHERE event_id = $1 ORDER BY code`

	rows, err := t.tx.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	currencies := make([]EventCurrency, 0)
	for rows.Next() {
		var c EventCurrency
		err := rows.Scan(&c.EventID, &c.Code, &c.Exponent, &c.Rate, &c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy)
		if err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}

	return currencies, rows.Err()
}

func (t *pgTx) InsertCurrency(ctx context.Context, c EventCurrency) error {
	query := `INSERT INTO event_currencies (event_id, code, exponent, rate, created_at, created_by, updated_at, updated_by)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := t.tx.ExecContext(ctx, query, c.EventID, c.Code, c.Exponent, c.Rate, c.CreatedAt, c.CreatedBy, c.UpdatedAt, c.UpdatedBy)
	return err
}

func (t *pgTx) DeleteCurrency(ctx context.Context, eventID uuid.UUID, code string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM event_currencies WHERE event_id = $1 AND code = $2`, eventID, code)
	if err != nil {
		return err
	}
	return affected(res)
}

func (t *pgTx) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]Participant, error) {
	query := `SELECT event_id, user_id, weighting, joined_at FROM event_participants WHERE event_id = $1 ORDER BY joined_at`

	rows, err := t.tx.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.EventID, &p.UserID, &p.Weighting, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (t *pgTx) InsertParticipant(ctx context.Context, p Participant) error {
	query := `INSERT INTO event_participants (event_id, user_id, weighting, joined_at) VALUES ($1, $2, $3, $4)`
	_, err := t.tx.ExecContext(ctx, query, p.EventID, p.UserID, p.Weighting, p.JoinedAt)
	return err
}

func (t *pgTx) UpdateParticipant(ctx context.Context, p Participant) error {
	query := `UPDATE event_participants SET weighting = $3 WHERE event_id = $1 AND user_id = $2`
	res, err := t.tx.ExecContext(ctx, query, p.EventID, p.UserID, p.Weighting)
	if err != nil {
		return err
	}
	return affected(res)
}

func (t *pgTx) DeleteParticipant(ctx context.Context, eventID, userID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM event_participants WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return err
	}
	return affected(res)
}

const expenseColumns = `id, event_id, payer_id, currency, amount, date, description, created_at, created_by, updated_at, updated_by`

func scanExpense(row scanner) (Expense, error) {
	var e Expense
	err := row.Scan(
		&e.ID,
		&e.EventID,
		&e.PayerID,
		&e.Currency,
		&e.Amount,
		&e.Date,
		&e.Description,
		&e.CreatedAt,
		&e.CreatedBy,
		&e.UpdatedAt,
		&e.UpdatedBy,
	)
	return e, err
}

func (t *pgTx) ListExpenses(ctx context.Context, eventID uuid.UUID) ([]Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE event_id = $1 ORDER BY date, created_at, id`

	rows, err := t.tx.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]Expense, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	affectedQuery := `SELECT a.expense_id, a.user_id
                      FROM expense_affected_participants a
                      JOIN expenses e ON e.id = a.expense_id
                      WHERE e.event_id = $1
                      ORDER BY a.position`
	arows, err := t.tx.QueryContext(ctx, affectedQuery, eventID)
	if err != nil {
		return nil, err
	}
	defer arows.Close()

	for arows.Next() {
		var expenseID, userID uuid.UUID
		if err := arows.Scan(&expenseID, &userID); err != nil {
			return nil, err
		}
		if i, ok := index[expenseID]; ok {
			expenses[i].AffectedIDs = append(expenses[i].AffectedIDs, userID)
		}
	}

	return expenses, arows.Err()
}

func (t *pgTx) GetExpense(ctx context.Context, expenseID uuid.UUID) (Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	e, err := scanExpense(t.tx.QueryRowContext(ctx, query, expenseID))
	if err != nil {
		return Expense{}, notFound(err)
	}

	rows, err := t.tx.QueryContext(ctx, `SELECT user_id FROM expense_affected_participants WHERE expense_id = $1 ORDER BY position`, expenseID)
	if err != nil {
		return Expense{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return Expense{}, err
		}
		e.AffectedIDs = append(e.AffectedIDs, userID)
	}

	return e, rows.Err()
}

func (t *pgTx) insertAffected(ctx context.Context, e Expense) error {
	for i, userID := range e.AffectedIDs {
		query := `INSERT INTO expense_affected_participants (expense_id, user_id, position) VALUES ($1, $2, $3)`
		if _, err := t.tx.ExecContext(ctx, query, e.ID, userID, i); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) InsertExpense(ctx context.Context, e Expense) error {
	query := `INSERT INTO expenses (` + expenseColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := t.tx.ExecContext(
		ctx,
		query,
		e.ID,
		e.EventID,
		e.PayerID,
		e.Currency,
		e.Amount,
		e.Date,
		e.Description,
		e.CreatedAt,
		e.CreatedBy,
		e.UpdatedAt,
		e.UpdatedBy,
	)
	if err != nil {
		return err
	}
	return t.insertAffected(ctx, e)
}

func (t *pgTx) UpdateExpense(ctx context.Context, e Expense) error {
	query := `UPDATE expenses
              SET payer_id = $2, currency = $3, amount = $4, date = $5, description = $6, updated_at = $7, updated_by = $8
              WHERE id = $1`
	res, err := t.tx.ExecContext(ctx, query, e.ID, e.PayerID, e.Currency, e.Amount, e.Date, e.Description, e.UpdatedAt, e.UpdatedBy)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM expense_affected_participants WHERE expense_id = $1`, e.ID); err != nil {
		return fmt.Errorf("clearing affected participants: %w", err)
	}
	return t.insertAffected(ctx, e)
}

func (t *pgTx) DeleteExpense(ctx context.Context, expenseID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, expenseID)
	if err != nil {
		return err
	}
	return affected(res)
}

const settlementColumns = `id, event_id, sender_id, recipient_id, currency, amount, draft, date, description, created_at, created_by, updated_at, updated_by`

func scanSettlement(row scanner) (Settlement, error) {
	var s Settlement
	err := row.Scan(
		&s.ID,
		&s.EventID,
		&s.SenderID,
		&s.RecipientID,
		&s.Currency,
		&s.Amount,
		&s.Draft,
		&s.Date,
		&s.Description,
		&s.CreatedAt,
		&s.CreatedBy,
		&s.UpdatedAt,
		&s.UpdatedBy,
	)
	return s, err
}

func (t *pgTx) ListSettlements(ctx context.Context, eventID uuid.UUID) ([]Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE event_id = $1 ORDER BY date, created_at, id`

	rows, err := t.tx.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settlements := make([]Settlement, 0)
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}

	return settlements, rows.Err()
}

func (t *pgTx) GetSettlement(ctx context.Context, settlementID uuid.UUID) (Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`
	s, err := scanSettlement(t.tx.QueryRowContext(ctx, query, settlementID))
	if err != nil {
		return Settlement{}, notFound(err)
	}
	return s, nil
}

func (t *pgTx) InsertSettlement(ctx context.Context, s Settlement) error {
	query := `INSERT INTO settlements (` + settlementColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := t.tx.ExecContext(
		ctx,
		query,
		s.ID,
		s.EventID,
		s.SenderID,
		s.RecipientID,
		s.Currency,
		s.Amount,
		s.Draft,
		s.Date,
		s.Description,
		s.CreatedAt,
		s.CreatedBy,
		s.UpdatedAt,
		s.UpdatedBy,
	)
	return err
}

func (t *pgTx) UpdateSettlement(ctx context.Context, s Settlement) error {
	query := `UPDATE settlements
              SET sender_id = $2, recipient_id = $3, currency = $4, amount = $5, draft = $6, date = $7,
                  description = $8, updated_at = $9, updated_by = $10
              WHERE id = $1`
	res, err := t.tx.ExecContext(
		ctx,
		query,
		s.ID,
		s.SenderID,
		s.RecipientID,
		s.Currency,
		s.Amount,
		s.Draft,
		s.Date,
		s.Description,
		s.UpdatedAt,
		s.UpdatedBy,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

func (t *pgTx) DeleteSettlement(ctx context.Context, settlementID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM settlements WHERE id = $1`, settlementID)
	if err != nil {
		return err
	}
	return affected(res)
}

func (t *pgTx) DeleteDraftSettlements(ctx context.Context, eventID uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM settlements WHERE event_id = $1 AND draft`, eventID)
	return err
}

var (
	_ Store = (*repository)(nil)
	_ Tx    = (*pgTx)(nil)
)
