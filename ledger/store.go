package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Store runs fn inside a storage transaction. Returning an error from fn
// rolls back everything it wrote.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of ledger reads and writes available inside a transaction.
// Lookups of a single row return ErrNotFound when it does not exist.
type Tx interface {
	// LockEvent takes a write lock on the event row for the rest of the transaction.
	LockEvent(ctx context.Context, eventID uuid.UUID) error
	GetEvent(ctx context.Context, eventID uuid.UUID) (Event, error)
	ListEventsForUser(ctx context.Context, userID uuid.UUID) ([]Event, error)
	InsertEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error

	ListCurrencies(ctx context.Context, eventID uuid.UUID) ([]EventCurrency, error)
	InsertCurrency(ctx context.Context, c EventCurrency) error
	DeleteCurrency(ctx context.Context, eventID uuid.UUID, code string) error

	ListParticipants(ctx context.Context, eventID uuid.UUID) ([]Participant, error)
	InsertParticipant(ctx context.Context, p Participant) error
	UpdateParticipant(ctx context.Context, p Participant) error
	DeleteParticipant(ctx context.Context, eventID, userID uuid.UUID) error

	ListExpenses(ctx context.Context, eventID uuid.UUID) ([]Expense, error)
	GetExpense(ctx context.Context, expenseID uuid.UUID) (Expense, error)
	InsertExpense(ctx context.Context, e Expense) error
	UpdateExpense(ctx context.Context, e Expense) error
	DeleteExpense(ctx context.Context, expenseID uuid.UUID) error

	ListSettlements(ctx context.Context, eventID uuid.UUID) ([]Settlement, error)
	GetSettlement(ctx context.Context, settlementID uuid.UUID) (Settlement, error)
	InsertSettlement(ctx context.Context, s Settlement) error
	UpdateSettlement(ctx context.Context, s Settlement) error
	DeleteSettlement(ctx context.Context, settlementID uuid.UUID) error
	DeleteDraftSettlements(ctx context.Context, eventID uuid.UUID) error
}

func loadBook(ctx context.Context, tx Tx, eventID uuid.UUID) (*Book, error) {
	event, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading event %s: %w", eventID, err)
	}
	currencies, err := tx.ListCurrencies(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading currencies: %w", err)
	}
	participants, err := tx.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}
	expenses, err := tx.ListExpenses(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading expenses: %w", err)
	}
	settlements, err := tx.ListSettlements(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading settlements: %w", err)
	}

	return NewBook(event, currencies, participants, expenses, settlements), nil
}
