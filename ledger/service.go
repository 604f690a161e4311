package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/billbatista/acasinha-events/currency"
	"github.com/billbatista/acasinha-events/eventlogger"
	"github.com/billbatista/acasinha-events/lock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the entry point for every ledger operation. Mutations of one
// event are serialized through the locker and run in a single transaction.
type Service struct {
	store    Store
	registry currency.Registry
	locker   lock.Locker
	audit    eventlogger.Logger
	now      func() time.Time
}

func NewService(store Store, registry currency.Registry, locker lock.Locker, audit eventlogger.Logger) *Service {
	return &Service{
		store:    store,
		registry: registry,
		locker:   locker,
		audit:    audit,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func eventKey(eventID uuid.UUID) string {
	return "event:" + eventID.String()
}

func (s *Service) mutate(ctx context.Context, eventID uuid.UUID, fn func(ctx context.Context, tx Tx, book *Book) error) error {
	release, err := s.locker.Lock(ctx, eventKey(eventID))
	if err != nil {
		return fmt.Errorf("locking event %s: %w", eventID, err)
	}
	defer release()

	return s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockEvent(ctx, eventID); err != nil {
			return err
		}
		book, err := loadBook(ctx, tx, eventID)
		if err != nil {
			return err
		}
		return fn(ctx, tx, book)
	})
}

// Book loads the full state of an event without taking the event lock.
func (s *Service) Book(ctx context.Context, eventID uuid.UUID) (*Book, error) {
	var book *Book
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		book, err = loadBook(ctx, tx, eventID)
		return err
	})
	return book, err
}

func requireOpen(e Event) error {
	if e.Closed {
		return ErrEventClosed
	}
	return nil
}

func requireAdmin(e Event, actor Actor) error {
	if e.AdminID != actor.ID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) CreateEvent(ctx context.Context, p EventParams, actor Actor) (*Event, error) {
	now := s.now()
	event, err := NewEvent(p, actor, now)
	if err != nil {
		return nil, err
	}

	base, err := s.registry.Get(ctx, event.BaseCurrency)
	if err != nil {
		return nil, fmt.Errorf("base currency %s: %w", event.BaseCurrency, err)
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertEvent(ctx, event); err != nil {
			return err
		}
		if err := tx.InsertCurrency(ctx, snapshot(event.ID, *base, actor, now)); err != nil {
			return err
		}

		members := []uuid.UUID{event.AdminID}
		if event.AccountantID != event.AdminID {
			members = append(members, event.AccountantID)
		}
		for i, userID := range members {
			p := Participant{
				EventID:   event.ID,
				UserID:    userID,
				Weighting: defaultWeighting,
				JoinedAt:  now.Add(time.Duration(i) * time.Microsecond),
			}
			if err := tx.InsertParticipant(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	slog.Info("event created", "event_id", event.ID, "admin_id", event.AdminID)
	s.record(EventCreated, event.ID, actor, event)
	return &event, nil
}

func snapshot(eventID uuid.UUID, c currency.Currency, actor Actor, now time.Time) EventCurrency {
	return EventCurrency{
		EventID:  eventID,
		Code:     c.Code,
		Exponent: c.Exponent,
		Rate:     c.Rate,
		Audit:    newAudit(actor.Name, now),
	}
}

func (s *Service) GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	var event Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		event, err = tx.GetEvent(ctx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListEvents returns the events the user administers or takes part in, newest first.
func (s *Service) ListEvents(ctx context.Context, userID uuid.UUID) ([]Event, error) {
	var events []Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		events, err = tx.ListEventsForUser(ctx, userID)
		return err
	})
	return events, err
}

// UpdateEvent replaces the event's editable fields. A zero admin or
// accountant keeps the current one.
func (s *Service) UpdateEvent(ctx context.Context, eventID uuid.UUID, p EventParams, actor Actor) (*Event, error) {
	var updated Event
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		event := book.Event
		if err := requireAdmin(event, actor); err != nil {
			return err
		}
		if err := requireOpen(event); err != nil {
			return err
		}

		if p.AdminID == uuid.Nil {
			p.AdminID = event.AdminID
		}
		if p.AccountantID == uuid.Nil {
			p.AccountantID = event.AccountantID
		}
		if p.Date.IsZero() {
			p.Date = event.Date
		}
		candidate, err := NewEvent(p, actor, s.now())
		if err != nil {
			return err
		}
		if _, ok := book.Currency(candidate.BaseCurrency); !ok {
			return ErrCurrencyNotAllowed
		}
		if !book.IsParticipant(candidate.AdminID) || !book.IsParticipant(candidate.AccountantID) {
			return ErrNotParticipant
		}

		event.Name = candidate.Name
		event.Date = candidate.Date
		event.AdminID = candidate.AdminID
		event.AccountantID = candidate.AccountantID
		event.BaseCurrency = candidate.BaseCurrency
		event.ExchangeFee = candidate.ExchangeFee
		event.Description = candidate.Description
		event.touch(actor.Name, s.now())

		updated = event
		return tx.UpdateEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.record(EventUpdated, eventID, actor, updated)
	return &updated, nil
}

// AddCurrency attaches a registry currency to the event, pinning its current
// rate. Attaching an already attached currency returns the existing snapshot.
func (s *Service) AddCurrency(ctx context.Context, eventID uuid.UUID, code string, actor Actor) (*EventCurrency, error) {
	code = currency.NormalizeCode(code)
	c, err := s.registry.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("currency %s: %w", code, err)
	}

	var ec EventCurrency
	added := false
	err = s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireAdmin(book.Event, actor); err != nil {
			return err
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if existing, ok := book.Currency(code); ok {
			ec = existing
			return nil
		}

		ec = snapshot(eventID, *c, actor, s.now())
		added = true
		return tx.InsertCurrency(ctx, ec)
	})
	if err != nil {
		return nil, err
	}

	if added {
		s.record(CurrencyAdded, eventID, actor, ec)
	}
	return &ec, nil
}

func (s *Service) RemoveCurrency(ctx context.Context, eventID uuid.UUID, code string, actor Actor) error {
	code = currency.NormalizeCode(code)
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireAdmin(book.Event, actor); err != nil {
			return err
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if _, ok := book.Currency(code); !ok {
			return ErrNotFound
		}
		if book.CurrencyInUse(code) {
			return ErrCurrencyInUse
		}
		return tx.DeleteCurrency(ctx, eventID, code)
	})
	if err != nil {
		return err
	}

	s.record(CurrencyRemoved, eventID, actor, map[string]string{"code": code})
	return nil
}

func (s *Service) AddParticipant(ctx context.Context, eventID, userID uuid.UUID, weighting decimal.Decimal, actor Actor) (*Participant, error) {
	if weighting.IsZero() {
		weighting = defaultWeighting
	}
	if weighting.IsNegative() {
		return nil, ErrInvalidWeighting
	}

	p := Participant{EventID: eventID, UserID: userID, Weighting: weighting}
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireAdmin(book.Event, actor); err != nil {
			return err
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if book.IsParticipant(userID) {
			return ErrAlreadyParticipant
		}

		p.JoinedAt = s.now()
		return tx.InsertParticipant(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.record(ParticipantAdded, eventID, actor, p)
	return &p, nil
}

func (s *Service) SetWeighting(ctx context.Context, eventID, userID uuid.UUID, weighting decimal.Decimal, actor Actor) (*Participant, error) {
	if !weighting.IsPositive() {
		return nil, ErrInvalidWeighting
	}

	var p Participant
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireAdmin(book.Event, actor); err != nil {
			return err
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		var ok bool
		if p, ok = book.Participant(userID); !ok {
			return ErrNotParticipant
		}

		p.Weighting = weighting
		return tx.UpdateParticipant(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.record(ParticipantUpdated, eventID, actor, p)
	return &p, nil
}

// RemoveParticipant refuses to remove the admin, the accountant, or anyone a
// transaction still references.
func (s *Service) RemoveParticipant(ctx context.Context, eventID, userID uuid.UUID, actor Actor) error {
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireAdmin(book.Event, actor); err != nil {
			return err
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if !book.IsParticipant(userID) {
			return ErrNotParticipant
		}
		if userID == book.Event.AdminID || userID == book.Event.AccountantID || book.ParticipantInUse(userID) {
			return ErrParticipantInUse
		}
		return tx.DeleteParticipant(ctx, eventID, userID)
	})
	if err != nil {
		return err
	}

	s.record(ParticipantRemoved, eventID, actor, RemovedEvent{ID: userID})
	return nil
}

// checkPrecision rejects amounts with more decimals than the currency's exponent.
func checkPrecision(c EventCurrency, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(c.Exponent)) {
		return fmt.Errorf("%w: %s allows %d decimals", ErrAmountPrecision, c.Code, c.Exponent)
	}
	return nil
}

func checkExpense(book *Book, e Expense) error {
	c, ok := book.Currency(e.Currency)
	if !ok {
		return ErrCurrencyNotAllowed
	}
	if err := checkPrecision(c, e.Amount); err != nil {
		return err
	}
	if !book.IsParticipant(e.PayerID) {
		return ErrNotParticipant
	}
	for _, id := range e.AffectedIDs {
		if !book.IsParticipant(id) {
			return ErrNotParticipant
		}
	}
	return nil
}

// AddExpense records an expense paid by the actor. Only the admin may book
// an expense on behalf of another participant.
func (s *Service) AddExpense(ctx context.Context, eventID uuid.UUID, p ExpenseParams, actor Actor) (*Expense, error) {
	var expense Expense
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if !book.IsParticipant(actor.ID) {
			return ErrForbidden
		}
		if p.PayerID == uuid.Nil {
			p.PayerID = actor.ID
		}
		if p.PayerID != actor.ID && book.Event.AdminID != actor.ID {
			return ErrForbidden
		}

		var err error
		if expense, err = NewExpense(eventID, p, actor, s.now()); err != nil {
			return err
		}
		if err := checkExpense(book, expense); err != nil {
			return err
		}
		return tx.InsertExpense(ctx, expense)
	})
	if err != nil {
		return nil, err
	}

	s.record(ExpenseAdded, eventID, actor, expense)
	return &expense, nil
}

func (s *Service) expenseEvent(ctx context.Context, expenseID uuid.UUID) (uuid.UUID, error) {
	var eventID uuid.UUID
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		e, err := tx.GetExpense(ctx, expenseID)
		eventID = e.EventID
		return err
	})
	return eventID, err
}

func (s *Service) settlementEvent(ctx context.Context, settlementID uuid.UUID) (uuid.UUID, error) {
	var eventID uuid.UUID
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		st, err := tx.GetSettlement(ctx, settlementID)
		eventID = st.EventID
		return err
	})
	return eventID, err
}

func (s *Service) UpdateExpense(ctx context.Context, expenseID uuid.UUID, p ExpenseParams, actor Actor) (*Expense, error) {
	eventID, err := s.expenseEvent(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	var updated Expense
	err = s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		current, ok := book.Expense(expenseID)
		if !ok {
			return ErrNotFound
		}
		isAdmin := book.Event.AdminID == actor.ID
		if !isAdmin && current.PayerID != actor.ID {
			return ErrForbidden
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if p.PayerID == uuid.Nil {
			p.PayerID = current.PayerID
		}
		if p.PayerID != current.PayerID && !isAdmin {
			return ErrForbidden
		}

		candidate, err := NewExpense(eventID, p, actor, s.now())
		if err != nil {
			return err
		}
		if err := checkExpense(book, candidate); err != nil {
			return err
		}

		candidate.ID = current.ID
		candidate.CreatedAt = current.CreatedAt
		candidate.CreatedBy = current.CreatedBy
		updated = candidate
		return tx.UpdateExpense(ctx, updated)
	})
	if err != nil {
		return nil, err
	}

	s.record(ExpenseUpdated, eventID, actor, updated)
	return &updated, nil
}

func (s *Service) RemoveExpense(ctx context.Context, expenseID uuid.UUID, actor Actor) error {
	eventID, err := s.expenseEvent(ctx, expenseID)
	if err != nil {
		return err
	}

	err = s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		e, ok := book.Expense(expenseID)
		if !ok {
			return ErrNotFound
		}
		if book.Event.AdminID != actor.ID && e.PayerID != actor.ID {
			return ErrForbidden
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		return tx.DeleteExpense(ctx, expenseID)
	})
	if err != nil {
		return err
	}

	s.record(ExpenseRemoved, eventID, actor, RemovedEvent{ID: expenseID})
	return nil
}

func checkSettlement(book *Book, st Settlement) error {
	c, ok := book.Currency(st.Currency)
	if !ok {
		return ErrCurrencyNotAllowed
	}
	if err := checkPrecision(c, st.Amount); err != nil {
		return err
	}
	if !book.IsParticipant(st.SenderID) || !book.IsParticipant(st.RecipientID) {
		return ErrNotParticipant
	}
	return nil
}

// AddSettlement records a payment the actor already made. Manual settlements
// are confirmed on creation.
func (s *Service) AddSettlement(ctx context.Context, eventID uuid.UUID, p SettlementParams, actor Actor) (*Settlement, error) {
	var st Settlement
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if !book.IsParticipant(actor.ID) {
			return ErrForbidden
		}
		if p.SenderID == uuid.Nil {
			p.SenderID = actor.ID
		}
		if p.SenderID != actor.ID && book.Event.AdminID != actor.ID {
			return ErrForbidden
		}

		var err error
		if st, err = NewSettlement(eventID, p, false, actor, s.now()); err != nil {
			return err
		}
		if err := checkSettlement(book, st); err != nil {
			return err
		}
		return tx.InsertSettlement(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	s.record(SettlementAdded, eventID, actor, st)
	return &st, nil
}

func (s *Service) UpdateSettlement(ctx context.Context, settlementID uuid.UUID, p SettlementParams, actor Actor) (*Settlement, error) {
	eventID, err := s.settlementEvent(ctx, settlementID)
	if err != nil {
		return nil, err
	}

	var updated Settlement
	err = s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		current, ok := book.Settlement(settlementID)
		if !ok {
			return ErrNotFound
		}
		isAdmin := book.Event.AdminID == actor.ID
		if !isAdmin && current.SenderID != actor.ID {
			return ErrForbidden
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if current.Draft {
			return ErrDraftSettlement
		}
		if p.SenderID == uuid.Nil {
			p.SenderID = current.SenderID
		}
		if p.SenderID != current.SenderID && !isAdmin {
			return ErrForbidden
		}

		candidate, err := NewSettlement(eventID, p, false, actor, s.now())
		if err != nil {
			return err
		}
		if err := checkSettlement(book, candidate); err != nil {
			return err
		}

		candidate.ID = current.ID
		candidate.CreatedAt = current.CreatedAt
		candidate.CreatedBy = current.CreatedBy
		updated = candidate
		return tx.UpdateSettlement(ctx, updated)
	})
	if err != nil {
		return nil, err
	}

	s.record(SettlementUpdated, eventID, actor, updated)
	return &updated, nil
}

func (s *Service) RemoveSettlement(ctx context.Context, settlementID uuid.UUID, actor Actor) error {
	eventID, err := s.settlementEvent(ctx, settlementID)
	if err != nil {
		return err
	}

	err = s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		st, ok := book.Settlement(settlementID)
		if !ok {
			return ErrNotFound
		}
		if book.Event.AdminID != actor.ID && st.SenderID != actor.ID {
			return ErrForbidden
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if st.Draft {
			return ErrDraftSettlement
		}
		return tx.DeleteSettlement(ctx, settlementID)
	})
	if err != nil {
		return err
	}

	s.record(SettlementRemoved, eventID, actor, RemovedEvent{ID: settlementID})
	return nil
}

// ConfirmSettlement turns a draft into a confirmed payment. Only the
// recipient or the admin may confirm, and confirmation cannot be undone.
func (s *Service) ConfirmSettlement(ctx context.Context, settlementID uuid.UUID, actor Actor) (*Settlement, error) {
	eventID, err := s.settlementEvent(ctx, settlementID)
	if err != nil {
		return nil, err
	}

	var st Settlement
	err = s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		var ok bool
		if st, ok = book.Settlement(settlementID); !ok {
			return ErrNotFound
		}
		if book.Event.AdminID != actor.ID && st.RecipientID != actor.ID {
			return ErrForbidden
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		if !st.Draft {
			return ErrAlreadyConfirmed
		}

		now := s.now()
		st.Draft = false
		st.Description = fmt.Sprintf("Confirmed by %s on %s", actor.Name, now.Format(time.DateOnly))
		st.touch(actor.Name, now)
		return tx.UpdateSettlement(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	s.record(SettlementConfirmed, eventID, actor, st)
	return &st, nil
}

func (s *Service) regenerate(ctx context.Context, tx Tx, book *Book) ([]Settlement, error) {
	drafts, err := book.DraftSettlements(s.now())
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteDraftSettlements(ctx, book.Event.ID); err != nil {
		return nil, fmt.Errorf("deleting drafts: %w", err)
	}
	for _, d := range drafts {
		if err := tx.InsertSettlement(ctx, d); err != nil {
			return nil, fmt.Errorf("inserting draft: %w", err)
		}
	}
	return drafts, nil
}

// Recalculate replaces the event's draft settlements with a freshly
// generated set. Running it twice in a row yields the same drafts.
func (s *Service) Recalculate(ctx context.Context, eventID uuid.UUID) ([]Settlement, error) {
	var drafts []Settlement
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireOpen(book.Event); err != nil {
			return err
		}
		var err error
		drafts, err = s.regenerate(ctx, tx, book)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(SettlementsRecomputed, eventID, System, RecalculatedEvent{Drafts: len(drafts)})
	return drafts, nil
}

type BalanceReport struct {
	Event                  Event           `json:"event"`
	Base                   EventCurrency   `json:"base"`
	Balances               []Balance       `json:"balances"`
	Drafts                 []Settlement    `json:"drafts"`
	TotalExpenses          decimal.Decimal `json:"total_expenses"`
	TotalExpensesFormatted string          `json:"total_expenses_formatted"`
}

// GetBalance computes the balance sheet of an event. On an open event the
// draft settlements are regenerated first; a closed event is only read.
func (s *Service) GetBalance(ctx context.Context, eventID uuid.UUID) (*BalanceReport, error) {
	var report BalanceReport
	regenerated := false
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		base, ok := book.Currency(book.Event.BaseCurrency)
		if !ok {
			return fmt.Errorf("base %s: %w", book.Event.BaseCurrency, ErrCurrencyNotInEvent)
		}

		balances, err := book.Balances()
		if err != nil {
			return err
		}
		total, err := book.TotalExpenses()
		if err != nil {
			return err
		}

		drafts := book.Drafts()
		if !book.Event.Closed {
			if drafts, err = s.regenerate(ctx, tx, book); err != nil {
				return err
			}
			regenerated = true
		}

		report = BalanceReport{
			Event:                  book.Event,
			Base:                   base,
			Balances:               balances,
			Drafts:                 drafts,
			TotalExpenses:          total,
			TotalExpensesFormatted: base.Format(total),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if regenerated {
		s.record(SettlementsRecomputed, eventID, System, RecalculatedEvent{Drafts: len(report.Drafts)})
	}
	return &report, nil
}

type Reminder struct {
	SettlementID uuid.UUID `json:"settlement_id"`
	SenderID     uuid.UUID `json:"sender_id"`
	RecipientID  uuid.UUID `json:"recipient_id"`
	Amount       string    `json:"amount"`
}

// Reminders regenerates the drafts and returns one reminder per payment
// still owed, addressed to its sender.
func (s *Service) Reminders(ctx context.Context, eventID uuid.UUID, actor Actor) ([]Reminder, error) {
	var reminders []Reminder
	var drafts []Settlement
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if book.Event.AccountantID != actor.ID && book.Event.AdminID != actor.ID {
			return ErrForbidden
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}

		var err error
		if drafts, err = s.regenerate(ctx, tx, book); err != nil {
			return err
		}

		conv := book.Converter()
		reminders = make([]Reminder, 0, len(drafts))
		for _, d := range drafts {
			amount, err := conv.Format(d.Amount, d.Currency)
			if err != nil {
				return err
			}
			reminders = append(reminders, Reminder{
				SettlementID: d.ID,
				SenderID:     d.SenderID,
				RecipientID:  d.RecipientID,
				Amount:       amount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, d := range drafts {
		s.record(SettlementReminder, eventID, actor, ReminderEvent{
			SettlementID: d.ID,
			SenderID:     d.SenderID,
			RecipientID:  d.RecipientID,
			Amount:       d.Amount,
			Currency:     d.Currency,
		})
	}
	return reminders, nil
}

// CloseEvent freezes the event. It is refused while draft settlements are
// stored, so callers confirm every payment first.
func (s *Service) CloseEvent(ctx context.Context, eventID uuid.UUID, actor Actor) error {
	return s.setClosed(ctx, eventID, true, actor)
}

func (s *Service) ReopenEvent(ctx context.Context, eventID uuid.UUID, actor Actor) error {
	return s.setClosed(ctx, eventID, false, actor)
}

func (s *Service) setClosed(ctx context.Context, eventID uuid.UUID, closed bool, actor Actor) error {
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireAdmin(book.Event, actor); err != nil {
			return err
		}
		if closed && book.HasDrafts() {
			return ErrOpenDrafts
		}

		event := book.Event
		event.Closed = closed
		event.touch(actor.Name, s.now())
		return tx.UpdateEvent(ctx, event)
	})
	if err != nil {
		return err
	}

	eventType := EventReopened
	if closed {
		eventType = EventClosed
	}
	slog.Info("event state changed", "event_id", eventID, "closed", closed)
	s.record(eventType, eventID, actor, nil)
	return nil
}

// ConvertEventToBaseCurrency rewrites every expense and settlement into the
// base currency, applying the event's exchange fee once. Converted amounts
// are rounded to the base currency's exponent; if one rounds to zero nothing
// is converted.
func (s *Service) ConvertEventToBaseCurrency(ctx context.Context, eventID uuid.UUID, actor Actor) error {
	var summary ConvertedEvent
	err := s.mutate(ctx, eventID, func(ctx context.Context, tx Tx, book *Book) error {
		if err := requireAdmin(book.Event, actor); err != nil {
			return err
		}
		if err := requireOpen(book.Event); err != nil {
			return err
		}

		now := s.now()
		conv := book.Converter()
		exp := conv.BaseExponent()
		base := book.Event.BaseCurrency
		summary.BaseCurrency = base

		for _, e := range book.Expenses() {
			if e.Currency == base {
				continue
			}
			amount, err := conv.ToBase(e.Amount, e.Currency)
			if err != nil {
				return fmt.Errorf("expense %s: %w", e.ID, err)
			}
			if amount = amount.Round(exp); !amount.IsPositive() {
				return fmt.Errorf("%w: expense %s rounds to zero in %s", ErrAmountPrecision, e.ID, base)
			}
			e.Currency = base
			e.Amount = amount
			e.touch(actor.Name, now)
			if err := tx.UpdateExpense(ctx, e); err != nil {
				return err
			}
			summary.Expenses++
		}

		for _, st := range book.Settlements() {
			if st.Currency == base {
				continue
			}
			amount, err := conv.ToBase(st.Amount, st.Currency)
			if err != nil {
				return fmt.Errorf("settlement %s: %w", st.ID, err)
			}
			if amount = amount.Round(exp); !amount.IsPositive() {
				return fmt.Errorf("%w: settlement %s rounds to zero in %s", ErrAmountPrecision, st.ID, base)
			}
			st.Currency = base
			st.Amount = amount
			st.touch(actor.Name, now)
			if err := tx.UpdateSettlement(ctx, st); err != nil {
				return err
			}
			summary.Settlements++
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("event converted to base currency", "event_id", eventID, "expenses", summary.Expenses, "settlements", summary.Settlements)
	s.record(EventConverted, eventID, actor, summary)
	return nil
}

// IsInvariant reports whether err is a programming error rather than a
// rejected request.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}
