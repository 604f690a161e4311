// Package ledger holds the expenses and settlements of an event, computes
// per-participant balances in the event's base currency and derives the draft
// settlements that route every debt through the event's accountant.
package ledger

import (
	"slices"
	"strings"
	"time"

	"github.com/billbatista/acasinha-events/currency"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor is the user performing an operation. Name ends up in audit columns.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// System is the actor recorded on rows the engine writes by itself.
var System = Actor{Name: "system"}

type Audit struct {
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

func newAudit(by string, now time.Time) Audit {
	return Audit{CreatedAt: now, CreatedBy: by, UpdatedAt: now, UpdatedBy: by}
}

func (a *Audit) touch(by string, now time.Time) {
	a.UpdatedAt = now
	a.UpdatedBy = by
}

type Event struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Date         time.Time       `json:"date"`
	AdminID      uuid.UUID       `json:"admin_id"`
	AccountantID uuid.UUID       `json:"accountant_id"`
	BaseCurrency string          `json:"base_currency"`
	ExchangeFee  decimal.Decimal `json:"exchange_fee"` // percent
	Closed       bool            `json:"closed"`
	Description  string          `json:"description,omitempty"`
	Audit
}

// EventCurrency pins a currency's reference rate for one event so later
// registry updates do not move the event's balances.
type EventCurrency struct {
	EventID  uuid.UUID       `json:"event_id"`
	Code     string          `json:"code"`
	Exponent int32           `json:"exponent"`
	Rate     decimal.Decimal `json:"rate"`
	Audit
}

func (c EventCurrency) Format(amount decimal.Decimal) string {
	return currency.Format(c.Code, c.Exponent, amount)
}

type Participant struct {
	EventID   uuid.UUID       `json:"event_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Weighting decimal.Decimal `json:"weighting"`
	JoinedAt  time.Time       `json:"joined_at"`
}

type Expense struct {
	ID          uuid.UUID       `json:"id"`
	EventID     uuid.UUID       `json:"event_id"`
	PayerID     uuid.UUID       `json:"payer_id"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	AffectedIDs []uuid.UUID     `json:"affected_ids"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description,omitempty"`
	Audit
}

func (e Expense) Affects(userID uuid.UUID) bool {
	return slices.Contains(e.AffectedIDs, userID)
}

type Settlement struct {
	ID          uuid.UUID       `json:"id"`
	EventID     uuid.UUID       `json:"event_id"`
	SenderID    uuid.UUID       `json:"sender_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Draft       bool            `json:"draft"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description,omitempty"`
	Audit
}

type EventParams struct {
	Name         string
	Date         time.Time
	AdminID      uuid.UUID
	AccountantID uuid.UUID
	BaseCurrency string
	ExchangeFee  decimal.Decimal
	Description  string
}

type ExpenseParams struct {
	PayerID     uuid.UUID // zero means the acting user
	Currency    string
	Amount      decimal.Decimal
	AffectedIDs []uuid.UUID
	Date        time.Time
	Description string
}

type SettlementParams struct {
	SenderID    uuid.UUID // zero means the acting user
	RecipientID uuid.UUID
	Currency    string
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

var defaultWeighting = decimal.NewFromInt(1)

func NewEvent(p EventParams, actor Actor, now time.Time) (Event, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.BaseCurrency = currency.NormalizeCode(p.BaseCurrency)
	if err := p.validate(); err != nil {
		return Event{}, err
	}
	if p.Date.IsZero() {
		p.Date = now
	}

	return Event{
		ID:           uuid.New(),
		Name:         p.Name,
		Date:         p.Date,
		AdminID:      p.AdminID,
		AccountantID: p.AccountantID,
		BaseCurrency: p.BaseCurrency,
		ExchangeFee:  p.ExchangeFee,
		Description:  p.Description,
		Audit:        newAudit(actor.Name, now),
	}, nil
}

func (p EventParams) validate() error {
	if p.Name == "" {
		return ErrEmptyName
	}
	if p.BaseCurrency == "" {
		return ErrEmptyCurrency
	}
	if p.AdminID == uuid.Nil || p.AccountantID == uuid.Nil {
		return ErrMissingParticipant
	}
	if p.ExchangeFee.IsNegative() {
		return ErrInvalidFee
	}
	return nil
}

func NewExpense(eventID uuid.UUID, p ExpenseParams, actor Actor, now time.Time) (Expense, error) {
	p.Currency = currency.NormalizeCode(p.Currency)
	if err := p.validate(); err != nil {
		return Expense{}, err
	}
	if p.Date.IsZero() {
		p.Date = now
	}

	return Expense{
		ID:          uuid.New(),
		EventID:     eventID,
		PayerID:     p.PayerID,
		Currency:    p.Currency,
		Amount:      p.Amount,
		AffectedIDs: dedupe(p.AffectedIDs),
		Date:        p.Date,
		Description: p.Description,
		Audit:       newAudit(actor.Name, now),
	}, nil
}

func (p ExpenseParams) validate() error {
	if p.Currency == "" {
		return ErrEmptyCurrency
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(p.AffectedIDs) == 0 {
		return ErrNoAffected
	}
	return nil
}

func NewSettlement(eventID uuid.UUID, p SettlementParams, draft bool, actor Actor, now time.Time) (Settlement, error) {
	p.Currency = currency.NormalizeCode(p.Currency)
	if err := p.validate(); err != nil {
		return Settlement{}, err
	}
	if p.Date.IsZero() {
		p.Date = now
	}

	return Settlement{
		ID:          uuid.New(),
		EventID:     eventID,
		SenderID:    p.SenderID,
		RecipientID: p.RecipientID,
		Currency:    p.Currency,
		Amount:      p.Amount,
		Draft:       draft,
		Date:        p.Date,
		Description: p.Description,
		Audit:       newAudit(actor.Name, now),
	}, nil
}

func (p SettlementParams) validate() error {
	if p.Currency == "" {
		return ErrEmptyCurrency
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.SenderID == p.RecipientID {
		return ErrSelfSettlement
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
