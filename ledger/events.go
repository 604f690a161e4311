package ledger

import (
	"github.com/billbatista/acasinha-events/eventlogger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Audit event types recorded for every ledger change.
const (
	EventCreated          = "event.created"
	EventUpdated          = "event.updated"
	EventClosed           = "event.closed"
	EventReopened         = "event.reopened"
	EventConverted        = "event.converted"
	CurrencyAdded         = "currency.added"
	CurrencyRemoved       = "currency.removed"
	ParticipantAdded      = "participant.added"
	ParticipantUpdated    = "participant.updated"
	ParticipantRemoved    = "participant.removed"
	ExpenseAdded          = "expense.added"
	ExpenseUpdated        = "expense.updated"
	ExpenseRemoved        = "expense.removed"
	SettlementAdded       = "settlement.added"
	SettlementUpdated     = "settlement.updated"
	SettlementRemoved     = "settlement.removed"
	SettlementConfirmed   = "settlement.confirmed"
	SettlementsRecomputed = "settlement.recalculated"
	SettlementReminder    = "settlement.reminder"
)

type RecalculatedEvent struct {
	Drafts int `json:"drafts"`
}

type ConvertedEvent struct {
	BaseCurrency string `json:"base_currency"`
	Expenses     int    `json:"expenses"`
	Settlements  int    `json:"settlements"`
}

type ReminderEvent struct {
	SettlementID uuid.UUID       `json:"settlement_id"`
	SenderID     uuid.UUID       `json:"sender_id"`
	RecipientID  uuid.UUID       `json:"recipient_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

type RemovedEvent struct {
	ID uuid.UUID `json:"id"`
}

func (s *Service) record(eventType string, eventID uuid.UUID, actor Actor, data any) {
	s.audit.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventType),
		eventlogger.WithData(data),
		eventlogger.WithMeta("event_id", eventID.String()),
		eventlogger.WithMeta("actor", actor.Name),
	))
}
