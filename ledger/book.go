package ledger

import (
	"slices"

	"github.com/google/uuid"
)

// Book is the loaded state of one event. Records live in flat slices and are
// referenced by index from the lookup tables, so participants, expenses and
// settlements only ever point at each other through ids.
type Book struct {
	Event Event

	currencies   map[string]EventCurrency
	participants []Participant
	expenses     []Expense
	settlements  []Settlement

	byUser     map[uuid.UUID]int
	paidBy     map[uuid.UUID][]int
	affecting  map[uuid.UUID][]int
	sentBy     map[uuid.UUID][]int // confirmed only
	receivedBy map[uuid.UUID][]int // confirmed only
	drafts     []int
}

func NewBook(event Event, currencies []EventCurrency, participants []Participant, expenses []Expense, settlements []Settlement) *Book {
	b := &Book{
		Event:        event,
		currencies:   make(map[string]EventCurrency, len(currencies)),
		participants: slices.Clone(participants),
		expenses:     slices.Clone(expenses),
		settlements:  slices.Clone(settlements),
		byUser:       make(map[uuid.UUID]int, len(participants)),
		paidBy:       make(map[uuid.UUID][]int),
		affecting:    make(map[uuid.UUID][]int),
		sentBy:       make(map[uuid.UUID][]int),
		receivedBy:   make(map[uuid.UUID][]int),
	}

	for _, c := range currencies {
		b.currencies[c.Code] = c
	}

	slices.SortStableFunc(b.participants, func(x, y Participant) int {
		return x.JoinedAt.Compare(y.JoinedAt)
	})
	for i, p := range b.participants {
		b.byUser[p.UserID] = i
	}

	for i, e := range b.expenses {
		b.paidBy[e.PayerID] = append(b.paidBy[e.PayerID], i)
		for _, id := range e.AffectedIDs {
			b.affecting[id] = append(b.affecting[id], i)
		}
	}

	for i, s := range b.settlements {
		if s.Draft {
			b.drafts = append(b.drafts, i)
			continue
		}
		b.sentBy[s.SenderID] = append(b.sentBy[s.SenderID], i)
		b.receivedBy[s.RecipientID] = append(b.receivedBy[s.RecipientID], i)
	}

	return b
}

func (b *Book) Currency(code string) (EventCurrency, bool) {
	c, ok := b.currencies[code]
	return c, ok
}

func (b *Book) Currencies() []EventCurrency {
	out := make([]EventCurrency, 0, len(b.currencies))
	for _, c := range b.currencies {
		out = append(out, c)
	}
	slices.SortFunc(out, func(x, y EventCurrency) int {
		switch {
		case x.Code < y.Code:
			return -1
		case x.Code > y.Code:
			return 1
		}
		return 0
	})
	return out
}

// Participants returns the participants in join order.
func (b *Book) Participants() []Participant {
	return slices.Clone(b.participants)
}

func (b *Book) Participant(userID uuid.UUID) (Participant, bool) {
	i, ok := b.byUser[userID]
	if !ok {
		return Participant{}, false
	}
	return b.participants[i], true
}

func (b *Book) IsParticipant(userID uuid.UUID) bool {
	_, ok := b.byUser[userID]
	return ok
}

func (b *Book) Expenses() []Expense {
	return slices.Clone(b.expenses)
}

func (b *Book) Expense(id uuid.UUID) (Expense, bool) {
	for _, e := range b.expenses {
		if e.ID == id {
			return e, true
		}
	}
	return Expense{}, false
}

func (b *Book) Settlements() []Settlement {
	return slices.Clone(b.settlements)
}

func (b *Book) Settlement(id uuid.UUID) (Settlement, bool) {
	for _, s := range b.settlements {
		if s.ID == id {
			return s, true
		}
	}
	return Settlement{}, false
}

func (b *Book) Drafts() []Settlement {
	out := make([]Settlement, 0, len(b.drafts))
	for _, i := range b.drafts {
		out = append(out, b.settlements[i])
	}
	return out
}

func (b *Book) HasDrafts() bool {
	return len(b.drafts) > 0
}

// ParticipantInUse reports whether any expense or settlement references the
// user as payer, affected participant, sender or recipient.
func (b *Book) ParticipantInUse(userID uuid.UUID) bool {
	if len(b.paidBy[userID]) > 0 || len(b.affecting[userID]) > 0 {
		return true
	}
	for _, s := range b.settlements {
		if s.SenderID == userID || s.RecipientID == userID {
			return true
		}
	}
	return false
}

func (b *Book) CurrencyInUse(code string) bool {
	if code == b.Event.BaseCurrency {
		return true
	}
	for _, e := range b.expenses {
		if e.Currency == code {
			return true
		}
	}
	for _, s := range b.settlements {
		if s.Currency == code {
			return true
		}
	}
	return false
}

func (b *Book) Converter() Converter {
	return Converter{
		currencies: b.currencies,
		base:       b.Event.BaseCurrency,
		fee:        b.Event.ExchangeFee,
	}
}
