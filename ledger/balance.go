package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance is one participant's position in the event's base currency.
// Positive means the participant is owed money.
type Balance struct {
	ParticipantID uuid.UUID       `json:"participant_id"`
	Paid          decimal.Decimal `json:"paid"`
	Spent         decimal.Decimal `json:"spent"`
	Sent          decimal.Decimal `json:"sent"`
	Received      decimal.Decimal `json:"received"`
	Balance       decimal.Decimal `json:"balance"`
}

// Balances computes every participant's balance in join order. Only confirmed
// settlements count.
func (b *Book) Balances() ([]Balance, error) {
	conv := b.Converter()

	shares, err := b.shares(conv)
	if err != nil {
		return nil, err
	}

	out := make([]Balance, 0, len(b.participants))
	for _, p := range b.participants {
		bal := Balance{
			ParticipantID: p.UserID,
			Spent:         shares[p.UserID],
		}

		for _, i := range b.paidBy[p.UserID] {
			e := b.expenses[i]
			v, err := conv.ToBase(e.Amount, e.Currency)
			if err != nil {
				return nil, fmt.Errorf("expense %s: %w", e.ID, err)
			}
			bal.Paid = bal.Paid.Add(v)
		}
		for _, i := range b.sentBy[p.UserID] {
			s := b.settlements[i]
			v, err := conv.ToBase(s.Amount, s.Currency)
			if err != nil {
				return nil, fmt.Errorf("settlement %s: %w", s.ID, err)
			}
			bal.Sent = bal.Sent.Add(v)
		}
		for _, i := range b.receivedBy[p.UserID] {
			s := b.settlements[i]
			v, err := conv.ToBase(s.Amount, s.Currency)
			if err != nil {
				return nil, fmt.Errorf("settlement %s: %w", s.ID, err)
			}
			bal.Received = bal.Received.Add(v)
		}

		bal.Balance = bal.Paid.Sub(bal.Spent).Add(bal.Sent).Sub(bal.Received)
		out = append(out, bal)
	}

	return out, nil
}

// shares pro-rates every expense over its affected participants by weighting.
func (b *Book) shares(conv Converter) (map[uuid.UUID]decimal.Decimal, error) {
	shares := make(map[uuid.UUID]decimal.Decimal, len(b.participants))

	for _, e := range b.expenses {
		amount, err := conv.ToBase(e.Amount, e.Currency)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}

		total := decimal.Zero
		for _, id := range e.AffectedIDs {
			p, ok := b.Participant(id)
			if !ok {
				return nil, fmt.Errorf("expense %s affects %s: %w", e.ID, id, ErrUnknownParticipant)
			}
			total = total.Add(p.Weighting)
		}
		if !total.IsPositive() {
			continue
		}

		for _, id := range e.AffectedIDs {
			p, _ := b.Participant(id)
			shares[id] = shares[id].Add(amount.Mul(p.Weighting).Div(total))
		}
	}

	return shares, nil
}

// TotalExpenses sums every expense in the base currency.
func (b *Book) TotalExpenses() (decimal.Decimal, error) {
	conv := b.Converter()
	total := decimal.Zero
	for _, e := range b.expenses {
		v, err := conv.ToBase(e.Amount, e.Currency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		total = total.Add(v)
	}
	return total, nil
}
