package ledger

import (
	"fmt"
	"time"

	"github.com/billbatista/acasinha-events/currency"
	"github.com/google/uuid"
)

const draftDescription = "Settlement to service debts"

// DraftSettlements returns the payments that bring every participant back to
// zero by routing through the accountant. Balances within one unit of the
// base currency's last digit are left alone.
func (b *Book) DraftSettlements(now time.Time) ([]Settlement, error) {
	accountant := b.Event.AccountantID
	if !b.IsParticipant(accountant) {
		return nil, fmt.Errorf("accountant %s: %w", accountant, ErrUnknownParticipant)
	}
	if _, ok := b.Currency(b.Event.BaseCurrency); !ok {
		return nil, fmt.Errorf("base %s: %w", b.Event.BaseCurrency, ErrCurrencyNotInEvent)
	}

	balances, err := b.Balances()
	if err != nil {
		return nil, err
	}

	exp := b.Converter().BaseExponent()
	tolerance := currency.Tolerance(exp)

	drafts := make([]Settlement, 0)
	for _, bal := range balances {
		if bal.ParticipantID == accountant {
			continue
		}

		var sender, recipient uuid.UUID
		switch {
		case bal.Balance.LessThan(tolerance.Neg()):
			sender, recipient = bal.ParticipantID, accountant
		case bal.Balance.GreaterThan(tolerance):
			sender, recipient = accountant, bal.ParticipantID
		default:
			continue
		}

		drafts = append(drafts, Settlement{
			ID:          uuid.New(),
			EventID:     b.Event.ID,
			SenderID:    sender,
			RecipientID: recipient,
			Currency:    b.Event.BaseCurrency,
			Amount:      bal.Balance.Abs().Round(exp),
			Draft:       true,
			Date:        now,
			Description: draftDescription,
			Audit:       newAudit(System.Name, now),
		})
	}

	return drafts, nil
}
