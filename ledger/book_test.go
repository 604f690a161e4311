package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func chf(eventID uuid.UUID) EventCurrency {
	return EventCurrency{EventID: eventID, Code: "CHF", Exponent: 2, Rate: dec("1")}
}

func usd(eventID uuid.UUID) EventCurrency {
	return EventCurrency{EventID: eventID, Code: "USD", Exponent: 2, Rate: dec("0.9")}
}

func eur(eventID uuid.UUID) EventCurrency {
	return EventCurrency{EventID: eventID, Code: "EUR", Exponent: 2, Rate: dec("0.95")}
}

func jpy(eventID uuid.UUID) EventCurrency {
	return EventCurrency{EventID: eventID, Code: "JPY", Exponent: 0, Rate: dec("160")}
}

type bookFixture struct {
	event        Event
	currencies   []EventCurrency
	participants []Participant
	expenses     []Expense
	settlements  []Settlement
}

func newFixture(accountant uuid.UUID, users ...uuid.UUID) *bookFixture {
	event := Event{ID: uuid.New(), Name: "trip", AdminID: accountant, AccountantID: accountant, BaseCurrency: "CHF"}
	f := &bookFixture{event: event, currencies: []EventCurrency{chf(event.ID), usd(event.ID), eur(event.ID)}}
	for i, u := range users {
		f.participants = append(f.participants, Participant{
			EventID:   event.ID,
			UserID:    u,
			Weighting: dec("1"),
			JoinedAt:  testNow.Add(time.Duration(i) * time.Minute),
		})
	}
	return f
}

func (f *bookFixture) weight(userID uuid.UUID, w string) {
	for i := range f.participants {
		if f.participants[i].UserID == userID {
			f.participants[i].Weighting = dec(w)
		}
	}
}

func (f *bookFixture) expense(payer uuid.UUID, code, amount string, affected ...uuid.UUID) {
	f.expenses = append(f.expenses, Expense{
		ID: uuid.New(), EventID: f.event.ID, PayerID: payer, Currency: code, Amount: dec(amount), AffectedIDs: affected, Date: testNow,
	})
}

func (f *bookFixture) settlement(sender, recipient uuid.UUID, code, amount string, draft bool) {
	f.settlements = append(f.settlements, Settlement{
		ID: uuid.New(), EventID: f.event.ID, SenderID: sender, RecipientID: recipient, Currency: code, Amount: dec(amount), Draft: draft, Date: testNow,
	})
}

func (f *bookFixture) book() *Book {
	return NewBook(f.event, f.currencies, f.participants, f.expenses, f.settlements)
}

func balanceOf(t *testing.T, balances []Balance, userID uuid.UUID) Balance {
	t.Helper()
	for _, b := range balances {
		if b.ParticipantID == userID {
			return b
		}
	}
	t.Fatalf("no balance for %s", userID)
	return Balance{}
}

func TestBalancesEqualSplit(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	f := newFixture(u1, u1, u2)
	f.expense(u1, "CHF", "100", u1, u2)

	balances, err := f.book().Balances()
	require.NoError(t, err)
	require.Len(t, balances, 2)

	assert.Equal(t, u1, balances[0].ParticipantID, "join order")
	assertDecimal(t, "100", balances[0].Paid)
	assertDecimal(t, "50", balances[0].Spent)
	assertDecimal(t, "50", balances[0].Balance)
	assertDecimal(t, "-50", balances[1].Balance)
}

func TestBalancesWeighted(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	f := newFixture(u1, u1, u2)
	f.weight(u2, "3")
	f.expense(u1, "CHF", "100", u1, u2)

	balances, err := f.book().Balances()
	require.NoError(t, err)

	assertDecimal(t, "75", balanceOf(t, balances, u2).Spent)
	assertDecimal(t, "-75", balanceOf(t, balances, u2).Balance)
	assertDecimal(t, "75", balanceOf(t, balances, u1).Balance)
}

func TestBalancesIgnoreDrafts(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	f := newFixture(u1, u1, u2)
	f.expense(u1, "CHF", "100", u1, u2)
	f.settlement(u2, u1, "CHF", "50", true)

	balances, err := f.book().Balances()
	require.NoError(t, err)
	assertDecimal(t, "-50", balanceOf(t, balances, u2).Balance)

	f.settlements[0].Draft = false
	balances, err = f.book().Balances()
	require.NoError(t, err)
	assertDecimal(t, "0", balanceOf(t, balances, u2).Balance)
	assertDecimal(t, "50", balanceOf(t, balances, u2).Sent)
	assertDecimal(t, "50", balanceOf(t, balances, u1).Received)
}

func TestBalancesSumToZero(t *testing.T) {
	u1, u2, u3, u4 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	f := newFixture(u1, u1, u2, u3, u4)
	f.event.ExchangeFee = dec("2.5")
	f.weight(u2, "2")
	f.weight(u4, "0.5")
	f.expense(u1, "CHF", "100", u1, u2, u3)
	f.expense(u2, "USD", "37.45", u2, u4)
	f.expense(u3, "EUR", "12.10", u1, u2, u3, u4)
	f.expense(u4, "USD", "0.99", u1)
	f.settlement(u3, u1, "EUR", "20", false)
	f.settlement(u4, u2, "USD", "7.77", false)
	f.settlement(u2, u1, "CHF", "1000", true)

	balances, err := f.book().Balances()
	require.NoError(t, err)

	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(b.Balance)
	}
	assert.True(t, sum.Abs().LessThan(dec("0.000001")), "sum of balances %s", sum)
}

func TestTotalExpenses(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	f := newFixture(u1, u1, u2)
	f.event.ExchangeFee = dec("2")
	f.expense(u1, "CHF", "10", u1, u2)
	f.expense(u2, "USD", "100", u1, u2)

	total, err := f.book().TotalExpenses()
	require.NoError(t, err)
	assertDecimal(t, "123.33", total.Round(2))
}

func TestDraftSettlements(t *testing.T) {
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name  string
		setup func(f *bookFixture)
		want  []Settlement
	}{
		{
			name: "debtor pays the accountant",
			setup: func(f *bookFixture) {
				f.expense(u1, "CHF", "100", u1, u2)
			},
			want: []Settlement{{SenderID: u2, RecipientID: u1, Amount: dec("50")}},
		},
		{
			name: "accountant pays a creditor",
			setup: func(f *bookFixture) {
				f.expense(u2, "CHF", "100", u1, u2)
			},
			want: []Settlement{{SenderID: u1, RecipientID: u2, Amount: dec("50")}},
		},
		{
			name: "shares are rounded to the base exponent",
			setup: func(f *bookFixture) {
				f.expense(u1, "CHF", "100", u1, u2, u3)
			},
			want: []Settlement{
				{SenderID: u2, RecipientID: u1, Amount: dec("33.33")},
				{SenderID: u3, RecipientID: u1, Amount: dec("33.33")},
			},
		},
		{
			name: "balances within tolerance produce nothing",
			setup: func(f *bookFixture) {
				f.expense(u1, "CHF", "100", u1, u2)
				f.settlement(u2, u1, "CHF", "49.995", false)
			},
			want: []Settlement{},
		},
		{
			name: "everyone settled",
			setup: func(f *bookFixture) {
				f.expense(u1, "CHF", "100", u1, u2)
				f.settlement(u2, u1, "CHF", "50", false)
			},
			want: []Settlement{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(u1, u1, u2, u3)
			tt.setup(f)

			drafts, err := f.book().DraftSettlements(testNow)
			require.NoError(t, err)
			require.Len(t, drafts, len(tt.want))

			for i, want := range tt.want {
				got := drafts[i]
				assert.Equal(t, want.SenderID, got.SenderID)
				assert.Equal(t, want.RecipientID, got.RecipientID)
				assertDecimal(t, want.Amount.String(), got.Amount)
				assert.Equal(t, "CHF", got.Currency)
				assert.True(t, got.Draft)
				assert.Equal(t, "Settlement to service debts", got.Description)
				assert.Equal(t, System.Name, got.CreatedBy)
			}
		})
	}
}

func TestDraftSettlementsWholeUnitBase(t *testing.T) {
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name  string
		setup func(f *bookFixture)
		want  []string
	}{
		{
			name: "shares are rounded to whole yen",
			setup: func(f *bookFixture) {
				f.expense(u1, "JPY", "100", u1, u2, u3)
			},
			want: []string{"33", "33"},
		},
		{
			name: "a fraction of a yen counts as settled",
			setup: func(f *bookFixture) {
				f.expense(u1, "JPY", "100", u1, u2)
				f.settlement(u2, u1, "JPY", "49.4", false)
			},
			want: []string{},
		},
		{
			name: "a fraction of a yen owed by the accountant counts as settled",
			setup: func(f *bookFixture) {
				f.expense(u2, "JPY", "100", u1, u2)
				f.settlement(u1, u2, "JPY", "49.4", false)
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(u1, u1, u2, u3)
			f.event.BaseCurrency = "JPY"
			f.currencies = append(f.currencies, jpy(f.event.ID))
			tt.setup(f)

			balances, err := f.book().Balances()
			require.NoError(t, err)
			drafts, err := f.book().DraftSettlements(testNow)
			require.NoError(t, err)
			require.Len(t, drafts, len(tt.want))

			for i, want := range tt.want {
				assert.Equal(t, u1, drafts[i].RecipientID)
				assert.Equal(t, "JPY", drafts[i].Currency)
				assertDecimal(t, want, drafts[i].Amount)
			}
			if len(tt.want) == 0 {
				assert.True(t, balanceOf(t, balances, u2).Balance.Abs().Equal(dec("0.6")))
			}
		})
	}

	f := newFixture(u1, u1, u2, u3)
	f.event.BaseCurrency = "JPY"
	f.currencies = append(f.currencies, jpy(f.event.ID))
	f.expense(u1, "JPY", "100", u1, u2, u3)
	total, err := f.book().TotalExpenses()
	require.NoError(t, err)
	formatted, err := f.book().Converter().Format(total, "JPY")
	require.NoError(t, err)
	assert.Equal(t, "JPY 100", formatted)
}

func TestDraftSettlementsInvariants(t *testing.T) {
	u1, u2, stranger := uuid.New(), uuid.New(), uuid.New()

	t.Run("unknown affected participant", func(t *testing.T) {
		f := newFixture(u1, u1, u2)
		f.expense(u1, "CHF", "100", u1, stranger)

		_, err := f.book().DraftSettlements(testNow)
		assert.ErrorIs(t, err, ErrUnknownParticipant)
		assert.True(t, IsInvariant(err))
	})

	t.Run("currency not attached", func(t *testing.T) {
		f := newFixture(u1, u1, u2)
		f.expense(u1, "GBP", "100", u1, u2)

		_, err := f.book().DraftSettlements(testNow)
		assert.ErrorIs(t, err, ErrCurrencyNotInEvent)
		assert.ErrorIs(t, err, ErrInvariant)
	})

	t.Run("accountant not a participant", func(t *testing.T) {
		f := newFixture(stranger, u1, u2)

		_, err := f.book().DraftSettlements(testNow)
		assert.ErrorIs(t, err, ErrUnknownParticipant)
	})
}

func TestBookUsage(t *testing.T) {
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	f := newFixture(u1, u1, u2, u3)
	f.expense(u1, "USD", "10", u1, u2)

	b := f.book()
	assert.True(t, b.ParticipantInUse(u1))
	assert.True(t, b.ParticipantInUse(u2), "affected participants count as in use")
	assert.False(t, b.ParticipantInUse(u3))

	assert.True(t, b.CurrencyInUse("USD"))
	assert.True(t, b.CurrencyInUse("CHF"), "base currency is always in use")
	assert.False(t, b.CurrencyInUse("EUR"))

	f.settlement(u3, u1, "EUR", "5", false)
	b = f.book()
	assert.True(t, b.ParticipantInUse(u3))
	assert.True(t, b.CurrencyInUse("EUR"))
}
