package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Converter converts amounts between the currencies attached to one event,
// using the rates pinned on the event rather than the live registry.
type Converter struct {
	currencies map[string]EventCurrency
	base       string
	fee        decimal.Decimal
}

func NewConverter(base string, fee decimal.Decimal, currencies ...EventCurrency) Converter {
	c := Converter{currencies: make(map[string]EventCurrency, len(currencies)), base: base, fee: fee}
	for _, ec := range currencies {
		c.currencies[ec.Code] = ec
	}
	return c
}

func (c Converter) Base() string {
	return c.base
}

func (c Converter) lookup(code string) (EventCurrency, error) {
	ec, ok := c.currencies[code]
	if !ok {
		return EventCurrency{}, fmt.Errorf("%w: %s", ErrCurrencyNotInEvent, code)
	}
	return ec, nil
}

// Convert moves amount from one currency to another through the reference
// unit and applies the event's exchange fee. Rates are units of the currency
// per reference unit.
func (c Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	src, err := c.lookup(from)
	if err != nil {
		return decimal.Zero, err
	}
	dst, err := c.lookup(to)
	if err != nil {
		return decimal.Zero, err
	}

	factor := decimal.NewFromInt(1).Add(c.fee.Div(hundred))
	return amount.Mul(dst.Rate).Mul(factor).Div(src.Rate), nil
}

func (c Converter) ToBase(amount decimal.Decimal, from string) (decimal.Decimal, error) {
	return c.Convert(amount, from, c.base)
}

func (c Converter) BaseExponent() int32 {
	return c.currencies[c.base].Exponent
}

// Format renders "CHF 50.00" using the currency's exponent.
func (c Converter) Format(amount decimal.Decimal, code string) (string, error) {
	ec, err := c.lookup(code)
	if err != nil {
		return "", err
	}
	return ec.Format(amount), nil
}

// FormatWithBase renders the amount and, for foreign currencies, its base
// equivalent in parentheses: "USD 100.00 (CHF 113.33)".
func (c Converter) FormatWithBase(amount decimal.Decimal, code string) (string, error) {
	s, err := c.Format(amount, code)
	if err != nil {
		return "", err
	}
	if code == c.base {
		return s, nil
	}

	inBase, err := c.ToBase(amount, code)
	if err != nil {
		return "", err
	}
	base, err := c.Format(inBase, c.base)
	if err != nil {
		return "", err
	}
	return s + " (" + base + ")", nil
}
