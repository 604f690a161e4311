package currency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source tells where a currency's reference rate comes from. Only feed
// currencies are overwritten by the Syncer.
type Source string

const (
	SourceManual Source = "manual"
	SourceFeed   Source = "feed"
)

const maxExponent = 8

type Currency struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Number      int             `json:"number,omitempty"`
	Exponent    int32           `json:"exponent"`
	Rate        decimal.Decimal `json:"rate"` // units of this currency per 1 reference unit
	Source      Source          `json:"source"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
	UpdatedBy   string          `json:"updated_by,omitempty"`
}

// Registry is the catalog of known currencies and their current reference rates.
type Registry interface {
	Get(ctx context.Context, code string) (*Currency, error)
	List(ctx context.Context) ([]Currency, error)
	Upsert(ctx context.Context, c Currency) error
	UpdateRate(ctx context.Context, code string, rate decimal.Decimal, updatedBy string) error
}

var (
	ErrNotFound        = errors.New("currency not found")
	ErrInvalidCode     = errors.New("currency code must be three letters")
	ErrInvalidExponent = errors.New("exponent must be between 0 and 8")
	ErrInvalidRate     = errors.New("rate must be positive")
	ErrInvalidSource   = errors.New("unknown rate source")
)

func New(code, name string, number int, exponent int32, rate decimal.Decimal, source Source, createdBy string) (Currency, error) {
	now := time.Now().UTC()
	c := Currency{
		Code:      NormalizeCode(code),
		Name:      name,
		Number:    number,
		Exponent:  exponent,
		Rate:      rate,
		Source:    source,
		CreatedAt: now,
		CreatedBy: createdBy,
		UpdatedAt: now,
		UpdatedBy: createdBy,
	}
	if c.Source == "" {
		c.Source = SourceManual
	}
	if err := c.Validate(); err != nil {
		return Currency{}, err
	}
	return c, nil
}

func (c Currency) Validate() error {
	if len(c.Code) != 3 {
		return ErrInvalidCode
	}
	for _, r := range c.Code {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCode
		}
	}
	if c.Exponent < 0 || c.Exponent > maxExponent {
		return ErrInvalidExponent
	}
	if !c.Rate.IsPositive() {
		return ErrInvalidRate
	}
	if c.Source != SourceManual && c.Source != SourceFeed {
		return ErrInvalidSource
	}
	return nil
}

// Format renders amount with the currency's display exponent, e.g. "CHF 12.50".
func (c Currency) Format(amount decimal.Decimal) string {
	return Format(c.Code, c.Exponent, amount)
}

func Format(code string, exponent int32, amount decimal.Decimal) string {
	return code + " " + amount.StringFixed(exponent)
}

// Tolerance is the smallest displayable unit of a currency with the given
// exponent. Amounts within it of zero count as settled.
func Tolerance(exponent int32) decimal.Decimal {
	return decimal.New(1, -exponent)
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
