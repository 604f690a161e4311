package currency

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const seedActor = "currency seed"

// Defaults are the currencies a fresh installation starts with, quoted
// against CHF as the reference unit.
func Defaults() []Currency {
	defs := []struct {
		code, name, description string
		number                  int
		rate                    string
	}{
		{"CHF", "Swiss Franc", "Switzerland, Liechtenstein", 756, "1"},
		{"EUR", "Euro", "Euro area", 978, "0.95"},
		{"USD", "US Dollar", "United States", 840, "0.9"},
	}

	currencies := make([]Currency, 0, len(defs))
	for _, d := range defs {
		c, err := New(d.code, d.name, d.number, 2, decimal.RequireFromString(d.rate), SourceManual, seedActor)
		if err != nil {
			panic(err)
		}
		c.Description = d.description
		currencies = append(currencies, c)
	}
	return currencies
}

// Seed inserts the default currencies. Existing codes are left alone unless
// overwrite is set. It returns the number of currencies written.
func Seed(ctx context.Context, registry Registry, overwrite bool) (int, error) {
	written := 0
	for _, c := range Defaults() {
		_, err := registry.Get(ctx, c.Code)
		switch {
		case err == nil && !overwrite:
			continue
		case err != nil && !errors.Is(err, ErrNotFound):
			return written, fmt.Errorf("looking up %s: %w", c.Code, err)
		}

		if err := registry.Upsert(ctx, c); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
