package currency

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		exponent int32
		rate     string
		wantErr  error
	}{
		{"valid", "chf", 2, "1", nil},
		{"zero exponent", "JPY", 0, "160.5", nil},
		{"short code", "CH", 2, "1", ErrInvalidCode},
		{"digits in code", "C1F", 2, "1", ErrInvalidCode},
		{"negative exponent", "CHF", -1, "1", ErrInvalidExponent},
		{"zero rate", "CHF", 2, "0", ErrInvalidRate},
		{"negative rate", "CHF", 2, "-2", ErrInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.code, "x", 0, tt.exponent, decimal.RequireFromString(tt.rate), "", "test")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, NormalizeCode(tt.code), c.Code)
			assert.Equal(t, SourceManual, c.Source)
		})
	}
}

func TestFormat(t *testing.T) {
	chf := Currency{Code: "CHF", Exponent: 2}
	jpy := Currency{Code: "JPY", Exponent: 0}

	assert.Equal(t, "CHF 50.00", chf.Format(decimal.NewFromInt(50)))
	assert.Equal(t, "CHF 113.33", chf.Format(decimal.RequireFromString("113.3333333")))
	assert.Equal(t, "CHF -0.01", chf.Format(decimal.RequireFromString("-0.005")))
	assert.Equal(t, "JPY 1235", jpy.Format(decimal.RequireFromString("1234.5")))
}

func TestTolerance(t *testing.T) {
	assert.True(t, Tolerance(2).Equal(decimal.RequireFromString("0.01")))
	assert.True(t, Tolerance(0).Equal(decimal.NewFromInt(1)))
	assert.True(t, Tolerance(3).Equal(decimal.RequireFromString("0.001")))
}

func TestSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert defaults into an empty registry", func(t *testing.T) {
		reg := NewMemoryRegistry()
		n, err := Seed(ctx, reg, false)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		list, err := reg.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "CHF", list[0].Code)
	})

	t.Run("should keep existing currencies unless overwriting", func(t *testing.T) {
		custom, err := New("USD", "Dollar", 840, 2, decimal.RequireFromString("0.8"), SourceFeed, "test")
		require.NoError(t, err)
		reg := NewMemoryRegistry(custom)

		n, err := Seed(ctx, reg, false)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		usd, err := reg.Get(ctx, "USD")
		require.NoError(t, err)
		assert.Equal(t, SourceFeed, usd.Source)

		n, err = Seed(ctx, reg, true)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		usd, err = reg.Get(ctx, "usd")
		require.NoError(t, err)
		assert.Equal(t, SourceManual, usd.Source)
	})
}

func TestMemoryRegistryUpdateRate(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(Defaults()...)

	require.NoError(t, reg.UpdateRate(ctx, "eur", decimal.RequireFromString("0.97"), "test"))
	eur, err := reg.Get(ctx, "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.97", eur.Rate.String())
	assert.Equal(t, "test", eur.UpdatedBy)

	assert.ErrorIs(t, reg.UpdateRate(ctx, "GBP", decimal.NewFromInt(1), "test"), ErrNotFound)
	assert.ErrorIs(t, reg.UpdateRate(ctx, "EUR", decimal.Zero, "test"), ErrInvalidRate)
}
