package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConverter(fee string) Converter {
	id := uuid.New()
	return NewConverter("CHF", dec(fee), chf(id), usd(id), eur(id))
}

func TestConvertAppliesRateAndFee(t *testing.T) {
	conv := testConverter("2")

	got, err := conv.Convert(dec("100"), "USD", "CHF")
	require.NoError(t, err)
	assertDecimal(t, "113.33", got.Round(2))

	got, err = conv.ToBase(dec("100"), "USD")
	require.NoError(t, err)
	assertDecimal(t, "113.33", got.Round(2))
}

func TestConvertIdentity(t *testing.T) {
	conv := testConverter("5")

	got, err := conv.Convert(dec("42.42"), "USD", "USD")
	require.NoError(t, err)
	assertDecimal(t, "42.42", got)
}

func TestConvertRoundTrip(t *testing.T) {
	conv := testConverter("0")
	pairs := [][2]string{{"USD", "EUR"}, {"EUR", "CHF"}, {"CHF", "USD"}}

	for _, p := range pairs {
		there, err := conv.Convert(dec("100"), p[0], p[1])
		require.NoError(t, err)
		back, err := conv.Convert(there, p[1], p[0])
		require.NoError(t, err)
		assert.True(t, back.Sub(dec("100")).Abs().LessThan(dec("0.01")), "%s -> %s -> %s = %s", p[0], p[1], p[0], back)
	}
}

func TestConvertFeeMonotonic(t *testing.T) {
	prev := dec("0")
	for _, fee := range []string{"0", "0.5", "1", "2", "10"} {
		got, err := testConverter(fee).Convert(dec("100"), "EUR", "USD")
		require.NoError(t, err)
		assert.True(t, got.GreaterThanOrEqual(prev), "fee %s gave %s, previous %s", fee, got, prev)
		prev = got
	}
}

func TestConvertUnknownCurrency(t *testing.T) {
	conv := testConverter("0")

	_, err := conv.Convert(dec("1"), "GBP", "CHF")
	assert.ErrorIs(t, err, ErrCurrencyNotInEvent)
	assert.ErrorIs(t, err, ErrInvariant)

	_, err = conv.Format(dec("1"), "GBP")
	assert.ErrorIs(t, err, ErrCurrencyNotInEvent)
}

func TestFormat(t *testing.T) {
	conv := testConverter("2")

	s, err := conv.Format(dec("50"), "CHF")
	require.NoError(t, err)
	assert.Equal(t, "CHF 50.00", s)

	s, err = conv.FormatWithBase(dec("50"), "CHF")
	require.NoError(t, err)
	assert.Equal(t, "CHF 50.00", s)

	s, err = conv.FormatWithBase(dec("100"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "USD 100.00 (CHF 113.33)", s)
}
