package fixedpoint

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad big int literal %q", s)
	return n
}

func TestToDisplay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      *big.Int
		decimals int32
		want     string
	}{
		{"nil is zero", nil, 18, "0"},
		{"one ether", mustBig(t, "1000000000000000000"), 18, "1"},
		{"usdc cents", big.NewInt(1_500_000), 6, "1.5"},
		{"small 18-dec value keeps precision", mustBig(t, "3750000000000001"), 18, "0.003750000000000001"},
		{"negative size", mustBig(t, "-2000000000000000000"), 18, "-2"},
		{"zero decimals", big.NewInt(42), 0, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ToDisplay(tt.raw, tt.decimals).String())
		})
	}
}

func TestToDisplayString(t *testing.T) {
	t.Parallel()

	d, err := ToDisplayString("3750000000000000000", 18)
	require.NoError(t, err)
	assert.Equal(t, "3.75", d.String())

	d, err = ToDisplayString("", 18)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ToDisplayString("12abc", 18)
	assert.Error(t, err)
}

func TestToRaw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		decimals int32
		want     string
		wantErr  bool
	}{
		{"integer", "100", 6, "100000000", false},
		{"fraction", "1.5", 18, "1500000000000000000", false},
		{"leading dot", ".25", 6, "250000", false},
		{"surrounding whitespace", " 2 ", 6, "2000000", false},
		{"exact precision", "0.000001", 6, "1", false},
		{"trailing zeros past precision are exact", "1.5000000", 6, "1500000", false},
		{"excess precision rejected", "0.0000001", 6, "", true},
		{"negative rejected", "-1", 18, "", true},
		{"empty", "", 18, "", true},
		{"letters", "abc", 18, "", true},
		{"exponent not accepted", "1e3", 18, "", true},
		{"trailing dot", "1.", 18, "", true},
		{"two dots", "1.2.3", 18, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ToRaw(tt.input, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAmount), "expected ErrInvalidAmount, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToRawSigned(t *testing.T) {
	t.Parallel()

	got, err := ToRawSigned("-2.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "-2500000000000000000", got.String())

	got, err = ToRawSigned("+1", 6)
	require.NoError(t, err)
	assert.Equal(t, "1000000", got.String())

	_, err = ToRawSigned("--1", 6)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFromDecimal_UnsupportedDecimals(t *testing.T) {
	t.Parallel()

	_, err := FromDecimal(decimal.NewFromInt(1), -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = FromDecimal(decimal.NewFromInt(1), MaxDecimals+1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []struct {
		s        string
		decimals int32
		want     string
	}{
		{"0", 18, "0"},
		{"1", 18, "1"},
		{"3.75", 18, "3.75"},
		{"123456.123456", 6, "123456.123456"},
		{"0.000000000000000001", 18, "0.000000000000000001"},
		{"1.50", 6, "1.5"},
		{"98765432109876543210.5", 18, "98765432109876543210.5"},
	}

	for _, in := range inputs {
		raw, err := ToRaw(in.s, in.decimals)
		require.NoError(t, err, in.s)
		assert.Equal(t, in.want, ToDisplay(raw, in.decimals).String(), in.s)
	}
}
