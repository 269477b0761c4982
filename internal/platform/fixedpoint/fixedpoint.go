// Package fixedpoint converts between on-chain fixed-point integers and
// human-scale decimals.
//
// Conversion policy for user input: a value that cannot be represented exactly
// at the requested number of decimals is rejected with ErrInvalidAmount.
// Trailing zeros past the precision are accepted ("1.50" at 1 decimal is 15),
// anything that would need rounding is not ("1.55" at 1 decimal fails).
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals18 is the scale used by the clearing house for sizes, prices and margins.
const Decimals18 int32 = 18

// MaxDecimals bounds the scale accepted by ToRaw.
const MaxDecimals int32 = 77

// ErrInvalidAmount is returned when user input cannot be parsed or scaled.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	unsignedPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$|^\.[0-9]+$`)
	signedPattern   = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]+)?|\.[0-9]+)$`)
)

// ToDisplay divides raw by 10^decimals without losing precision.
// A nil raw value is treated as zero.
func ToDisplay(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToDisplayString parses a base-10 integer string and converts it with ToDisplay.
func ToDisplayString(raw string, decimals int32) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("parse fixed-point integer %q", raw)
	}
	return ToDisplay(n, decimals), nil
}

// ToRaw parses a non-negative decimal string and scales it by 10^decimals.
func ToRaw(s string, decimals int32) (*big.Int, error) {
	return toRaw(s, decimals, unsignedPattern)
}

// ToRawSigned is ToRaw for values where a sign is meaningful (sizes, P&L).
func ToRawSigned(s string, decimals int32) (*big.Int, error) {
	return toRaw(s, decimals, signedPattern)
}

// FromDecimal scales an already parsed decimal, applying the same precision policy as ToRaw.
func FromDecimal(d decimal.Decimal, decimals int32) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: unsupported decimals %d", ErrInvalidAmount, decimals)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidAmount, d.String(), decimals)
	}
	return scaled.BigInt(), nil
}

func toRaw(s string, decimals int32, pattern *regexp.Regexp) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if !pattern.MatchString(s) {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return FromDecimal(d, decimals)
}
