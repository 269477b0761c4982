package fixedpoint

import (
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// NotAvailable is shown in place of a price that could not be loaded.
const NotAvailable = "N/A"

// FormatDisplay rounds d to places and groups the integer digits ("1,234.56").
func FormatDisplay(d decimal.Decimal, places int32) string {
	rounded := d.Round(places)
	s := rounded.Abs().StringFixed(places)
	intPart, frac, _ := strings.Cut(s, ".")

	n, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return s
	}
	out := humanize.BigComma(n)
	if frac != "" {
		out += "." + frac
	}
	if rounded.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// FormatSigned is FormatDisplay with an explicit "+" for non-negative values.
func FormatSigned(d decimal.Decimal, places int32) string {
	s := FormatDisplay(d, places)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s
}

// FormatPrice renders a nullable price as "$1,234.56", or N/A.
func FormatPrice(p decimal.NullDecimal, places int32) string {
	if !p.Valid {
		return NotAvailable
	}
	return "$" + FormatDisplay(p.Decimal, places)
}
