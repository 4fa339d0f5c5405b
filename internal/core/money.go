// Package core provides the domain model and the report derivation rules.
//
// This file contains amount parsing for form input and currency display
// formatting backed by go-money.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when no display currency is configured.
const DefaultCurrency = "TWD"

// ParseAmount parses a non-negative decimal amount as typed in a form.
// An empty string is zero. Thousands separators are not accepted.
//
// Examples:
//
//	ParseAmount("1200")    -> 1200, nil
//	ParseAmount(" 12.50 ") -> 12.5, nil
//	ParseAmount("")        -> 0, nil
//	ParseAmount("-1")      -> 0, ErrNegativeAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.ContainsAny(s, ", ") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

// Formatter renders decimal amounts for display in a fixed currency.
type Formatter struct {
	currency money.Currency
}

// NewFormatter returns a formatter for an ISO 4217 code. Unknown codes fall
// back to DefaultCurrency.
func NewFormatter(code string) Formatter {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || money.GetCurrency(code) == nil {
		code = DefaultCurrency
	}
	// money.New always yields a non-nil currency.
	return Formatter{currency: *money.New(0, code).Currency()}
}

// Code returns the ISO code of the display currency.
func (f Formatter) Code() string {
	return f.currency.Code
}

// Format renders the amount with the currency's fraction digits, rounding
// half away from zero.
func (f Formatter) Format(d decimal.Decimal) string {
	minor := d.Shift(int32(f.currency.Fraction)).Round(0).IntPart()
	return f.currency.Formatter().Format(minor)
}

// FormatWhole renders the amount without fractional digits, the way per-capita
// figures are shown on the dashboard.
func (f Formatter) FormatWhole(d decimal.Decimal) string {
	whole := d.Round(0).Shift(int32(f.currency.Fraction)).IntPart()
	s := f.currency.Formatter().Format(whole)
	if f.currency.Fraction == 0 {
		return s
	}
	suffix := f.currency.Decimal + strings.Repeat("0", f.currency.Fraction)
	return strings.Replace(s, suffix, "", 1)
}
