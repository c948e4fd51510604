package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyINR is the currency every hostel amount is billed in.
const CurrencyINR = "inr"

// Money represents a monetary value in the smallest currency unit.
// Stored amounts are integers; fractional arithmetic goes through Decimal.
//
// Examples:
//   - INR(263462) = ₹2634.62
//   - Rupees(500) = ₹500.00
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (paise)
	Currency string `json:"currency"` // ISO 4217 lowercase
}

// INR creates a Money value in Indian Rupees (paise).
func INR(paise int64) Money { return Money{Amount: paise, Currency: CurrencyINR} }

// Rupees creates a Money value from whole rupees.
func Rupees(r int64) Money { return INR(r * 100) }

// FromDecimal converts a major-unit decimal into Money, rounding half away
// from zero to the currency's minor unit.
func FromDecimal(d decimal.Decimal, currency string) Money {
	places := int32(currencyDecimals(currency))
	return Money{
		Amount:   d.Round(places).Shift(places).IntPart(),
		Currency: strings.ToLower(currency),
	}
}

// ErrSubMinorUnit is returned by ParseMoney for amounts finer than the
// currency's minor unit, such as "6000.005" rupees.
var ErrSubMinorUnit = errors.New("money: amount is finer than the minor unit")

// ParseMoney parses a major-unit string such as "6000" or "461.54". The
// amount must be exact in minor units; it is never rounded.
func ParseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	places := int32(currencyDecimals(currency))
	if !d.Equal(d.Truncate(places)) {
		return Money{}, fmt.Errorf("%w: %q", ErrSubMinorUnit, s)
	}
	return FromDecimal(d, currency), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(currencyDecimals(m.Currency)))
}

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// FormatMajor returns the major unit string without currency symbol.
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(int32(currencyDecimals(m.Currency)))
}

// String returns a human-readable string with currency symbol.
// Example: "₹2634.62"
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The display field is ignored.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Amount = raw.Amount
	m.Currency = raw.Currency
	return nil
}

func currencySymbol(currency string) string {
	symbols := map[string]string{
		"inr": "₹",
		"usd": "$",
		"eur": "€",
		"gbp": "£",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd":
		return 0
	default:
		return 2
	}
}
