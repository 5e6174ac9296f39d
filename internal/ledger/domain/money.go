package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// percentScale is the number of decimal places kept on percentages.
const percentScale = 2

var hundred = decimal.NewFromInt(100)

// Money is an exact decimal amount tagged with a currency code.
// The zero value is an amount of 0 with no currency; it adopts the currency of
// whatever it is combined with.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney builds a Money from a decimal amount.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{amount: amount, currency: normalizeCurrency(currency)}
}

// ZeroMoney returns 0 in the given currency.
func ZeroMoney(currency string) Money {
	return NewMoney(decimal.Zero, currency)
}

// ParseMoney parses a decimal string. Amounts always travel as strings so no
// binary float ever touches them.
func ParseMoney(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, NewInvalidInputError("amount", fmt.Sprintf("invalid amount format: %q", amount))
	}

	return NewMoney(d, currency), nil
}

// MustParseMoney is ParseMoney for literals known to be valid.
func MustParseMoney(amount, currency string) Money {
	m, err := ParseMoney(amount, currency)
	if err != nil {
		panic(err)
	}

	return m
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Amount returns the decimal value.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO currency code.
func (m Money) Currency() string { return m.currency }

// String renders "<amount> <currency>" with the amount at its own scale.
func (m Money) String() string {
	if m.currency == "" {
		return m.amount.String()
	}

	return m.amount.String() + " " + m.currency
}

// StringFixed renders the amount with two decimals and no currency.
func (m Money) StringFixed() string {
	return m.amount.StringFixed(2)
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// unify resolves the currency two operands share. An empty currency on
// either side (the zero value) takes the other side's code.
func (m Money) unify(o Money) (string, error) {
	switch {
	case m.currency == o.currency:
		return m.currency, nil
	case m.currency == "":
		return o.currency, nil
	case o.currency == "":
		return m.currency, nil
	default:
		return "", &CurrencyMismatchError{Left: m.currency, Right: o.currency}
	}
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	cur, err := m.unify(o)
	if err != nil {
		return Money{}, err
	}

	return Money{amount: m.amount.Add(o.amount), currency: cur}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	cur, err := m.unify(o)
	if err != nil {
		return Money{}, err
	}

	return Money{amount: m.amount.Sub(o.amount), currency: cur}, nil
}

// Mul multiplies by a dimensionless scalar.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Cmp compares m and o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) (int, error) {
	if _, err := m.unify(o); err != nil {
		return 0, err
	}

	return m.amount.Cmp(o.amount), nil
}

// Equal reports whether both amount and currency match.
func (m Money) Equal(o Money) bool {
	c, err := m.Cmp(o)
	return err == nil && c == 0
}

// PercentOf returns 100 * part / whole rounded half-up to two places.
// A zero whole yields 0.
func PercentOf(part, whole Money) (decimal.Decimal, error) {
	if _, err := part.unify(whole); err != nil {
		return decimal.Zero, err
	}

	if whole.amount.IsZero() {
		return decimal.Zero, nil
	}

	return part.amount.Mul(hundred).DivRound(whole.amount, percentScale), nil
}

// SumMoney adds all values; the result is 0 in currency when values is empty.
func SumMoney(currency string, values ...Money) (Money, error) {
	total := ZeroMoney(currency)

	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return Money{}, err
		}
	}

	return total, nil
}

// MaxMoney returns the larger of a and b.
func MaxMoney(a, b Money) (Money, error) {
	c, err := a.Cmp(b)
	if err != nil {
		return Money{}, err
	}

	if c >= 0 {
		return a, nil
	}

	return b, nil
}
