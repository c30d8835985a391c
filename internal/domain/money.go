package domain

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// Money is a currency amount. Amounts travel as decimal strings.
type Money struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

func NewMoney(currency string, amount decimal.Decimal) Money {
	return Money{Currency: strings.ToUpper(currency), Amount: amount}
}

func ParseMoney(currency, amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, errors.Mark(errors.Wrapf(err, "parse amount %q", amount), ErrInvalidInput)
	}
	return NewMoney(currency, d), nil
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) String() string {
	return m.Currency + " " + m.Amount.StringFixed(2)
}
