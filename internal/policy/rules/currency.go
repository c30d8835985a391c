package rules

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// Rates maps a source currency to the rate of each target currency.
type Rates map[string]map[string]decimal.Decimal

func DefaultRates() Rates {
	d := decimal.RequireFromString
	return Rates{
		"EUR": {"USD": d("1.10"), "GBP": d("0.85")},
		"USD": {"EUR": d("0.91"), "GBP": d("0.77")},
		"GBP": {"USD": d("1.30"), "EUR": d("1.18")},
	}
}

type Converter struct {
	rates Rates
}

func NewConverter(rates Rates) *Converter {
	return &Converter{rates: rates}
}

// Convert returns amount in currency to, rounded to cents.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}
	rate, ok := c.rates[from][to]
	if !ok {
		return decimal.Zero, errors.Newf("no exchange rate from %s to %s", from, to)
	}
	return amount.Mul(rate).Round(2), nil
}
