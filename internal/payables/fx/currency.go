package fx

import "strings"

// Currency enumerates the settlement currencies a circuit can be priced in.
type Currency string

const (
	// MXN is the reporting currency.
	MXN Currency = "MXN"
	// USD is the only foreign currency suppliers quote in.
	USD Currency = "USD"
)

// ParseCurrency maps free text to a Currency. Anything that is not USD settles in MXN.
func ParseCurrency(raw string) Currency {
	if strings.ToUpper(strings.TrimSpace(raw)) == string(USD) {
		return USD
	}
	return MXN
}

// Valid reports whether c is one of the supported currencies.
func (c Currency) Valid() bool {
	return c == MXN || c == USD
}

// OrDefault returns MXN for an empty or unknown currency.
func (c Currency) OrDefault() Currency {
	if c.Valid() {
		return c
	}
	return MXN
}
