package fx

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultRate is used when no exchange rate has been captured yet.
const DefaultRate Rate = 17.5

// ErrInvalidRate signals a non-positive or non-numeric exchange rate.
var ErrInvalidRate = errors.New("fx: exchange rate must be a positive number")

// Rate is the MXN-per-USD exchange rate (TC).
//
// Aggregations assume the rate was validated by NewRate or ParseRate and do
// not re-check it on every call.
type Rate float64

// NewRate validates v as an exchange rate.
func NewRate(v float64) (Rate, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRate, v)
	}
	return Rate(v), nil
}

// ParseRate validates a user supplied rate such as "18.25".
func ParseRate(raw string) (Rate, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidRate)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRate, raw)
	}
	return NewRate(v)
}

// Float returns the raw scalar.
func (r Rate) Float() float64 {
	return float64(r)
}

// ToMXN converts amount expressed in c into MXN.
func (r Rate) ToMXN(amount float64, c Currency) float64 {
	if c == USD {
		return amount * float64(r)
	}
	return amount
}

// Equivalent collapses a split MXN/USD pair into a single MXN-equivalent figure.
func (r Rate) Equivalent(mxn, usd float64) float64 {
	return mxn + usd*float64(r)
}
