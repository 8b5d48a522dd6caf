package payables

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

// CircuitTotals is the payable and profit position of one circuit, or the
// field-wise sum of several. Per-currency amounts are exact decimals so that
// pending plus paid always equals cost; MXN-equivalents are float64 and only
// used for ranking and percentages. Pending amounts are never stored.
type CircuitTotals struct {
	CostMXN         decimal.Decimal `json:"cost_mxn"`
	CostUSD         decimal.Decimal `json:"cost_usd"`
	CostTotalMXN    float64         `json:"cost_total_mxn"`
	PaidMXN         decimal.Decimal `json:"paid_mxn"`
	PaidUSD         decimal.Decimal `json:"paid_usd"`
	Revenue         float64         `json:"revenue"`
	RevenueMXN      float64         `json:"revenue_mxn"`
	Profit          float64         `json:"profit"`
	RevenueCaptured bool            `json:"revenue_captured"`
	Rows            int             `json:"rows"`
	PaidRows        int             `json:"paid_rows"`
	UnmatchedRows   int             `json:"unmatched_rows"`
}

// PendingMXN is the unpaid MXN cost.
func (t CircuitTotals) PendingMXN() decimal.Decimal {
	return t.CostMXN.Sub(t.PaidMXN)
}

// PendingUSD is the unpaid USD cost.
func (t CircuitTotals) PendingUSD() decimal.Decimal {
	return t.CostUSD.Sub(t.PaidUSD)
}

// Margin is profit over MXN revenue, in percent. ok is false while no revenue
// has been captured.
func (t CircuitTotals) Margin() (float64, bool) {
	return Margin(t.Profit, t.RevenueMXN)
}

// PaidRowPct is the share of rows marked paid, rounded to a whole percent.
func (t CircuitTotals) PaidRowPct() int {
	if t.Rows == 0 {
		return 0
	}
	return roundPct(float64(t.PaidRows) / float64(t.Rows) * 100)
}

// FullyPaid reports whether every row of a non-empty selection is paid.
func (t CircuitTotals) FullyPaid() bool {
	return t.Rows > 0 && t.PaidRows == t.Rows
}

// Add returns the field-wise sum of t and o.
func (t CircuitTotals) Add(o CircuitTotals) CircuitTotals {
	return CircuitTotals{
		CostMXN:         t.CostMXN.Add(o.CostMXN),
		CostUSD:         t.CostUSD.Add(o.CostUSD),
		CostTotalMXN:    t.CostTotalMXN + o.CostTotalMXN,
		PaidMXN:         t.PaidMXN.Add(o.PaidMXN),
		PaidUSD:         t.PaidUSD.Add(o.PaidUSD),
		Revenue:         t.Revenue + o.Revenue,
		RevenueMXN:      t.RevenueMXN + o.RevenueMXN,
		Profit:          t.Profit + o.Profit,
		RevenueCaptured: t.RevenueCaptured || o.RevenueCaptured,
		Rows:            t.Rows + o.Rows,
		PaidRows:        t.PaidRows + o.PaidRows,
		UnmatchedRows:   t.UnmatchedRows + o.UnmatchedRows,
	}
}

// AggregateCircuit sums the resolved cost of every row of c and derives the
// circuit's revenue and profit under rate.
func AggregateCircuit(c Circuit, table *RateTable, rate fx.Rate) CircuitTotals {
	var t CircuitTotals
	for _, row := range c.Rows {
		res := Resolve(row, c.Info, table)
		t.CostMXN = t.CostMXN.Add(res.MXN)
		t.CostUSD = t.CostUSD.Add(res.USD)
		t.Rows++
		if !res.Matched {
			t.UnmatchedRows++
		}
		if row.Paid {
			t.PaidMXN = t.PaidMXN.Add(res.MXN)
			t.PaidUSD = t.PaidUSD.Add(res.USD)
			t.PaidRows++
		}
	}
	t.CostTotalMXN = equivalent(rate, t.CostMXN, t.CostUSD)
	t.Revenue = c.Revenue()
	t.RevenueCaptured = t.Revenue > 0
	t.RevenueMXN = rate.ToMXN(t.Revenue, c.ChargedCurrency)
	t.Profit = t.RevenueMXN - t.CostTotalMXN
	return t
}

// Margin computes profit/revenue*100. It is undefined (ok=false) unless
// revenue is positive; a circuit with revenue and no resolved costs has a
// margin of 100.
func Margin(profit, revenueMXN float64) (float64, bool) {
	if !(revenueMXN > 0) {
		return math.NaN(), false
	}
	return profit / revenueMXN * 100, true
}

// Outcome classifies a profit figure for display.
type Outcome string

const (
	OutcomeProfit    Outcome = "PROFIT"
	OutcomeLoss      Outcome = "LOSS"
	OutcomeNoRevenue Outcome = "NO_REVENUE"
)

// Outcome reports profit, loss, or that revenue has not been captured yet.
func (t CircuitTotals) Outcome() Outcome {
	if !t.RevenueCaptured {
		return OutcomeNoRevenue
	}
	if t.Profit >= 0 {
		return OutcomeProfit
	}
	return OutcomeLoss
}

// roundPct rounds half up, matching how percentages are shown elsewhere.
func roundPct(v float64) int {
	return int(math.Floor(v + 0.5))
}
