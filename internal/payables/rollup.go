package payables

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

// CategoryBreakdown is the resolved cost of one category across a selection.
// Cost is ranked in MXN-equivalent; paid and pending stay split by currency.
type CategoryBreakdown struct {
	Category   Category        `json:"category"`
	CostMXNEq  float64         `json:"cost_mxn_eq"`
	Share      float64         `json:"share"`
	PaidMXN    decimal.Decimal `json:"paid_mxn"`
	PaidUSD    decimal.Decimal `json:"paid_usd"`
	PendingMXN decimal.Decimal `json:"pending_mxn"`
	PendingUSD decimal.Decimal `json:"pending_usd"`
	Services   int             `json:"services"`
}

// ProviderRank is one supplier's position across a selection.
type ProviderRank struct {
	Name       string          `json:"name"`
	Key        string          `json:"key"`
	CostMXN    decimal.Decimal `json:"cost_mxn"`
	CostUSD    decimal.Decimal `json:"cost_usd"`
	CostMXNEq  float64         `json:"cost_mxn_eq"`
	PaidMXN    decimal.Decimal `json:"paid_mxn"`
	PaidUSD    decimal.Decimal `json:"paid_usd"`
	PendingMXN decimal.Decimal `json:"pending_mxn"`
	PendingUSD decimal.Decimal `json:"pending_usd"`
	Services   int             `json:"services"`
	PaidPct    int             `json:"paid_pct"`
}

// Settled reports whether nothing is pending for the provider.
func (p ProviderRank) Settled() bool {
	return p.PendingMXN.IsZero() && p.PendingUSD.IsZero()
}

// CircuitLine is one circuit's row in a summary breakdown.
type CircuitLine struct {
	ID         string        `json:"id"`
	MonthKey   string        `json:"month_key"`
	TourLeader string        `json:"tour_leader"`
	Pax        int           `json:"pax"`
	Totals     CircuitTotals `json:"totals"`
}

// Summary is the roll-up of a circuit selection.
type Summary struct {
	Circuits   int                 `json:"circuits"`
	Totals     CircuitTotals       `json:"totals"`
	Categories []CategoryBreakdown `json:"categories"`
	Providers  []ProviderRank      `json:"providers"`
	Lines      []CircuitLine       `json:"lines"`
}

// Margin is the selection's margin, undefined without revenue.
func (s Summary) Margin() (float64, bool) {
	return s.Totals.Margin()
}

// Rollup sums AggregateCircuit over circuits. It is the only path used to total
// a selection, so a selection always equals the sum of its circuits.
func Rollup(circuits []Circuit, table *RateTable, rate fx.Rate) (CircuitTotals, []CircuitLine) {
	var total CircuitTotals
	lines := make([]CircuitLine, 0, len(circuits))
	for _, c := range circuits {
		t := AggregateCircuit(c, table, rate)
		total = total.Add(t)
		lines = append(lines, CircuitLine{
			ID:         c.ID,
			MonthKey:   c.MonthKey,
			TourLeader: c.Info.TourLeader,
			Pax:        c.Info.Pax,
			Totals:     t,
		})
	}
	return total, lines
}

// Summarize builds totals, category breakdown and provider ranking for a
// selection of circuits from one rate table and exchange rate snapshot.
func Summarize(circuits []Circuit, table *RateTable, rate fx.Rate) Summary {
	totals, lines := Rollup(circuits, table, rate)
	return Summary{
		Circuits:   len(circuits),
		Totals:     totals,
		Categories: BreakdownByCategory(circuits, table, rate, totals.CostTotalMXN),
		Providers:  RankProviders(circuits, table, rate),
		Lines:      lines,
	}
}

// BreakdownByCategory buckets every row's resolved cost by category. Share is
// the bucket's percentage of grandTotalMXN; it stays 0 when the total is 0.
// Categories without rows are omitted; order follows Categories.
func BreakdownByCategory(circuits []Circuit, table *RateTable, rate fx.Rate, grandTotalMXN float64) []CategoryBreakdown {
	buckets := make(map[Category]*CategoryBreakdown)
	for _, c := range circuits {
		for _, row := range c.Rows {
			cat := row.Category()
			b := buckets[cat]
			if b == nil {
				b = &CategoryBreakdown{Category: cat}
				buckets[cat] = b
			}
			res := Resolve(row, c.Info, table)
			b.CostMXNEq += res.InMXN(rate)
			b.Services++
			if row.Paid {
				b.PaidMXN = b.PaidMXN.Add(res.MXN)
				b.PaidUSD = b.PaidUSD.Add(res.USD)
			} else {
				b.PendingMXN = b.PendingMXN.Add(res.MXN)
				b.PendingUSD = b.PendingUSD.Add(res.USD)
			}
		}
	}
	out := make([]CategoryBreakdown, 0, len(buckets))
	for _, cat := range Categories {
		b := buckets[cat]
		if b == nil {
			continue
		}
		if grandTotalMXN > 0 {
			b.Share = b.CostMXNEq / grandTotalMXN * 100
		}
		out = append(out, *b)
	}
	return out
}

// RankProviders accumulates cost per normalised supplier and ranks providers
// by MXN-equivalent cost, highest first. Providers without cost are left out.
// Ties keep first-encounter order.
func RankProviders(circuits []Circuit, table *RateTable, rate fx.Rate) []ProviderRank {
	index := make(map[string]int)
	var ranks []ProviderRank
	for _, c := range circuits {
		for _, row := range c.Rows {
			key := Normalize(row.Supplier)
			if key == "" {
				continue
			}
			i, ok := index[key]
			if !ok {
				i = len(ranks)
				index[key] = i
				ranks = append(ranks, ProviderRank{Name: row.Supplier, Key: key})
			}
			p := &ranks[i]
			res := Resolve(row, c.Info, table)
			p.CostMXN = p.CostMXN.Add(res.MXN)
			p.CostUSD = p.CostUSD.Add(res.USD)
			p.Services++
			if row.Paid {
				p.PaidMXN = p.PaidMXN.Add(res.MXN)
				p.PaidUSD = p.PaidUSD.Add(res.USD)
			} else {
				p.PendingMXN = p.PendingMXN.Add(res.MXN)
				p.PendingUSD = p.PendingUSD.Add(res.USD)
			}
		}
	}
	out := ranks[:0]
	for _, p := range ranks {
		p.CostMXNEq = equivalent(rate, p.CostMXN, p.CostUSD)
		if p.CostMXNEq <= 0 {
			continue
		}
		p.PaidPct = roundPct(equivalent(rate, p.PaidMXN, p.PaidUSD) / p.CostMXNEq * 100)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CostMXNEq > out[j].CostMXNEq
	})
	return out
}
