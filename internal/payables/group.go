package payables

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

// NoMonth groups circuits without a start date.
const NoMonth = "Sin mes"

// MonthKeyFor derives the grouping key of a circuit from its start date.
func MonthKeyFor(start *time.Time) string {
	if start == nil || start.IsZero() {
		return NoMonth
	}
	return start.Format("2006-01")
}

// MonthGroup is the set of circuits sharing a month key.
type MonthGroup struct {
	Key      string    `json:"key"`
	Circuits []Circuit `json:"circuits"`
}

// GroupByMonth buckets circuits by MonthKey, keys ascending with NoMonth
// last. Circuit order inside a group follows the input.
func GroupByMonth(circuits []Circuit) []MonthGroup {
	index := make(map[string]int)
	var groups []MonthGroup
	for _, c := range circuits {
		key := c.MonthKey
		if key == "" {
			key = NoMonth
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, MonthGroup{Key: key})
		}
		groups[i].Circuits = append(groups[i].Circuits, c)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if a == NoMonth || b == NoMonth {
			return b == NoMonth && a != NoMonth
		}
		return a < b
	})
	return groups
}

// Mode selects which circuits a summary covers.
type Mode string

const (
	ModeAll     Mode = "all"
	ModeMonth   Mode = "month"
	ModeCircuit Mode = "circuit"
)

// Selection narrows a circuit list to one view.
type Selection struct {
	Mode Mode   `json:"mode"`
	Key  string `json:"key,omitempty"`
}

// Apply returns the circuits the selection covers, preserving order.
func (s Selection) Apply(circuits []Circuit) []Circuit {
	switch s.Mode {
	case ModeMonth:
		var out []Circuit
		for _, c := range circuits {
			key := c.MonthKey
			if key == "" {
				key = NoMonth
			}
			if key == s.Key {
				out = append(out, c)
			}
		}
		return out
	case ModeCircuit:
		for _, c := range circuits {
			if c.ID == s.Key {
				return []Circuit{c}
			}
		}
		return nil
	default:
		return circuits
	}
}

// CacheKey identifies the selection in cache keys.
func (s Selection) CacheKey() string {
	if s.Mode == "" || s.Mode == ModeAll {
		return string(ModeAll)
	}
	return string(s.Mode) + ":" + s.Key
}

// CircuitSuppliers lists the distinct normalised suppliers of c, sorted.
func CircuitSuppliers(c Circuit) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range c.Rows {
		key := Normalize(row.Supplier)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// CircuitProvider is a supplier's share of a single circuit.
type CircuitProvider struct {
	Name           string          `json:"name"`
	Key            string          `json:"key"`
	CostMXN        decimal.Decimal `json:"cost_mxn"`
	CostUSD        decimal.Decimal `json:"cost_usd"`
	CostMXNEq      float64         `json:"cost_mxn_eq"`
	Services       int             `json:"services"`
	PaidServices   int             `json:"paid_services"`
	UnpaidServices int             `json:"unpaid_services"`
	Classes        []string        `json:"classes"`
	Listed         bool            `json:"listed"`
	CreditDays     int             `json:"credit_days"`
}

// CircuitProviders groups c's rows by supplier, most expensive first. Unlike
// RankProviders it keeps suppliers whose cost is still unresolved.
func CircuitProviders(c Circuit, table *RateTable, rate fx.Rate) []CircuitProvider {
	index := make(map[string]int)
	var out []CircuitProvider
	for _, row := range c.Rows {
		key := Normalize(row.Supplier)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			entry, listed := table.Lookup(row.Supplier)
			out = append(out, CircuitProvider{
				Name:       row.Supplier,
				Key:        key,
				Listed:     listed,
				CreditDays: entry.CreditDays,
			})
		}
		p := &out[i]
		res := Resolve(row, c.Info, table)
		p.CostMXN = p.CostMXN.Add(res.MXN)
		p.CostUSD = p.CostUSD.Add(res.USD)
		p.Services++
		if row.Paid {
			p.PaidServices++
		} else {
			p.UnpaidServices++
		}
		if class := Clean(row.Classification); class != "" && !containsString(p.Classes, class) {
			p.Classes = append(p.Classes, class)
		}
	}
	for i := range out {
		out[i].CostMXNEq = equivalent(rate, out[i].CostMXN, out[i].CostUSD)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CostMXNEq > out[j].CostMXNEq
	})
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// NoDate groups rows without a service date.
const NoDate = "Sin fecha"

// TimelineDay is the slice of a circuit's itinerary that falls on one service
// date, every row priced with its paid state.
type TimelineDay struct {
	Key     string          `json:"key"`
	Date    *time.Time      `json:"date,omitempty"`
	Rows    []ResolvedRow   `json:"rows"`
	CostMXN decimal.Decimal `json:"cost_mxn"`
	CostUSD decimal.Decimal `json:"cost_usd"`
	Pending int             `json:"pending"`
}

// Timeline groups c's rows by service date, dates ascending with NoDate last.
// Row order inside a day follows the circuit.
func Timeline(c Circuit, table *RateTable) []TimelineDay {
	index := make(map[string]int)
	var days []TimelineDay
	for _, row := range ResolveRows(c, table) {
		key := NoDate
		var date *time.Time
		if row.Date != nil && !row.Date.IsZero() {
			y, m, d := row.Date.Date()
			day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
			key = day.Format("2006-01-02")
			date = &day
		}
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, TimelineDay{Key: key, Date: date})
		}
		d := &days[i]
		d.Rows = append(d.Rows, row)
		d.CostMXN = d.CostMXN.Add(row.Cost.MXN)
		d.CostUSD = d.CostUSD.Add(row.Cost.USD)
		if !row.Paid {
			d.Pending++
		}
	}
	sort.SliceStable(days, func(i, j int) bool {
		a, b := days[i].Key, days[j].Key
		if a == NoDate || b == NoDate {
			return b == NoDate && a != NoDate
		}
		return a < b
	})
	return days
}
