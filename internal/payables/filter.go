package payables

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentFilter narrows rows by payment state.
type PaymentFilter string

const (
	PaymentAny    PaymentFilter = ""
	PaymentPaid   PaymentFilter = "PAID"
	PaymentUnpaid PaymentFilter = "UNPAID"
)

// RowFilter selects rows on the payables grid. Zero values match everything.
type RowFilter struct {
	Type     ServiceType
	Category Category
	Payment  PaymentFilter
	PaidOn   *time.Time
	Supplier string
}

// Match reports whether row passes every set criterion.
func (f RowFilter) Match(row ServiceRow) bool {
	if f.Type != "" && ServiceType(Normalize(string(row.Type))) != f.Type {
		return false
	}
	if f.Category != "" && row.Category() != f.Category {
		return false
	}
	switch f.Payment {
	case PaymentPaid:
		if !row.Paid {
			return false
		}
	case PaymentUnpaid:
		if row.Paid {
			return false
		}
	}
	if f.PaidOn != nil && (row.PaidOn == nil || !sameDay(*row.PaidOn, *f.PaidOn)) {
		return false
	}
	if f.Supplier != "" && Normalize(row.Supplier) != Normalize(f.Supplier) {
		return false
	}
	return true
}

// Apply returns the matching rows in order.
func (f RowFilter) Apply(rows []ServiceRow) []ServiceRow {
	out := make([]ServiceRow, 0, len(rows))
	for _, row := range rows {
		if f.Match(row) {
			out = append(out, row)
		}
	}
	return out
}

// FilteredCost sums the resolved cost of c's rows that pass f.
func FilteredCost(c Circuit, f RowFilter, table *RateTable) (mxn, usd decimal.Decimal) {
	for _, row := range f.Apply(c.Rows) {
		res := Resolve(row, c.Info, table)
		mxn = mxn.Add(res.MXN)
		usd = usd.Add(res.USD)
	}
	return mxn, usd
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
