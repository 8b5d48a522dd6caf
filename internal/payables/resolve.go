package payables

import (
	"github.com/shopspring/decimal"

	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

// Resolution is the authoritative cost of one row. At most one of MXN and USD
// is non-zero. Amounts are exact to the centavo. Matched=false means pricing
// is unresolved, which callers must surface rather than treat as free.
type Resolution struct {
	MXN      decimal.Decimal `json:"mxn"`
	USD      decimal.Decimal `json:"usd"`
	Matched  bool            `json:"matched"`
	Override bool            `json:"override"`
}

// Currency reports which side of the pair carries the amount.
func (r Resolution) Currency() fx.Currency {
	if r.USD.IsPositive() {
		return fx.USD
	}
	return fx.MXN
}

// Amount returns the resolved amount in its own currency.
func (r Resolution) Amount() decimal.Decimal {
	if r.USD.IsPositive() {
		return r.USD
	}
	return r.MXN
}

// InMXN is the MXN-equivalent of the resolution under rate.
func (r Resolution) InMXN(rate fx.Rate) float64 {
	return equivalent(rate, r.MXN, r.USD)
}

// Money rounds a captured amount to centavos.
func Money(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(2)
}

func equivalent(rate fx.Rate, mxn, usd decimal.Decimal) float64 {
	return rate.Equivalent(mxn.InexactFloat64(), usd.InexactFloat64())
}

func priced(amount decimal.Decimal, c fx.Currency) (mxn, usd decimal.Decimal) {
	if c == fx.USD {
		return decimal.Zero, amount
	}
	return amount, decimal.Zero
}

// Resolve determines the cost of row within its circuit:
//
//  1. a positive manual override wins and the tarifario is not consulted;
//  2. otherwise the row's supplier is looked up; no match or a zero unit
//     price leaves the row unresolved;
//  3. lodging is priced per room, everything else once per occurrence;
//  4. the total lands entirely in the entry's currency.
func Resolve(row ServiceRow, info CircuitInfo, table *RateTable) Resolution {
	if row.HasOverride() {
		mxn, usd := priced(Money(row.Override.Amount), row.Override.Currency.OrDefault())
		return Resolution{MXN: mxn, USD: usd, Matched: true, Override: true}
	}
	entry, ok := table.Lookup(row.Supplier)
	if !ok || entry.UnitPrice <= 0 {
		return Resolution{}
	}
	total := Money(entry.UnitPrice)
	if row.Category() == CategoryLodging {
		total = total.Mul(decimal.NewFromFloat(info.RoomMultiplier()))
	}
	mxn, usd := priced(total, entry.Currency.OrDefault())
	return Resolution{MXN: mxn, USD: usd, Matched: true}
}

// ResolvedRow pairs a row with its resolution for detail views.
type ResolvedRow struct {
	ServiceRow
	Cost       Resolution `json:"cost"`
	CreditDays int        `json:"credit_days"`
}

// ResolveRows resolves every row of c in order.
func ResolveRows(c Circuit, table *RateTable) []ResolvedRow {
	out := make([]ResolvedRow, 0, len(c.Rows))
	for _, row := range c.Rows {
		out = append(out, ResolvedRow{
			ServiceRow: row,
			Cost:       Resolve(row, c.Info, table),
			CreditDays: table.CreditDays(row.Supplier),
		})
	}
	return out
}
