package payables

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// requireSameTotals compares totals by value; decimals with different
// exponents still compare equal.
func requireSameTotals(t *testing.T, want, got CircuitTotals) {
	t.Helper()
	requireAmount(t, want.CostMXN.String(), got.CostMXN)
	requireAmount(t, want.CostUSD.String(), got.CostUSD)
	requireAmount(t, want.PaidMXN.String(), got.PaidMXN)
	requireAmount(t, want.PaidUSD.String(), got.PaidUSD)
	want.CostMXN, want.CostUSD, want.PaidMXN, want.PaidUSD = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	got.CostMXN, got.CostUSD, got.PaidMXN, got.PaidUSD = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	require.Equal(t, want, got)
}

func amount(v float64) *float64 {
	return &v
}

func row(idx int, class, supplier string, paid bool) ServiceRow {
	return ServiceRow{
		Index:          idx,
		Classification: class,
		Type:           ServiceFixed,
		Supplier:       supplier,
		Paid:           paid,
	}
}

// scenarioCircuit is a two-room circuit with one lodging and one transport row.
func scenarioCircuit() Circuit {
	return Circuit{
		ID:              "CIRC-001",
		MonthKey:        "2025-03",
		Info:            CircuitInfo{TourLeader: "Ana", Rooms: 2, Pax: 4},
		ChargedAmount:   amount(1000),
		ChargedCurrency: fx.USD,
		Rows: []ServiceRow{
			row(0, "Hospedaje", "Hotel X", false),
			row(1, "TRANSPORTE", "Bus Co", false),
		},
	}
}

func scenarioTable() *RateTable {
	return NewRateTable([]RateEntry{
		{Supplier: "Hotel X", ServiceType: "HOSPEDAJE", UnitPrice: 800, Currency: fx.MXN, CreditDays: 15},
		{Supplier: "Bus Co", ServiceType: "TRANSPORTE", UnitPrice: 50, Currency: fx.USD, CreditDays: 30},
	})
}
