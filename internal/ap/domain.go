// Package ap is the accounts payable application service for tour circuits:
// persistence, cached summaries, and the JSON surface over the payables engine.
package ap

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cxp-circuitos/cxp/internal/payables"
	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

var (
	ErrCircuitNotFound = errors.New("circuit not found")
	ErrRowNotFound     = errors.New("circuit row not found")
	ErrInvalidCircuit  = errors.New("invalid circuit")
	ErrInvalidInput    = errors.New("invalid input")
)

// SettingExchangeRate is the team setting holding the MXN per USD rate.
const SettingExchangeRate = "exchange_rate"

// Reader exposes the read side shared by the pool and open transactions.
type Reader interface {
	ListCircuits(ctx context.Context) ([]payables.Circuit, error)
	GetCircuit(ctx context.Context, id string) (payables.Circuit, error)
	ListRateEntries(ctx context.Context) ([]payables.RateEntry, error)
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// Repository defines payables data access.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	Reader
	UpsertCircuit(ctx context.Context, c payables.Circuit) error
	DeleteCircuit(ctx context.Context, id string) error
	ReplaceRows(ctx context.Context, circuitID string, rows []payables.ServiceRow) error
	LockRow(ctx context.Context, circuitID string, rowID uuid.UUID) (payables.ServiceRow, error)
	UpdateRow(ctx context.Context, circuitID string, row payables.ServiceRow) error
	UpdateRevenue(ctx context.Context, circuitID string, amount *float64, currency fx.Currency) error
	ReplaceRateEntries(ctx context.Context, entries []payables.RateEntry) error
	PutSetting(ctx context.Context, key, value string) error
}

// OverrideInput captures a manual row price. A non-positive amount clears it.
type OverrideInput struct {
	Amount   float64     `json:"amount"`
	Currency fx.Currency `json:"currency" validate:"omitempty,oneof=MXN USD"`
}

// RevenueInput captures the amount charged to the client for a circuit.
type RevenueInput struct {
	Amount   float64     `json:"amount"`
	Currency fx.Currency `json:"currency" validate:"omitempty,oneof=MXN USD"`
}

// CircuitDetail is a circuit with every row priced against the current
// tarifario and exchange rate.
type CircuitDetail struct {
	Circuit   payables.Circuit           `json:"circuit"`
	Rows      []payables.ResolvedRow     `json:"rows"`
	Totals    payables.CircuitTotals     `json:"totals"`
	Providers []payables.CircuitProvider `json:"providers"`
	Suppliers []string                   `json:"suppliers"`
	Timeline  []payables.TimelineDay     `json:"timeline"`
	Rate      fx.Rate                    `json:"exchange_rate"`

	FilteredMXN decimal.Decimal `json:"filtered_mxn"`
	FilteredUSD decimal.Decimal `json:"filtered_usd"`
}

// MonthSummary carries the rolled up totals of one month group.
type MonthSummary struct {
	Key      string                 `json:"key"`
	Circuits []string               `json:"circuits"`
	Totals   payables.CircuitTotals `json:"totals"`
}

// CircuitListing is the sidebar view of a stored circuit.
type CircuitListing struct {
	ID         string    `json:"id"`
	MonthKey   string    `json:"month_key"`
	TourLeader string    `json:"tour_leader"`
	Pax        int       `json:"pax"`
	Rows       int       `json:"rows"`
	PaidRows   int       `json:"paid_rows"`
	CreatedAt  time.Time `json:"created_at"`
}
