package ap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/cxp-circuitos/cxp/internal/payables"
	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

// Service coordinates circuits, the tarifario and the exchange rate.
type Service struct {
	repo        Repository
	cache       *Cache
	logger      *slog.Logger
	defaultRate fx.Rate
	group       singleflight.Group
	generation  atomic.Int64
	now         func() time.Time
}

// NewService wires the payables service. An invalid defaultRate falls back to
// fx.DefaultRate.
func NewService(repo Repository, cache *Cache, logger *slog.Logger, defaultRate fx.Rate) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := fx.NewRate(defaultRate.Float()); err != nil {
		defaultRate = fx.DefaultRate
	}
	return &Service{
		repo:        repo,
		cache:       cache,
		logger:      logger,
		defaultRate: defaultRate,
		now:         time.Now,
	}
}

// snapshot is one consistent read of everything a report depends on.
type snapshot struct {
	Circuits []payables.Circuit
	Table    *payables.RateTable
	Rate     fx.Rate
}

func (s *Service) loadSnapshot(ctx context.Context) (snapshot, error) {
	var snap snapshot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		circuits, err := tx.ListCircuits(ctx)
		if err != nil {
			return err
		}
		entries, err := tx.ListRateEntries(ctx)
		if err != nil {
			return err
		}
		rate, err := s.rateFrom(ctx, tx)
		if err != nil {
			return err
		}
		snap = snapshot{Circuits: circuits, Table: payables.NewRateTable(entries), Rate: rate}
		return nil
	})
	return snap, err
}

func (s *Service) rateFrom(ctx context.Context, r Reader) (fx.Rate, error) {
	raw, ok, err := r.GetSetting(ctx, SettingExchangeRate)
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.defaultRate, nil
	}
	rate, err := fx.ParseRate(raw)
	if err != nil {
		s.logger.Warn("stored exchange rate unusable, using default", slog.String("value", raw), slog.Any("error", err))
		return s.defaultRate, nil
	}
	return rate, nil
}

func (s *Service) bump(ctx context.Context, op string) {
	s.generation.Add(1)
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache bump failed", slog.String("op", op), slog.Any("error", err))
	}
}

// ImportCircuit stores c, replacing any circuit with the same id together with
// all of its rows. Imported rows start unpaid, unannotated and without a
// manual price. Revenue already captured for the id is kept.
func (s *Service) ImportCircuit(ctx context.Context, c payables.Circuit) (payables.Circuit, error) {
	c.ID = payables.Clean(c.ID)
	if c.ID == "" {
		return payables.Circuit{}, fmt.Errorf("%w: id required", ErrInvalidCircuit)
	}
	if c.MonthKey == "" {
		c.MonthKey = payables.MonthKeyFor(c.Info.StartDate)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	rows := make([]payables.ServiceRow, 0, len(c.Rows))
	for i, row := range c.Rows {
		typ, ok := payables.ParseServiceType(string(row.Type))
		if !ok {
			return payables.Circuit{}, fmt.Errorf("%w: row %d has type %q", ErrInvalidCircuit, i, row.Type)
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.Index = i
		row.Type = typ
		row.Paid = false
		row.PaidOn = nil
		row.Note = ""
		row.Override = nil
		rows = append(rows, row)
	}
	c.Rows = rows

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpsertCircuit(ctx, c); err != nil {
			return err
		}
		return tx.ReplaceRows(ctx, c.ID, c.Rows)
	})
	if err != nil {
		return payables.Circuit{}, err
	}
	s.bump(ctx, "import_circuit")
	s.logger.Info("circuit imported", slog.String("circuit", c.ID), slog.Int("rows", len(c.Rows)))
	return s.repo.GetCircuit(ctx, c.ID)
}

// DeleteCircuit removes a circuit and its rows.
func (s *Service) DeleteCircuit(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteCircuit(ctx, id)
	})
	if err != nil {
		return err
	}
	s.bump(ctx, "delete_circuit")
	s.logger.Info("circuit deleted", slog.String("circuit", id))
	return nil
}

func (s *Service) updateRow(ctx context.Context, op, circuitID string, rowID uuid.UUID, mutate func(*payables.ServiceRow)) (payables.ServiceRow, error) {
	var updated payables.ServiceRow
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		row, err := tx.LockRow(ctx, circuitID, rowID)
		if err != nil {
			return err
		}
		mutate(&row)
		if err := tx.UpdateRow(ctx, circuitID, row); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return payables.ServiceRow{}, err
	}
	s.bump(ctx, op)
	return updated, nil
}

// TogglePaid flips the paid flag of a row.
func (s *Service) TogglePaid(ctx context.Context, circuitID string, rowID uuid.UUID) (payables.ServiceRow, error) {
	return s.updateRow(ctx, "toggle_paid", circuitID, rowID, func(row *payables.ServiceRow) {
		row.Paid = !row.Paid
	})
}

// SetPaymentDate records when a row was paid. A nil date clears it.
func (s *Service) SetPaymentDate(ctx context.Context, circuitID string, rowID uuid.UUID, paidOn *time.Time) (payables.ServiceRow, error) {
	return s.updateRow(ctx, "set_payment_date", circuitID, rowID, func(row *payables.ServiceRow) {
		row.PaidOn = paidOn
	})
}

// SetNote replaces the free text note of a row.
func (s *Service) SetNote(ctx context.Context, circuitID string, rowID uuid.UUID, note string) (payables.ServiceRow, error) {
	return s.updateRow(ctx, "set_note", circuitID, rowID, func(row *payables.ServiceRow) {
		row.Note = note
	})
}

// AssignSupplier reassigns a row to another supplier. Any manual price is
// dropped so the row prices from the new supplier's tarifario entry.
func (s *Service) AssignSupplier(ctx context.Context, circuitID string, rowID uuid.UUID, supplier string) (payables.ServiceRow, error) {
	supplier = payables.Clean(supplier)
	return s.updateRow(ctx, "assign_supplier", circuitID, rowID, func(row *payables.ServiceRow) {
		row.Supplier = supplier
		row.Override = nil
	})
}

// SetOverride captures a manual price for a row. A non-positive amount clears it.
func (s *Service) SetOverride(ctx context.Context, circuitID string, rowID uuid.UUID, in OverrideInput) (payables.ServiceRow, error) {
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return payables.ServiceRow{}, fmt.Errorf("%w: override amount", ErrInvalidInput)
	}
	return s.updateRow(ctx, "set_override", circuitID, rowID, func(row *payables.ServiceRow) {
		if in.Amount <= 0 {
			row.Override = nil
			return
		}
		row.Override = &payables.Override{Amount: in.Amount, Currency: in.Currency.OrDefault()}
	})
}

// SetRevenue records what the client was charged for a circuit. A
// non-positive amount clears it.
func (s *Service) SetRevenue(ctx context.Context, circuitID string, in RevenueInput) error {
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return fmt.Errorf("%w: revenue amount", ErrInvalidInput)
	}
	var amount *float64
	if in.Amount > 0 {
		v := in.Amount
		amount = &v
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateRevenue(ctx, circuitID, amount, in.Currency.OrDefault())
	})
	if err != nil {
		return err
	}
	s.bump(ctx, "set_revenue")
	return nil
}

// ExchangeRate returns the team's MXN per USD rate, or the configured default
// when none has been saved.
func (s *Service) ExchangeRate(ctx context.Context) (fx.Rate, error) {
	return s.rateFrom(ctx, s.repo)
}

// SetExchangeRate parses and stores a new rate. Non-numeric and non-positive
// input is rejected with fx.ErrInvalidRate and the stored rate is untouched.
func (s *Service) SetExchangeRate(ctx context.Context, raw string) (fx.Rate, error) {
	rate, err := fx.ParseRate(raw)
	if err != nil {
		return 0, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.PutSetting(ctx, SettingExchangeRate, strconv.FormatFloat(rate.Float(), 'f', -1, 64))
	})
	if err != nil {
		return 0, err
	}
	s.bump(ctx, "set_exchange_rate")
	s.logger.Info("exchange rate updated", slog.Float64("rate", rate.Float()))
	return rate, nil
}

// Tarifario returns the stored rate table entries in insertion order.
func (s *Service) Tarifario(ctx context.Context) ([]payables.RateEntry, error) {
	return s.repo.ListRateEntries(ctx)
}

// ReplaceTarifario swaps the whole rate table in one transaction. Entries
// without a supplier are dropped.
func (s *Service) ReplaceTarifario(ctx context.Context, entries []payables.RateEntry) ([]payables.RateEntry, error) {
	clean := make([]payables.RateEntry, 0, len(entries))
	for i, e := range entries {
		e.Supplier = payables.Clean(e.Supplier)
		if e.Supplier == "" {
			continue
		}
		if math.IsNaN(e.UnitPrice) || math.IsInf(e.UnitPrice, 0) || e.UnitPrice < 0 || e.CreditDays < 0 {
			return nil, fmt.Errorf("%w: tarifario entry %d", ErrInvalidInput, i)
		}
		e.ServiceType = payables.Clean(e.ServiceType)
		e.Currency = e.Currency.OrDefault()
		clean = append(clean, e)
	}
	if dupes := payables.NewRateTable(clean).Duplicates(); len(dupes) > 0 {
		s.logger.Warn("tarifario has duplicate suppliers, first entry wins", slog.Any("suppliers", dupes))
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.ReplaceRateEntries(ctx, clean)
	})
	if err != nil {
		return nil, err
	}
	s.bump(ctx, "replace_tarifario")
	s.logger.Info("tarifario replaced", slog.Int("entries", len(clean)))
	return s.repo.ListRateEntries(ctx)
}

// SeedTarifario returns a starting point for editing the rate table: the
// stored entries when there are any, otherwise one zero-priced entry per
// supplier found in the stored circuits.
func (s *Service) SeedTarifario(ctx context.Context) ([]payables.RateEntry, error) {
	entries, err := s.repo.ListRateEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}
	circuits, err := s.repo.ListCircuits(ctx)
	if err != nil {
		return nil, err
	}
	return payables.SeedRateEntries(circuits), nil
}

// ListCircuits returns the stored circuits in load order without pricing them.
func (s *Service) ListCircuits(ctx context.Context) ([]CircuitListing, error) {
	circuits, err := s.repo.ListCircuits(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CircuitListing, 0, len(circuits))
	for _, c := range circuits {
		paid := 0
		for _, row := range c.Rows {
			if row.Paid {
				paid++
			}
		}
		out = append(out, CircuitListing{
			ID:         c.ID,
			MonthKey:   c.MonthKey,
			TourLeader: c.Info.TourLeader,
			Pax:        c.Info.Pax,
			Rows:       len(c.Rows),
			PaidRows:   paid,
			CreatedAt:  c.CreatedAt,
		})
	}
	return out, nil
}

// CircuitDetail prices one circuit. Rows not matching filter are left out of
// Rows and of the filtered cost, while Totals always cover the whole circuit.
func (s *Service) CircuitDetail(ctx context.Context, id string, filter payables.RowFilter) (CircuitDetail, error) {
	var detail CircuitDetail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		circuit, err := tx.GetCircuit(ctx, id)
		if err != nil {
			return err
		}
		entries, err := tx.ListRateEntries(ctx)
		if err != nil {
			return err
		}
		rate, err := s.rateFrom(ctx, tx)
		if err != nil {
			return err
		}
		table := payables.NewRateTable(entries)

		visible := circuit
		visible.Rows = filter.Apply(circuit.Rows)
		detail = CircuitDetail{
			Circuit:   circuit,
			Rows:      payables.ResolveRows(visible, table),
			Totals:    payables.AggregateCircuit(circuit, table, rate),
			Providers: payables.CircuitProviders(circuit, table, rate),
			Suppliers: payables.CircuitSuppliers(circuit),
			Timeline:  payables.Timeline(circuit, table),
			Rate:      rate,
		}
		detail.FilteredMXN, detail.FilteredUSD = payables.FilteredCost(circuit, filter, table)
		return nil
	})
	return detail, err
}

// Summary rolls up the circuits a selection covers. Results are cached per
// selection until the next mutation, and concurrent callers share one build.
func (s *Service) Summary(ctx context.Context, sel payables.Selection) (payables.Summary, error) {
	key, err := s.cache.BuildKey(ctx, "summary", sel.CacheKey())
	if err != nil {
		return payables.Summary{}, err
	}
	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		var out payables.Summary
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			snap, err := s.loadSnapshot(ctx)
			if err != nil {
				return nil, err
			}
			selected := sel.Apply(snap.Circuits)
			if sel.Mode == payables.ModeCircuit && len(selected) == 0 {
				return nil, ErrCircuitNotFound
			}
			return payables.Summarize(selected, snap.Table, snap.Rate), nil
		})
		return out, err
	})
	if err != nil {
		return payables.Summary{}, err
	}
	return v.(payables.Summary), nil
}

// Months groups circuits by start month with each group's rolled up totals.
// Circuits without a start date come last under payables.NoMonth.
func (s *Service) Months(ctx context.Context) ([]MonthSummary, error) {
	key, err := s.cache.BuildKey(ctx, "months")
	if err != nil {
		return nil, err
	}
	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		var out []MonthSummary
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			snap, err := s.loadSnapshot(ctx)
			if err != nil {
				return nil, err
			}
			groups := payables.GroupByMonth(snap.Circuits)
			months := make([]MonthSummary, 0, len(groups))
			for _, g := range groups {
				totals, _ := payables.Rollup(g.Circuits, snap.Table, snap.Rate)
				ids := make([]string, 0, len(g.Circuits))
				for _, c := range g.Circuits {
					ids = append(ids, c.ID)
				}
				months = append(months, MonthSummary{Key: g.Key, Circuits: ids, Totals: totals})
			}
			return months, nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]MonthSummary), nil
}

// Warmup precomputes the overall summary, the month list and every month's
// summary so dashboards load from cache.
func (s *Service) Warmup(ctx context.Context) (int, error) {
	months, err := s.Months(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := s.Summary(ctx, payables.Selection{Mode: payables.ModeAll}); err != nil {
		return 0, err
	}
	warmed := 2
	for _, m := range months {
		if _, err := s.Summary(ctx, payables.Selection{Mode: payables.ModeMonth, Key: m.Key}); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	// Builds started before a local mutation are never joined afterwards,
	// even when no cache version is carried in key.
	key += ":g" + strconv.FormatInt(s.generation.Load(), 10)
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// IsNotFound reports whether err means a circuit or row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCircuitNotFound) || errors.Is(err, ErrRowNotFound)
}
