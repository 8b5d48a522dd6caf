package ap

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cxp-circuitos/cxp/internal/payables"
	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

type memoryState struct {
	circuits []payables.Circuit
	entries  []payables.RateEntry
	settings map[string]string
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		circuits: make([]payables.Circuit, len(s.circuits)),
		entries:  slices.Clone(s.entries),
		settings: make(map[string]string, len(s.settings)),
	}
	for i, c := range s.circuits {
		c.Rows = slices.Clone(c.Rows)
		out.circuits[i] = c
	}
	for k, v := range s.settings {
		out.settings[k] = v
	}
	return out
}

func (s *memoryState) find(id string) int {
	return slices.IndexFunc(s.circuits, func(c payables.Circuit) bool { return c.ID == id })
}

type memoryReader struct {
	mu    *sync.Mutex
	state func() *memoryState
}

func (r memoryReader) lock() func() {
	if r.mu == nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r memoryReader) ListCircuits(ctx context.Context) ([]payables.Circuit, error) {
	defer r.lock()()
	return r.state().clone().circuits, nil
}

func (r memoryReader) GetCircuit(ctx context.Context, id string) (payables.Circuit, error) {
	defer r.lock()()
	st := r.state().clone()
	i := st.find(id)
	if i < 0 {
		return payables.Circuit{}, ErrCircuitNotFound
	}
	return st.circuits[i], nil
}

func (r memoryReader) ListRateEntries(ctx context.Context) ([]payables.RateEntry, error) {
	defer r.lock()()
	return slices.Clone(r.state().entries), nil
}

func (r memoryReader) GetSetting(ctx context.Context, key string) (string, bool, error) {
	defer r.lock()()
	v, ok := r.state().settings[key]
	return v, ok, nil
}

type memoryRepo struct {
	memoryReader
	mu        sync.Mutex
	state     *memoryState
	failCopy  error
	txCommits int
}

func newMemoryRepo() *memoryRepo {
	r := &memoryRepo{state: &memoryState{settings: make(map[string]string)}}
	r.memoryReader = memoryReader{mu: &r.mu, state: func() *memoryState { return r.state }}
	return r
}

// WithTx runs fn against a copy of the state and keeps it only on success.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := r.state.clone()
	tx := &memoryTx{memoryReader: memoryReader{state: func() *memoryState { return work }}, st: work, failCopy: r.failCopy}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.state = work
	r.txCommits++
	return nil
}

type memoryTx struct {
	memoryReader
	st       *memoryState
	failCopy error
}

func (tx *memoryTx) UpsertCircuit(ctx context.Context, c payables.Circuit) error {
	if i := tx.st.find(c.ID); i >= 0 {
		tx.st.circuits[i].MonthKey = c.MonthKey
		tx.st.circuits[i].Info = c.Info
		return nil
	}
	c.Rows = nil
	c.ChargedAmount = nil
	c.ChargedCurrency = fx.MXN
	tx.st.circuits = append(tx.st.circuits, c)
	return nil
}

func (tx *memoryTx) DeleteCircuit(ctx context.Context, id string) error {
	i := tx.st.find(id)
	if i < 0 {
		return ErrCircuitNotFound
	}
	tx.st.circuits = slices.Delete(tx.st.circuits, i, i+1)
	return nil
}

func (tx *memoryTx) ReplaceRows(ctx context.Context, circuitID string, rows []payables.ServiceRow) error {
	i := tx.st.find(circuitID)
	if i < 0 {
		return ErrCircuitNotFound
	}
	if tx.failCopy != nil {
		return tx.failCopy
	}
	tx.st.circuits[i].Rows = slices.Clone(rows)
	return nil
}

func (tx *memoryTx) rowIndex(circuitID string, rowID uuid.UUID) (int, int, error) {
	i := tx.st.find(circuitID)
	if i < 0 {
		return 0, 0, ErrRowNotFound
	}
	j := slices.IndexFunc(tx.st.circuits[i].Rows, func(r payables.ServiceRow) bool { return r.ID == rowID })
	if j < 0 {
		return 0, 0, ErrRowNotFound
	}
	return i, j, nil
}

func (tx *memoryTx) LockRow(ctx context.Context, circuitID string, rowID uuid.UUID) (payables.ServiceRow, error) {
	i, j, err := tx.rowIndex(circuitID, rowID)
	if err != nil {
		return payables.ServiceRow{}, err
	}
	return tx.st.circuits[i].Rows[j], nil
}

func (tx *memoryTx) UpdateRow(ctx context.Context, circuitID string, row payables.ServiceRow) error {
	i, j, err := tx.rowIndex(circuitID, row.ID)
	if err != nil {
		return err
	}
	tx.st.circuits[i].Rows[j] = row
	return nil
}

func (tx *memoryTx) UpdateRevenue(ctx context.Context, circuitID string, amount *float64, currency fx.Currency) error {
	i := tx.st.find(circuitID)
	if i < 0 {
		return ErrCircuitNotFound
	}
	tx.st.circuits[i].ChargedAmount = amount
	tx.st.circuits[i].ChargedCurrency = currency
	return nil
}

func (tx *memoryTx) ReplaceRateEntries(ctx context.Context, entries []payables.RateEntry) error {
	tx.st.entries = nil
	if tx.failCopy != nil {
		return tx.failCopy
	}
	tx.st.entries = slices.Clone(entries)
	return nil
}

func (tx *memoryTx) PutSetting(ctx context.Context, key, value string) error {
	tx.st.settings[key] = value
	return nil
}

func newTestService(t *testing.T, repo Repository) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, NewCache(client, time.Minute), nil, fx.DefaultRate)
	svc.now = func() time.Time { return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC) }
	return svc, mr
}

func testCircuit(id string) payables.Circuit {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	return payables.Circuit{
		ID:   id,
		Info: payables.CircuitInfo{TourLeader: "Ana", Pax: 4, Rooms: 2, StartDate: &start},
		Rows: []payables.ServiceRow{
			{Classification: "HOSPEDAJE", Service: "2 noches", Type: payables.ServiceFixed, Supplier: "Hotel X", Destination: "Oaxaca"},
			{Classification: "TRANSPORTE", Service: "Traslado", Type: payables.ServiceFixed, Supplier: "Bus Co", Destination: "Oaxaca"},
		},
	}
}

func testEntries() []payables.RateEntry {
	return []payables.RateEntry{
		{Supplier: "Hotel X", ServiceType: "HOSPEDAJE", UnitPrice: 800, Currency: fx.MXN, CreditDays: 15},
		{Supplier: "Bus Co", ServiceType: "TRANSPORTE", UnitPrice: 50, Currency: fx.USD, CreditDays: 30},
	}
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func seeded(t *testing.T) (*Service, *memoryRepo, payables.Circuit) {
	t.Helper()
	repo := newMemoryRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()
	_, err := svc.ReplaceTarifario(ctx, testEntries())
	require.NoError(t, err)
	c, err := svc.ImportCircuit(ctx, testCircuit("CIRC-1"))
	require.NoError(t, err)
	return svc, repo, c
}

func TestImportCircuitResetsRowState(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	in := testCircuit("  CIRC-1 ")
	paidOn := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	in.Rows[0].Paid = true
	in.Rows[0].PaidOn = &paidOn
	in.Rows[0].Note = "old"
	in.Rows[0].Override = &payables.Override{Amount: 10, Currency: fx.USD}
	in.Rows[1].Index = 9

	c, err := svc.ImportCircuit(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "CIRC-1", c.ID)
	require.Equal(t, "2025-03", c.MonthKey)
	require.Len(t, c.Rows, 2)
	for i, row := range c.Rows {
		require.Equal(t, i, row.Index)
		require.NotEqual(t, uuid.Nil, row.ID)
		require.False(t, row.Paid)
		require.Nil(t, row.PaidOn)
		require.Empty(t, row.Note)
		require.Nil(t, row.Override)
	}
}

func TestImportCircuitRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t, newMemoryRepo())
	ctx := context.Background()

	_, err := svc.ImportCircuit(ctx, payables.Circuit{ID: "  "})
	require.ErrorIs(t, err, ErrInvalidCircuit)

	bad := testCircuit("CIRC-2")
	bad.Rows[1].Type = "INCLUIDO"
	_, err = svc.ImportCircuit(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidCircuit)
}

func TestReimportKeepsRevenueAndReplacesRows(t *testing.T) {
	svc, _, c := seeded(t)
	ctx := context.Background()

	require.NoError(t, svc.SetRevenue(ctx, c.ID, RevenueInput{Amount: 1000, Currency: fx.USD}))
	_, err := svc.TogglePaid(ctx, c.ID, c.Rows[0].ID)
	require.NoError(t, err)

	again := testCircuit(c.ID)
	again.Rows = again.Rows[:1]
	stored, err := svc.ImportCircuit(ctx, again)
	require.NoError(t, err)
	require.Len(t, stored.Rows, 1)
	require.False(t, stored.Rows[0].Paid)
	require.NotEqual(t, c.Rows[0].ID, stored.Rows[0].ID)
	require.NotNil(t, stored.ChargedAmount)
	require.Equal(t, 1000.0, *stored.ChargedAmount)
	require.Equal(t, fx.USD, stored.ChargedCurrency)
}

func TestCircuitDetailPricesRows(t *testing.T) {
	svc, _, c := seeded(t)
	ctx := context.Background()
	require.NoError(t, svc.SetRevenue(ctx, c.ID, RevenueInput{Amount: 1000, Currency: fx.USD}))

	detail, err := svc.CircuitDetail(ctx, c.ID, payables.RowFilter{})
	require.NoError(t, err)
	require.Equal(t, fx.DefaultRate, detail.Rate)
	require.Len(t, detail.Rows, 2)
	requireAmount(t, "1600", detail.Rows[0].Cost.MXN)
	require.Equal(t, 15, detail.Rows[0].CreditDays)
	requireAmount(t, "50", detail.Rows[1].Cost.USD)
	requireAmount(t, "1600", detail.Totals.CostMXN)
	requireAmount(t, "50", detail.Totals.CostUSD)
	require.Equal(t, 2475.0, detail.Totals.CostTotalMXN)
	require.Equal(t, 17500.0, detail.Totals.RevenueMXN)
	require.Equal(t, 15025.0, detail.Totals.Profit)
	require.Equal(t, []string{"BUS CO", "HOTEL X"}, detail.Suppliers)
	require.Len(t, detail.Providers, 2)
	requireAmount(t, "1600", detail.FilteredMXN)
	requireAmount(t, "50", detail.FilteredUSD)
	require.Len(t, detail.Timeline, 1)
	require.Equal(t, payables.NoDate, detail.Timeline[0].Key)
	require.Len(t, detail.Timeline[0].Rows, 2)

	filtered, err := svc.CircuitDetail(ctx, c.ID, payables.RowFilter{Category: payables.CategoryTransport})
	require.NoError(t, err)
	require.Len(t, filtered.Rows, 1)
	require.Equal(t, "Bus Co", filtered.Rows[0].Supplier)
	require.True(t, filtered.FilteredMXN.IsZero())
	requireAmount(t, "50", filtered.FilteredUSD)
	require.Equal(t, 2475.0, filtered.Totals.CostTotalMXN)
	require.Len(t, filtered.Timeline[0].Rows, 2)

	_, err = svc.CircuitDetail(ctx, "missing", payables.RowFilter{})
	require.ErrorIs(t, err, ErrCircuitNotFound)
}

func TestRowMutations(t *testing.T) {
	svc, _, c := seeded(t)
	ctx := context.Background()
	rowID := c.Rows[0].ID

	row, err := svc.TogglePaid(ctx, c.ID, rowID)
	require.NoError(t, err)
	require.True(t, row.Paid)
	row, err = svc.TogglePaid(ctx, c.ID, rowID)
	require.NoError(t, err)
	require.False(t, row.Paid)

	day := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	row, err = svc.SetPaymentDate(ctx, c.ID, rowID, &day)
	require.NoError(t, err)
	require.Equal(t, day, *row.PaidOn)
	row, err = svc.SetPaymentDate(ctx, c.ID, rowID, nil)
	require.NoError(t, err)
	require.Nil(t, row.PaidOn)

	row, err = svc.SetNote(ctx, c.ID, rowID, "factura 123")
	require.NoError(t, err)
	require.Equal(t, "factura 123", row.Note)

	row, err = svc.SetOverride(ctx, c.ID, rowID, OverrideInput{Amount: 120, Currency: fx.USD})
	require.NoError(t, err)
	require.Equal(t, &payables.Override{Amount: 120, Currency: fx.USD}, row.Override)

	row, err = svc.SetOverride(ctx, c.ID, rowID, OverrideInput{Amount: 0})
	require.NoError(t, err)
	require.Nil(t, row.Override)

	_, err = svc.SetOverride(ctx, c.ID, rowID, OverrideInput{Amount: 99})
	require.NoError(t, err)
	row, err = svc.AssignSupplier(ctx, c.ID, rowID, "  Hotel Y ")
	require.NoError(t, err)
	require.Equal(t, "Hotel Y", row.Supplier)
	require.Nil(t, row.Override)

	stored, err := svc.repo.GetCircuit(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Hotel Y", stored.Rows[0].Supplier)
	require.Equal(t, "factura 123", stored.Rows[0].Note)

	_, err = svc.TogglePaid(ctx, c.ID, uuid.New())
	require.ErrorIs(t, err, ErrRowNotFound)
	_, err = svc.TogglePaid(ctx, "missing", rowID)
	require.True(t, IsNotFound(err))
}

func TestSetOverrideDefaultsToMXN(t *testing.T) {
	svc, _, c := seeded(t)
	row, err := svc.SetOverride(context.Background(), c.ID, c.Rows[1].ID, OverrideInput{Amount: 700})
	require.NoError(t, err)
	require.Equal(t, fx.MXN, row.Override.Currency)
}

func TestSetRevenueClearsOnNonPositive(t *testing.T) {
	svc, _, c := seeded(t)
	ctx := context.Background()

	require.NoError(t, svc.SetRevenue(ctx, c.ID, RevenueInput{Amount: 50000}))
	stored, err := svc.repo.GetCircuit(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 50000.0, stored.Revenue())
	require.Equal(t, fx.MXN, stored.ChargedCurrency)

	require.NoError(t, svc.SetRevenue(ctx, c.ID, RevenueInput{Amount: -5}))
	stored, err = svc.repo.GetCircuit(ctx, c.ID)
	require.NoError(t, err)
	require.Nil(t, stored.ChargedAmount)

	require.ErrorIs(t, svc.SetRevenue(ctx, "missing", RevenueInput{Amount: 1}), ErrCircuitNotFound)
}

func TestExchangeRate(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	rate, err := svc.ExchangeRate(ctx)
	require.NoError(t, err)
	require.Equal(t, fx.DefaultRate, rate)

	rate, err = svc.SetExchangeRate(ctx, " 18.25 ")
	require.NoError(t, err)
	require.Equal(t, fx.Rate(18.25), rate)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		_, err := svc.SetExchangeRate(ctx, raw)
		require.ErrorIs(t, err, fx.ErrInvalidRate, raw)
	}
	rate, err = svc.ExchangeRate(ctx)
	require.NoError(t, err)
	require.Equal(t, fx.Rate(18.25), rate)

	repo.state.settings[SettingExchangeRate] = "garbage"
	rate, err = svc.ExchangeRate(ctx)
	require.NoError(t, err)
	require.Equal(t, fx.DefaultRate, rate)
}

func TestNewServiceRejectsBadDefaultRate(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, fx.Rate(-1))
	rate, err := svc.ExchangeRate(context.Background())
	require.NoError(t, err)
	require.Equal(t, fx.DefaultRate, rate)
}

func TestReplaceTarifario(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	entries, err := svc.ReplaceTarifario(ctx, []payables.RateEntry{
		{Supplier: " Hotel X ", UnitPrice: 800},
		{Supplier: "   ", UnitPrice: 5},
		{Supplier: "Bus Co", UnitPrice: 50, Currency: fx.USD},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "Hotel X", entries[0].Supplier)
	require.Equal(t, fx.MXN, entries[0].Currency)

	_, err = svc.ReplaceTarifario(ctx, []payables.RateEntry{{Supplier: "Neg", UnitPrice: -1}})
	require.ErrorIs(t, err, ErrInvalidInput)

	repo.failCopy = errors.New("copy failed")
	_, err = svc.ReplaceTarifario(ctx, testEntries())
	require.Error(t, err)
	stored, err := svc.Tarifario(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, 800.0, stored[0].UnitPrice)
}

func TestSeedTarifario(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.ImportCircuit(ctx, testCircuit("CIRC-1"))
	require.NoError(t, err)
	seed, err := svc.SeedTarifario(ctx)
	require.NoError(t, err)
	require.Len(t, seed, 2)
	require.Equal(t, "Hotel X", seed[0].Supplier)
	require.Equal(t, "HOSPEDAJE", seed[0].ServiceType)
	require.Equal(t, 30, seed[0].CreditDays)
	require.Zero(t, seed[0].UnitPrice)

	_, err = svc.ReplaceTarifario(ctx, testEntries()[:1])
	require.NoError(t, err)
	seed, err = svc.SeedTarifario(ctx)
	require.NoError(t, err)
	require.Len(t, seed, 1)
	require.Equal(t, 800.0, seed[0].UnitPrice)
}

func TestSummaryCachesUntilMutation(t *testing.T) {
	svc, repo, c := seeded(t)
	ctx := context.Background()
	all := payables.Selection{Mode: payables.ModeAll}

	sum, err := svc.Summary(ctx, all)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Circuits)
	require.Equal(t, 2475.0, sum.Totals.CostTotalMXN)
	require.True(t, sum.Totals.PaidMXN.IsZero())

	// A write that skips the service is invisible until the version moves.
	repo.mu.Lock()
	repo.state.circuits[0].Rows[0].Paid = true
	repo.mu.Unlock()
	sum, err = svc.Summary(ctx, all)
	require.NoError(t, err)
	require.True(t, sum.Totals.PaidMXN.IsZero())

	_, err = svc.TogglePaid(ctx, c.ID, c.Rows[1].ID)
	require.NoError(t, err)
	sum, err = svc.Summary(ctx, all)
	require.NoError(t, err)
	requireAmount(t, "1600", sum.Totals.PaidMXN)
	requireAmount(t, "50", sum.Totals.PaidUSD)
	require.True(t, sum.Totals.PendingMXN().IsZero())
}

func TestSummaryFollowsExchangeRate(t *testing.T) {
	svc, _, c := seeded(t)
	ctx := context.Background()
	sel := payables.Selection{Mode: payables.ModeCircuit, Key: c.ID}

	sum, err := svc.Summary(ctx, sel)
	require.NoError(t, err)
	require.Equal(t, 2475.0, sum.Totals.CostTotalMXN)

	_, err = svc.SetExchangeRate(ctx, "20")
	require.NoError(t, err)
	sum, err = svc.Summary(ctx, sel)
	require.NoError(t, err)
	require.Equal(t, 2600.0, sum.Totals.CostTotalMXN)

	_, err = svc.Summary(ctx, payables.Selection{Mode: payables.ModeCircuit, Key: "missing"})
	require.ErrorIs(t, err, ErrCircuitNotFound)
}

func TestSummaryWithoutCache(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, fx.DefaultRate)
	ctx := context.Background()
	_, err := svc.ReplaceTarifario(ctx, testEntries())
	require.NoError(t, err)
	_, err = svc.ImportCircuit(ctx, testCircuit("CIRC-1"))
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, payables.Selection{})
	require.NoError(t, err)
	require.Equal(t, 2475.0, sum.Totals.CostTotalMXN)
	require.Len(t, sum.Providers, 2)
	require.Equal(t, "Bus Co", sum.Providers[1].Name)
}

// slowRepo holds the first gated transaction open after it has read its
// snapshot, so a summary build can be caught in flight.
type slowRepo struct {
	*memoryRepo
	gated   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (r *slowRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := r.memoryRepo.WithTx(ctx, fn)
	if r.gated.CompareAndSwap(true, false) {
		close(r.entered)
		<-r.release
	}
	return err
}

func TestSummaryWithoutCacheSkipsStaleBuild(t *testing.T) {
	repo := &slowRepo{memoryRepo: newMemoryRepo(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(repo, nil, nil, fx.DefaultRate)
	ctx := context.Background()
	_, err := svc.ReplaceTarifario(ctx, testEntries())
	require.NoError(t, err)
	c, err := svc.ImportCircuit(ctx, testCircuit("CIRC-1"))
	require.NoError(t, err)

	all := payables.Selection{Mode: payables.ModeAll}
	repo.gated.Store(true)
	stale := make(chan payables.Summary, 1)
	go func() {
		sum, _ := svc.Summary(ctx, all)
		stale <- sum
	}()
	<-repo.entered

	_, err = svc.TogglePaid(ctx, c.ID, c.Rows[0].ID)
	require.NoError(t, err)

	fresh, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	sum, err := svc.Summary(fresh, all)
	require.NoError(t, err)
	requireAmount(t, "1600", sum.Totals.PaidMXN)

	close(repo.release)
	require.True(t, (<-stale).Totals.PaidMXN.IsZero())
}

func TestMonthsAndWarmup(t *testing.T) {
	svc, _, _ := seeded(t)
	ctx := context.Background()

	undated := testCircuit("CIRC-2")
	undated.Info.StartDate = nil
	_, err := svc.ImportCircuit(ctx, undated)
	require.NoError(t, err)

	months, err := svc.Months(ctx)
	require.NoError(t, err)
	require.Len(t, months, 2)
	require.Equal(t, "2025-03", months[0].Key)
	require.Equal(t, []string{"CIRC-1"}, months[0].Circuits)
	require.Equal(t, 2475.0, months[0].Totals.CostTotalMXN)
	require.Equal(t, payables.NoMonth, months[1].Key)

	warmed, err := svc.Warmup(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, warmed)
}

func TestDeleteCircuit(t *testing.T) {
	svc, _, c := seeded(t)
	ctx := context.Background()

	require.NoError(t, svc.DeleteCircuit(ctx, c.ID))
	require.ErrorIs(t, svc.DeleteCircuit(ctx, c.ID), ErrCircuitNotFound)
	list, err := svc.ListCircuits(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestListCircuits(t *testing.T) {
	svc, _, c := seeded(t)
	ctx := context.Background()
	_, err := svc.TogglePaid(ctx, c.ID, c.Rows[0].ID)
	require.NoError(t, err)

	list, err := svc.ListCircuits(ctx)
	require.NoError(t, err)
	require.Equal(t, []CircuitListing{{
		ID:         "CIRC-1",
		MonthKey:   "2025-03",
		TourLeader: "Ana",
		Pax:        4,
		Rows:       2,
		PaidRows:   1,
		CreatedAt:  time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	}}, list)
}
