package ap

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cxp-circuitos/cxp/internal/payables"
	"github.com/cxp-circuitos/cxp/internal/payables/fx"
	"github.com/cxp-circuitos/cxp/internal/platform/db"
)

//go:embed schema.sql
var schemaSQL string

const pgForeignKeyViolation = "23503"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
	pgReader
}

type pgTxRepository struct {
	pgReader
}

type pgReader struct {
	q querier
}

// NewRepository returns the PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool, pgReader: pgReader{q: pool}}
}

// EnsureSchema creates the payables tables when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ap: ensure schema: %w", err)
	}
	return nil
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{pgReader: pgReader{q: tx}})
	})
}

const circuitColumns = `id, month_key, info, charged_amount, charged_currency, created_at`

const rowColumns = `id, circuit_id, idx, service_date, destination, classification, service,
	service_type, supplier, sale_price, paid, paid_on, note, override_amount, override_currency`

func (r pgReader) ListCircuits(ctx context.Context) ([]payables.Circuit, error) {
	rows, err := r.q.Query(ctx, `SELECT `+circuitColumns+` FROM circuits ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("ap: list circuits: %w", err)
	}
	circuits, err := pgx.CollectRows(rows, scanCircuit)
	if err != nil {
		return nil, fmt.Errorf("ap: scan circuits: %w", err)
	}
	if len(circuits) == 0 {
		return circuits, nil
	}

	byID := make(map[string]int, len(circuits))
	for i, c := range circuits {
		byID[c.ID] = i
	}
	rowsRes, err := r.q.Query(ctx, `SELECT `+rowColumns+` FROM circuit_rows ORDER BY circuit_id, idx`)
	if err != nil {
		return nil, fmt.Errorf("ap: list rows: %w", err)
	}
	defer rowsRes.Close()
	for rowsRes.Next() {
		circuitID, row, err := scanRow(rowsRes)
		if err != nil {
			return nil, fmt.Errorf("ap: scan row: %w", err)
		}
		if i, ok := byID[circuitID]; ok {
			circuits[i].Rows = append(circuits[i].Rows, row)
		}
	}
	if err := rowsRes.Err(); err != nil {
		return nil, fmt.Errorf("ap: iterate rows: %w", err)
	}
	return circuits, nil
}

func (r pgReader) GetCircuit(ctx context.Context, id string) (payables.Circuit, error) {
	rows, err := r.q.Query(ctx, `SELECT `+circuitColumns+` FROM circuits WHERE id = $1`, id)
	if err != nil {
		return payables.Circuit{}, fmt.Errorf("ap: get circuit: %w", err)
	}
	circuit, err := pgx.CollectExactlyOneRow(rows, scanCircuit)
	if errors.Is(err, pgx.ErrNoRows) {
		return payables.Circuit{}, ErrCircuitNotFound
	}
	if err != nil {
		return payables.Circuit{}, fmt.Errorf("ap: scan circuit: %w", err)
	}

	rowsRes, err := r.q.Query(ctx, `SELECT `+rowColumns+` FROM circuit_rows WHERE circuit_id = $1 ORDER BY idx`, id)
	if err != nil {
		return payables.Circuit{}, fmt.Errorf("ap: list rows: %w", err)
	}
	defer rowsRes.Close()
	for rowsRes.Next() {
		_, row, err := scanRow(rowsRes)
		if err != nil {
			return payables.Circuit{}, fmt.Errorf("ap: scan row: %w", err)
		}
		circuit.Rows = append(circuit.Rows, row)
	}
	if err := rowsRes.Err(); err != nil {
		return payables.Circuit{}, fmt.Errorf("ap: iterate rows: %w", err)
	}
	return circuit, nil
}

func (r pgReader) ListRateEntries(ctx context.Context) ([]payables.RateEntry, error) {
	rows, err := r.q.Query(ctx, `SELECT supplier, service_type, unit_price, currency, credit_days, notes
		FROM tarifario ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ap: list tarifario: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (payables.RateEntry, error) {
		var e payables.RateEntry
		var currency string
		err := row.Scan(&e.Supplier, &e.ServiceType, &e.UnitPrice, &currency, &e.CreditDays, &e.Notes)
		e.Currency = fx.ParseCurrency(currency)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("ap: scan tarifario: %w", err)
	}
	return entries, nil
}

func (r pgReader) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.q.QueryRow(ctx, `SELECT value FROM team_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ap: get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (r *pgTxRepository) UpsertCircuit(ctx context.Context, c payables.Circuit) error {
	info, err := json.Marshal(c.Info)
	if err != nil {
		return fmt.Errorf("ap: encode circuit info: %w", err)
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = r.q.Exec(ctx, `INSERT INTO circuits (id, month_key, info, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET month_key = EXCLUDED.month_key, info = EXCLUDED.info`,
		c.ID, c.MonthKey, info, createdAt)
	if err != nil {
		return fmt.Errorf("ap: upsert circuit: %w", err)
	}
	return nil
}

func (r *pgTxRepository) DeleteCircuit(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM circuits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ap: delete circuit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCircuitNotFound
	}
	return nil
}

func (r *pgTxRepository) ReplaceRows(ctx context.Context, circuitID string, rows []payables.ServiceRow) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM circuit_rows WHERE circuit_id = $1`, circuitID); err != nil {
		return fmt.Errorf("ap: clear rows: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	columns := []string{"id", "circuit_id", "idx", "service_date", "destination", "classification", "service",
		"service_type", "supplier", "sale_price", "paid", "paid_on", "note", "override_amount", "override_currency"}
	_, err := r.q.CopyFrom(ctx, pgx.Identifier{"circuit_rows"}, columns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		row := rows[i]
		amount, currency := overrideColumns(row.Override)
		return []any{row.ID, circuitID, row.Index, row.Date, row.Destination, row.Classification, row.Service,
			string(row.Type), row.Supplier, row.SalePrice, row.Paid, row.PaidOn, row.Note, amount, currency}, nil
	}))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrCircuitNotFound
		}
		return fmt.Errorf("ap: copy rows: %w", err)
	}
	return nil
}

func (r *pgTxRepository) LockRow(ctx context.Context, circuitID string, rowID uuid.UUID) (payables.ServiceRow, error) {
	rows, err := r.q.Query(ctx, `SELECT `+rowColumns+` FROM circuit_rows
		WHERE circuit_id = $1 AND id = $2 FOR UPDATE`, circuitID, rowID)
	if err != nil {
		return payables.ServiceRow{}, fmt.Errorf("ap: lock row: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return payables.ServiceRow{}, fmt.Errorf("ap: lock row: %w", err)
		}
		return payables.ServiceRow{}, ErrRowNotFound
	}
	_, row, err := scanRow(rows)
	if err != nil {
		return payables.ServiceRow{}, fmt.Errorf("ap: scan row: %w", err)
	}
	return row, nil
}

func (r *pgTxRepository) UpdateRow(ctx context.Context, circuitID string, row payables.ServiceRow) error {
	amount, currency := overrideColumns(row.Override)
	tag, err := r.q.Exec(ctx, `UPDATE circuit_rows
		SET supplier = $3, paid = $4, paid_on = $5, note = $6, override_amount = $7, override_currency = $8
		WHERE circuit_id = $1 AND id = $2`,
		circuitID, row.ID, row.Supplier, row.Paid, row.PaidOn, row.Note, amount, currency)
	if err != nil {
		return fmt.Errorf("ap: update row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRowNotFound
	}
	return nil
}

func (r *pgTxRepository) UpdateRevenue(ctx context.Context, circuitID string, amount *float64, currency fx.Currency) error {
	tag, err := r.q.Exec(ctx, `UPDATE circuits SET charged_amount = $2, charged_currency = $3 WHERE id = $1`,
		circuitID, amount, string(currency.OrDefault()))
	if err != nil {
		return fmt.Errorf("ap: update revenue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCircuitNotFound
	}
	return nil
}

func (r *pgTxRepository) ReplaceRateEntries(ctx context.Context, entries []payables.RateEntry) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM tarifario`); err != nil {
		return fmt.Errorf("ap: clear tarifario: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	columns := []string{"supplier", "service_type", "unit_price", "currency", "credit_days", "notes"}
	_, err := r.q.CopyFrom(ctx, pgx.Identifier{"tarifario"}, columns, pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
		e := entries[i]
		return []any{e.Supplier, e.ServiceType, e.UnitPrice, string(e.Currency.OrDefault()), e.CreditDays, e.Notes}, nil
	}))
	if err != nil {
		return fmt.Errorf("ap: copy tarifario: %w", err)
	}
	return nil
}

func (r *pgTxRepository) PutSetting(ctx context.Context, key, value string) error {
	_, err := r.q.Exec(ctx, `INSERT INTO team_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, key, value)
	if err != nil {
		return fmt.Errorf("ap: put setting %s: %w", key, err)
	}
	return nil
}

func scanCircuit(row pgx.CollectableRow) (payables.Circuit, error) {
	var (
		c        payables.Circuit
		info     []byte
		currency string
	)
	if err := row.Scan(&c.ID, &c.MonthKey, &info, &c.ChargedAmount, &currency, &c.CreatedAt); err != nil {
		return c, err
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &c.Info); err != nil {
			return c, fmt.Errorf("decode info for %s: %w", c.ID, err)
		}
	}
	c.ChargedCurrency = fx.ParseCurrency(currency)
	return c, nil
}

func scanRow(rows pgx.Rows) (string, payables.ServiceRow, error) {
	var (
		circuitID string
		row       payables.ServiceRow
		typ       string
		amount    *float64
		currency  *string
	)
	err := rows.Scan(&row.ID, &circuitID, &row.Index, &row.Date, &row.Destination, &row.Classification,
		&row.Service, &typ, &row.Supplier, &row.SalePrice, &row.Paid, &row.PaidOn, &row.Note, &amount, &currency)
	if err != nil {
		return "", row, err
	}
	row.Type = payables.ServiceType(typ)
	if amount != nil {
		o := &payables.Override{Amount: *amount, Currency: fx.MXN}
		if currency != nil {
			o.Currency = fx.ParseCurrency(*currency)
		}
		row.Override = o
	}
	return circuitID, row, nil
}

func overrideColumns(o *payables.Override) (*float64, *string) {
	if o == nil || o.Amount <= 0 {
		return nil, nil
	}
	amount := o.Amount
	currency := string(o.Currency.OrDefault())
	return &amount, &currency
}
