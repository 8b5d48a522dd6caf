package importer

import (
	"io"

	"github.com/cxp-circuitos/cxp/internal/payables"
	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

// ParseTarifario reads a rate table workbook: a header row followed by
// supplier, service type, price, currency, credit days and notes columns.
func ParseTarifario(r io.Reader) ([]payables.RateEntry, error) {
	rows, err := firstSheetRows(r)
	if err != nil {
		return nil, err
	}
	var entries []payables.RateEntry
	for i := 1; i < len(rows); i++ {
		raw := rows[i]
		if blankRow(raw) {
			continue
		}
		entries = append(entries, payables.RateEntry{
			Supplier:    payables.Clean(cellAt(raw, 0)),
			ServiceType: payables.Clean(cellAt(raw, 1)),
			UnitPrice:   payables.ParseAmount(cellAt(raw, 2)),
			Currency:    fx.ParseCurrency(cellAt(raw, 3)),
			CreditDays:  payables.ParseCount(cellAt(raw, 4)),
			Notes:       payables.Clean(cellAt(raw, 5)),
		})
	}
	if len(entries) == 0 {
		return nil, ErrNoRows
	}
	return entries, nil
}
