package importer

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/cxp-circuitos/cxp/internal/payables"
)

// Circuit workbook layout, zero based. The header block sits in the first four
// rows and itinerary rows start on the seventh.
const (
	firstDataRow = 6

	colDate        = 0
	colDestination = 3
	colClass       = 4
	colService     = 5
	colType        = 6
	colSupplier    = 7
	colSalePrice   = 10
)

// ParseCircuit reads a circuit workbook. Rows whose type is neither LIBERO nor
// OPCIONAL are skipped, and every imported row starts unpaid with no override
// or note. A workbook without an id gets one derived from now.
func ParseCircuit(r io.Reader, now time.Time) (payables.Circuit, error) {
	rows, err := firstSheetRows(r)
	if err != nil {
		return payables.Circuit{}, err
	}

	info := payables.CircuitInfo{
		TourLeader:     payables.Clean(cell(rows, 0, 1)),
		Representative: payables.Clean(cell(rows, 1, 1)),
		Operator:       payables.Clean(cell(rows, 2, 1)),
		Rooms:          payables.ParseCount(cell(rows, 0, 5)),
		Pax:            payables.ParseCount(cell(rows, 1, 5)),
		StartDate:      parseDate(cell(rows, 3, 7)),
	}
	id := payables.Clean(cell(rows, 3, 1))
	if id == "" {
		id = "CIRC-" + strconv.FormatInt(now.UnixMilli(), 10)
	}

	circuit := payables.Circuit{
		ID:       id,
		MonthKey: payables.MonthKeyFor(info.StartDate),
		Info:     info,
	}
	idx := 0
	for i := firstDataRow; i < len(rows); i++ {
		raw := rows[i]
		if blankRow(raw) {
			continue
		}
		if cellAt(raw, colDestination) == "" && cellAt(raw, colService) == "" && cellAt(raw, colType) == "" {
			continue
		}
		typ, ok := payables.ParseServiceType(cellAt(raw, colType))
		if !ok {
			continue
		}
		circuit.Rows = append(circuit.Rows, payables.ServiceRow{
			ID:             uuid.New(),
			Index:          idx,
			Date:           parseDate(cellAt(raw, colDate)),
			Destination:    payables.Clean(cellAt(raw, colDestination)),
			Classification: payables.Clean(cellAt(raw, colClass)),
			Service:        payables.Clean(cellAt(raw, colService)),
			Type:           typ,
			Supplier:       payables.Clean(cellAt(raw, colSupplier)),
			SalePrice:      payables.ParseAmount(cellAt(raw, colSalePrice)),
		})
		idx++
	}
	if len(circuit.Rows) == 0 {
		return circuit, fmt.Errorf("circuit %s: %w", id, ErrNoRows)
	}
	return circuit, nil
}
