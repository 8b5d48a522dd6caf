// Package importer turns circuit and tarifario workbooks into payables records.
package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrNoSheet is returned for a workbook without worksheets.
	ErrNoSheet = errors.New("importer: workbook has no sheets")
	// ErrNoRows is returned when a sheet yields nothing importable.
	ErrNoRows = errors.New("importer: no importable rows")
	// ErrUnreadable is returned when the upload is not an xlsx workbook.
	ErrUnreadable = errors.New("importer: unreadable workbook")
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
}

// firstSheetRows reads the first worksheet with raw cell values so dates come
// back as serial numbers rather than locale-formatted text.
func firstSheetRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("importer: read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func cell(rows [][]string, r, c int) string {
	if r < 0 || r >= len(rows) {
		return ""
	}
	return cellAt(rows[r], c)
}

func cellAt(row []string, c int) string {
	if c < 0 || c >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[c])
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Excel serials outside this range (1902 to 2173) are stray numbers, not
// dates.
const (
	minDateSerial = 1000
	maxDateSerial = 100000
)

// parseDate accepts an Excel serial date or one of a few textual layouts.
// Anything else is treated as no date.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if serial < minDateSerial || serial > maxDateSerial {
			return nil
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil
		}
		return &t
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
