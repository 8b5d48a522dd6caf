package payables

import "github.com/cxp-circuitos/cxp/internal/payables/fx"

// RateTable is an immutable lookup over tarifario entries keyed by the
// normalised supplier name. When a supplier appears more than once the first
// entry wins; Duplicates exposes those keys so callers can clean them up.
type RateTable struct {
	entries []RateEntry
	index   map[string]int
	dupes   []string
}

// NewRateTable indexes entries. The slice is copied so later edits to the
// caller's data do not leak into an in-flight aggregation.
func NewRateTable(entries []RateEntry) *RateTable {
	t := &RateTable{
		entries: make([]RateEntry, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	copy(t.entries, entries)
	seenDupe := make(map[string]bool)
	for i, entry := range t.entries {
		key := Normalize(entry.Supplier)
		if key == "" {
			continue
		}
		if _, ok := t.index[key]; ok {
			if !seenDupe[key] {
				seenDupe[key] = true
				t.dupes = append(t.dupes, key)
			}
			continue
		}
		t.index[key] = i
	}
	return t
}

// Lookup returns the effective entry for supplier.
func (t *RateTable) Lookup(supplier string) (RateEntry, bool) {
	if t == nil {
		return RateEntry{}, false
	}
	key := Normalize(supplier)
	if key == "" {
		return RateEntry{}, false
	}
	i, ok := t.index[key]
	if !ok {
		return RateEntry{}, false
	}
	return t.entries[i], true
}

// CreditDays returns the supplier's credit terms, 0 when it is not listed.
func (t *RateTable) CreditDays(supplier string) int {
	entry, ok := t.Lookup(supplier)
	if !ok {
		return 0
	}
	return entry.CreditDays
}

// Entries returns a copy of the table in its original order.
func (t *RateTable) Entries() []RateEntry {
	if t == nil {
		return nil
	}
	out := make([]RateEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len reports the number of entries, duplicates included.
func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Duplicates lists normalised supplier keys that occur more than once.
func (t *RateTable) Duplicates() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.dupes...)
}

// SeedRateEntries proposes a starting tarifario from the suppliers already
// assigned on circuit rows: one zero-priced MXN entry per supplier, first-seen
// spelling kept.
func SeedRateEntries(circuits []Circuit) []RateEntry {
	seen := make(map[string]bool)
	var out []RateEntry
	for _, c := range circuits {
		for _, row := range c.Rows {
			key := Normalize(row.Supplier)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			serviceType := row.Classification
			if serviceType == "" {
				serviceType = string(CategoryLodging)
			}
			out = append(out, RateEntry{
				Supplier:    row.Supplier,
				ServiceType: serviceType,
				Currency:    fx.MXN,
				CreditDays:  30,
			})
		}
	}
	return out
}
