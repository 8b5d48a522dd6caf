// Package payables resolves supplier costs for tour circuits and rolls them up
// into payable and profit summaries. Every function is a pure computation over
// the snapshot it is handed; nothing here performs I/O or keeps state.
package payables

import (
	"time"

	"github.com/google/uuid"

	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

// Category enumerates itinerary classifications.
type Category string

const (
	CategoryLodging    Category = "HOSPEDAJE"
	CategoryTransport  Category = "TRANSPORTE"
	CategoryActivities Category = "ACTIVIDADES"
	CategoryFood       Category = "ALIMENTOS"
	CategoryGuide      Category = "GUIA"
	CategoryOther      Category = "OTROS"
)

// Categories lists every category in display order, OTROS last.
var Categories = []Category{
	CategoryLodging,
	CategoryTransport,
	CategoryActivities,
	CategoryFood,
	CategoryGuide,
	CategoryOther,
}

// ParseCategory normalises a spreadsheet label and matches it against the
// closed set. Blank or unknown labels fall into CategoryOther.
func ParseCategory(raw string) Category {
	switch c := Category(Normalize(raw)); c {
	case CategoryLodging, CategoryTransport, CategoryActivities, CategoryFood, CategoryGuide:
		return c
	default:
		return CategoryOther
	}
}

// ServiceType distinguishes committed services from optional ones.
type ServiceType string

const (
	ServiceFixed    ServiceType = "LIBERO"
	ServiceOptional ServiceType = "OPCIONAL"
)

// ParseServiceType matches a label against the known service types. Rows with
// any other type are dropped at import.
func ParseServiceType(raw string) (ServiceType, bool) {
	switch t := ServiceType(Normalize(raw)); t {
	case ServiceFixed, ServiceOptional:
		return t, true
	default:
		return "", false
	}
}

// Override is a manual price captured on a row. It replaces tarifario pricing
// entirely while its amount is positive.
type Override struct {
	Amount   float64     `json:"amount"`
	Currency fx.Currency `json:"currency"`
}

// ServiceRow is one line item of a circuit itinerary.
type ServiceRow struct {
	ID             uuid.UUID   `json:"id"`
	Index          int         `json:"idx"`
	Date           *time.Time  `json:"date,omitempty"`
	Destination    string      `json:"destination"`
	Classification string      `json:"classification"`
	Service        string      `json:"service"`
	Type           ServiceType `json:"type"`
	Supplier       string      `json:"supplier"`
	SalePrice      float64     `json:"sale_price"`
	Paid           bool        `json:"paid"`
	PaidOn         *time.Time  `json:"paid_on,omitempty"`
	Note           string      `json:"note"`
	Override       *Override   `json:"override,omitempty"`
}

// Category returns the row's classification as a closed category.
func (r ServiceRow) Category() Category {
	return ParseCategory(r.Classification)
}

// HasOverride reports whether the row carries a usable manual price.
func (r ServiceRow) HasOverride() bool {
	return r.Override != nil && r.Override.Amount > 0
}

// CircuitInfo is the header block of a circuit workbook.
type CircuitInfo struct {
	TourLeader     string     `json:"tour_leader"`
	Representative string     `json:"representative"`
	Operator       string     `json:"operator"`
	Pax            int        `json:"pax"`
	Rooms          int        `json:"rooms"`
	StartDate      *time.Time `json:"start_date,omitempty"`
}

// RoomMultiplier is the lodging unit count, never below one.
func (i CircuitInfo) RoomMultiplier() float64 {
	if i.Rooms < 1 {
		return 1
	}
	return float64(i.Rooms)
}

// Circuit is one tour operation and the unit of cost tracking.
type Circuit struct {
	ID              string       `json:"id"`
	MonthKey        string       `json:"month_key"`
	Info            CircuitInfo  `json:"info"`
	ChargedAmount   *float64     `json:"charged_amount,omitempty"`
	ChargedCurrency fx.Currency  `json:"charged_currency"`
	Rows            []ServiceRow `json:"rows"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Revenue returns the customer charge in its stored currency, 0 when unset.
func (c Circuit) Revenue() float64 {
	if c.ChargedAmount == nil || *c.ChargedAmount <= 0 {
		return 0
	}
	return *c.ChargedAmount
}

// RateEntry is one supplier's standard pricing in the tarifario.
type RateEntry struct {
	Supplier    string      `json:"supplier" validate:"required"`
	ServiceType string      `json:"service_type"`
	UnitPrice   float64     `json:"unit_price" validate:"gte=0"`
	Currency    fx.Currency `json:"currency" validate:"omitempty,oneof=MXN USD"`
	CreditDays  int         `json:"credit_days" validate:"gte=0"`
	Notes       string      `json:"notes"`
}
