package ap

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cxp-circuitos/cxp/internal/importer"
	"github.com/cxp-circuitos/cxp/internal/payables"
	"github.com/cxp-circuitos/cxp/internal/payables/fx"
	"github.com/cxp-circuitos/cxp/internal/platform/httpx"
)

const (
	maxUploadBytes   = 10 << 20
	uploadsPerMinute = 10
	dateLayout       = "2006-01-02"
)

// Handler exposes the payables service as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), now: time.Now}
}

// MountRoutes registers payables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/circuits", h.listCircuits)
	r.Route("/circuits/{id}", func(r chi.Router) {
		r.Get("/", h.circuitDetail)
		r.Delete("/", h.deleteCircuit)
		r.Put("/revenue", h.setRevenue)
		r.Route("/rows/{rowID}", func(r chi.Router) {
			r.Post("/paid", h.togglePaid)
			r.Put("/payment-date", h.setPaymentDate)
			r.Put("/note", h.setNote)
			r.Put("/supplier", h.assignSupplier)
			r.Put("/override", h.setOverride)
		})
	})

	r.Get("/summary", h.summary)
	r.Get("/months", h.months)

	r.Get("/tarifario", h.tarifario)
	r.Put("/tarifario", h.replaceTarifario)
	r.Get("/tarifario/seed", h.seedTarifario)

	// Workbook uploads are parsed in memory; keep them on a tighter budget.
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(uploadsPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint)))
		r.Post("/circuits/import", h.importCircuit)
		r.Post("/tarifario/import", h.importTarifario)
	})

	r.Get("/exchange-rate", h.exchangeRate)
	r.Put("/exchange-rate", h.setExchangeRate)
}

type totalsView struct {
	payables.CircuitTotals
	PendingMXN decimal.Decimal  `json:"pending_mxn"`
	PendingUSD decimal.Decimal  `json:"pending_usd"`
	Margin     *float64         `json:"margin"`
	Outcome    payables.Outcome `json:"outcome"`
	PaidRowPct int              `json:"paid_row_pct"`
}

func newTotalsView(t payables.CircuitTotals) totalsView {
	v := totalsView{
		CircuitTotals: t,
		PendingMXN:    t.PendingMXN(),
		PendingUSD:    t.PendingUSD(),
		Outcome:       t.Outcome(),
		PaidRowPct:    t.PaidRowPct(),
	}
	if m, ok := t.Margin(); ok {
		v.Margin = &m
	}
	return v
}

type summaryView struct {
	Selection  payables.Selection           `json:"selection"`
	Circuits   int                          `json:"circuits"`
	Totals     totalsView                   `json:"totals"`
	Categories []payables.CategoryBreakdown `json:"categories"`
	Providers  []payables.ProviderRank      `json:"providers"`
	Lines      []payables.CircuitLine       `json:"lines"`
}

type detailView struct {
	CircuitDetail
	Totals totalsView `json:"totals"`
}

func (h *Handler) listCircuits(w http.ResponseWriter, r *http.Request) {
	circuits, err := h.service.ListCircuits(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, circuits)
}

func (h *Handler) importCircuit(w http.ResponseWriter, r *http.Request) {
	file, err := h.upload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer func() { _ = file.Close() }()

	circuit, err := importer.ParseCircuit(file, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("preview") == "true" {
		httpx.JSON(w, http.StatusOK, circuit)
		return
	}
	stored, err := h.service.ImportCircuit(r.Context(), circuit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, stored)
}

func (h *Handler) circuitDetail(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRowFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	detail, err := h.service.CircuitDetail(r.Context(), chi.URLParam(r, "id"), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detailView{CircuitDetail: detail, Totals: newTotalsView(detail.Totals)})
}

func (h *Handler) deleteCircuit(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCircuit(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setRevenue(w http.ResponseWriter, r *http.Request) {
	var in RevenueInput
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.SetRevenue(r.Context(), chi.URLParam(r, "id"), in); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) togglePaid(w http.ResponseWriter, r *http.Request) {
	h.rowUpdate(w, r, func(circuitID string, rowID uuid.UUID) (payables.ServiceRow, error) {
		return h.service.TogglePaid(r.Context(), circuitID, rowID)
	})
}

func (h *Handler) setPaymentDate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PaidOn string `json:"paid_on"`
	}
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	var paidOn *time.Time
	if raw := strings.TrimSpace(in.PaidOn); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: paid_on must be YYYY-MM-DD", ErrInvalidInput))
			return
		}
		paidOn = &d
	}
	h.rowUpdate(w, r, func(circuitID string, rowID uuid.UUID) (payables.ServiceRow, error) {
		return h.service.SetPaymentDate(r.Context(), circuitID, rowID, paidOn)
	})
}

func (h *Handler) setNote(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Note string `json:"note" validate:"max=2000"`
	}
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.rowUpdate(w, r, func(circuitID string, rowID uuid.UUID) (payables.ServiceRow, error) {
		return h.service.SetNote(r.Context(), circuitID, rowID, in.Note)
	})
}

func (h *Handler) assignSupplier(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Supplier string `json:"supplier"`
	}
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.rowUpdate(w, r, func(circuitID string, rowID uuid.UUID) (payables.ServiceRow, error) {
		return h.service.AssignSupplier(r.Context(), circuitID, rowID, in.Supplier)
	})
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	var in OverrideInput
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.rowUpdate(w, r, func(circuitID string, rowID uuid.UUID) (payables.ServiceRow, error) {
		return h.service.SetOverride(r.Context(), circuitID, rowID, in)
	})
}

func (h *Handler) rowUpdate(w http.ResponseWriter, r *http.Request, fn func(string, uuid.UUID) (payables.ServiceRow, error)) {
	rowID, err := uuid.Parse(chi.URLParam(r, "rowID"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: row id", ErrInvalidInput))
		return
	}
	row, err := fn(chi.URLParam(r, "id"), rowID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sum, err := h.service.Summary(r.Context(), sel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaryView{
		Selection:  sel,
		Circuits:   sum.Circuits,
		Totals:     newTotalsView(sum.Totals),
		Categories: sum.Categories,
		Providers:  sum.Providers,
		Lines:      sum.Lines,
	})
}

func (h *Handler) months(w http.ResponseWriter, r *http.Request) {
	months, err := h.service.Months(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, months)
}

func (h *Handler) tarifario(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Tarifario(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(entries))
}

func (h *Handler) replaceTarifario(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Entries []payables.RateEntry `json:"entries" validate:"dive"`
	}
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.service.ReplaceTarifario(r.Context(), in.Entries)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(entries))
}

func (h *Handler) importTarifario(w http.ResponseWriter, r *http.Request) {
	file, err := h.upload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer func() { _ = file.Close() }()

	parsed, err := importer.ParseTarifario(file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("preview") == "true" {
		httpx.JSON(w, http.StatusOK, parsed)
		return
	}
	entries, err := h.service.ReplaceTarifario(r.Context(), parsed)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(entries))
}

func (h *Handler) seedTarifario(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.SeedTarifario(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(entries))
}

type rateView struct {
	Rate fx.Rate `json:"rate"`
}

func (h *Handler) exchangeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.ExchangeRate(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rateView{Rate: rate})
}

func (h *Handler) setExchangeRate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Rate json.Number `json:"rate"`
	}
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", fx.ErrInvalidRate, err))
		return
	}
	rate, err := h.service.SetExchangeRate(r.Context(), in.Rate.String())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rateView{Rate: rate})
}

func (h *Handler) decode(r *http.Request, dest any) error {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		return fmt.Errorf("%w: malformed body: %v", ErrInvalidInput, err)
	}
	if err := h.validator.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" "+fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) (multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", httpx.ErrTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: multipart form: %v", ErrInvalidInput, err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: file field: %v", ErrInvalidInput, err)
	}
	return file, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsNotFound(err):
		err = fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidCircuit), errors.Is(err, fx.ErrInvalidRate),
		errors.Is(err, importer.ErrNoRows), errors.Is(err, importer.ErrNoSheet), errors.Is(err, importer.ErrUnreadable):
		err = fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error())
	case errors.Is(err, httpx.ErrTooLarge):
	default:
		h.logger.Error("payables request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	httpx.RespondError(w, err)
}

func parseSelection(r *http.Request) (payables.Selection, error) {
	q := r.URL.Query()
	sel := payables.Selection{Mode: payables.Mode(strings.ToLower(strings.TrimSpace(q.Get("mode")))), Key: strings.TrimSpace(q.Get("key"))}
	switch sel.Mode {
	case "", payables.ModeAll:
		return payables.Selection{Mode: payables.ModeAll}, nil
	case payables.ModeMonth, payables.ModeCircuit:
		if sel.Key == "" {
			return sel, fmt.Errorf("%w: key required for mode %s", ErrInvalidInput, sel.Mode)
		}
		return sel, nil
	default:
		return sel, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, sel.Mode)
	}
}

func parseRowFilter(r *http.Request) (payables.RowFilter, error) {
	q := r.URL.Query()
	var f payables.RowFilter
	if raw := q.Get("type"); raw != "" {
		typ, ok := payables.ParseServiceType(raw)
		if !ok {
			return f, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, raw)
		}
		f.Type = typ
	}
	if raw := q.Get("category"); raw != "" {
		f.Category = payables.ParseCategory(raw)
	}
	switch p := payables.PaymentFilter(strings.ToUpper(q.Get("payment"))); p {
	case payables.PaymentAny, payables.PaymentPaid, payables.PaymentUnpaid:
		f.Payment = p
	default:
		return f, fmt.Errorf("%w: unknown payment filter %q", ErrInvalidInput, p)
	}
	if raw := q.Get("paid_on"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return f, fmt.Errorf("%w: paid_on must be YYYY-MM-DD", ErrInvalidInput)
		}
		f.PaidOn = &d
	}
	f.Supplier = q.Get("supplier")
	return f, nil
}

func nonNil(entries []payables.RateEntry) []payables.RateEntry {
	if entries == nil {
		return []payables.RateEntry{}
	}
	return entries
}
