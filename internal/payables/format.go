package payables

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/cxp-circuitos/cxp/internal/payables/fx"
)

// Placeholder is rendered instead of a non-positive amount.
const Placeholder = "—"

var (
	mxnPrinter = message.NewPrinter(language.MustParse("es-MX"))
	usdPrinter = message.NewPrinter(language.AmericanEnglish)
)

// Displayable reports whether an amount should be rendered as a figure rather
// than the placeholder.
func Displayable(v float64) bool {
	return v > 0
}

// FormatMXN renders v as whole pesos, e.g. "$12,500".
func FormatMXN(v float64) string {
	return format(mxnPrinter, v)
}

// FormatUSD renders v as whole dollars, e.g. "$1,200".
func FormatUSD(v float64) string {
	return format(usdPrinter, v)
}

// FormatAmount picks the formatter for c.
func FormatAmount(v float64, c fx.Currency) string {
	if c == fx.USD {
		return FormatUSD(v)
	}
	return FormatMXN(v)
}

func format(p *message.Printer, v float64) string {
	if !Displayable(v) {
		return Placeholder
	}
	return "$" + p.Sprint(number.Decimal(v, number.MaxFractionDigits(0)))
}
