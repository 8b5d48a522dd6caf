package payables

import (
	"math"
	"strconv"
	"strings"
)

// Normalize builds a matching key: upper case, trimmed, whitespace runs
// collapsed to a single space. It is never used for display.
func Normalize(text string) string {
	return strings.ToUpper(strings.Join(strings.Fields(text), " "))
}

// Clean trims a spreadsheet cell for display. TrimSpace also strips the
// non-breaking spaces exported sheets use for empty cells.
func Clean(text string) string {
	return strings.TrimSpace(text)
}

// ParseAmount leniently reads a monetary cell. Every character other than
// digits and the decimal point is discarded; the result is never negative and
// unreadable input yields 0.
func ParseAmount(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return finiteAbs(v)
	case float32:
		return finiteAbs(float64(v))
	case int:
		return math.Abs(float64(v))
	case int64:
		return math.Abs(float64(v))
	case int32:
		return math.Abs(float64(v))
	case string:
		return parseAmountText(v)
	case []byte:
		return parseAmountText(string(v))
	default:
		return 0
	}
}

func finiteAbs(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Abs(v)
}

func parseAmountText(text string) float64 {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return 0
	}
	// "1.2.3" reads as 1.2: only the first decimal point counts.
	if first := strings.IndexByte(digits, '.'); first >= 0 {
		if next := strings.IndexByte(digits[first+1:], '.'); next >= 0 {
			digits = digits[:first+1+next]
		}
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	return finiteAbs(v)
}

// ParseCount reads a leading integer such as "3" or "3 hab", returning 0 when
// none is present.
func ParseCount(text string) int {
	trimmed := strings.TrimSpace(text)
	end := 0
	for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(trimmed[:end])
	if err != nil {
		return 0
	}
	return n
}
