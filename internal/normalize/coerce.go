package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const dateFormat = "2006-01-02"

// dateLayouts are tried in order when coercing a string date. The provider
// sends plain ISO dates; spreadsheets show up with anything.
var dateLayouts = []string{
	dateFormat,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02 Jan 2006",
}

// CoerceAmount converts an amount-like value into a non-negative magnitude.
// Strings are cleaned of currency symbols and thousands separators before
// parsing. The second return value reports whether the input was parseable;
// on failure the amount is 0.
func CoerceAmount(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return math.Abs(val), true
	case float32:
		return math.Abs(float64(val)), true
	case int:
		return math.Abs(float64(val)), true
	case int64:
		return math.Abs(float64(val)), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return math.Abs(f), true
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(val))
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return math.Abs(f), true
	default:
		return 0, false
	}
}

// CoerceDate converts a date-like value into an ISO YYYY-MM-DD string.
// Native time values pass through; strings are parsed against a list of
// known layouts. On failure it falls back to now's date and reports false —
// a bad date never aborts a batch.
func CoerceDate(v any, now time.Time) (string, bool) {
	switch val := v.(type) {
	case time.Time:
		return val.Format(dateFormat), true
	case *time.Time:
		if val != nil {
			return val.Format(dateFormat), true
		}
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(dateFormat), true
			}
		}
	}
	return now.Format(dateFormat), false
}
