package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Number parses a locale-ambiguous numeric cell. Everything except digits,
// '.', ',' and '-' is stripped first (currency symbols, spaces, percent signs).
//
// Separator rules, best effort:
//   - both '.' and ',' present: the one appearing last is the decimal point
//     ("1.234,56" and "1,234.56" are both 1234.56)
//   - only ',' present: it is the decimal point ("10,5" is 10.5)
//   - a separator that occurs more than once can only be a thousands
//     separator ("1.234.567", "1,234,567")
//
// Empty or unparseable input returns ok=false, never a zero value: callers
// distinguish a missing metric from a real zero.
func Number(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return 0, false
	}

	dots := strings.Count(clean, ".")
	commas := strings.Count(clean, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(clean, ",") > strings.LastIndex(clean, ".") {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.ReplaceAll(clean, ",", ".")
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case commas > 1:
		clean = strings.ReplaceAll(clean, ",", "")
	case commas == 1:
		clean = strings.ReplaceAll(clean, ",", ".")
	case dots > 1:
		clean = strings.ReplaceAll(clean, ".", "")
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"2006/01/02 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006",
	"2-1-2006",
	"02-01-2006 15:04",
	"02.01.2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
}

// Indonesian month names and abbreviations mapped onto Go's English forms.
var idMonths = map[string]string{
	"januari":   "Jan",
	"februari":  "Feb",
	"pebruari":  "Feb",
	"maret":     "Mar",
	"mei":       "May",
	"juni":      "Jun",
	"juli":      "Jul",
	"agustus":   "Aug",
	"agu":       "Aug",
	"agt":       "Aug",
	"oktober":   "Oct",
	"okt":       "Oct",
	"desember":  "Dec",
	"des":       "Dec",
	"nopember":  "Nov",
	"september": "Sep",
	"november":  "Nov",
	"april":     "Apr",
}

var letterRun = regexp.MustCompile(`\p{L}+`)

// Excel stores dates as days since 1899-12-30; accept serials from 1954 to 2119.
const (
	excelSerialMin = 20000
	excelSerialMax = 80000
)

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Date parses a date cell into a UTC calendar day. Day-first forms are
// preferred for slash and dash dates since Indonesian exports write them
// that way. Unparseable input returns ok=false.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if len(s) == 8 {
			if t, err := time.Parse("20060102", s); err == nil {
				return Day(t), true
			}
		}
		if serial >= excelSerialMin && serial < excelSerialMax {
			return Day(excelEpoch.AddDate(0, 0, int(serial))), true
		}
		return time.Time{}, false
	}

	s = letterRun.ReplaceAllStringFunc(s, func(word string) string {
		if en, ok := idMonths[strings.ToLower(word)]; ok {
			return en
		}
		return word
	})

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to midnight UTC of the calendar day it names in its own zone.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Value normalizes a raw cell either as a date or as a number. The returned
// value is a time.Time or a float64; ok=false means missing, not zero.
func Value(raw string, isDate bool) (any, bool) {
	if isDate {
		t, ok := Date(raw)
		if !ok {
			return nil, false
		}
		return t, true
	}
	v, ok := Number(raw)
	if !ok {
		return nil, false
	}
	return v, true
}
