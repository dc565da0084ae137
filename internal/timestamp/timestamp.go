// Package timestamp turns the heterogeneous "posted at" cells of the source
// feeds into instants in the ledger's civil zone.
package timestamp

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Spreadsheet serial day 0.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// 9999-12-31 as a serial; anything larger is not a plausible date.
const maxSerial = 2958466

var (
	jaDate     = regexp.MustCompile(`(\d{2,4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	jaTime     = regexp.MustCompile(`(\d{1,2})\s*時\s*(\d{1,2})\s*分(?:\s*(\d{1,2})\s*秒)?`)
	jaMonthDay = regexp.MustCompile(`(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	jaWeekday  = regexp.MustCompile(`[（(][月火水木金土日][）)]`)
	dmy        = regexp.MustCompile(`^(\d{1,2})([/.-])(\d{1,2})([/.-]\d{2,4}.*)$`)
	dotted     = regexp.MustCompile(`\b(\d{4})\.(\d{1,2})\.(\d{1,2})\b`)
	yearless   = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})(\s|$)`)

	// A date, optionally followed by a time, somewhere inside prose.
	embedded = regexp.MustCompile(`(?:\d{4}[/.-]\d{1,2}[/.-]\d{1,2}|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{1,2}/\d{1,2})(?:[ T]+\d{1,2}:\d{2}(?::\d{2})?)?`)
)

// Parse converts a raw cell to an instant in loc. The bool is false when the
// value is empty or cannot be understood; callers skip such rows.
//
// Numbers (or numeric text) are serial day counts from 1899-12-30 UTC.
// Text without zone information is read as wall time in loc; text with a zone
// is converted to loc. Dates without a year take the current year in loc.
func Parse(raw any, loc *time.Location) (time.Time, bool) {
	return ParseAt(raw, loc, time.Now())
}

// ParseAt is Parse with the reference instant used to complete dates that
// carry no year.
func ParseAt(raw any, loc *time.Location, now time.Time) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.In(loc), true
	case float64:
		return fromSerial(v, loc)
	case float32:
		return fromSerial(float64(v), loc)
	case int:
		return fromSerial(float64(v), loc)
	case int64:
		return fromSerial(float64(v), loc)
	case string:
		return parseText(v, loc, now)
	default:
		return parseText(fmt.Sprint(v), loc, now)
	}
}

func parseText(s string, loc *time.Location, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if t, ok := fromSerial(serial, loc); ok {
			return t, true
		}
	}

	s = normalizeJapanese(s)
	if t, ok := parseDate(s, loc, now); ok {
		return t, true
	}

	// Fuzzy pass: the longest date-like run inside surrounding text.
	candidates := embedded.FindAllString(s, -1)
	slices.SortStableFunc(candidates, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	for _, c := range candidates {
		if t, ok := parseDate(c, loc, now); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDate(s string, loc *time.Location, now time.Time) (time.Time, bool) {
	s = dotted.ReplaceAllString(s, "$1/$2/$3")
	if yearless.MatchString(s) {
		s = yearless.ReplaceAllString(s, strconv.Itoa(now.In(loc).Year())+"/$1/$2$3")
	}
	if t, err := dateparse.ParseIn(s, loc); err == nil {
		return t.In(loc), true
	}
	// dateparse reads n/n/yyyy month first; retry day first.
	if m := dmy.FindStringSubmatch(s); m != nil {
		swapped := m[3] + m[2] + m[1] + m[4]
		if t, err := dateparse.ParseIn(swapped, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

func fromSerial(serial float64, loc *time.Location) (time.Time, bool) {
	if !(serial >= 0 && serial < maxSerial) {
		return time.Time{}, false
	}
	micros := math.Round(serial * 24 * float64(time.Hour/time.Microsecond))
	return serialEpoch.Add(time.Duration(micros) * time.Microsecond).In(loc), true
}

// normalizeJapanese rewrites "2025年8月20日(水) 15時01分" as "2025/8/20 15:01"
// and "8月20日" as "8/20".
func normalizeJapanese(s string) string {
	if !strings.ContainsAny(s, "年月時") {
		return s
	}
	s = jaWeekday.ReplaceAllString(s, "")
	s = jaDate.ReplaceAllString(s, "$1/$2/$3")
	s = jaMonthDay.ReplaceAllString(s, "$1/$2")
	s = jaTime.ReplaceAllStringFunc(s, func(m string) string {
		p := jaTime.FindStringSubmatch(m)
		if p[3] != "" {
			return fmt.Sprintf("%s:%s:%s", p[1], pad2(p[2]), pad2(p[3]))
		}
		return fmt.Sprintf("%s:%s", p[1], pad2(p[2]))
	})
	return strings.Join(strings.Fields(s), " ")
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// Format renders t as "YY/M/D HH:MM" with unpadded month and day,
// e.g. 2025-08-20T15:01 -> "25/8/20 15:01".
func Format(t time.Time) string {
	return fmt.Sprintf("%02d/%d/%d %02d:%02d", t.Year()%100, int(t.Month()), t.Day(), t.Hour(), t.Minute())
}
