// Package datenorm canonicalises date and time field values extracted from
// spoken French.
//
// Every date field comes out as dd/mm/yyyy and every time field as HH:MM.
// A value that is empty or cannot be read is replaced by the reference date
// (or clock time); this is not reported as an error. All functions are pure.
package datenorm

import (
	"cmp"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/MrWong99/sitereport/internal/textfold"
)

// Canonical output layouts.
const (
	DateLayout = "02/01/2006"
	TimeLayout = "15:04"
)

var (
	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericDate = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})(?:[/.\-](\d{4}|\d{2}))?\b`)
	spelledDate = regexp.MustCompile(`\b(1er|premier|\d{1,2})\s+` +
		`(janvier|janv|fevrier|fevr|fev|mars|avril|avr|mai|juin|juillet|juil|aout|` +
		`septembre|sept|octobre|oct|novembre|nov|decembre|dec)\b\.?` +
		`(?:\s+(\d{4}))?`)
	clock = regexp.MustCompile(`\b(\d{1,2})\s*(?:h(?:eures?)?|:)\s*(\d{2})?\b`)
)

var months = map[string]time.Month{
	"janvier": time.January, "janv": time.January,
	"fevrier": time.February, "fevr": time.February, "fev": time.February,
	"mars":  time.March,
	"avril": time.April, "avr": time.April,
	"mai":     time.May,
	"juin":    time.June,
	"juillet": time.July, "juil": time.July,
	"aout":      time.August,
	"septembre": time.September, "sept": time.September,
	"octobre": time.October, "oct": time.October,
	"novembre": time.November, "nov": time.November,
	"decembre": time.December, "dec": time.December,
}

// Normalize returns a copy of fields in which every name listed in dateFields
// holds a canonical dd/mm/yyyy date. Unreadable or empty values become ref's
// date. Other fields are copied unchanged; no key is removed or renamed.
// A listed date field missing from fields is added with ref's date.
func Normalize(fields map[string]string, dateFields []string, ref time.Time) map[string]string {
	out := maps.Clone(fields)
	if out == nil {
		out = make(map[string]string, len(dateFields))
	}
	for _, name := range dateFields {
		d, ok := ParseDate(out[name], ref)
		if !ok {
			d = ref
		}
		out[name] = d.Format(DateLayout)
	}
	return out
}

// NormalizeTimes is the time-of-day counterpart of [Normalize]: listed fields
// become HH:MM, defaulting to ref's clock time.
func NormalizeTimes(fields map[string]string, timeFields []string, ref time.Time) map[string]string {
	out := maps.Clone(fields)
	if out == nil {
		out = make(map[string]string, len(timeFields))
	}
	for _, name := range timeFields {
		if hh, mm, ok := ParseTime(out[name]); ok {
			out[name] = fmt.Sprintf("%02d:%02d", hh, mm)
			continue
		}
		out[name] = ref.Format(TimeLayout)
	}
	return out
}

// ParseDate finds a date in value. Accepted forms:
//
//	12/11/2025, 12-11-2025, 12.11.2025   day/month/year
//	12/11/25                             two-digit year, read as 20yy
//	12/11                                no year, ref's year is used
//	2025-11-12                           ISO 8601
//	12 novembre 2025, 1er nov.           French month names, accents optional
//
// When several dates appear, one carrying a four-digit year wins over those
// without, so a stated year is never replaced by a stray "3.2" or "4-7"
// fragment. Otherwise the leftmost date wins. ok is false when no valid
// calendar date is found.
func ParseDate(value string, ref time.Time) (time.Time, bool) {
	s := textfold.Fold(value)
	if s == "" {
		return time.Time{}, false
	}

	var cands []candidate
	for _, loc := range isoDate.FindAllStringSubmatchIndex(s, -1) {
		g := groups(s, loc)
		if d, ok := build(atoi(g[1]), atoi(g[2]), atoi(g[3]), ref); ok {
			cands = append(cands, candidate{start: loc[0], stated: true, date: d})
		}
	}
	for _, loc := range numericDate.FindAllStringSubmatchIndex(s, -1) {
		g := groups(s, loc)
		year := ref.Year()
		switch len(g[3]) {
		case 4:
			year = atoi(g[3])
		case 2:
			year = 2000 + atoi(g[3])
		}
		if d, ok := build(year, atoi(g[2]), atoi(g[1]), ref); ok {
			cands = append(cands, candidate{start: loc[0], stated: len(g[3]) == 4, date: d})
		}
	}
	for _, loc := range spelledDate.FindAllStringSubmatchIndex(s, -1) {
		g := groups(s, loc)
		day := 1
		if g[1] != "1er" && g[1] != "premier" {
			day = atoi(g[1])
		}
		year := ref.Year()
		if g[3] != "" {
			year = atoi(g[3])
		}
		if d, ok := build(year, int(months[g[2]]), day, ref); ok {
			cands = append(cands, candidate{start: loc[0], stated: g[3] != "", date: d})
		}
	}
	if len(cands) == 0 {
		return time.Time{}, false
	}
	best := slices.MinFunc(cands, func(a, b candidate) int {
		if a.stated != b.stated {
			if a.stated {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.start, b.start)
	})
	return best.date, true
}

// candidate is one date found in a value, with its byte offset.
type candidate struct {
	start  int
	stated bool // carries a four-digit year
	date   time.Time
}

// groups turns a submatch index slice into strings; unmatched groups are "".
func groups(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

// ParseTime finds the first time of day in value ("14:30", "14h30", "14h",
// "14 heures").
func ParseTime(value string) (hour, minute int, ok bool) {
	m := clock.FindStringSubmatch(textfold.Fold(value))
	if m == nil {
		return 0, 0, false
	}
	hour = atoi(m[1])
	if m[2] != "" {
		minute = atoi(m[2])
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// build returns the date only if it exists in the calendar (no 31/02).
func build(year, month, day int, ref time.Time) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, ref.Location())
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
