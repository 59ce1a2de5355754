// Package cronexpr evaluates the 5-field cron subset used by schedules:
//
//	minute hour day-of-month month day-of-week
//
// Each field is either "*" or a comma-separated list of terms, where a term
// is a literal integer, an inclusive range "a-b", or a step "*/n" (matching
// when value % n == 0). Day-of-week additionally accepts 7 as an alias for
// 0 (Sunday).
//
// The package only answers membership questions ("does this value match the
// field", "does this expression fire on this date"). Computing the next fire
// instant is the job of the runtime cron library, not of this package.
package cronexpr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldBounds describes the valid value range of one cron field.
type fieldBounds struct {
	name string
	min  int
	max  int
}

var bounds = [5]fieldBounds{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7}, // 7 is accepted as Sunday
}

// MatchField reports whether value matches a single cron field.
// "*" matches anything; a list matches if any term matches.
// Malformed terms never match.
func MatchField(field string, value int) bool {
	field = strings.TrimSpace(field)
	if field == "*" {
		return true
	}
	for _, term := range strings.Split(field, ",") {
		if matchTerm(strings.TrimSpace(term), value) {
			return true
		}
	}
	return false
}

func matchTerm(term string, value int) bool {
	switch {
	case term == "*":
		return true
	case strings.HasPrefix(term, "*/"):
		n, err := strconv.Atoi(term[2:])
		return err == nil && n > 0 && value%n == 0
	case strings.Contains(term, "-"):
		lo, hi, ok := splitRange(term)
		return ok && value >= lo && value <= hi
	default:
		n, err := strconv.Atoi(term)
		return err == nil && n == value
	}
}

func splitRange(term string) (lo, hi int, ok bool) {
	parts := strings.SplitN(term, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err1 := strconv.Atoi(parts[0])
	hi, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// MatchDayOfWeek is MatchField for the day-of-week field, where crontabs
// commonly write Sunday as either 0 or 7.
func MatchDayOfWeek(field string, dow int) bool {
	if MatchField(field, dow) {
		return true
	}
	if dow == 0 {
		return MatchField(field, 7)
	}
	return false
}

// FiresOnDate reports whether the expression fires at some point on the
// given calendar day: the month, day-of-month and day-of-week fields must
// all match. Minute and hour are irrelevant at day granularity.
// Malformed expressions never fire.
func FiresOnDate(expr string, date time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	return MatchField(fields[3], int(date.Month())) &&
		MatchField(fields[2], date.Day()) &&
		MatchDayOfWeek(fields[4], int(date.Weekday()))
}

// Validate checks that expr is a well-formed 5-field expression within the
// supported subset and value bounds.
func Validate(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	for i, f := range fields {
		if err := validateField(f, bounds[i]); err != nil {
			return fmt.Errorf("%s: %w", bounds[i].name, err)
		}
	}
	return nil
}

func validateField(field string, b fieldBounds) error {
	if field == "*" {
		return nil
	}
	for _, term := range strings.Split(field, ",") {
		if err := validateTerm(strings.TrimSpace(term), b); err != nil {
			return err
		}
	}
	return nil
}

func validateTerm(term string, b fieldBounds) error {
	switch {
	case term == "":
		return fmt.Errorf("empty term")
	case term == "*":
		return nil
	case strings.HasPrefix(term, "*/"):
		n, err := strconv.Atoi(term[2:])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step %q", term)
		}
		return nil
	case strings.Contains(term, "-"):
		lo, hi, ok := splitRange(term)
		if !ok {
			return fmt.Errorf("invalid range %q", term)
		}
		if lo < b.min || hi > b.max || lo > hi {
			return fmt.Errorf("range %q out of bounds [%d-%d]", term, b.min, b.max)
		}
		return nil
	default:
		n, err := strconv.Atoi(term)
		if err != nil {
			return fmt.Errorf("invalid value %q", term)
		}
		if n < b.min || n > b.max {
			return fmt.Errorf("value %d out of bounds [%d-%d]", n, b.min, b.max)
		}
		return nil
	}
}

// NormalizeDOW rewrites day-of-week 7 to 0 so the expression is accepted by
// cron libraries that only allow 0-6. Ranges ending in 7 are split
// ("5-7" becomes "5-6,0"). Expressions that don't parse are returned as-is.
func NormalizeDOW(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return expr
	}
	terms := strings.Split(fields[4], ",")
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, normalizeDOWTerm(strings.TrimSpace(t)))
	}
	fields[4] = strings.Join(out, ",")
	return strings.Join(fields, " ")
}

func normalizeDOWTerm(term string) string {
	if term == "7" {
		return "0"
	}
	lo, hi, ok := splitRange(term)
	if !ok || hi != 7 {
		return term
	}
	switch {
	case lo == 7:
		return "0"
	case lo == 0:
		return "0-6"
	default:
		return fmt.Sprintf("%d-6,0", lo)
	}
}

// DisplayTime returns "HH:MM" when both the minute and hour fields are plain
// literals, which is the common shape for alarm expressions. The second
// return is false for anything more complex.
func DisplayTime(expr string) (string, bool) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return "", false
	}
	m, err1 := strconv.Atoi(fields[0])
	h, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}
