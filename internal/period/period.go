// Package period resolves reporting date ranges and formats dates for display.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and CSV date format.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for dates or ranges that cannot be used.
var ErrInvalidDate = errors.New("invalid date")

// Period is an inclusive range of calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: please use YYYY-MM-DD format", ErrInvalidDate, s)
	}
	return t, nil
}

// Between builds a period from two YYYY-MM-DD dates.
func Between(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	if e.Before(s) {
		return Period{}, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidDate, end, start)
	}
	return Period{Start: s, End: e}, nil
}

// Month returns the period covering a whole calendar month.
func Month(year, month int) (Period, error) {
	return Months(year, month, month)
}

// Months returns the period from the first day of startMonth to the last
// day of endMonth within one year.
func Months(year, startMonth, endMonth int) (Period, error) {
	if startMonth < 1 || startMonth > 12 || endMonth < 1 || endMonth > 12 {
		return Period{}, fmt.Errorf("%w: months must be between 1-12", ErrInvalidDate)
	}
	if startMonth > endMonth {
		return Period{}, fmt.Errorf("%w: start month must be <= end month", ErrInvalidDate)
	}
	if year < 1 {
		return Period{}, fmt.Errorf("%w: year must be positive", ErrInvalidDate)
	}

	start := time.Date(year, time.Month(startMonth), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.Month(endMonth)+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return Period{Start: start, End: end}, nil
}

// CurrentMonth returns the calendar month containing now.
func CurrentMonth(now time.Time) Period {
	p, _ := Month(now.Year(), int(now.Month()))
	return p
}

// StartDate returns the start as YYYY-MM-DD.
func (p Period) StartDate() string {
	return p.Start.Format(DateLayout)
}

// EndDate returns the end as YYYY-MM-DD.
func (p Period) EndDate() string {
	return p.End.Format(DateLayout)
}

// Days returns the number of days in the period.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// IsSingleMonth reports whether the period is exactly one calendar month.
func (p Period) IsSingleMonth() bool {
	m, err := Month(p.Start.Year(), int(p.Start.Month()))
	return err == nil && m.Start.Equal(p.Start) && m.End.Equal(p.End)
}

// Label is the period part of report file names.
func (p Period) Label() string {
	if p.IsSingleMonth() {
		return fmt.Sprintf("%s_%d", strings.ToLower(p.Start.Month().String()), p.Start.Year())
	}
	return strings.ReplaceAll(p.StartDate(), "-", "") + "_to_" + strings.ReplaceAll(p.EndDate(), "-", "")
}

// MonthSpanLabel is the period part of monthly report file names (YYYYMM_to_YYYYMM).
func (p Period) MonthSpanLabel() string {
	return p.Start.Format("200601") + "_to_" + p.End.Format("200601")
}

// Title is the heading shown above console summaries.
func (p Period) Title() string {
	if p.IsSingleMonth() {
		return strings.ToUpper(p.Start.Format("January 2006"))
	}
	return p.StartDate() + " to " + p.EndDate()
}

// String implements fmt.Stringer.
func (p Period) String() string {
	return p.StartDate() + " to " + p.EndDate()
}

// NormalizeDate turns an API date (YYYY-MM-DD or an RFC3339 timestamp) into
// YYYY-MM-DD. Unparseable input is returned trimmed.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(DateLayout, s); err == nil {
		return s
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(DateLayout)
	}
	if len(s) > len(DateLayout) {
		if _, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return s[:len(DateLayout)]
		}
	}
	return s
}

// MonthKey returns the YYYY-MM part of a YYYY-MM-DD date.
func MonthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// FormatDay renders a YYYY-MM-DD date as "September 01, 2025".
func FormatDay(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("January 02, 2006")
}

// FormatMonth renders a YYYY-MM month as "September 2025".
func FormatMonth(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month
	}
	return t.Format("January 2006")
}
