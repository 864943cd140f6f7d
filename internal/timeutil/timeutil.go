/*
Package timeutil provides the day-granularity date type shared by the pricing
and claims engines, plus the age and period arithmetic both engines need.

PURPOSE:
  Every date in this domain — date of birth, coverage window, service date,
  admission/discharge — is a calendar day, never a timestamp. Age and period
  math must be computed from these dates directly; §12 of SPEC_FULL.md
  requires every age filter to be expressed as a DOB-range predicate rather
  than a derived/stored age column, so AgeAt and DOBRangeForAgeBand below are
  the only places age is computed.

SEE ALSO:
  - internal/money: the matching decimal package for monetary values.
*/
package timeutil

import "time"

// Date is a calendar day with no time-of-day component.
type Date struct {
	t time.Time
}

// NewDate builds a Date from a calendar year/month/day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates a time.Time to its calendar day.
func FromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) Time() time.Time { return d.t }
func (d Date) IsZero() bool    { return d.t.IsZero() }

func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return d.Before(o) || d.Equal(o) }
func (d Date) AfterOrEqual(o Date) bool  { return d.After(o) || d.Equal(o) }

func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{t: d.t.AddDate(n, 0, 0)} }

func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }

func (d Date) String() string { return d.t.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	*d = NewDate(parsed.Year(), parsed.Month(), parsed.Day())
	return nil
}

// DaysBetween returns the number of days from `from` to `to` (negative if to
// precedes from).
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// StartOfYear and EndOfYear bound an accumulator's annual period.
func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }

// AgeAt computes a person's age in whole years as of asOf, given their date
// of birth. This is the ONLY place age is derived — it must never be stored
// or queried as a column (§12).
func AgeAt(dob, asOf Date) int {
	age := asOf.Year() - dob.Year()
	if asOf.Month() < dob.Month() || (asOf.Month() == dob.Month() && asOf.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// DOBRangeForAgeBand returns the inclusive [minDOB, maxDOB] date-of-birth
// range that corresponds to an inclusive age band [ageFrom, ageTo] as of
// asOf. A member's DOB falling in this range has an age in [ageFrom, ageTo]
// as of asOf. This is how every "members aged X to Y" filter in the pricing
// engine is expressed — as a DOB range, never as a derived age comparison.
func DOBRangeForAgeBand(ageFrom, ageTo int, asOf Date) (minDOB, maxDOB Date) {
	// Oldest allowed (age = ageTo) was born earliest; youngest allowed DOB
	// (age = ageFrom) was born latest.
	minDOB = asOf.AddYears(-(ageTo + 1)).AddDays(1)
	maxDOB = asOf.AddYears(-ageFrom)
	return minDOB, maxDOB
}
