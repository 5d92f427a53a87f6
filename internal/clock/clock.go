package clock

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DayLayout is the calendar-day format used for streak bookkeeping
const DayLayout = "2006-01-02"

// Clock supplies the current instant. Engine code never calls time.Now directly.
type Clock interface {
	Now() time.Time
}

// System is the wall clock
type System struct{}

// Now returns the current time
func (System) Now() time.Time {
	return time.Now()
}

// Fixed is a clock frozen at a single instant, used by tests and batch jobs
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant
func (f Fixed) Now() time.Time {
	return f.T
}

// Day is a calendar date in YYYY-MM-DD form. The zero value means "no date".
type Day string

// ParseDay validates s and returns it as a Day
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(DayLayout, s); err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day(s), nil
}

// IsZero reports whether the day is unset
func (d Day) IsZero() bool {
	return d == ""
}

// String returns the YYYY-MM-DD form
func (d Day) String() string {
	return string(d)
}

// midnight returns the day as UTC midnight
func (d Day) midnight() (time.Time, error) {
	return time.Parse(DayLayout, string(d))
}

// AddDays returns the day n calendar days later (n may be negative)
func (d Day) AddDays(n int) Day {
	t, err := d.midnight()
	if err != nil {
		return d
	}
	return Day(t.AddDate(0, 0, n).Format(DayLayout))
}

// MarshalJSON encodes the zero day as null
func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON accepts null or a YYYY-MM-DD string
func (d *Day) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = ""
		return nil
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the number of whole calendar days from one day to another.
// Both days are interpreted as UTC midnights so DST transitions never skew the count.
func DaysBetween(from, to Day) (int, error) {
	a, err := from.midnight()
	if err != nil {
		return 0, err
	}
	b, err := to.midnight()
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a).Hours() / 24), nil
}

// Boundary defines where one day ends and the next begins for a deployment
type Boundary struct {
	loc *time.Location
}

// NewBoundary creates a boundary for the given location (nil means UTC)
func NewBoundary(loc *time.Location) Boundary {
	if loc == nil {
		loc = time.UTC
	}
	return Boundary{loc: loc}
}

// LoadBoundary resolves a location name ("UTC", "Local" or an IANA zone)
func LoadBoundary(name string) (Boundary, error) {
	switch strings.TrimSpace(name) {
	case "", "UTC", "utc":
		return NewBoundary(time.UTC), nil
	case "Local", "local":
		return NewBoundary(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Boundary{}, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return NewBoundary(loc), nil
}

// Location returns the boundary's location
func (b Boundary) Location() *time.Location {
	if b.loc == nil {
		return time.UTC
	}
	return b.loc
}

// Day returns the calendar day containing t
func (b Boundary) Day(t time.Time) Day {
	return Day(t.In(b.Location()).Format(DayLayout))
}

// Hour returns the local hour of t (0-23)
func (b Boundary) Hour(t time.Time) int {
	return t.In(b.Location()).Hour()
}

// SameMonth reports whether both instants fall in the same calendar month (year and month)
func (b Boundary) SameMonth(x, y time.Time) bool {
	xy, xm, _ := x.In(b.Location()).Date()
	yy, ym, _ := y.In(b.Location()).Date()
	return xy == yy && xm == ym
}

// MonthStart returns the first instant of the calendar month containing t
func (b Boundary) MonthStart(t time.Time) time.Time {
	local := t.In(b.Location())
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, b.Location())
}
