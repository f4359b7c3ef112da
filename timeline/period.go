package timeline

import "fmt"

// =============================================================================
// PERIOD - Closed date interval [Start, End]
// =============================================================================

// Period is a closed interval of calendar days. Invariant: Start <= End.
// Use NewPeriod to get the invariant checked.
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func NewPeriod(start, end Date) (Period, error) {
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: %s..%s", ErrInvalidPeriod, start, end)
	}
	return Period{Start: start, End: end}, nil
}

// MustPeriod is for literals in tests and config where the bounds are static.
func MustPeriod(start, end Date) Period {
	p, err := NewPeriod(start, end)
	if err != nil {
		panic(err)
	}
	return p
}

// Contains reports whether the day falls inside the period.
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// ContainsPeriod reports whether other lies entirely inside p.
func (p Period) ContainsPeriod(other Period) bool {
	return p.Contains(other.Start) && p.Contains(other.End)
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return !p.End.Before(other.Start) && !other.End.Before(p.Start)
}

// Adjacent reports whether other starts the day after p ends or vice versa.
func (p Period) Adjacent(other Period) bool {
	return p.End.AddDays(1).Equal(other.Start) || other.End.AddDays(1).Equal(p.Start)
}

// GapTo returns the number of whole days strictly between the two periods.
// Zero for overlapping or adjacent periods.
func (p Period) GapTo(other Period) int {
	switch {
	case p.Overlaps(other) || p.Adjacent(other):
		return 0
	case p.End.Before(other.Start):
		return DaysBetween(p.End, other.Start) - 1
	default:
		return DaysBetween(other.End, p.Start) - 1
	}
}

// Extend widens the period just enough to cover other.
func (p Period) Extend(other Period) Period {
	return Period{Start: MinDate(p.Start, other.Start), End: MaxDate(p.End, other.End)}
}

// Days returns every day in the period in order.
func (p Period) Days() []Date {
	var days []Date
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Length is the number of calendar days in the period.
func (p Period) Length() int {
	return DaysBetween(p.Start, p.End) + 1
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
