package bucket

import (
	"errors"
	"fmt"
	"slices"
)

// Statistic is how the rows in one bucket are reduced to a value
type Statistic int

const (
	Count        Statistic = iota // number of rows
	ComplexCount                  // distinct dates and number of rows
	Sum                           // total duration in seconds
)

func (s Statistic) String() string {
	switch s {
	case Count:
		return "count"
	case ComplexCount:
		return "complexCount"
	case Sum:
		return "sum"
	}
	return fmt.Sprintf("Statistic(%d)", int(s))
}

// ErrUnknownSliceType is returned when a slice name is not in the catalogue
var ErrUnknownSliceType = errors.New("unknown slice type")

// SliceType names a nesting of bucket components paired with a statistic.
// Components run innermost first, so the last component is the outermost
// level of the histogram.
type SliceType struct {
	Name       string
	Components []Component
	Statistic  Statistic
}

// Nesting returns the components outermost first, the order keys appear in
// a histogram path.
func (s SliceType) Nesting() []Component {
	out := slices.Clone(s.Components)
	slices.Reverse(out)
	return out
}

// Depth is the number of nested levels in the slice's histogram
func (s SliceType) Depth() int {
	return len(s.Components)
}

// Inner is the component keyed at the leaves
func (s SliceType) Inner() Component {
	return s.Components[0]
}

// Has reports whether the slice is keyed by c at any level
func (s SliceType) Has(c Component) bool {
	return slices.Contains(s.Components, c)
}

func slice(name string, stat Statistic, components ...Component) SliceType {
	return SliceType{Name: name, Components: components, Statistic: stat}
}

// SliceTypes is the closed catalogue of histogram slices
var SliceTypes = []SliceType{
	slice("hourCount", Count, Hour),
	slice("hourDayCount", Count, Hour, Weekday),
	slice("hourMonthCount", Count, Hour, Month),
	slice("hourYearCount", Count, Hour, Year),
	slice("hourDayMonthCount", Count, Hour, Weekday, Month),
	slice("hourDayYearCount", Count, Hour, Weekday, Year),
	slice("hourMonthYearCount", Count, Hour, Month, Year),
	slice("hourDayMonthYearCount", Count, Hour, Weekday, Month, Year),
	slice("dayCount", ComplexCount, Weekday),
	slice("dayYearCount", ComplexCount, Weekday, Year),
	slice("dayMonthCount", ComplexCount, Weekday, Month),
	slice("dayMonthYearCount", ComplexCount, Weekday, Month, Year),
	slice("monthCount", ComplexCount, Month),
	slice("monthYearCount", ComplexCount, Month, Year),
	slice("yearCount", ComplexCount, Year),
	slice("yearSum", Sum, Year),
}

// LookupSlice finds a slice type by name
func LookupSlice(name string) (SliceType, error) {
	for _, st := range SliceTypes {
		if st.Name == name {
			return st, nil
		}
	}
	return SliceType{}, fmt.Errorf("%w: %q", ErrUnknownSliceType, name)
}

// Source is the row set a time type is computed from
type Source int

const (
	Expanded Source = iota // one row per touched hour, counted
	Raw                    // one row per entry, durations summed
)

// Part is one piece of a time label: a component value or a literal separator
type Part struct {
	Component Component
	Literal   string
}

// TimeType names a calendar-only bucketing used for the byTime section
type TimeType struct {
	Name   string
	Parts  []Part
	Source Source
}

// Components returns the components the label is built from, in label order
func (t TimeType) Components() []Component {
	var out []Component
	for _, p := range t.Parts {
		if p.Literal == "" {
			out = append(out, p.Component)
		}
	}
	return out
}

func timeType(name string, source Source, parts ...any) TimeType {
	tt := TimeType{Name: name, Source: source}
	for _, p := range parts {
		switch v := p.(type) {
		case Component:
			tt.Parts = append(tt.Parts, Part{Component: v})
		case string:
			tt.Parts = append(tt.Parts, Part{Literal: v})
		}
	}
	return tt
}

// TimeTypes is the closed catalogue of byTime buckets
var TimeTypes = []TimeType{
	timeType("hour", Expanded, Hour),
	timeType("hourYear", Expanded, Year, "_", Hour),
	timeType("hourMonth", Expanded, Month, "_", Hour),
	timeType("hourMonthYear", Expanded, Year, "-", Month, "_", Hour),
	timeType("hourDay", Expanded, Weekday, "_", Hour),
	timeType("hourDayYear", Expanded, Year, "_", Weekday, "_", Hour),
	timeType("hourDayMonth", Expanded, Month, "_", Weekday, "_", Hour),
	timeType("hourDayMonthYear", Expanded, Year, "-", Month, "_", Weekday, "_", Hour),
	timeType("date", Expanded, Date),
	timeType("day", Expanded, Weekday),
	timeType("dayYear", Expanded, Year, "_", Weekday),
	timeType("dayMonth", Expanded, Month, "_", Weekday),
	timeType("dayMonthYear", Expanded, Year, "-", Month, "_", Weekday),
	timeType("month", Expanded, Month),
	timeType("monthYear", Expanded, Year, "-", Month),
	timeType("week", Expanded, Week, "_", Year),
	timeType("weekMonth", Expanded, Month, "_", WeekOfMonth),
	timeType("year", Raw, Year),
}

// LookupTimeType finds a time type by name
func LookupTimeType(name string) (TimeType, bool) {
	for _, tt := range TimeTypes {
		if tt.Name == name {
			return tt, true
		}
	}
	return TimeType{}, false
}
