// Package bucket describes the time buckets entries are aggregated into
// and the nested histograms that hold the results.
package bucket

import (
	"fmt"
	"time"
)

// Component is one calendar field a bucket key can be built from
type Component int

const (
	Hour        Component = iota // hour of day, "00".."23"
	Weekday                      // day of week, "0".."6", Sunday = 0
	Month                        // month of year, "01".."12"
	Year                         // four-digit year
	Date                         // calendar date, "2006-01-02"
	Week                         // Monday-based week of year, "00".."53"
	WeekOfMonth                  // day of month / 7, "0".."4"
)

var componentNames = map[Component]string{
	Hour:        "hour",
	Weekday:     "day",
	Month:       "month",
	Year:        "year",
	Date:        "date",
	Week:        "week",
	WeekOfMonth: "weekMonth",
}

func (c Component) String() string {
	if name, ok := componentNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Component(%d)", int(c))
}

// Components lists every component, in declaration order
var Components = []Component{Hour, Weekday, Month, Year, Date, Week, WeekOfMonth}

// Label formats t's value for this component. t must already be in the
// observer's location.
func (c Component) Label(t time.Time) string {
	switch c {
	case Hour:
		return fmt.Sprintf("%02d", t.Hour())
	case Weekday:
		return fmt.Sprintf("%d", int(t.Weekday()))
	case Month:
		return fmt.Sprintf("%02d", int(t.Month()))
	case Year:
		return fmt.Sprintf("%04d", t.Year())
	case Date:
		return t.Format("2006-01-02")
	case Week:
		return fmt.Sprintf("%02d", mondayWeek(t))
	case WeekOfMonth:
		return fmt.Sprintf("%d", t.Day()/7)
	}
	return ""
}

// Keys returns the fixed ordered key list for components with a closed domain.
// Year, Date and Week depend on the data and return nil.
func (c Component) Keys() []string {
	var n, start int
	format := "%d"
	switch c {
	case Hour:
		n, format = 24, "%02d"
	case Weekday:
		n = 7
	case Month:
		n, start, format = 12, 1, "%02d"
	case WeekOfMonth:
		n = 5
	default:
		return nil
	}
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf(format, start+i)
	}
	return keys
}

// mondayWeek returns the week of the year where weeks start on Monday and
// days before the first Monday fall in week 0.
func mondayWeek(t time.Time) int {
	yday := t.YearDay() - 1
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	return (yday + 7 - daysSinceMonday) / 7
}
