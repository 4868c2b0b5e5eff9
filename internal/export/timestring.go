package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zhaobenny/timeslice/internal/bucket"
)

// TimeString renders a byTime label for people, e.g. hour "14" as "2 pm" or
// monthYear "2022-03" as "March in 2022". Labels that don't parse are
// returned unchanged.
func TimeString(timeType, label string) string {
	tt, ok := bucket.LookupTimeType(timeType)
	if !ok {
		return label
	}
	values, ok := splitLabel(tt, label)
	if !ok {
		return label
	}

	switch tt.Name {
	case "year":
		return label
	case "date":
		d, err := time.Parse("2006-01-02", values[bucket.Date])
		if err != nil {
			return label
		}
		return fmt.Sprintf("%s, %s %s, %d", d.Weekday(), d.Month(), ordinal(d.Day()), d.Year())
	case "week":
		week, err := strconv.Atoi(values[bucket.Week])
		if err != nil {
			return label
		}
		return fmt.Sprintf("%s week of %s", ordinal(week+1), values[bucket.Year])
	case "weekMonth":
		week, err := strconv.Atoi(values[bucket.WeekOfMonth])
		month, ok := monthName(values[bucket.Month])
		if err != nil || !ok {
			return label
		}
		return fmt.Sprintf("%s week of %ss", ordinal(week+1), month)
	case "month":
		if month, ok := monthName(values[bucket.Month]); ok {
			return month
		}
		return label
	case "monthYear":
		if month, ok := monthName(values[bucket.Month]); ok {
			return fmt.Sprintf("%s in %s", month, values[bucket.Year])
		}
		return label
	case "day":
		if day, ok := dayName(values[bucket.Weekday]); ok {
			return day
		}
		return label
	}

	return composite(values, label)
}

// composite handles the hour and weekday types narrowed by month and year
func composite(values map[bucket.Component]string, label string) string {
	var b strings.Builder

	if d, ok := values[bucket.Weekday]; ok {
		day, ok := dayName(d)
		if !ok {
			return label
		}
		b.WriteString(day + "s")
	}
	if h, ok := values[bucket.Hour]; ok {
		hour, ok := hourName(h)
		if !ok {
			return label
		}
		if b.Len() > 0 {
			b.WriteString(" at ")
		}
		b.WriteString(hour)
	}

	m, hasMonth := values[bucket.Month]
	y, hasYear := values[bucket.Year]
	switch {
	case hasMonth:
		month, ok := monthName(m)
		if !ok {
			return label
		}
		if hasYear {
			fmt.Fprintf(&b, " in %s %s", month, y)
		} else {
			fmt.Fprintf(&b, " in %ss", month)
		}
	case hasYear:
		fmt.Fprintf(&b, " in %s", y)
	}
	return b.String()
}

// splitLabel breaks a label into its component values using the time type's
// literal separators
func splitLabel(tt bucket.TimeType, label string) (map[bucket.Component]string, bool) {
	values := make(map[bucket.Component]string)
	rest := label
	for i, p := range tt.Parts {
		if p.Literal != "" {
			if !strings.HasPrefix(rest, p.Literal) {
				return nil, false
			}
			rest = rest[len(p.Literal):]
			continue
		}

		end := len(rest)
		if i+1 < len(tt.Parts) {
			end = strings.Index(rest, tt.Parts[i+1].Literal)
			if end < 0 {
				return nil, false
			}
		}
		values[p.Component] = rest[:end]
		rest = rest[end:]
	}
	return values, rest == ""
}

func hourName(s string) (string, bool) {
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return "", false
	}
	switch h {
	case 0:
		return "12 midnight", true
	case 12:
		return "12 noon", true
	}
	if h < 12 {
		return fmt.Sprintf("%d am", h), true
	}
	return fmt.Sprintf("%d pm", h-12), true
}

func dayName(s string) (string, bool) {
	d, err := strconv.Atoi(s)
	if err != nil || d < 0 || d > 6 {
		return "", false
	}
	return time.Weekday(d).String(), true
}

func monthName(s string) (string, bool) {
	m, err := strconv.Atoi(s)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	return time.Month(m).String(), true
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
