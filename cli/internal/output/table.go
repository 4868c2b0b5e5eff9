package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/zhaobenny/timeslice/internal/bucket"
	"github.com/zhaobenny/timeslice/internal/export"
)

const (
	compactThreshold = 80 // Terminal width below which compact mode kicks in
	defaultWidth     = 120
)

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
	Limit        int
}

func columnsEnv() (int, bool) {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		var width int
		if _, err := fmt.Sscanf(cols, "%d", &width); err == nil && width > 0 {
			return width, true
		}
	}
	return 0, false
}

// shouldUseCompact determines if compact mode should be used
func shouldUseCompact(opts TableOptions) bool {
	if opts.ForceCompact {
		return true
	}
	return terminalWidth() < compactThreshold
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	if n == 0 {
		return "0"
	}

	str := fmt.Sprintf("%d", n)
	negative := n < 0
	if negative {
		str = str[1:]
	}

	var result strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	if negative {
		return "-" + result.String()
	}
	return result.String()
}

// FormatHours renders seconds as hours with one decimal
func FormatHours(seconds int64) string {
	return fmt.Sprintf("%.1fh", float64(seconds)/3600)
}

// PrintTop prints the latest buckets of every time type. Year buckets hold
// seconds; every other type counts touched hours.
func PrintTop(w io.Writer, doc *export.Document, opts TableOptions) {
	compact := shouldUseCompact(opts)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if compact {
		fmt.Fprintln(tw, "Type\tBucket\tTotal")
	} else {
		fmt.Fprintln(tw, "Type\tBucket\tLabel\tTotal")
	}

	for _, tt := range bucket.TimeTypes {
		for _, v := range doc.ByTime.Top[tt.Name] {
			total := FormatNumber(v.TotalTime)
			if tt.Source == bucket.Raw {
				total = FormatHours(v.TotalTime)
			}
			if compact {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", tt.Name, v.TimeString, total)
			} else {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tt.Name, v.TimeString, v.OriginalTime, total)
			}
		}
	}
	tw.Flush()
}

// PrintTotals prints a totals map sorted by time spent, largest first
func PrintTotals(w io.Writer, title string, totals map[string]int64, opts TableOptions) {
	if len(totals) == 0 {
		fmt.Fprintln(w, "No totals found.")
		return
	}

	keys := make([]string, 0, len(totals))
	var sum int64
	for k, v := range totals {
		keys = append(keys, k)
		sum += v
	}
	sort.Slice(keys, func(i, j int) bool {
		if totals[keys[i]] != totals[keys[j]] {
			return totals[keys[i]] > totals[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if opts.Limit > 0 && len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
	}

	compact := shouldUseCompact(opts)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	if compact {
		fmt.Fprintf(tw, "%s\tHours\t\n", title)
	} else {
		fmt.Fprintf(tw, "%s\tHours\tSeconds\t\n", title)
	}
	for _, k := range keys {
		label := k
		if compact && len(label) > 24 {
			label = label[:23] + "…"
		}
		if compact {
			fmt.Fprintf(tw, "%s\t%s\t\n", label, FormatHours(totals[k]))
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", label, FormatHours(totals[k]), FormatNumber(totals[k]))
		}
	}
	if compact {
		fmt.Fprintf(tw, "Total\t%s\t\n", FormatHours(sum))
	} else {
		fmt.Fprintf(tw, "Total\t%s\t%s\t\n", FormatHours(sum), FormatNumber(sum))
	}
	tw.Flush()
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
