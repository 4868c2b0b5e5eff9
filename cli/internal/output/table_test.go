package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/zhaobenny/timeslice/internal/export"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{5400, "5,400"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	if got := FormatHours(5400); got != "1.5h" {
		t.Errorf("FormatHours(5400) = %q, want %q", got, "1.5h")
	}
}

func TestPrintTotalsSortsAndLimits(t *testing.T) {
	totals := map[string]int64{"b": 3600, "a": 7200, "c": 1800}
	var buf bytes.Buffer
	PrintTotals(&buf, "Project", totals, TableOptions{Limit: 2})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "a") || !strings.Contains(lines[2], "b") {
		t.Errorf("rows not sorted by total:\n%s", buf.String())
	}
	if !strings.Contains(lines[3], "3.5h") {
		t.Errorf("total row = %q, want the full 3.5h", lines[3])
	}
}

func TestPrintTop(t *testing.T) {
	doc := export.New()
	doc.ByTime.Top["hour"] = []export.TimeValue{{TotalTime: 4, TimeString: "9 am", OriginalTime: "09"}}
	doc.ByTime.Top["year"] = []export.TimeValue{{TotalTime: 5400, TimeString: "2022", OriginalTime: "2022"}}

	var buf bytes.Buffer
	PrintTop(&buf, doc, TableOptions{ForceCompact: true})

	out := buf.String()
	if !strings.Contains(out, "9 am") {
		t.Errorf("output missing hour bucket:\n%s", out)
	}
	if !strings.Contains(out, "1.5h") {
		t.Errorf("year total not shown in hours:\n%s", out)
	}
}
