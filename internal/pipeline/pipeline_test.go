package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/zhaobenny/timeslice/internal/bucket"
	"github.com/zhaobenny/timeslice/internal/config"
	"github.com/zhaobenny/timeslice/internal/database"
	"github.com/zhaobenny/timeslice/internal/model"
	"github.com/zhaobenny/timeslice/internal/parser"
)

var testLoc = time.FixedZone("PDT", -7*3600)

const csvHeader = "User,Email,Client,Project,Task,Description,Billable,Start date,Start time,End date,End time,Duration,Tags,Amount ()\n"

func csvRow(project, description, start, end string) string {
	s := strings.SplitN(start, " ", 2)
	e := strings.SplitN(end, " ", 2)
	return strings.Join([]string{
		"me", "me@example.com", "", project, "", description, "No",
		s[0], s[1], e[0], e[1], "", "", "",
	}, ",") + "\n"
}

func writeSource(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(csvHeader+strings.Join(rows, "")), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunCapstoneScenario(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "Toggl_time_entries_2022-01-01_to_2022-12-31.csv",
		csvRow("CS 461 Capstone", "Homwork", "2022-04-04 09:00:00", "2022-04-04 10:30:00"),
	)

	doc, report, err := Run(context.Background(), openDB(t), Options{
		Sources:  []string{source},
		Location: testLoc,
		Workers:  2,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Entries != 1 || report.ExpandedRows != 2 {
		t.Errorf("report entries/expanded = %d/%d, want 1/2", report.Entries, report.ExpandedRows)
	}
	if report.Orphaned() != 0 {
		t.Errorf("Orphaned() = %d, want 0", report.Orphaned())
	}
	if report.RunID == "" {
		t.Error("RunID is empty")
	}

	if got := doc.ByGroup.Totals["CS 461 Capstone|Homework"]; got != 5400 {
		t.Errorf("byGroup.totals[CS 461 Capstone|Homework] = %d, want 5400", got)
	}

	entry := doc.ByGroup.All["CS 461 Capstone"]["Homework"]
	if entry == nil {
		t.Fatal("byGroup entry for the cleaned description is missing")
	}
	for _, tag := range []model.Tag{model.TagSchool, model.TagCompost} {
		if !slices.Contains(entry.Type, tag) {
			t.Errorf("tags %v do not include %s", entry.Type, tag)
		}
	}
	if entry.Project != "CS 461 Capstone" {
		t.Errorf("entry project = %q", entry.Project)
	}

	school := doc.ByType.All[model.TagSchool]["hourCount"]
	if v, ok := school.Lookup("09"); !ok || v.Count < 1 {
		t.Errorf("School hourCount[09] = %v, %v, want >= 1", v, ok)
	}
	if v, ok := school.Lookup("10"); !ok || v.Count != 1 {
		t.Errorf("School hourCount[10] = %v, %v, want 1", v, ok)
	}
	if _, ok := school.Lookup("11"); ok {
		t.Error("School hourCount has hour 11")
	}

	hourTop := doc.ByTime.Top["hour"]
	if len(hourTop) != 2 {
		t.Fatalf("byTime.top.hour has %d values, want 2", len(hourTop))
	}
	if hourTop[0].TimeString != "9 am" && hourTop[0].TimeString != "10 am" {
		t.Errorf("TimeString = %q", hourTop[0].TimeString)
	}
	if got := doc.ByTime.All["year"]; len(got) != 1 || got[0].TotalTime != 5400 {
		t.Errorf("byTime.all.year = %+v, want one bucket of 5400", got)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	sources := []string{
		writeSource(t, dir, "Toggl_time_entries_2021-01-01_to_2021-12-31.csv",
			csvRow("Dog walking", "Walk the dog", "2021-06-01 07:00:00", "2021-06-01 08:15:00"),
			csvRow("Get Hired at Dream Job", "Prepare for SACNAS", "2021-06-02 13:00:00", "2021-06-02 13:45:00"),
		),
		writeSource(t, dir, "Toggl_time_entries_2022-01-01_to_2022-12-31.csv",
			csvRow("CS 461 Capstone", "Homwork", "2022-04-04 09:00:00", "2022-04-04 10:30:00"),
			csvRow("Errands", "Groceries", "2022-04-05 23:30:00", "2022-04-06 00:30:00"),
		),
	}
	db := openDB(t)
	opts := Options{Sources: sources, Location: testLoc, Workers: 3}

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		doc, _, err := Run(context.Background(), db, opts)
		if err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, data)
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("two runs over the same input produced different documents")
	}
}

func TestRunAbortsOnMalformedRow(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "a.csv",
		csvRow("P", "D", "2022-04-04 09:00:00", "2022-04-04 10:00:00"))
	bad := writeSource(t, dir, "b.csv",
		csvRow("P", "D", "2022-04-04 9am", "2022-04-04 10:00:00"))

	_, _, err := Run(context.Background(), openDB(t), Options{Sources: []string{good, bad}, Location: testLoc})
	if !errors.Is(err, parser.ErrMalformedRow) {
		t.Errorf("Run() error = %v, want ErrMalformedRow", err)
	}
}

func TestYearSumDivergesFromTotals(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "a.csv",
		csvRow("Errands", "Groceries", "2022-04-01 09:45:00", "2022-04-01 11:10:00"))

	doc, _, err := Run(context.Background(), openDB(t), Options{Sources: []string{source}, Location: testLoc})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	total := doc.ByGroup.Totals["Errands|Groceries"]
	if total != 5100 {
		t.Errorf("total = %d, want 5100", total)
	}
	yearSum, ok := doc.ByGroup.All["Errands"]["Groceries"].Histograms["yearSum"].Lookup("2022")
	if !ok {
		t.Fatal("yearSum[2022] missing")
	}
	// three touched hours, each carrying the full duration
	if yearSum.Count != 3*5100 {
		t.Errorf("yearSum[2022] = %d, want %d", yearSum.Count, 3*5100)
	}
}

func TestComplexCountHoursAtLeastDays(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "a.csv",
		csvRow("Research lab", "research", "2022-04-04 09:00:00", "2022-04-04 11:30:00"),
		csvRow("Research lab", "research", "2022-04-11 14:00:00", "2022-04-11 14:20:00"),
		csvRow("Research lab", "research", "2022-05-02 08:00:00", "2022-05-02 08:30:00"),
	)

	doc, _, err := Run(context.Background(), openDB(t), Options{Sources: []string{source}, Location: testLoc})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	hists := doc.ByProject.All["Research lab"].Histograms
	for _, name := range []string{"dayCount", "dayMonthCount", "monthCount", "yearCount"} {
		h := hists[name]
		if h == nil {
			t.Errorf("%s missing", name)
			continue
		}
		checkComplex(t, name, h)
	}

	monday, ok := hists["dayCount"].Lookup("1")
	if !ok {
		t.Fatal("dayCount[1] missing")
	}
	if monday.Count != 3 || monday.Hours != 5 {
		t.Errorf("dayCount[1] = {count: %d, hourCount: %d}, want {3, 5}", monday.Count, monday.Hours)
	}
}

func checkComplex(t *testing.T, name string, h *bucket.Histogram) {
	t.Helper()
	for key, v := range h.Leaves {
		if v.Hours < v.Count {
			t.Errorf("%s[%s]: hourCount %d < count %d", name, key, v.Hours, v.Count)
		}
	}
	for _, child := range h.Children {
		checkComplex(t, name, child)
	}
}

func TestAggregateSliceReportsOrphans(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "a.csv",
		csvRow("Errands", "Groceries", "2022-04-01 09:00:00", "2022-04-01 09:30:00"))
	db := openDB(t)
	if _, _, err := Run(context.Background(), db, Options{Sources: []string{source}, Location: testLoc}); err != nil {
		t.Fatal(err)
	}

	st, _ := bucket.LookupSlice("hourCount")
	records, orphaned, err := aggregateSlice(context.Background(), db, model.DimensionProject, st, nil)
	if err != nil {
		t.Fatalf("aggregateSlice() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("aggregateSlice() kept %d records without tags", len(records))
	}
	if want := []model.SliceKey{{Project: "Errands"}}; !slices.Equal(orphaned, want) {
		t.Errorf("orphaned = %v, want %v", orphaned, want)
	}
}

func TestWriteDocument(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "a.csv",
		csvRow("CS 461 Capstone", "Homwork", "2022-04-04 09:00:00", "2022-04-04 10:30:00"))
	doc, _, err := Build(context.Background(), filepath.Join(dir, "build.db"), Options{Sources: []string{source}, Location: testLoc})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	path := filepath.Join(dir, "out", "data.json")
	if err := WriteDocument(path, doc); err != nil {
		t.Fatalf("WriteDocument() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	loaded, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if got := loaded.ByGroup.Totals["CS 461 Capstone|Homework"]; got != 5400 {
		t.Errorf("loaded total = %d, want 5400", got)
	}
}

func TestBuildConfig(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "Toggl_time_entries_2022-01-01_to_2022-12-31.csv",
		csvRow("Dog walking", "Walk the dog", "2022-06-01 07:00:00", "2022-06-01 08:15:00"),
	)
	writeSource(t, dir, "unrelated.csv",
		csvRow("Dog walking", "Walk the dog", "2020-06-01 07:00:00", "2020-06-01 08:15:00"),
	)

	cfg := &config.Config{
		SourceDir:     dir,
		SourcePattern: parser.DefaultPattern,
		DBPath:        filepath.Join(dir, "timeslice.db"),
		OutputPath:    filepath.Join(dir, "site", "data.json"),
		Timezone:      "America/Los_Angeles",
	}
	_, report, err := BuildConfig(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("BuildConfig() error = %v", err)
	}
	if report.Files != 1 || report.Entries != 1 {
		t.Errorf("files/entries = %d/%d, want 1/1", report.Files, report.Entries)
	}

	doc, err := ReadDocument(cfg.OutputPath)
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	if got := doc.ByTime.All["year"]; len(got) != 1 || got[0].OriginalTime != "2022" {
		t.Errorf("byTime.all.year = %+v, want only 2022", got)
	}
}

func TestBuildConfigNoSources(t *testing.T) {
	cfg := &config.Config{SourceDir: t.TempDir(), SourcePattern: parser.DefaultPattern}
	if _, _, err := BuildConfig(context.Background(), cfg, nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("BuildConfig() error = %v, want ErrNoSources", err)
	}
}

func TestBuildConfigBadTimezone(t *testing.T) {
	cfg := &config.Config{SourceDir: t.TempDir(), Timezone: "Mars/Olympus"}
	if _, _, err := BuildConfig(context.Background(), cfg, nil); err == nil {
		t.Error("BuildConfig() with an unknown timezone succeeded")
	}
}
