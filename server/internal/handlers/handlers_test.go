package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/zhaobenny/timeslice/internal/auth"
	"github.com/zhaobenny/timeslice/internal/export"
	"github.com/zhaobenny/timeslice/internal/pipeline"
	"github.com/zhaobenny/timeslice/internal/viewmodel"
	"github.com/zhaobenny/timeslice/server/internal/templates"
)

const csvHeader = "User,Email,Client,Project,Task,Description,Billable,Start date,Start time,End date,End time,Duration,Tags,Amount ()\n"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// buildDocument runs the pipeline over a small export and writes data.json
func buildDocument(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "Toggl_time_entries_2022.csv")
	rows := csvHeader +
		"me,me@example.com,,CS 461 Capstone,,Homwork,No,2022-04-04,09:00:00,2022-04-04,10:30:00,,,\n" +
		"me,me@example.com,,Dog walking,,Walk the dog,No,2022-04-05,07:00:00,2022-04-05,07:45:00,,,\n"
	if err := os.WriteFile(source, []byte(rows), 0644); err != nil {
		t.Fatal(err)
	}

	doc, _, err := pipeline.Build(context.Background(), filepath.Join(dir, "timeslice.db"), pipeline.Options{
		Sources:  []string{source},
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("pipeline.Build() error = %v", err)
	}
	out := filepath.Join(dir, "data.json")
	if err := pipeline.WriteDocument(out, doc); err != nil {
		t.Fatal(err)
	}
	return out
}

func newHandler(t *testing.T, path string) (*Handler, http.Handler) {
	t.Helper()
	tmpl, err := templates.Parse()
	if err != nil {
		t.Fatalf("templates.Parse() error = %v", err)
	}

	store := NewStore(path)
	store.Reload()

	rebuild := func(ctx context.Context) (*export.Document, error) {
		return pipeline.ReadDocument(path)
	}
	sm := scs.New()
	authMiddleware := auth.NewMiddleware("", "", sm)
	h := New(store, NewRebuildDebouncer(rebuild, store, time.Millisecond, discard), sm, authMiddleware, tmpl, discard)

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.Index)
	mux.HandleFunc("/data.json", h.DataJSON)
	mux.HandleFunc("/api/histogram", h.Histogram)
	mux.HandleFunc("/api/prefs", h.PrefsHandler)
	mux.HandleFunc("/api/rebuild", h.Rebuild)
	mux.HandleFunc("/health", h.Health)
	return h, sm.LoadAndSave(mux)
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestIndex(t *testing.T) {
	_, handler := newHandler(t, buildDocument(t))

	rec := get(handler, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, want := range []string{"Latest", "9 am", "School"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if strings.Contains(body, "Missing data") {
		t.Error("index shows the missing-data alert for a complete document")
	}

	if rec := get(handler, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestIndexMissingDocument(t *testing.T) {
	_, handler := newHandler(t, filepath.Join(t.TempDir(), "data.json"))

	rec := get(handler, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Missing data") {
		t.Error("index does not show the missing-data alert")
	}
	if rec := get(handler, "/data.json"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /data.json status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec := get(handler, "/health"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /health status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestIndexPartialDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"byTime":{"top":{},"all":{}}}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, handler := newHandler(t, path)

	body := get(handler, "/").Body.String()
	if !strings.Contains(body, "byType, byGroup, byProject") {
		t.Errorf("alert does not name the missing sections:\n%s", body)
	}
}

func TestDataJSON(t *testing.T) {
	_, handler := newHandler(t, buildDocument(t))

	rec := get(handler, "/data.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	doc, err := export.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestDataJSONPartialDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"byTime":{"top":{},"all":{}},"byProject":{"all":{},"totals":{}}}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, handler := newHandler(t, path)

	rec := get(handler, "/data.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	doc, err := export.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []string{export.SectionByType, export.SectionByGroup}
	if got := doc.Missing(); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("served document Missing() = %v, want %v", got, want)
	}
}

func TestHistogram(t *testing.T) {
	_, handler := newHandler(t, buildDocument(t))

	tests := []struct {
		target string
		want   int
	}{
		{"/api/histogram?slice=hourCount&by=type", http.StatusOK},
		{"/api/histogram?slice=dayCount&by=project&count=count", http.StatusOK},
		{"/api/histogram?slice=hourCount&by=group", http.StatusOK},
		{"/api/histogram?slice=hourMonthYearCount&by=type", http.StatusBadRequest},
		{"/api/histogram?slice=hourMonthYearCount&by=type&year=2022&month=4", http.StatusOK},
		{"/api/histogram?slice=nope&by=type", http.StatusBadRequest},
		{"/api/histogram?slice=hourCount&by=nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := get(handler, tt.target); rec.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d (%s)", tt.target, rec.Code, tt.want, rec.Body.String())
		}
	}

	rec := get(handler, "/api/histogram?slice=hourCount&by=type")
	var chart viewmodel.Chart
	if err := json.Unmarshal(rec.Body.Bytes(), &chart); err != nil {
		t.Fatal(err)
	}
	if len(chart.Keys) != 24 {
		t.Errorf("hour chart has %d keys, want 24", len(chart.Keys))
	}
	if len(chart.Series) == 0 {
		t.Error("hour chart has no series")
	}
}

func TestPrefs(t *testing.T) {
	_, handler := newHandler(t, buildDocument(t))

	rec := get(handler, "/api/prefs")
	var p Prefs
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p != defaultPrefs {
		t.Errorf("prefs = %+v, want defaults %+v", p, defaultPrefs)
	}

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/prefs", strings.NewReader(body))
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec = post(`{"slice":"dayCount","by":"project"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, want %d", rec.Code, http.StatusOK)
	}
	cookies := rec.Result().Cookies()

	req := httptest.NewRequest(http.MethodGet, "/api/prefs", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Slice != "dayCount" || p.By != "project" || p.Count != "hourCount" {
		t.Errorf("stored prefs = %+v", p)
	}

	if rec := post(`{"slice":"nope"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown slice status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := post(`{"count":"minutes"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad count status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRebuild(t *testing.T) {
	h, handler := newHandler(t, buildDocument(t))

	if rec := get(handler, "/api/rebuild"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}

	before := h.store.LoadedAt()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rebuild", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !h.store.LoadedAt().After(before) {
		if time.Now().After(deadline) {
			t.Fatal("rebuild never replaced the document")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
