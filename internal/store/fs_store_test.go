package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cwbudde/optimism/internal/config"
)

func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return s, dir
}

func createTestReport(id string, ts time.Time) *Report {
	return &Report{
		ID:             id,
		Problem:        "guess",
		Converged:      true,
		Reason:         "converged",
		Steps:          40,
		IterationCount: 41,
		BestScore:      2,
		PerfectScore:   2,
		Top: []ReportEntry{
			{IterationID: 40, Score: 2, Portion: 1, Visits: 1, Scores: map[string]float64{"at_least_target": 1, "at_most_target": 1}, Design: "50"},
			{IterationID: 39, Score: 1.99, Portion: 0.995, Visits: 2, Scores: map[string]float64{"at_least_target": 0.99, "at_most_target": 1}, Design: "49"},
		},
		Summary:   Summary{Count: 41, Best: 2, Mean: 1.8, StdDev: 0.1, Median: 1.8, Transitions: 40},
		Config:    config.Default(),
		Duration:  15 * time.Millisecond,
		Timestamp: ts,
	}
}

func TestSaveAndLoadReport(t *testing.T) {
	s, dir := setupTestStore(t)
	want := createTestReport("run-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	if err := s.SaveReport(want); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	path := filepath.Join(dir, "runs", "run-1", "report.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Report file not created at %s: %v", path, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Temporary file left behind")
	}

	got, err := s.LoadReport("run-1")
	if err != nil {
		t.Fatalf("LoadReport failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Report mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveReportOverwrites(t *testing.T) {
	s, _ := setupTestStore(t)
	r := createTestReport("run-1", time.Now())
	if err := s.SaveReport(r); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	r.Steps = 99
	if err := s.SaveReport(r); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	got, err := s.LoadReport("run-1")
	if err != nil {
		t.Fatalf("LoadReport failed: %v", err)
	}
	if got.Steps != 99 {
		t.Errorf("Expected steps 99, got %d", got.Steps)
	}
}

func TestSaveReportRejectsInvalid(t *testing.T) {
	s, dir := setupTestStore(t)
	r := createTestReport("", time.Now())

	err := s.SaveReport(r)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "ID" {
		t.Fatalf("Expected ID validation error, got %v", err)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "runs"))
	if len(entries) != 0 {
		t.Errorf("Expected no runs to be written, found %d", len(entries))
	}
}

func TestLoadReportNotFound(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.LoadReport("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if err.Error() != "report not found: missing" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestLoadReportCorrupted(t *testing.T) {
	s, _ := setupTestStore(t)
	dir := s.RunDir("broken")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := s.LoadReport("broken")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected parse error, got %v", err)
	}
}

func TestListReports(t *testing.T) {
	s, _ := setupTestStore(t)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offset := map[string]time.Duration{"old": 0, "mid": time.Hour, "new": 2 * time.Hour}[id]
		r := createTestReport(id, base.Add(offset))
		r.Steps = i
		if err := s.SaveReport(r); err != nil {
			t.Fatalf("SaveReport(%s) failed: %v", id, err)
		}
	}

	// A run directory without a report is skipped.
	if err := os.MkdirAll(s.RunDir("empty"), 0755); err != nil {
		t.Fatal(err)
	}

	infos, err := s.ListReports()
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}

	var ids []string
	for _, info := range infos {
		ids = append(ids, info.ID)
	}
	if diff := cmp.Diff([]string{"new", "mid", "old"}, ids); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}
	if infos[0].Problem != "guess" || !infos[0].Converged {
		t.Errorf("Unexpected info %+v", infos[0])
	}
}

func TestListReportsEmpty(t *testing.T) {
	s, _ := setupTestStore(t)
	infos, err := s.ListReports()
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected no reports, got %d", len(infos))
	}
}

func TestDeleteReport(t *testing.T) {
	s, _ := setupTestStore(t)
	if err := s.SaveReport(createTestReport("run-1", time.Now())); err != nil {
		t.Fatal(err)
	}
	w, err := s.OpenTrace("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteReport("run-1"); err != nil {
		t.Fatalf("DeleteReport failed: %v", err)
	}
	if _, err := os.Stat(s.RunDir("run-1")); !os.IsNotExist(err) {
		t.Errorf("Run directory still exists")
	}
	if _, err := s.ReadTrace("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected trace to be gone, got %v", err)
	}
	if err := s.DeleteReport("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestReportValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Report)
		field  string
	}{
		{"valid", func(r *Report) {}, ""},
		{"no id", func(r *Report) { r.ID = "" }, "ID"},
		{"no problem", func(r *Report) { r.Problem = "" }, "Problem"},
		{"negative steps", func(r *Report) { r.Steps = -1 }, "Steps"},
		{"negative count", func(r *Report) { r.IterationCount = -1 }, "IterationCount"},
		{"best above perfect", func(r *Report) { r.BestScore = 3 }, "BestScore"},
		{"zero timestamp", func(r *Report) { r.Timestamp = time.Time{} }, "Timestamp"},
		{"unsorted top", func(r *Report) { r.Top[0], r.Top[1] = r.Top[1], r.Top[0] }, "Top"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := createTestReport("run", time.Now())
			tt.modify(r)
			err := r.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected valid report, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}
