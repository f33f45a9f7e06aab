package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/optimism/internal/config"
	"github.com/cwbudde/optimism/internal/store"
)

func ids(infos []store.ReportInfo) map[string]bool {
	m := make(map[string]bool, len(infos))
	for _, info := range infos {
		m[info.ID] = true
	}
	return m
}

func testInfos(now time.Time) []store.ReportInfo {
	return []store.ReportInfo{
		{ID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{ID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{ID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{ID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}
}

func TestSelectReportsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	toDelete := selectReportsForDeletion(testInfos(now), 0, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 reports to delete, got %d", len(toDelete))
	}
	got := ids(toDelete)
	if !got["run1"] || !got["run4"] {
		t.Errorf("Expected run1 and run4 to be selected, got %v", got)
	}
}

func TestSelectReportsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	toDelete := selectReportsForDeletion(testInfos(now), 2, 0, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 reports to delete, got %d", len(toDelete))
	}
	got := ids(toDelete)
	if !got["run4"] || !got["run1"] {
		t.Errorf("Expected the oldest runs run4 and run1, got %v", got)
	}
}

func TestSelectReportsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	// Age removes run1 and run4; keeping three would only remove run4 again.
	toDelete := selectReportsForDeletion(testInfos(now), 3, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 reports without duplicates, got %d", len(toDelete))
	}

	toDelete = selectReportsForDeletion(testInfos(now), 1, 7, now)
	got := ids(toDelete)
	if len(toDelete) != 3 || got["run3"] {
		t.Errorf("Expected everything but run3, got %v", got)
	}
}

func TestSelectReportsForDeletion_NothingToDo(t *testing.T) {
	now := time.Now()
	if toDelete := selectReportsForDeletion(testInfos(now), 10, 0, now); len(toDelete) != 0 {
		t.Errorf("Expected no deletions, got %d", len(toDelete))
	}
	if toDelete := selectReportsForDeletion(nil, 1, 1, now); len(toDelete) != 0 {
		t.Errorf("Expected no deletions for empty input, got %d", len(toDelete))
	}
}

func TestGetDirSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b"), make([]byte, 50), 0644); err != nil {
		t.Fatal(err)
	}

	size, err := getDirSize(dir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}
	if size != 150 {
		t.Errorf("Expected 150 bytes, got %d", size)
	}

	if _, err := getDirSize(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func savedRun(t *testing.T) (*store.FSStore, string) {
	t.Helper()
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	cfg := config.Default()
	cfg.Seed = 4
	var buf bytes.Buffer
	if err := runSearch(t.Context(), &buf, cfg, st, "", ""); err != nil {
		t.Fatalf("runSearch failed: %v", err)
	}
	infos, err := st.ListReports()
	if err != nil || len(infos) != 1 {
		t.Fatalf("Expected one saved report, got %d (%v)", len(infos), err)
	}
	return st, infos[0].ID
}

func TestListAndShowReports(t *testing.T) {
	st, id := savedRun(t)

	var buf bytes.Buffer
	if err := listReports(&buf, st); err != nil {
		t.Fatalf("listReports failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, id) || !strings.Contains(out, "Total reports: 1") {
		t.Errorf("Unexpected listing:\n%s", out)
	}

	buf.Reset()
	plotDir := t.TempDir()
	if err := showReport(&buf, st, id, plotDir); err != nil {
		t.Fatalf("showReport failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Converged after") {
		t.Errorf("Unexpected report output:\n%s", buf.String())
	}
	if _, err := os.Stat(filepath.Join(plotDir, "trace.html")); err != nil {
		t.Errorf("Expected trace chart: %v", err)
	}

	if err := showReport(&buf, st, "missing", ""); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestListReportsEmpty(t *testing.T) {
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := listReports(&buf, st); err != nil {
		t.Fatalf("listReports failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No reports found.") {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}

func TestDeleteReports(t *testing.T) {
	st, id := savedRun(t)

	deleted, failed := deleteReports(st, []store.ReportInfo{{ID: id}, {ID: "missing"}})
	if deleted != 1 || failed != 1 {
		t.Errorf("Expected 1 deleted and 1 failed, got %d and %d", deleted, failed)
	}
	if _, err := os.Stat(st.RunDir(id)); !os.IsNotExist(err) {
		t.Errorf("Expected run directory to be removed, got %v", err)
	}
}
