package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

const reportFile = "report.json"

var _ Store = (*FSStore)(nil)

// FSStore implements Store using the local filesystem.
// Runs are stored in <baseDir>/runs/<runID>/ with report.json, trace.jsonl
// and any rendered charts next to each other.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem-based store rooted at baseDir.
// The directory is created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "runs"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of the store.
func (s *FSStore) BaseDir() string { return s.baseDir }

// RunDir returns the directory for a run.
func (s *FSStore) RunDir(runID string) string {
	return filepath.Join(s.baseDir, "runs", runID)
}

// TracePath returns the trace file of a run.
func (s *FSStore) TracePath(runID string) string {
	return filepath.Join(s.RunDir(runID), traceFile)
}

// OpenTrace creates the trace file of a run.
func (s *FSStore) OpenTrace(runID string) (*TraceWriter, error) {
	return NewTraceWriter(s.baseDir, runID)
}

// ReadTrace loads the trace of a run.
func (s *FSStore) ReadTrace(runID string) ([]TraceEntry, error) {
	return ReadTrace(s.baseDir, runID)
}

// SaveReport validates the report and writes it via a temporary file so a
// crash never leaves a truncated report behind.
func (s *FSStore) SaveReport(report *Report) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}

	dir := s.RunDir(report.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(dir, reportFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit report: %w", err)
	}

	slog.Debug("Report saved", "run_id", report.ID, "path", path, "steps", report.Steps)
	return nil
}

// LoadReport reads the report of a run.
func (s *FSStore) LoadReport(runID string) (*Report, error) {
	path := filepath.Join(s.RunDir(runID), reportFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", runID, err)
	}
	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("corrupted report %s: %w", runID, err)
	}
	return &report, nil
}

// ListReports returns all readable reports, newest first. Unreadable runs
// are skipped with a warning.
func (s *FSStore) ListReports() ([]ReportInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return []ReportInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := make([]ReportInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		report, err := s.LoadReport(e.Name())
		if err != nil {
			slog.Warn("Skipping unreadable report", "run_id", e.Name(), "error", err)
			continue
		}
		infos = append(infos, report.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Timestamp.Equal(infos[j].Timestamp) {
			return infos[i].Timestamp.After(infos[j].Timestamp)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// DeleteReport removes every artifact of a run.
func (s *FSStore) DeleteReport(runID string) error {
	dir := s.RunDir(runID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{RunID: runID}
		}
		return fmt.Errorf("failed to stat run directory: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	slog.Debug("Run deleted", "run_id", runID)
	return nil
}
