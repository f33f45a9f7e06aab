// Package store persists finished search runs: a JSON report per run and a
// JSONL trace of every step.
package store

// Store defines the persistence operations for run reports.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a report doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveReport atomically writes the report for a run, replacing any
	// earlier report with the same ID.
	SaveReport(report *Report) error

	// LoadReport retrieves the report of a run.
	// Returns ErrNotFound if no report exists for runID.
	LoadReport(runID string) (*Report, error)

	// ListReports returns metadata for all stored reports, newest first.
	ListReports() ([]ReportInfo, error)

	// DeleteReport removes a run's report, trace and charts.
	// Returns ErrNotFound if the run does not exist.
	DeleteReport(runID string) error

	// OpenTrace creates the step trace of a run, truncating any earlier one.
	OpenTrace(runID string) (*TraceWriter, error)

	// ReadTrace returns every step recorded for a run.
	// Returns ErrNotFound if the run has no trace.
	ReadTrace(runID string) ([]TraceEntry, error)

	// RunDir returns the directory holding all artifacts of a run.
	RunDir(runID string) string
}

// ErrNotFound is returned when a requested report does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing report.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "report not found: " + e.RunID
	}
	return "report not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
