package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/optimism/internal/config"
)

// ReportEntry is one of the best iterations of a run.
type ReportEntry struct {
	IterationID int64              `json:"iterationId"`
	Score       float64            `json:"score"`
	Portion     float64            `json:"portion"`
	Visits      int                `json:"visits"`
	Scores      map[string]float64 `json:"scores"`
	Design      string             `json:"design"`
}

// Summary describes the score distribution of the final population.
type Summary struct {
	Count          int                `json:"count"`
	Best           float64            `json:"best"`
	Mean           float64            `json:"mean"`
	StdDev         float64            `json:"stdDev"`
	Median         float64            `json:"median"`
	ObjectiveMeans map[string]float64 `json:"objectiveMeans,omitempty"`
	Transitions    int                `json:"transitions"`
}

// Report is the persisted outcome of a search run.
type Report struct {
	ID             string           `json:"id"`
	Problem        string           `json:"problem"`
	Converged      bool             `json:"converged"`
	Reason         string           `json:"reason,omitempty"`
	Steps          int              `json:"steps"`
	IterationCount int64            `json:"iterationCount"`
	BestScore      float64          `json:"bestScore"`
	PerfectScore   float64          `json:"perfectScore"`
	Top            []ReportEntry    `json:"top"`
	Summary        Summary          `json:"summary"`
	Config         config.RunConfig `json:"config"`
	Duration       time.Duration    `json:"duration"`
	Timestamp      time.Time        `json:"timestamp"`
}

// ReportInfo is the listing view of a report.
type ReportInfo struct {
	ID           string    `json:"id"`
	Problem      string    `json:"problem"`
	Converged    bool      `json:"converged"`
	Steps        int       `json:"steps"`
	BestScore    float64   `json:"bestScore"`
	PerfectScore float64   `json:"perfectScore"`
	Timestamp    time.Time `json:"timestamp"`
}

// ToInfo converts a full Report to its listing metadata.
func (r *Report) ToInfo() ReportInfo {
	return ReportInfo{
		ID:           r.ID,
		Problem:      r.Problem,
		Converged:    r.Converged,
		Steps:        r.Steps,
		BestScore:    r.BestScore,
		PerfectScore: r.PerfectScore,
		Timestamp:    r.Timestamp,
	}
}

const scoreTolerance = 1e-9

// Validate checks that a report is complete and self-consistent.
func (r *Report) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Problem == "" {
		return &ValidationError{Field: "Problem", Reason: "cannot be empty"}
	}
	if r.Steps < 0 {
		return &ValidationError{Field: "Steps", Reason: "cannot be negative"}
	}
	if r.IterationCount < 0 {
		return &ValidationError{Field: "IterationCount", Reason: "cannot be negative"}
	}
	if r.PerfectScore < 0 {
		return &ValidationError{Field: "PerfectScore", Reason: "cannot be negative"}
	}
	if r.BestScore > r.PerfectScore+scoreTolerance {
		return &ValidationError{
			Field:  "BestScore",
			Reason: fmt.Sprintf("%v exceeds perfect score %v", r.BestScore, r.PerfectScore),
		}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	for i := 1; i < len(r.Top); i++ {
		if r.Top[i].Score > r.Top[i-1].Score {
			return &ValidationError{Field: "Top", Reason: "must be sorted best first"}
		}
	}
	return nil
}

// ValidationError represents a report validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
