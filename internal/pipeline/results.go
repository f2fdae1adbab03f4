package pipeline

import (
	"time"

	"github.com/ZanzyTHEbar/quizstat/internal/analysis"
	"github.com/ZanzyTHEbar/quizstat/internal/answers"
)

// Stage is a state of a run. States only move forward.
type Stage string

const (
	StageNone            Stage = ""
	StagePrepared        Stage = "prepared"
	StageExtracted       Stage = "extracted"
	StageAggregated      Stage = "aggregated"
	StagePatternAnalyzed Stage = "pattern_analyzed"
	StageReported        Stage = "reported"
)

// Skip records a respondent source left out of the aggregate.
type Skip struct {
	Source string `json:"source" yaml:"source"`
	Reason string `json:"reason" yaml:"reason"`
}

// Detail is the per-respondent extraction outcome.
type Detail struct {
	Respondent     int     `json:"respondent" yaml:"respondent"`
	Source         string  `json:"source" yaml:"source"`
	Answered       int     `json:"answered_questions" yaml:"answered_questions"`
	CompletionRate float64 `json:"completion_rate" yaml:"completion_rate"`
}

type Extraction struct {
	Total      int      `json:"total_sources" yaml:"total_sources"`
	Successful int      `json:"successful" yaml:"successful"`
	Skipped    []Skip   `json:"skipped" yaml:"skipped"`
	Details    []Detail `json:"details" yaml:"details"`
}

// Results accumulates everything a run produced. Fields for stages that were
// never reached stay nil.
type Results struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Stage      Stage     `json:"stage" yaml:"stage"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Extraction  Extraction           `json:"extraction" yaml:"extraction"`
	Respondents []answers.Respondent `json:"respondents" yaml:"respondents"`
	Means       *analysis.Means      `json:"means,omitempty" yaml:"means,omitempty"`
	Statistics  *analysis.Statistics `json:"statistics,omitempty" yaml:"statistics,omitempty"`
	Patterns    *analysis.Report     `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	DurationsMS map[Stage]int64      `json:"durations_ms" yaml:"durations_ms"`
	Errors      map[Stage]string     `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func newResults(runID string) *Results {
	return &Results{
		RunID:       runID,
		StartedAt:   time.Now(),
		Extraction:  Extraction{Skipped: []Skip{}, Details: []Detail{}},
		Respondents: []answers.Respondent{},
		DurationsMS: make(map[Stage]int64),
		Errors:      make(map[Stage]string),
	}
}

// Vectors returns the extracted answer vectors in respondent order.
func (r *Results) Vectors() []answers.Vector {
	out := make([]answers.Vector, len(r.Respondents))
	for i, resp := range r.Respondents {
		out[i] = resp.Answers
	}
	return out
}

// Failed reports whether any stage recorded an error.
func (r *Results) Failed() bool {
	return len(r.Errors) > 0
}
