package database

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ZanzyTHEbar/quizstat/internal/encoding"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/ZanzyTHEbar/quizstat/internal/pipeline"
)

const (
	defaultListLimit = 20
	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Shared coders; EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil)
)

// RunRecord is the summary row kept for every recorded run.
type RunRecord struct {
	RunID             string    `json:"run_id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Stage             string    `json:"stage"`
	Failed            bool      `json:"failed"`
	Respondents       int       `json:"respondents"`
	Skipped           int       `json:"skipped"`
	AnsweredQuestions int       `json:"answered_questions"`
	OverallMean       float64   `json:"overall_mean"`
	RandomnessScore   float64   `json:"randomness_score"`
	TrendCorrelation  float64   `json:"trend_correlation"`
	Findings          int       `json:"findings"`
	Hypothesis        string    `json:"hypothesis"`
}

// Repository handles run history operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveRun stores res, complete or partial. Saving the same run twice keeps
// the latest state.
func (r *Repository) SaveRun(ctx context.Context, res *pipeline.Results) error {
	stmt, err := r.db.GetPreparedStatement("insert_run")
	if err != nil {
		return err
	}

	doc, err := encoding.Marshal(encoding.FormatJSON, res)
	if err != nil {
		return errors.NewInternalError("encode run "+res.RunID, err)
	}

	rec := recordOf(res)
	_, err = stmt.ExecContext(ctx,
		rec.RunID,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.FinishedAt.UTC().Format(timeLayout),
		rec.Stage,
		rec.Failed,
		rec.Respondents,
		rec.Skipped,
		rec.AnsweredQuestions,
		rec.OverallMean,
		rec.RandomnessScore,
		rec.TrendCorrelation,
		rec.Findings,
		rec.Hypothesis,
		encoder.EncodeAll(doc, nil),
	)
	if err != nil {
		return errors.NewInternalError("save run "+res.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit means 20.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	stmt, err := r.db.GetPreparedStatement("list_runs")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, errors.NewInternalError("list runs", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var (
			rec               RunRecord
			started, finished string
		)
		if err := rows.Scan(
			&rec.RunID, &started, &finished, &rec.Stage, &rec.Failed,
			&rec.Respondents, &rec.Skipped, &rec.AnsweredQuestions,
			&rec.OverallMean, &rec.RandomnessScore, &rec.TrendCorrelation,
			&rec.Findings, &rec.Hypothesis,
		); err != nil {
			return nil, errors.NewInternalError("scan run", err)
		}
		rec.StartedAt, _ = time.Parse(timeLayout, started)
		rec.FinishedAt, _ = time.Parse(timeLayout, finished)
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("list runs", err)
	}
	return runs, nil
}

// GetResults loads the full results document of a recorded run.
func (r *Repository) GetResults(ctx context.Context, runID string) (*pipeline.Results, error) {
	stmt, err := r.db.GetPreparedStatement("get_results")
	if err != nil {
		return nil, err
	}

	var blob []byte
	if err := stmt.QueryRowContext(ctx, runID).Scan(&blob); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("run "+runID, nil)
		}
		return nil, errors.NewInternalError("load run "+runID, err)
	}

	doc, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, errors.NewFormatError("run "+runID, "stored results are corrupt", err)
	}
	var res pipeline.Results
	if err := json.Unmarshal(doc, &res); err != nil {
		return nil, errors.NewFormatError("run "+runID, "stored results do not decode", err)
	}
	return &res, nil
}

func recordOf(res *pipeline.Results) RunRecord {
	rec := RunRecord{
		RunID:       res.RunID,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Stage:       string(res.Stage),
		Failed:      res.Failed(),
		Respondents: res.Extraction.Successful,
		Skipped:     len(res.Extraction.Skipped),
	}
	if s := res.Statistics; s != nil {
		rec.AnsweredQuestions = s.AnsweredQuestions
		rec.OverallMean = s.Mean
	}
	if p := res.Patterns; p != nil {
		rec.RandomnessScore = p.Tests.RandomnessScore
		rec.TrendCorrelation = p.Tests.TrendCorrelation
		rec.Findings = len(p.Findings)
		rec.Hypothesis = string(p.Hypothesis)
	}
	return rec
}
