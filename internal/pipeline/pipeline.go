// Package pipeline sequences extraction, aggregation and pattern detection
// for one batch of respondents and keeps whatever each stage produced.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/quizstat/internal/analysis"
	"github.com/ZanzyTHEbar/quizstat/internal/collate"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/ZanzyTHEbar/quizstat/internal/monitoring"
)

// Reporter publishes the results of a run that reached pattern analysis.
type Reporter interface {
	Report(ctx context.Context, r *Results) error
}

// Preparer populates a data directory before extraction, e.g. by downloading
// respondent files.
type Preparer interface {
	Prepare(ctx context.Context, dataDir string) error
}

// Config tunes the detector.
type Config struct {
	Tolerance      float64
	MaxCycleLength int
}

// Option customises a Pipeline.
type Option func(*Pipeline)

func WithReporter(r Reporter) Option  { return func(p *Pipeline) { p.reporter = r } }
func WithPreparer(pr Preparer) Option { return func(p *Pipeline) { p.preparer = pr } }

// WithMetrics counts runs and respondents on m.
func WithMetrics(m *monitoring.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

type Pipeline struct {
	detector *analysis.Detector
	logger   *monitoring.Logger
	reporter Reporter
	preparer Preparer
	metrics  *monitoring.Metrics
}

// New creates a pipeline. A nil logger discards output.
func New(cfg Config, logger *monitoring.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = monitoring.Discard()
	}
	p := &Pipeline{
		detector: analysis.NewDetector(cfg.Tolerance, cfg.MaxCycleLength),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run takes in through every stage. When a stage fails its error is recorded
// under that stage's key, later stages are skipped and the partial results are
// returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Results, error) {
	res := newResults(uuid.NewString())
	var sources []extraction

	steps := []struct {
		stage Stage
		run   func(context.Context) error
	}{
		{StagePrepared, func(ctx context.Context) (err error) {
			sources, err = p.prepare(ctx, in)
			return err
		}},
		{StageExtracted, func(context.Context) error { return p.extract(res, sources) }},
		{StageAggregated, func(context.Context) error { return p.aggregate(res) }},
		{StagePatternAnalyzed, func(context.Context) error { return p.detect(res) }},
		{StageReported, func(ctx context.Context) error { return p.publish(ctx, res) }},
	}

	var runErr error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			runErr = p.fail(res, step.stage, errors.NewTimeoutError(fmt.Sprintf("run cancelled before %s", step.stage), err), 0)
			break
		}
		start := time.Now()
		if err := step.run(ctx); err != nil {
			runErr = p.fail(res, step.stage, err, time.Since(start))
			break
		}
		p.reach(res, step.stage, time.Since(start))
	}

	res.FinishedAt = time.Now()
	if p.metrics != nil {
		p.metrics.RecordRun(res.Extraction.Successful, len(res.Extraction.Skipped), runErr != nil)
	}
	if runErr == nil && res.Patterns != nil && res.Statistics != nil {
		p.logger.AnalysisLogger(res.RunID, res.Extraction.Successful, res.Statistics.AnsweredQuestions,
			res.Patterns.Tests.RandomnessScore, string(res.Patterns.Hypothesis), res.FinishedAt.Sub(res.StartedAt))
	}
	return res, runErr
}

func (p *Pipeline) reach(res *Results, stage Stage, d time.Duration) {
	res.Stage = stage
	res.DurationsMS[stage] = d.Milliseconds()
	p.logger.StageLogger(res.RunID, string(stage), d, true)
}

func (p *Pipeline) fail(res *Results, stage Stage, err error, d time.Duration) error {
	res.Errors[stage] = err.Error()
	res.DurationsMS[stage] = d.Milliseconds()
	p.logger.StageLogger(res.RunID, string(stage), d, false)
	p.logger.Error("Pipeline Failed", "run_id", res.RunID, "stage", string(stage), "error", err.Error())
	return err
}

func (p *Pipeline) prepare(ctx context.Context, in Input) ([]extraction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	switch {
	case in.DataDir != "":
		if p.preparer != nil {
			if err := p.preparer.Prepare(ctx, in.DataDir); err != nil {
				return nil, err
			}
		}
		entries, err := collate.LoadDir(in.DataDir)
		if err != nil {
			return nil, err
		}
		return extractEntries(entries), nil

	case in.CollatedFile != "":
		sections, err := collate.SplitFile(in.CollatedFile)
		if err != nil {
			return nil, err
		}
		return extractSections(sections, in.CollatedFile), nil

	case in.Collated != "":
		sections, err := collate.Split(in.Collated)
		if err != nil {
			return nil, err
		}
		return extractSections(sections, "collated document"), nil

	case len(in.Texts) > 0:
		return extractSources(in.Texts), nil
	}
	return extractSummaryFiles(in.SummaryFiles), nil
}

func (p *Pipeline) extract(res *Results, sources []extraction) error {
	res.Extraction.Total = len(sources)
	for _, s := range sources {
		if s.err != nil {
			p.logger.SkipLogger(s.respondent.Source, s.err)
			res.Extraction.Skipped = append(res.Extraction.Skipped, Skip{Source: s.respondent.Source, Reason: s.err.Error()})
			continue
		}
		r := s.respondent
		p.logger.ExtractionLogger(r.Source, r.Answers.Answered())
		res.Respondents = append(res.Respondents, r)
		res.Extraction.Details = append(res.Extraction.Details, Detail{
			Respondent:     r.ID,
			Source:         r.Source,
			Answered:       r.Answers.Answered(),
			CompletionRate: r.Answers.CompletionRate(),
		})
	}
	res.Extraction.Successful = len(res.Respondents)

	if res.Extraction.Successful == 0 {
		return errors.NewNoDataError("extraction", fmt.Sprintf("no respondent could be extracted from %d sources", len(sources)))
	}
	return nil
}

func (p *Pipeline) aggregate(res *Results) error {
	means, err := analysis.ComputeMeans(res.Vectors())
	if err != nil {
		return err
	}
	res.Means = &means

	stats, err := analysis.ComputeStatistics(means)
	if err != nil {
		return err
	}
	res.Statistics = &stats
	return nil
}

func (p *Pipeline) detect(res *Results) error {
	if res.Means == nil {
		return errors.NewInternalError("pattern analysis reached without means", nil)
	}
	report := p.detector.Detect(*res.Means, res.Vectors())
	res.Patterns = &report
	return nil
}

func (p *Pipeline) publish(ctx context.Context, res *Results) error {
	if p.reporter == nil {
		return nil
	}
	res.FinishedAt = time.Now()
	return p.reporter.Report(ctx, res)
}
