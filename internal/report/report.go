// Package report renders pipeline results for people and programs.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/quizstat/internal/analysis"
	"github.com/ZanzyTHEbar/quizstat/internal/answers"
	"github.com/ZanzyTHEbar/quizstat/internal/collate"
	"github.com/ZanzyTHEbar/quizstat/internal/encoding"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/ZanzyTHEbar/quizstat/internal/pipeline"
)

const (
	TextReportName = "comprehensive_analysis_report.txt"
	ResultsName    = "analysis_results"
)

var (
	rule    = strings.Repeat("=", 80)
	subrule = strings.Repeat("-", 40)
)

// WriteText writes the human-readable report. Sections for stages the run
// never reached are left out.
func WriteText(w io.Writer, res *pipeline.Results) error {
	tw := &textWriter{w: w}

	tw.line("QUIZ ANSWER PATTERN ANALYSIS - COMPREHENSIVE REPORT")
	tw.line(rule)
	tw.printf("Run ID: %s\n", res.RunID)
	tw.printf("Generated on: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	if !res.FinishedAt.IsZero() {
		tw.printf("Analysis duration: %.2f seconds\n", res.FinishedAt.Sub(res.StartedAt).Seconds())
	}
	tw.line("")

	tw.section("EXECUTIVE SUMMARY")
	if s := res.Statistics; s != nil {
		tw.printf("Total Questions Analyzed: %d\n", s.TotalQuestions)
		tw.printf("Questions with Responses: %d (%.1f%%)\n", s.AnsweredQuestions, s.CompletionRate)
		tw.printf("Overall Mean Answer: %.2f (on scale 1-%d)\n", s.Mean, answers.OptionCount)
		tw.printf("Standard Deviation: %.2f\n", s.StdDev)
	} else {
		tw.line("Statistics unavailable: the run stopped before aggregation.")
	}
	tw.line("")

	if p := res.Patterns; p != nil {
		tw.section("PATTERN ANALYSIS RESULTS")
		tw.line(p.Summary)
		tw.line("")
	}

	if s := res.Statistics; s != nil {
		tw.section("DETAILED STATISTICAL ANALYSIS")
		writeFields(tw, *s)
		tw.line("")
	}

	tw.section("ANSWER EXTRACTION SUMMARY")
	tw.printf("Total files: %d\n", res.Extraction.Total)
	tw.printf("Successful extractions: %d\n", res.Extraction.Successful)
	if rate, ok := overallCompletion(res.Extraction); ok {
		tw.printf("Overall completion rate: %.1f%%\n", rate)
	}
	for _, s := range res.Extraction.Skipped {
		tw.printf("Skipped %s: %s\n", s.Source, s.Reason)
	}
	tw.line("")

	if len(res.Errors) > 0 {
		tw.section("ERRORS")
		for _, stage := range []pipeline.Stage{
			pipeline.StagePrepared, pipeline.StageExtracted, pipeline.StageAggregated,
			pipeline.StagePatternAnalyzed, pipeline.StageReported,
		} {
			if msg, ok := res.Errors[stage]; ok {
				tw.printf("%s: %s\n", stage, msg)
			}
		}
		tw.line("")
	}

	tw.section("CONCLUSIONS AND RECOMMENDATIONS")
	if p := res.Patterns; p != nil {
		tw.line(conclusion(p.Hypothesis))
		tw.line("")
	}
	tw.line("END OF REPORT")
	tw.line(rule)
	return tw.err
}

func conclusion(h analysis.Hypothesis) string {
	switch h {
	case analysis.HypothesisDeliberate:
		return "HYPOTHESIS: DELIBERATE PATTERN DETECTED\n" +
			"Evidence suggests the quiz setter may have used a deliberate\n" +
			"pattern in arranging the correct answers."
	case analysis.HypothesisRandom:
		return "HYPOTHESIS: RANDOM ANSWER DISTRIBUTION\n" +
			"Evidence suggests answers are randomly distributed\n" +
			"with no deliberate pattern."
	}
	return "HYPOTHESIS: INCONCLUSIVE\n" +
		"Limited data prevents definitive conclusion about\n" +
		"deliberate vs random answer patterns."
}

func overallCompletion(e pipeline.Extraction) (float64, bool) {
	possible := e.Successful * answers.QuestionCount
	if possible == 0 {
		return 0, false
	}
	answered := 0
	for _, d := range e.Details {
		answered += d.Answered
	}
	return float64(answered) / float64(possible) * 100, true
}

// writeFields lists a flat struct as "Title Case Name: value", using the json
// tag for the name.
func writeFields(tw *textWriter, v any) {
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		name, _, _ := strings.Cut(rt.Field(i).Tag.Get("json"), ",")
		label := titleCase(name)
		switch f := rv.Field(i); f.Kind() {
		case reflect.Float32, reflect.Float64:
			tw.printf("%s: %.4f\n", label, f.Float())
		default:
			tw.printf("%s: %v\n", label, f.Interface())
		}
	}
}

func titleCase(snake string) string {
	words := strings.Split(snake, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) line(s string) { t.printf("%s\n", s) }

func (t *textWriter) section(title string) {
	t.line(title)
	t.line(subrule)
}

// WriteJSON writes the full results document as JSON.
func WriteJSON(w io.Writer, res *pipeline.Results) error {
	return encoding.Encode(w, encoding.FormatJSON, res)
}

// WriteYAML writes the full results document as YAML.
func WriteYAML(w io.Writer, res *pipeline.Results) error {
	return encoding.Encode(w, encoding.FormatYAML, res)
}

// WriteSummaries writes one answers_list_respondent_<id>.txt per respondent
// into dir and returns the paths written.
func WriteSummaries(dir string, respondents []answers.Respondent) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewInternalError("create summary directory "+dir, err)
	}

	paths := make([]string, 0, len(respondents))
	for _, r := range respondents {
		path := filepath.Join(dir, collate.SummaryFilename(r.ID))
		if err := os.WriteFile(path, []byte(answers.FormatSummary(r.Answers)), 0o644); err != nil {
			return paths, errors.NewInternalError("write summary "+path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// DirReporter writes the text report and a structured results document into
// an output directory. It satisfies pipeline.Reporter.
type DirReporter struct {
	Dir       string
	Format    encoding.Format
	Summaries bool
}

func (d DirReporter) Report(ctx context.Context, res *pipeline.Results) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return errors.NewInternalError("create output directory "+d.Dir, err)
	}

	if err := writeFile(filepath.Join(d.Dir, TextReportName), func(w io.Writer) error {
		return WriteText(w, res)
	}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return errors.NewTimeoutError("report cancelled", err)
	}

	format := d.Format
	if format == "" {
		format = encoding.FormatJSON
	}
	if err := writeFile(filepath.Join(d.Dir, ResultsName+format.Extension()), func(w io.Writer) error {
		return encoding.Encode(w, format, res)
	}); err != nil {
		return err
	}

	if d.Summaries {
		if _, err := WriteSummaries(d.Dir, res.Respondents); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewInternalError("create "+path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return errors.WrapError(err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.NewInternalError("close "+path, err)
	}
	return nil
}
