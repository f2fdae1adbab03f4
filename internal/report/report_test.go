package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/quizstat/internal/answers"
	"github.com/ZanzyTHEbar/quizstat/internal/answers/answerstest"
	"github.com/ZanzyTHEbar/quizstat/internal/collate"
	"github.com/ZanzyTHEbar/quizstat/internal/encoding"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/ZanzyTHEbar/quizstat/internal/pipeline"
)

func runPipeline(t *testing.T, texts ...string) *pipeline.Results {
	t.Helper()
	sources := make([]pipeline.Source, len(texts))
	for i, text := range texts {
		sources[i] = pipeline.Source{Text: text}
	}
	res, err := pipeline.New(pipeline.Config{}, nil).Run(context.Background(), pipeline.Input{Texts: sources})
	require.NoError(t, err)
	return res
}

func TestWriteTextCompleteRun(t *testing.T) {
	res := runPipeline(t, answerstest.QuizText(1, 2, 3, 4), answerstest.QuizText(1, 2, 3, 4))

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, res))
	out := buf.String()

	for _, want := range []string{
		"QUIZ ANSWER PATTERN ANALYSIS - COMPREHENSIVE REPORT",
		"Run ID: " + res.RunID,
		"Questions with Responses: 4 (4.0%)",
		"Overall Mean Answer: 2.50 (on scale 1-4)",
		"PATTERNS DETECTED (2 found):",
		"Total Questions: 100",
		"Overall Mean: 2.5000",
		"Successful extractions: 2",
		"Overall completion rate: 4.0%",
		"HYPOTHESIS: DELIBERATE PATTERN DETECTED",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "ERRORS")
	assert.True(t, strings.HasSuffix(out, "END OF REPORT\n"+rule+"\n"))
}

func TestWriteTextPartialRun(t *testing.T) {
	res, err := pipeline.New(pipeline.Config{}, nil).Run(context.Background(), pipeline.Input{
		Texts: []pipeline.Source{{Text: "blank"}},
	})
	require.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, res))
	out := buf.String()

	assert.Contains(t, out, "Statistics unavailable")
	assert.Contains(t, out, "ERRORS")
	assert.Contains(t, out, "aggregated: [NO_DATA]")
	assert.NotContains(t, out, "PATTERN ANALYSIS RESULTS")
	assert.NotContains(t, out, "HYPOTHESIS")
}

func TestWriteJSONAndYAML(t *testing.T) {
	res := runPipeline(t, answerstest.QuizText(2, 2, 2))

	var jsonBuf bytes.Buffer
	require.NoError(t, WriteJSON(&jsonBuf, res))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	assert.Equal(t, res.RunID, decoded["run_id"])
	assert.Equal(t, "reported", decoded["stage"])
	assert.Contains(t, decoded, "patterns")

	var yamlBuf bytes.Buffer
	require.NoError(t, WriteYAML(&yamlBuf, res))
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, res.RunID, fromYAML["run_id"])
}

func TestWriteSummaries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	var v answers.Vector
	v[0], v[99] = 4, 1

	paths, err := WriteSummaries(dir, []answers.Respondent{{ID: 7, Answers: v}})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, collate.SummaryFilename(7))}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	got, err := answers.FindSummary(string(data))
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestDirReporter(t *testing.T) {
	dir := t.TempDir()
	reporter := DirReporter{Dir: dir, Format: encoding.FormatYAML, Summaries: true}

	res, err := pipeline.New(pipeline.Config{}, nil, pipeline.WithReporter(reporter)).Run(context.Background(), pipeline.Input{
		Texts: []pipeline.Source{{Text: answerstest.QuizText(1, 3, 1, 3)}},
	})
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageReported, res.Stage)

	for _, name := range []string{TextReportName, ResultsName + ".yaml", collate.SummaryFilename(1)} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestDirReporterUnwritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	err := DirReporter{Dir: filepath.Join(file, "sub")}.Report(context.Background(), runPipeline(t, answerstest.QuizText(1)))
	require.Error(t, err)
}

func TestParseChartKind(t *testing.T) {
	tests := []struct {
		input   string
		want    ChartKind
		wantErr bool
	}{
		{input: "1", want: Scatter},
		{input: "scatter", want: Scatter},
		{input: "2", want: Lines},
		{input: "LINES", want: Lines},
		{input: "3", wantErr: true},
		{input: "pie", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChartKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildSeries(t *testing.T) {
	res := runPipeline(t, answerstest.QuizText(1, 2), answerstest.QuizText(3, 4))

	scatter, err := BuildSeries(Scatter, res)
	require.NoError(t, err)
	assert.Equal(t, "scatter", scatter.Kind)
	require.Len(t, scatter.Lines, 1)
	require.Len(t, scatter.Lines[0].Points, answers.QuestionCount)
	assert.Equal(t, Point{Question: 1, Value: 2}, scatter.Lines[0].Points[0])
	assert.Equal(t, Point{Question: 2, Value: 3}, scatter.Lines[0].Points[1])
	require.NotNil(t, scatter.Reference)
	assert.Equal(t, 2.5, *scatter.Reference)

	lines, err := BuildSeries(Lines, res)
	require.NoError(t, err)
	require.Len(t, lines.Lines, 2)
	assert.Equal(t, "Respondent 2", lines.Lines[1].Label)
	assert.Equal(t, 4.0, lines.Lines[1].Points[1].Value)
	assert.Equal(t, 4.5, lines.YMax)
}

func TestBuildSeriesErrors(t *testing.T) {
	_, err := BuildSeries(ChartKind(3), &pipeline.Results{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = BuildSeries(Scatter, &pipeline.Results{})
	assert.True(t, errors.IsNoData(err))

	_, err = BuildSeries(Lines, &pipeline.Results{})
	assert.True(t, errors.IsNoData(err))
}
