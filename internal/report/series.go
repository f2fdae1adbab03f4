package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/quizstat/internal/answers"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/ZanzyTHEbar/quizstat/internal/pipeline"
)

// ChartKind selects which chart a Series describes.
type ChartKind int

const (
	// Scatter plots the per-question means.
	Scatter ChartKind = 1
	// Lines plots every respondent's answers as its own line.
	Lines ChartKind = 2
)

func (k ChartKind) String() string {
	switch k {
	case Scatter:
		return "scatter"
	case Lines:
		return "lines"
	}
	return strconv.Itoa(int(k))
}

// ParseChartKind accepts the kind's name or its number.
func ParseChartKind(s string) (ChartKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "scatter":
		return Scatter, nil
	case "2", "lines":
		return Lines, nil
	}
	return 0, errors.NewValidationError(fmt.Sprintf("chart kind must be 1 (scatter) or 2 (lines), got %q", s), "kind", s)
}

type Point struct {
	Question int     `json:"question" yaml:"question"`
	Value    float64 `json:"value" yaml:"value"`
}

type Line struct {
	Label  string  `json:"label" yaml:"label"`
	Points []Point `json:"points" yaml:"points"`
}

// Series is chart-ready data; rendering is left to the consumer.
type Series struct {
	Kind   string  `json:"kind" yaml:"kind"`
	Title  string  `json:"title" yaml:"title"`
	XLabel string  `json:"x_label" yaml:"x_label"`
	YLabel string  `json:"y_label" yaml:"y_label"`
	YMax   float64 `json:"y_max" yaml:"y_max"`
	Lines  []Line  `json:"lines" yaml:"lines"`
	// Reference is the overall mean drawn across a scatter chart.
	Reference *float64 `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// BuildSeries derives chart data of the given kind from res.
func BuildSeries(kind ChartKind, res *pipeline.Results) (*Series, error) {
	switch kind {
	case Scatter:
		if res.Means == nil {
			return nil, errors.NewNoDataError("scatter series", "results carry no means sequence")
		}
		points := make([]Point, answers.QuestionCount)
		for i, m := range res.Means {
			points[i] = Point{Question: i + 1, Value: m}
		}
		s := &Series{
			Kind:   kind.String(),
			Title:  "Mean Answer Values by Question",
			XLabel: "Question Number",
			YLabel: "Mean Answer Value",
			YMax:   answers.OptionCount + 0.5,
			Lines:  []Line{{Label: "Mean", Points: points}},
		}
		if res.Statistics != nil {
			mean := res.Statistics.Mean
			s.Reference = &mean
		}
		return s, nil

	case Lines:
		if len(res.Respondents) == 0 {
			return nil, errors.NewNoDataError("lines series", "results carry no respondents")
		}
		lines := make([]Line, 0, len(res.Respondents))
		for _, r := range res.Respondents {
			points := make([]Point, answers.QuestionCount)
			for i, a := range r.Answers {
				points[i] = Point{Question: i + 1, Value: float64(a)}
			}
			lines = append(lines, Line{Label: fmt.Sprintf("Respondent %d", r.ID), Points: points})
		}
		return &Series{
			Kind:   kind.String(),
			Title:  "Individual Answer Sequences",
			XLabel: "Question Number",
			YLabel: "Selected Option",
			YMax:   answers.OptionCount + 0.5,
			Lines:  lines,
		}, nil
	}
	return nil, errors.NewValidationError(fmt.Sprintf("chart kind must be 1 (scatter) or 2 (lines), got %d", int(kind)), "kind", int(kind))
}
