package analysis

import (
	"math"

	"github.com/ZanzyTHEbar/quizstat/internal/answers"
)

const (
	DefaultTolerance           = 0.1
	DefaultMaxCycleLength      = 7
	DefaultConsistentRunLength = 4

	expectedProportion = 1.0 / answers.OptionCount
)

// maxEntropy is the entropy of a uniform choice among the options.
var maxEntropy = math.Log2(answers.OptionCount)

// Detector runs the structural heuristics over an answered subset. None of
// its checks fail: missing data degrades to zero values.
type Detector struct {
	tolerance      float64
	maxCycleLength int
	runLength      int
}

// NewDetector creates a detector; non-positive arguments fall back to defaults.
func NewDetector(tolerance float64, maxCycleLength int) *Detector {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if maxCycleLength < 2 {
		maxCycleLength = DefaultMaxCycleLength
	}
	return &Detector{
		tolerance:      tolerance,
		maxCycleLength: maxCycleLength,
		runLength:      DefaultConsistentRunLength,
	}
}

// Detect analyses m and, when given, the raw vectors behind it.
func (d *Detector) Detect(m Means, vectors []answers.Vector) Report {
	v := m.Answered()

	findings := d.ArithmeticProgressions(v)
	if cyc := d.CyclicPattern(v); cyc != nil {
		findings = append(findings, *cyc)
	}

	entropy, ratio := Entropy(v)
	r := TrendCorrelation(v)
	tests := PatternTests{
		Entropy:          entropy,
		EntropyRatio:     ratio,
		TrendCorrelation: r,
		RandomnessScore:  ratio * (1 - math.Abs(r)),
	}
	if len(vectors) > 0 {
		tests.AnswerDistribution, tests.DistributionUniformity = DistributionUniformity(vectors)
	}

	report := Report{
		Findings:       findings,
		ConsistentRuns: d.ConsistentRuns(v),
		Tests:          tests,
	}
	report.Summary = Summarize(report)
	report.Hypothesis = Hypothesize(report)
	return report
}

// ArithmeticProgressions reports every window of three whose two steps agree
// within tolerance. Overlapping windows are all reported.
func (d *Detector) ArithmeticProgressions(v []float64) []Finding {
	findings := []Finding{}
	for i := 0; i+2 < len(v); i++ {
		diff1 := v[i+1] - v[i]
		diff2 := v[i+2] - v[i+1]
		if math.Abs(diff1-diff2) < d.tolerance {
			findings = append(findings, Finding{
				Kind: KindArithmeticProgression,
				Arithmetic: &ArithmeticProgression{
					Start:            i,
					Length:           3,
					CommonDifference: diff1,
				},
			})
		}
	}
	return findings
}

// CyclicPattern tries cycle lengths from 2 up to min(maxCycleLength, len/2)
// and returns the first one that repeats across the whole sequence.
func (d *Detector) CyclicPattern(v []float64) *Finding {
	limit := len(v) / 2
	if d.maxCycleLength < limit {
		limit = d.maxCycleLength
	}

	for l := 2; l <= limit; l++ {
		if d.repeats(v, l) {
			return &Finding{
				Kind: KindCyclicPattern,
				Cyclic: &CyclicPattern{
					CycleLength: l,
					Pattern:     append([]float64(nil), v[:l]...),
				},
			}
		}
	}
	return nil
}

func (d *Detector) repeats(v []float64, l int) bool {
	for i := l; i < len(v); i++ {
		if math.Abs(v[i]-v[i%l]) >= d.tolerance {
			return false
		}
	}
	return true
}

// ConsistentRuns reports every window of runLength answered questions whose
// neighbouring means all sit within tolerance of each other.
func (d *Detector) ConsistentRuns(v []float64) []ConsistentRun {
	runs := []ConsistentRun{}
	for i := 0; i+d.runLength <= len(v); i++ {
		steady := true
		for j := i; j < i+d.runLength-1; j++ {
			if math.Abs(v[j]-v[j+1]) >= d.tolerance {
				steady = false
				break
			}
		}
		if steady {
			runs = append(runs, ConsistentRun{StartQuestion: i + 1, EndQuestion: i + d.runLength})
		}
	}
	return runs
}

// Entropy returns the Shannon entropy of v rounded to one decimal, and that
// entropy normalised by the four-option maximum. Means can take more than four
// distinct values, so the ratio is capped at 1.
func Entropy(v []float64) (entropy, ratio float64) {
	entropy = shannonEntropy(v)
	return entropy, clip(entropy/maxEntropy, 0, 1)
}

// TrendCorrelation is Pearson's r between position and value.
func TrendCorrelation(v []float64) float64 {
	return pearson(v)
}

// DistributionUniformity counts options 1-4 over every answered slot and
// returns their proportions with a chi-squared-like distance from uniform.
// Both results are nil when nobody answered anything.
func DistributionUniformity(vectors []answers.Vector) (map[int]float64, *float64) {
	var counts [answers.OptionCount + 1]int
	total := 0
	for _, v := range vectors {
		for _, a := range v {
			if a > 0 && a <= answers.OptionCount {
				counts[a]++
				total++
			}
		}
	}
	if total == 0 {
		return nil, nil
	}

	dist := make(map[int]float64, answers.OptionCount)
	chi := 0.0
	for opt := 1; opt <= answers.OptionCount; opt++ {
		p := float64(counts[opt]) / float64(total)
		dist[opt] = p
		chi += (p - expectedProportion) * (p - expectedProportion) / expectedProportion
	}
	return dist, &chi
}
