package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Bands used to read the heuristic scores.
const (
	highRandomness     = 0.8
	moderateRandomness = 0.5
	randomHypothesis   = 0.7
	strongTrend        = 0.7
	weakTrend          = 0.3
)

// Summarize renders a report for humans.
func Summarize(r Report) string {
	var lines []string

	if len(r.Findings) > 0 {
		lines = append(lines, fmt.Sprintf("PATTERNS DETECTED (%d found):", len(r.Findings)))
		for i, f := range r.Findings {
			switch f.Kind {
			case KindArithmeticProgression:
				lines = append(lines, fmt.Sprintf("  %d. Arithmetic progression starting at position %d", i+1, f.Arithmetic.Start))
			case KindCyclicPattern:
				lines = append(lines, fmt.Sprintf("  %d. Cyclic pattern with cycle length %d", i+1, f.Cyclic.CycleLength))
			}
		}
	} else {
		lines = append(lines, "No clear mathematical patterns detected in answer sequences.")
	}

	randomness := r.Tests.RandomnessScore
	switch {
	case randomness > highRandomness:
		lines = append(lines, "\nRANDOMNESS ANALYSIS: High randomness - answers appear genuinely random")
	case randomness > moderateRandomness:
		lines = append(lines, "\nRANDOMNESS ANALYSIS: Moderate randomness - some structure may be present")
	default:
		lines = append(lines, "\nRANDOMNESS ANALYSIS: Low randomness - deliberate pattern likely present")
	}

	corr := r.Tests.TrendCorrelation
	switch {
	case math.Abs(corr) > strongTrend:
		direction := "increasing"
		if corr < 0 {
			direction = "decreasing"
		}
		lines = append(lines, fmt.Sprintf("TREND ANALYSIS: Strong %s trend detected (r=%.3f)", direction, corr))
	case math.Abs(corr) > weakTrend:
		lines = append(lines, fmt.Sprintf("TREND ANALYSIS: Weak trend present (r=%.3f)", corr))
	default:
		lines = append(lines, "TREND ANALYSIS: No significant trend in answer sequence")
	}

	return strings.Join(lines, "\n")
}

// Hypothesize picks the report's conclusion. Any finding wins; otherwise a
// high randomness score reads as random and anything else is inconclusive.
func Hypothesize(r Report) Hypothesis {
	if len(r.Findings) > 0 {
		return HypothesisDeliberate
	}
	if r.Tests.RandomnessScore > randomHypothesis {
		return HypothesisRandom
	}
	return HypothesisInconclusive
}
