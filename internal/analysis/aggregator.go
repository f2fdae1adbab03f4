package analysis

import (
	"math"

	"github.com/ZanzyTHEbar/quizstat/internal/answers"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

// ComputeMeans reduces respondent vectors column by column. Each position's
// mean covers only the respondents who answered it. Integer sums keep the
// result independent of vector order.
func ComputeMeans(vectors []answers.Vector) (Means, error) {
	var m Means
	if len(vectors) == 0 {
		return m, errors.NewNoDataError("compute means", "no answer vectors supplied")
	}

	var sums, counts [answers.QuestionCount]int
	for _, v := range vectors {
		for p, a := range v {
			if a > 0 {
				sums[p] += a
				counts[p]++
			}
		}
	}

	answered := 0
	for p := range m {
		if counts[p] > 0 {
			m[p] = float64(sums[p]) / float64(counts[p])
			answered++
		}
	}

	if answered == 0 {
		return m, errors.NewNoDataError("compute means", "every answer vector is entirely unanswered")
	}
	return m, nil
}

// ComputeStatistics describes the answered subset of m. Unanswered positions
// count toward completion but not toward the moments.
func ComputeStatistics(m Means) (Statistics, error) {
	valid := m.Answered()
	if len(valid) == 0 {
		return Statistics{}, errors.NewNoDataError("compute statistics", "no answered questions in means sequence")
	}

	lo, hi := minMax(valid)
	v := variance(valid)

	return Statistics{
		TotalQuestions:      len(m),
		AnsweredQuestions:   len(valid),
		UnansweredQuestions: len(m) - len(valid),
		CompletionRate:      float64(len(valid)) / float64(len(m)) * 100,
		Mean:                mean(valid),
		Median:              median(valid),
		StdDev:              math.Sqrt(v),
		Min:                 lo,
		Max:                 hi,
		Variance:            v,
	}, nil
}
