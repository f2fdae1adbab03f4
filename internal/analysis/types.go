package analysis

import "github.com/ZanzyTHEbar/quizstat/internal/answers"

// Means holds the per-question mean of non-zero answers; 0 marks a question
// nobody answered.
type Means [answers.QuestionCount]float64

// Answered returns the positive means in question order.
func (m Means) Answered() []float64 {
	out := make([]float64, 0, len(m))
	for _, v := range m {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

type Statistics struct {
	TotalQuestions      int     `json:"total_questions" yaml:"total_questions"`
	AnsweredQuestions   int     `json:"answered_questions" yaml:"answered_questions"`
	UnansweredQuestions int     `json:"unanswered_questions" yaml:"unanswered_questions"`
	CompletionRate      float64 `json:"completion_rate" yaml:"completion_rate"`
	Mean                float64 `json:"overall_mean" yaml:"overall_mean"`
	Median              float64 `json:"median" yaml:"median"`
	StdDev              float64 `json:"std_deviation" yaml:"std_deviation"`
	Min                 float64 `json:"min_mean" yaml:"min_mean"`
	Max                 float64 `json:"max_mean" yaml:"max_mean"`
	Variance            float64 `json:"variance" yaml:"variance"`
}

type FindingKind string

const (
	KindArithmeticProgression FindingKind = "arithmetic_progression"
	KindCyclicPattern         FindingKind = "cyclic_pattern"
)

type ArithmeticProgression struct {
	Start            int     `json:"start_position" yaml:"start_position"`
	Length           int     `json:"length" yaml:"length"`
	CommonDifference float64 `json:"common_difference" yaml:"common_difference"`
}

type CyclicPattern struct {
	CycleLength int       `json:"cycle_length" yaml:"cycle_length"`
	Pattern     []float64 `json:"pattern" yaml:"pattern"`
}

// Finding is a detected regularity in the answered subset. Exactly one of
// Arithmetic and Cyclic is set, matching Kind.
type Finding struct {
	Kind       FindingKind            `json:"type" yaml:"type"`
	Arithmetic *ArithmeticProgression `json:"arithmetic,omitempty" yaml:"arithmetic,omitempty"`
	Cyclic     *CyclicPattern         `json:"cyclic,omitempty" yaml:"cyclic,omitempty"`
}

// ConsistentRun marks consecutive answered questions whose means barely move.
// Questions are 1-based positions within the answered subset.
type ConsistentRun struct {
	StartQuestion int `json:"start_question" yaml:"start_question"`
	EndQuestion   int `json:"end_question" yaml:"end_question"`
}

type PatternTests struct {
	Entropy          float64 `json:"entropy" yaml:"entropy"`
	EntropyRatio     float64 `json:"entropy_ratio" yaml:"entropy_ratio"`
	TrendCorrelation float64 `json:"trend_correlation" yaml:"trend_correlation"`
	RandomnessScore  float64 `json:"randomness_score" yaml:"randomness_score"`
	// Set only when raw respondent vectors were available.
	AnswerDistribution     map[int]float64 `json:"answer_distribution,omitempty" yaml:"answer_distribution,omitempty"`
	DistributionUniformity *float64        `json:"distribution_uniformity,omitempty" yaml:"distribution_uniformity,omitempty"`
}

type Hypothesis string

const (
	HypothesisDeliberate   Hypothesis = "deliberate_pattern"
	HypothesisRandom       Hypothesis = "random"
	HypothesisInconclusive Hypothesis = "inconclusive"
)

// Report is everything the detector produces for one run.
type Report struct {
	Findings       []Finding       `json:"patterns_found" yaml:"patterns_found"`
	ConsistentRuns []ConsistentRun `json:"consistent_runs" yaml:"consistent_runs"`
	Tests          PatternTests    `json:"pattern_tests" yaml:"pattern_tests"`
	Summary        string          `json:"analysis_summary" yaml:"analysis_summary"`
	Hypothesis     Hypothesis      `json:"hypothesis" yaml:"hypothesis"`
}
