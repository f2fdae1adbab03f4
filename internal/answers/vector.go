package answers

import (
	"fmt"

	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

const (
	// QuestionCount is the fixed length of every answer vector.
	QuestionCount = 100
	// OptionCount is the number of selectable options per question.
	OptionCount = 4
)

// Vector is one respondent's answers. Index p holds question p+1:
// 0 means unanswered, 1-4 the selected option.
type Vector [QuestionCount]int

// Answered counts the non-zero entries.
func (v Vector) Answered() int {
	n := 0
	for _, a := range v {
		if a > 0 {
			n++
		}
	}
	return n
}

// CompletionRate is the answered share in percent.
func (v Vector) CompletionRate() float64 {
	return float64(v.Answered()) / QuestionCount * 100
}

// Slice returns a copy of the answers as a slice.
func (v Vector) Slice() []int {
	out := make([]int, QuestionCount)
	copy(out, v[:])
	return out
}

// Respondent ties an extracted vector to where it came from.
type Respondent struct {
	ID      int    `json:"id" yaml:"id"`
	Source  string `json:"source" yaml:"source"`
	Answers Vector `json:"answers" yaml:"answers"`
}

// Validate converts caller-supplied values into a Vector, rejecting anything
// that is not exactly QuestionCount long or holds a value outside 0..4.
func Validate(values []int) (Vector, error) {
	var v Vector
	if len(values) != QuestionCount {
		return v, errors.NewValidationError(
			fmt.Sprintf("answer vector must contain %d elements, got %d", QuestionCount, len(values)),
		)
	}
	for i, a := range values {
		if a < 0 || a > OptionCount {
			return v, errors.NewValidationError(
				fmt.Sprintf("answer %d is invalid: %d, must be between 0 and %d", i+1, a, OptionCount),
			)
		}
		v[i] = a
	}
	return v, nil
}
