// Package answerstest renders quiz sheets for tests of packages that consume
// raw respondent text.
package answerstest

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/quizstat/internal/answers"
)

// QuizText renders one question per element of selected, marking that option
// as chosen. 0 leaves the question unanswered.
func QuizText(selected ...int) string {
	var b strings.Builder
	for i, sel := range selected {
		fmt.Fprintf(&b, "Question %d. Pick one\n", i+1)
		for j := 1; j <= answers.OptionCount; j++ {
			mark := "[ ]"
			if j == sel {
				mark = "[x]"
			}
			fmt.Fprintf(&b, "%s choice %d\n", mark, j)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Repeat returns n copies of value, handy for building QuizText arguments.
func Repeat(value, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = value
	}
	return out
}
