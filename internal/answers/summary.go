package answers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

// SummaryPrefix starts the one-line form of a vector in summary list files.
const SummaryPrefix = "Answer sequence:"

// FormatSummary renders a vector as a summary list file: one
// "Question i: a" line per question, a blank line, then the sequence line.
func FormatSummary(v Vector) string {
	var b strings.Builder
	for i, a := range v {
		fmt.Fprintf(&b, "Question %d: %d\n", i+1, a)
	}
	b.WriteString("\n")
	b.WriteString(SummaryLine(v))
	b.WriteString("\n")
	return b.String()
}

// SummaryLine renders "Answer sequence: a1 a2 ... a100".
func SummaryLine(v Vector) string {
	parts := make([]string, len(v))
	for i, a := range v {
		parts[i] = strconv.Itoa(a)
	}
	return SummaryPrefix + " " + strings.Join(parts, " ")
}

// ParseSummaryLine parses a single "Answer sequence:" line.
func ParseSummaryLine(line string) (Vector, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, SummaryPrefix) {
		return Vector{}, errors.NewFormatError("", fmt.Sprintf("line does not start with %q", SummaryPrefix), nil)
	}

	fields := strings.Fields(strings.TrimPrefix(line, SummaryPrefix))
	values := make([]int, 0, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Vector{}, errors.NewValidationError(
				fmt.Sprintf("answer %d is not an integer: %q", i+1, f),
			)
		}
		values = append(values, n)
	}
	return Validate(values)
}

// FindSummary locates the first sequence line in a summary list file.
func FindSummary(text string) (Vector, error) {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), SummaryPrefix) {
			return ParseSummaryLine(line)
		}
	}
	return Vector{}, errors.NewFormatError("", "no answer sequence line found", nil)
}
