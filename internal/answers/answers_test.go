package answers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quizBlock renders one question with the selected option (0 for none).
func quizBlock(k, selected int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d. What is option %d?\n", k, k)
	for j := 1; j <= OptionCount; j++ {
		if j == selected {
			fmt.Fprintf(&b, "[x] option %d\n", j)
		} else {
			fmt.Fprintf(&b, "[ ] option %d\n", j)
		}
	}
	return b.String()
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[int]int // position -> answer; all others 0
	}{
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
		{
			name:     "whitespace only",
			input:    "  \n\n \t",
			expected: nil,
		},
		{
			name:     "third option selected",
			input:    quizBlock(1, 3),
			expected: map[int]int{0: 3},
		},
		{
			name:     "no option selected",
			input:    quizBlock(1, 0) + quizBlock(2, 4),
			expected: map[int]int{1: 4},
		},
		{
			name:     "blank lines between blocks",
			input:    quizBlock(1, 1) + "\n\n\n" + quizBlock(2, 2) + "\n" + quizBlock(3, 3),
			expected: map[int]int{0: 1, 1: 2, 2: 3},
		},
		{
			name:     "out of order header ignored",
			input:    quizBlock(2, 4) + quizBlock(1, 2),
			expected: map[int]int{0: 2},
		},
		{
			name:     "duplicate header ignored",
			input:    quizBlock(1, 1) + quizBlock(1, 4) + quizBlock(2, 3),
			expected: map[int]int{0: 1, 1: 3},
		},
		{
			name:     "non option line ends lookahead",
			input:    "Question 1. Q\n[ ] a\nnot an option\n[x] c\n[ ] d\n",
			expected: nil,
		},
		{
			name:     "indented lines are trimmed",
			input:    "   Question 1. Q\n   [ ] a\n   [x] b\n",
			expected: map[int]int{0: 2},
		},
		{
			name:     "header at end of input",
			input:    quizBlock(1, 2) + "Question 2. last",
			expected: map[int]int{0: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var want Vector
			for p, a := range tt.expected {
				want[p] = a
			}
			assert.Equal(t, want, Extract(tt.input))
		})
	}
}

func TestExtractFullQuiz(t *testing.T) {
	var b strings.Builder
	var want Vector
	for k := 1; k <= 120; k++ {
		sel := (k % 5)
		b.WriteString(quizBlock(k, sel))
		if k <= QuestionCount {
			want[k-1] = sel
		}
	}

	got := Extract(b.String())
	assert.Equal(t, want, got)
	assert.Len(t, got, QuestionCount)
	for _, a := range got {
		assert.GreaterOrEqual(t, a, 0)
		assert.LessOrEqual(t, a, OptionCount)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	text := quizBlock(1, 3) + "\n" + quizBlock(2, 1) + "junk\n" + quizBlock(3, 0)
	assert.Equal(t, Extract(text), Extract(text))
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "answers_respondent_1.txt")
	require.NoError(t, os.WriteFile(path, []byte(quizBlock(1, 4)), 0o644))

	v, err := ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, v[0])

	_, err = ExtractFile(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "missing.txt")

	bad := filepath.Join(dir, "binary.txt")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xfe, 0xfd}, 0o644))
	_, err = ExtractFile(bad)
	require.Error(t, err)
	assert.True(t, errors.IsFormat(err))
}

func TestValidate(t *testing.T) {
	ok := make([]int, QuestionCount)
	ok[0], ok[99] = 4, 1
	v, err := Validate(ok)
	require.NoError(t, err)
	assert.Equal(t, 4, v[0])
	assert.Equal(t, 1, v[99])

	_, err = Validate(make([]int, 99))
	assert.True(t, errors.IsValidation(err))

	bad := make([]int, QuestionCount)
	bad[10] = 5
	_, err = Validate(bad)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "answer 11")

	bad[10] = -1
	_, err = Validate(bad)
	assert.True(t, errors.IsValidation(err))
}

func TestSummaryRoundTrip(t *testing.T) {
	var v Vector
	copy(v[:], []int{1, 2, 3, 4, 0, 0, 2})

	line := SummaryLine(v)
	assert.True(t, strings.HasPrefix(line, "Answer sequence: 1 2 3 4 0 0 2 0"))

	parsed, err := ParseSummaryLine(line)
	require.NoError(t, err)
	assert.Equal(t, v, parsed)

	doc := FormatSummary(v)
	assert.Contains(t, doc, "Question 1: 1\n")
	assert.Contains(t, doc, "Question 100: 0\n")

	found, err := FindSummary(doc)
	require.NoError(t, err)
	assert.Equal(t, v, found)
}

func TestParseSummaryLineErrors(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantCheck func(error) bool
	}{
		{"missing prefix", "1 2 3", errors.IsFormat},
		{"too few values", "Answer sequence: 1 2 3", errors.IsValidation},
		{"non integer", "Answer sequence: " + strings.Repeat("1 ", 99) + "x", errors.IsValidation},
		{"out of range", "Answer sequence: " + strings.Repeat("1 ", 99) + "7", errors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSummaryLine(tt.line)
			require.Error(t, err)
			assert.True(t, tt.wantCheck(err), err.Error())
		})
	}

	_, err := FindSummary("Question 1: 1\n")
	assert.True(t, errors.IsFormat(err))
}

func TestVectorHelpers(t *testing.T) {
	var v Vector
	for i := 0; i < 25; i++ {
		v[i] = 2
	}
	assert.Equal(t, 25, v.Answered())
	assert.InDelta(t, 25.0, v.CompletionRate(), 1e-9)

	s := v.Slice()
	s[0] = 4
	assert.Equal(t, 2, v[0])
}
