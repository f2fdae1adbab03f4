package answers

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

const (
	selectedMarker = "[x]"
	optionPrefix   = "["
	// blockSize is a question header plus its option lines.
	blockSize = 1 + OptionCount
)

// Extract parses one respondent's quiz text into a Vector.
//
// Headers must appear in order as "Question k." where k is one past the number
// found so far; anything else is skipped. The first option line carrying the
// selected marker within the following OptionCount lines gives the answer. A
// line that is not option-shaped ends the lookahead early. Missing questions
// stay 0. Malformed content never fails.
func Extract(text string) Vector {
	var v Vector

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return v
	}
	lines := strings.Split(trimmed, "\n")

	found := 0
	for i := 0; i < len(lines) && found < QuestionCount; {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, questionHeader(found+1)) {
			i++
			continue
		}

		v[found] = selectedOption(lines, i)
		found++
		i += blockSize
	}

	return v
}

// ExtractFile reads and extracts a respondent file. A missing file is a
// NotFoundError and bytes that are not UTF-8 text are a FormatError.
func ExtractFile(path string) (Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Vector{}, errors.NewNotFoundError(path, err)
		}
		return Vector{}, errors.NewFormatError(path, "cannot read file", err)
	}
	if !utf8.Valid(data) {
		return Vector{}, errors.NewFormatError(path, "content is not valid UTF-8 text", nil)
	}
	return Extract(string(data)), nil
}

func questionHeader(k int) string {
	return "Question " + strconv.Itoa(k) + "."
}

// selectedOption inspects the lines after the header at index h.
func selectedOption(lines []string, h int) int {
	for j := 1; j <= OptionCount && h+j < len(lines); j++ {
		option := strings.TrimSpace(lines[h+j])
		if strings.HasPrefix(option, selectedMarker) {
			return j
		}
		if !strings.HasPrefix(option, optionPrefix) {
			break
		}
	}
	return 0
}
