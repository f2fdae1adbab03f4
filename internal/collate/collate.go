// Package collate reads and writes the combined multi-respondent document and
// loads per-respondent files from a data directory.
package collate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

const (
	// StartMarker marks where respondent data begins in a collated document.
	StartMarker = "RESPONDENT 1"
	// CompleteMarker appears in the collated document footer.
	CompleteMarker = "COLLATION COMPLETE"
	// Title heads every collated document.
	Title = "COLLATED QUIZ ANSWERS"

	// minSectionLength filters out headers and stray separators.
	minSectionLength = 100

	respondentPrefix     = "answers_respondent_"
	respondentListPrefix = "answers_list_respondent_"
)

var (
	separatorPattern = regexp.MustCompile(`(?m)^\*\s*$`)
	headerPattern    = regexp.MustCompile(`(?m)^\s*RESPONDENT\s+(\d+)\s*$`)
)

// Section is one respondent's quiz lines taken from a collated document.
type Section struct {
	Respondent int
	Lines      []string
}

// Text joins the section lines for extraction.
func (s Section) Text() string {
	return strings.Join(s.Lines, "\n")
}

// Split cuts a collated document into respondent sections. Everything before
// the first "RESPONDENT 1" is ignored; a document without it is a FormatError.
func Split(doc string) ([]Section, error) {
	start := strings.Index(doc, StartMarker)
	if start == -1 {
		return nil, errors.NewFormatError("collated document", "could not find respondent data ("+StartMarker+" marker missing)", nil)
	}

	var sections []Section
	for _, raw := range separatorPattern.Split(doc[start:], -1) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.Contains(raw, CompleteMarker) || len(raw) < minSectionLength {
			continue
		}

		id := len(sections) + 1
		if m := headerPattern.FindStringSubmatch(raw); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				id = n
			}
		}

		sections = append(sections, Section{Respondent: id, Lines: quizLines(raw)})
	}

	return sections, nil
}

// SplitFile reads a collated document from disk and splits it.
func SplitFile(path string) ([]Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(path, err)
		}
		return nil, errors.NewFormatError(path, "cannot read collated document", err)
	}
	if !utf8.Valid(data) {
		return nil, errors.NewFormatError(path, "content is not valid UTF-8 text", nil)
	}

	sections, err := Split(string(data))
	if err != nil {
		return nil, errors.WrapError(err, "splitting %s", path)
	}
	return sections, nil
}

// quizLines keeps question and option lines plus blank lines, dropping
// respondent headers and underlines.
func quizLines(section string) []string {
	var out []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Question "), strings.HasPrefix(line, "["):
			out = append(out, line)
		case line == "":
			out = append(out, line)
		}
	}
	return out
}

// Entry is one respondent file destined for a collated document.
type Entry struct {
	Respondent int
	Filename   string
	Content    string
	// Err is set when the file could not be read; Build writes it inline.
	Err error
}

// Build renders entries as a collated document.
func Build(entries []Entry) string {
	var b strings.Builder
	b.WriteString(Title + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	for _, e := range entries {
		fmt.Fprintf(&b, "RESPONDENT %d\n", e.Respondent)
		b.WriteString(strings.Repeat("-", 20) + "\n")
		if e.Err != nil {
			fmt.Fprintf(&b, "ERROR: error reading %s: %v\n\n", e.Filename, e.Err)
		} else {
			b.WriteString(strings.TrimSpace(e.Content))
			b.WriteString("\n\n")
		}
		// The footer gets its own section so Split never drops the last respondent.
		b.WriteString("*\n\n")
	}

	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "%s - %d FILES PROCESSED\n", CompleteMarker, len(entries))
	return b.String()
}

// RespondentNumber parses n out of answers_respondent_<n>.txt or
// answers_list_respondent_<n>.txt.
func RespondentNumber(filename string) (int, bool) {
	if !strings.HasSuffix(filename, ".txt") {
		return 0, false
	}
	base := strings.TrimSuffix(filename, ".txt")
	switch {
	case strings.HasPrefix(base, respondentListPrefix):
		base = strings.TrimPrefix(base, respondentListPrefix)
	case strings.HasPrefix(base, respondentPrefix):
		base = strings.TrimPrefix(base, respondentPrefix)
	default:
		return 0, false
	}
	n, err := strconv.Atoi(base)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// IsSummaryFile reports whether filename is an answers_list_respondent_ file.
func IsSummaryFile(filename string) bool {
	return strings.HasPrefix(filename, respondentListPrefix)
}

// RespondentFilename is the canonical raw file name for respondent n.
func RespondentFilename(n int) string {
	return fmt.Sprintf("%s%d.txt", respondentPrefix, n)
}

// SummaryFilename is the summary list file name for respondent n.
func SummaryFilename(n int) string {
	return fmt.Sprintf("%s%d.txt", respondentListPrefix, n)
}

// LoadDir reads every respondent file in dir, ordered by respondent number.
// Files that fail to read are returned with Err set rather than aborting.
func LoadDir(dir string) ([]Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(dir, err)
		}
		return nil, errors.NewFormatError(dir, "cannot stat data folder", err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError(fmt.Sprintf("path is not a directory: %s", dir))
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewFormatError(dir, "cannot list data folder", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		n, ok := RespondentNumber(de.Name())
		if !ok {
			continue
		}
		e := Entry{Respondent: n, Filename: de.Name()}
		data, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			e.Err = err
		} else {
			e.Content = string(data)
		}
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("answer files in %s", dir), nil)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Respondent != entries[j].Respondent {
			return entries[i].Respondent < entries[j].Respondent
		}
		return entries[i].Filename < entries[j].Filename
	})

	return entries, nil
}
