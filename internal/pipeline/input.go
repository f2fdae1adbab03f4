package pipeline

import (
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/quizstat/internal/answers"
	"github.com/ZanzyTHEbar/quizstat/internal/collate"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

// Source is one respondent's raw quiz text held in memory.
type Source struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Input names where a run gets its respondents. Exactly one field is set.
type Input struct {
	DataDir      string
	CollatedFile string
	Collated     string
	Texts        []Source
	SummaryFiles []string
}

func (in Input) validate() error {
	set := 0
	for _, ok := range []bool{
		in.DataDir != "",
		in.CollatedFile != "",
		in.Collated != "",
		len(in.Texts) > 0,
		len(in.SummaryFiles) > 0,
	} {
		if ok {
			set++
		}
	}
	switch set {
	case 0:
		return errors.NewValidationError("no input: set a data directory, collated document, respondent texts or summary files")
	case 1:
		return nil
	}
	return errors.NewValidationError("conflicting inputs: exactly one source of respondents may be given")
}

// extraction is the outcome for one source; err set means skip it.
type extraction struct {
	respondent answers.Respondent
	err        error
}

func extractSources(sources []Source) []extraction {
	out := make([]extraction, 0, len(sources))
	for i, s := range sources {
		name := s.Name
		if name == "" {
			name = collate.RespondentFilename(i + 1)
		}
		out = append(out, extraction{respondent: answers.Respondent{
			ID:      i + 1,
			Source:  name,
			Answers: answers.Extract(s.Text),
		}})
	}
	return out
}

func extractSections(sections []collate.Section, source string) []extraction {
	out := make([]extraction, 0, len(sections))
	for i, sec := range sections {
		id := sec.Respondent
		if id == 0 {
			id = i + 1
		}
		out = append(out, extraction{respondent: answers.Respondent{
			ID:      id,
			Source:  source,
			Answers: answers.Extract(sec.Text()),
		}})
	}
	return out
}

// extractEntries uses raw files first and falls back to a respondent's
// summary list only when no raw file exists for it.
func extractEntries(entries []collate.Entry) []extraction {
	raw := make(map[int]bool)
	for _, e := range entries {
		if !collate.IsSummaryFile(e.Filename) {
			raw[e.Respondent] = true
		}
	}

	out := make([]extraction, 0, len(entries))
	for _, e := range entries {
		summary := collate.IsSummaryFile(e.Filename)
		if summary && raw[e.Respondent] {
			continue
		}
		ex := extraction{respondent: answers.Respondent{ID: e.Respondent, Source: e.Filename}}
		switch {
		case e.Err != nil:
			ex.err = errors.NewFormatError(e.Filename, "cannot read file", e.Err)
		case !utf8.ValidString(e.Content):
			ex.err = errors.NewFormatError(e.Filename, "content is not valid UTF-8 text", nil)
		case summary:
			v, err := answers.FindSummary(e.Content)
			ex.respondent.Answers, ex.err = v, errors.WrapError(err, "summary %s", e.Filename)
		default:
			ex.respondent.Answers = answers.Extract(e.Content)
		}
		out = append(out, ex)
	}
	return out
}

func extractSummaryFiles(paths []string) []extraction {
	out := make([]extraction, 0, len(paths))
	for i, p := range paths {
		name := filepath.Base(p)
		id, ok := collate.RespondentNumber(name)
		if !ok {
			id = i + 1
		}
		ex := extraction{respondent: answers.Respondent{ID: id, Source: name}}

		data, err := os.ReadFile(p)
		switch {
		case os.IsNotExist(err):
			ex.err = errors.NewNotFoundError(p, err)
		case err != nil:
			ex.err = errors.NewFormatError(p, "cannot read file", err)
		default:
			v, err := answers.FindSummary(string(data))
			ex.respondent.Answers, ex.err = v, errors.WrapError(err, "summary %s", name)
		}
		out = append(out, ex)
	}
	return out
}
