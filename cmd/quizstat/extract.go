package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/quizstat/internal/answers"
	"github.com/ZanzyTHEbar/quizstat/internal/encoding"
	"github.com/ZanzyTHEbar/quizstat/internal/types"
)

func newExtractCmd(_ *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract one respondent's answer vector from a raw quiz file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := answers.ExtractFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "text" {
				fmt.Fprintln(out, answers.SummaryLine(v))
				fmt.Fprintf(out, "Answered: %d/%d (%.1f%%)\n", v.Answered(), answers.QuestionCount, v.CompletionRate())
				return nil
			}

			f, err := encoding.ParseFormat(format)
			if err != nil {
				return err
			}
			return encoding.Encode(out, f, types.NewExtractResponse(v))
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")
	return cmd
}
