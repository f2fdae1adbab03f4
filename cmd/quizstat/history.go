package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/quizstat/internal/database"
	"github.com/ZanzyTHEbar/quizstat/internal/encoding"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/ZanzyTHEbar/quizstat/internal/pipeline"
	"github.com/ZanzyTHEbar/quizstat/internal/report"
)

// openHistory opens the configured run history; nil when none is configured.
func (a *app) openHistory() (*database.DB, error) {
	if a.cfg.History.DBPath == "" {
		return nil, nil
	}
	return database.Open(a.cfg.History.DBPath)
}

// record saves res to the run history when one is configured.
func (a *app) record(ctx context.Context, res *pipeline.Results) error {
	if res == nil {
		return nil
	}
	db, err := a.openHistory()
	if err != nil || db == nil {
		return err
	}
	defer errors.SafeClose(db, "history database")
	return database.NewRepository(db).SaveRun(ctx, res)
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analysis runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHistory(func(repo *database.Repository) error {
				runs, err := repo.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTAGE\tRESPONDENTS\tFINDINGS\tRANDOMNESS\tHYPOTHESIS")
				for _, r := range runs {
					hypothesis := r.Hypothesis
					if r.Failed {
						hypothesis = "failed"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.3f\t%s\n",
						r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Stage,
						r.Respondents, r.Findings, r.RandomnessScore, hypothesis)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "how many runs to list")
	cmd.Flags().String("db", "", "history database path")
	a.bind(cmd, "history.db_path", "db")

	cmd.AddCommand(newHistoryShowCmd(a))
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(func(repo *database.Repository) error {
				res, err := repo.GetResults(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if format == "text" {
					return report.WriteText(cmd.OutOrStdout(), res)
				}
				f, err := encoding.ParseFormat(format)
				if err != nil {
					return err
				}
				return encoding.Encode(cmd.OutOrStdout(), f, res)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")
	cmd.Flags().String("db", "", "history database path")
	a.bind(cmd, "history.db_path", "db")
	return cmd
}

func (a *app) withHistory(fn func(*database.Repository) error) error {
	db, err := a.openHistory()
	if err != nil {
		return err
	}
	if db == nil {
		return errors.NewValidationError("no run history configured: set history.db_path or pass --db")
	}
	defer errors.SafeClose(db, "history database")
	return fn(database.NewRepository(db))
}
