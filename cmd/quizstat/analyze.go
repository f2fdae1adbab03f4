package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/quizstat/internal/adapters"
	"github.com/ZanzyTHEbar/quizstat/internal/encoding"
	"github.com/ZanzyTHEbar/quizstat/internal/pipeline"
	"github.com/ZanzyTHEbar/quizstat/internal/report"
)

type analyzeOptions struct {
	summaries      []string
	format         string
	writeSummaries bool
	download       bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run extraction, aggregation and pattern detection over a batch",
		Long: `Analyze reads respondents from a data directory (the default), a collated
document or a list of summary files, runs the full pipeline and writes the
text report and results document into the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAnalyze(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.String("data-dir", "", "directory of answers_respondent_<n>.txt files")
	f.String("collated", "", "collated document to analyze instead of a data directory")
	f.StringSliceVar(&opts.summaries, "summaries", nil, "summary list files to analyze instead of a data directory")
	f.String("output-dir", "", "where reports are written")
	f.StringVar(&opts.format, "format", "json", "results document format: json or yaml")
	f.BoolVar(&opts.writeSummaries, "write-summaries", false, "also write answers_list_respondent_<n>.txt per respondent")
	f.BoolVar(&opts.download, "download", false, "download respondent files into the data directory first")
	f.String("base-url", "", "answer host to download from")
	f.IntP("respondents", "n", 0, "number of respondents to download")
	f.Float64("tolerance", 0, "pattern detector tolerance")
	f.Int("max-cycle-length", 0, "longest cycle the detector tries")
	f.String("db", "", "record the run in this history database")

	a.bind(cmd, "data_dir", "data-dir")
	a.bind(cmd, "collated_file", "collated")
	a.bind(cmd, "output_dir", "output-dir")
	a.bind(cmd, "download.base_url", "base-url")
	a.bind(cmd, "download.respondents", "respondents")
	a.bind(cmd, "analysis.tolerance", "tolerance")
	a.bind(cmd, "analysis.max_cycle_length", "max-cycle-length")
	a.bind(cmd, "history.db_path", "db")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, opts analyzeOptions) error {
	format, err := encoding.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	in := pipeline.Input{SummaryFiles: opts.summaries, CollatedFile: a.cfg.CollatedFile}
	if cmd.Flags().Changed("data-dir") || (in.CollatedFile == "" && len(in.SummaryFiles) == 0) {
		in.DataDir = a.cfg.DataDir
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithReporter(report.DirReporter{
			Dir:       a.cfg.OutputDir,
			Format:    format,
			Summaries: opts.writeSummaries,
		}),
	}
	if opts.download {
		d, err := adapters.NewDownloader(adapters.DownloaderConfig{
			BaseURL:       a.cfg.Download.BaseURL,
			Respondents:   a.cfg.Download.Respondents,
			Timeout:       a.cfg.Download.Timeout,
			RatePerSecond: a.cfg.Download.RatePerSecond,
			MaxAttempts:   a.cfg.Download.MaxAttempts,
		}, a.logger)
		if err != nil {
			return err
		}
		defer d.Close()
		pipelineOpts = append(pipelineOpts, pipeline.WithPreparer(d))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(pipeline.Config{
		Tolerance:      a.cfg.Analysis.Tolerance,
		MaxCycleLength: a.cfg.Analysis.MaxCycleLength,
	}, a.logger, pipelineOpts...)

	res, err := p.Run(ctx, in)
	if herr := a.record(ctx, res); herr != nil {
		a.logger.Warn("Run not recorded", "error", herr)
	}
	if err != nil {
		if res != nil && res.Stage != pipeline.StageNone {
			fmt.Fprintf(cmd.ErrOrStderr(), "run %s stopped after stage %q\n", res.RunID, res.Stage)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Analyzed %d respondents (%d skipped) in %s\n",
		res.Extraction.Successful, len(res.Extraction.Skipped), res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	fmt.Fprintln(out, res.Patterns.Summary)
	fmt.Fprintf(out, "\nHypothesis: %s\n", res.Patterns.Hypothesis)
	fmt.Fprintf(out, "Report: %s\n", filepath.Join(a.cfg.OutputDir, report.TextReportName))
	fmt.Fprintf(out, "Results: %s\n", filepath.Join(a.cfg.OutputDir, report.ResultsName+format.Extension()))
	return nil
}
