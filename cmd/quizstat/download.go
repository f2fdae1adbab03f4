package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/quizstat/internal/adapters"
)

func newDownloadCmd(a *app) *cobra.Command {
	var local string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch respondent files into the data directory",
		Long: `Download fetches a1.txt..aN.txt from the answer host and stores them as
answers_respondent_<n>.txt. With --local the files are copied from a
directory instead. Missing respondents are reported but do not fail the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				res *adapters.Result
				err error
			)
			n := a.cfg.Download.Respondents

			if local != "" {
				res, err = adapters.CopyLocal(local, a.cfg.DataDir, n)
			} else {
				d, derr := adapters.NewDownloader(adapters.DownloaderConfig{
					BaseURL:       a.cfg.Download.BaseURL,
					Respondents:   n,
					Timeout:       a.cfg.Download.Timeout,
					RatePerSecond: a.cfg.Download.RatePerSecond,
					MaxAttempts:   a.cfg.Download.MaxAttempts,
				}, a.logger)
				if derr != nil {
					return derr
				}
				defer d.Close()

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				res, err = d.Download(ctx, a.cfg.DataDir, n)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range res.Failures {
				fmt.Fprintf(out, "respondent %d: %s\n", f.Respondent, f.Reason)
			}
			fmt.Fprintf(out, "Wrote %d of %d respondent files to %s\n", len(res.Written), n, a.cfg.DataDir)
			return nil
		},
	}

	f := cmd.Flags()
	f.String("data-dir", "", "destination directory")
	f.String("base-url", "", "answer host serving a<n>.txt")
	f.IntP("respondents", "n", 0, "number of respondents")
	f.StringVar(&local, "local", "", "copy a<n>.txt files from this directory instead of downloading")
	a.bind(cmd, "data_dir", "data-dir")
	a.bind(cmd, "download.base_url", "base-url")
	a.bind(cmd, "download.respondents", "respondents")
	return cmd
}
