package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/quizstat/internal/database"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/ZanzyTHEbar/quizstat/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []server.Option
			db, err := a.openHistory()
			if err != nil {
				return err
			}
			if db != nil {
				defer errors.SafeClose(db, "history database")
				opts = append(opts, server.WithHistory(database.NewRepository(db)))
			}

			s := server.New(a.cfg, a.logger, version, opts...)
			defer s.Close()
			return s.ListenAndServe(ctx)
		},
	}

	cmd.Flags().Int("port", 0, "port to listen on")
	cmd.Flags().Duration("cache-ttl", 0, "how long identical analyze requests are served from cache; 0 disables")
	a.bind(cmd, "server.port", "port")
	a.bind(cmd, "server.cache_ttl", "cache-ttl")
	return cmd
}
