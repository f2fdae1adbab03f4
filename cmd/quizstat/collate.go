package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/quizstat/internal/collate"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

const collatedName = "collated_answers.txt"

func newCollateCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "collate",
		Short: "Combine a data directory's respondent files into one document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := collate.LoadDir(a.cfg.DataDir)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = filepath.Join(a.cfg.OutputDir, collatedName)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return errors.NewInternalError("create output directory for "+path, err)
			}
			if err := os.WriteFile(path, []byte(collate.Build(entries)), 0o644); err != nil {
				return errors.NewInternalError("write "+path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Collated %d files into %s\n", len(entries), path)
			return nil
		},
	}

	cmd.Flags().String("data-dir", "", "directory of answers_respondent_<n>.txt files")
	cmd.Flags().String("output-dir", "", "directory for "+collatedName)
	cmd.Flags().StringVarP(&output, "output", "o", "", "explicit output file, overrides --output-dir")
	a.bind(cmd, "data_dir", "data-dir")
	a.bind(cmd, "output_dir", "output-dir")
	return cmd
}
