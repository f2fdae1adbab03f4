package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/quizstat/internal/config"
	"github.com/ZanzyTHEbar/quizstat/internal/monitoring"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// flagBinding ties a command flag to a config key.
type flagBinding struct {
	key  string
	flag string
}

// app carries what every command needs once flags are parsed.
type app struct {
	cfgFile string
	binds   map[*cobra.Command][]flagBinding

	v      *viper.Viper
	cfg    *config.Config
	logger *monitoring.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{binds: make(map[*cobra.Command][]flagBinding)}

	root := &cobra.Command{
		Use:   "quizstat",
		Short: "Detect deliberate answer patterns in multiple-choice quiz responses",
		Long: `quizstat extracts the selected options from raw quiz answer sheets,
averages them per question across respondents and looks for arithmetic
progressions, cycles and trends that suggest the answers were not random.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}
	root.SetVersionTemplate("quizstat version {{.Version}}\n")

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./quizstat.yaml or $HOME/.quizstat/quizstat.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().String("log-format", "", "log format: json or text")
	a.bind(root, "log.level", "log-level")
	a.bind(root, "log.format", "log-format")

	root.AddCommand(
		newAnalyzeCmd(a),
		newExtractCmd(a),
		newCollateCmd(a),
		newDownloadCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) bind(cmd *cobra.Command, key, flag string) {
	a.binds[cmd] = append(a.binds[cmd], flagBinding{key: key, flag: flag})
}

// load resolves config from defaults, file, env and the running command's
// flags, then builds the logger.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	a.v = config.New(a.cfgFile)
	for _, b := range append(a.binds[cmd.Root()], a.binds[cmd]...) {
		if f := cmd.Flags().Lookup(b.flag); f != nil {
			if err := a.v.BindPFlag(b.key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	logger, err := monitoring.NewLoggerWithOptions(monitoring.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger.Logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skips config loading.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quizstat version %s\n", version)
		},
	}
}
