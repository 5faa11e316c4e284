package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/yecs/internal/app"
	"github.com/ZanzyTHEbar/yecs/internal/config"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
	"github.com/ZanzyTHEbar/yecs/internal/store"
)

// Set by the linker at release time.
var version = "dev"

// cli carries the state shared by all subcommands.
type cli struct {
	out        io.Writer
	configPath string
	noColor    bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:                "yecsctl",
		Short:              "Operate the YECS credit scoring engine.",
		Long:               `yecsctl scores applicants, inspects score history and runs bias audits against the configured store.`,
		Version:            version,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if c.noColor {
				color.NoColor = true
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("YECS_CONFIG"), "path to a config file")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(c.newScoreCmd(), c.newHistoryCmd(), c.newBiasCmd())
	return root
}

// open loads configuration and builds the application. Logs go to stderr so
// they never mix with command output. A dry run keeps history in memory.
func (c *cli) open(ctx context.Context, dryRun bool) (*app.App, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	logger := monitoring.NewLoggerWithWriter(os.Stderr, cfg.Log.Level)
	slog.SetDefault(logger.Logger)

	var opts []app.Option
	if dryRun {
		opts = append(opts, app.WithHistory(store.NewMemory()))
	}
	return app.Build(ctx, cfg, logger, nil, opts...)
}
