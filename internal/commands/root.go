package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/revmon-dev/revmon/internal/buildinfo"
	"github.com/revmon-dev/revmon/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:     "revmon",
		Short:   "Convert Revolut exports into Monarch imports",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to revmon.yaml (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	loadApp := func(cmd *cobra.Command) (*app, error) {
		cfg, err := config.LoadOrDefault(configPath)
		if err != nil {
			return nil, err
		}
		return &app{
			cfg:    cfg,
			env:    config.ReadEnv(),
			out:    cmd.OutOrStdout(),
			logger: slog.Default(),
		}, nil
	}

	rootCmd.AddCommand(
		newConvertCommand("checking", "Convert the checking account export", loadApp),
		newConvertCommand("savings", "Convert the savings account export", loadApp),
		newBalanceCommand("checking-balance", "checking", "Generate the checking balance history", loadApp),
		newBalanceCommand("savings-balance", "savings", "Generate the savings balance history", loadApp),
	)

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
