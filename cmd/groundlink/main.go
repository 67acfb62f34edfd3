package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmcdole/groundlink/internal/config"
	"github.com/mmcdole/groundlink/internal/log"
	"github.com/mmcdole/groundlink/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

const FlagConfig = "config"

// rootCmd is a base command.
var rootCmd = &cobra.Command{
	Use:           "groundlink",
	Short:         "Ground station core for a drone and its remote controller",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().String(FlagConfig, "", "config file (default: OS config dir or ./config.yaml)")
	rootCmd.AddCommand(
		GetMonitorCmd(),
		GetHistoryCmd(),
		GetCatalogCmd(),
		GetConfigCmd(),
		GetVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the file logger. Logging
// failures fall back to a discarding logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, io.Closer, error) {
	path, err := cmd.Flags().GetString(FlagConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s flag: %w", FlagConfig, err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := log.Setup(cfg.Logging)
	if err != nil {
		logger, closer = log.NullLogger(), io.NopCloser(nil)
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

// openStore opens the archive from the configuration
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// GetVersionCmd returns the version command.
func GetVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "groundlink %s\n", Version)
		},
	}
}
