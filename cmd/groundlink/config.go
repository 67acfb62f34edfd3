package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/groundlink/internal/config"
)

// GetConfigCmd returns the config command.
func GetConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString(FlagConfig)
			if err != nil {
				return fmt.Errorf("%s flag: %w", FlagConfig, err)
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			written, err := config.Save(cfg, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", written)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString(FlagConfig)
			if err != nil {
				return fmt.Errorf("%s flag: %w", FlagConfig, err)
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logging.file               %s\n", cfg.Logging.File)
			fmt.Fprintf(out, "logging.level              %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "storage.path               %s\n", cfg.Storage.Path)
			fmt.Fprintf(out, "catalog.thumbnail_timeout  %s\n", cfg.Catalog.ThumbnailTimeout)
			fmt.Fprintf(out, "transfer.stall_timeout     %s\n", cfg.Transfer.StallTimeout)
			fmt.Fprintf(out, "transfer.download_dir      %s\n", cfg.Transfer.DownloadDir)
			fmt.Fprintf(out, "simulator.drone_id         %s\n", cfg.Simulator.DroneID)
			fmt.Fprintf(out, "simulator.rc_id            %s\n", cfg.Simulator.RemoteID)
			fmt.Fprintf(out, "ui.theme                   %s\n", cfg.UI.Theme)
			return nil
		},
	})

	return cmd
}
