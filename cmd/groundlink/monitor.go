package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/groundlink/internal/config"
	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
	"github.com/mmcdole/groundlink/internal/service"
	"github.com/mmcdole/groundlink/internal/simulator"
	"github.com/mmcdole/groundlink/internal/tui"
	"github.com/mmcdole/groundlink/internal/tui/styles"
)

const (
	FlagHeadless = "headless"
	FlagDownload = "download"
	FlagNoRemote = "no-rc"
)

// GetMonitorCmd returns the monitor command: the core running against the
// built-in simulator, shown in the console UI.
func GetMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch the simulated drone and remote controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			headless, err := cmd.Flags().GetBool(FlagHeadless)
			if err != nil {
				return fmt.Errorf("%s flag: %w", FlagHeadless, err)
			}
			downloads, err := cmd.Flags().GetStringSlice(FlagDownload)
			if err != nil {
				return fmt.Errorf("%s flag: %w", FlagDownload, err)
			}
			noRemote, err := cmd.Flags().GetBool(FlagNoRemote)
			if err != nil {
				return fmt.Errorf("%s flag: %w", FlagNoRemote, err)
			}

			cfg, logger, closer, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sim := simulator.New(simulatorConfig(cfg), logger)
			core := service.NewCore(sim, sim, service.Options{
				ThumbnailTimeout: cfg.Catalog.ThumbnailTimeout,
				StallTimeout:     cfg.Transfer.StallTimeout,
				DownloadDir:      cfg.Transfer.DownloadDir,
				Store:            st,
			}, logger)

			logger.Info("starting groundlink", "version", Version)
			core.Start()
			defer core.Stop()

			// Devices come up shortly after the client, like a real link
			connect := time.AfterFunc(cfg.Simulator.ConnectDelay, func() {
				sim.Connect(domain.RoleDrone)
				if !noRemote {
					sim.Connect(domain.RoleRemote)
				}
			})
			defer connect.Stop()

			if headless || !term.IsTerminal(int(os.Stdout.Fd())) {
				return runHeadless(cmd.OutOrStdout(), core, downloads, logger)
			}
			return runTUI(cfg, core, logger)
		},
	}
	cmd.Flags().Bool(FlagHeadless, false, "print notifications instead of starting the console UI")
	cmd.Flags().StringSlice(FlagDownload, nil, "media names to download once the catalog is synchronized (headless)")
	cmd.Flags().Bool(FlagNoRemote, false, "do not connect the simulated remote controller")

	return cmd
}

func simulatorConfig(cfg *config.Config) simulator.Config {
	sc := simulator.DefaultConfig()
	sc.DroneID = domain.DeviceIdentity(cfg.Simulator.DroneID)
	sc.RemoteID = domain.DeviceIdentity(cfg.Simulator.RemoteID)
	sc.MediaCount = cfg.Simulator.MediaCount
	sc.Battery = cfg.Simulator.Battery
	sc.ThumbnailDelay = cfg.Simulator.ThumbnailDelay
	sc.StepInterval = cfg.Simulator.StepInterval
	return sc
}

func runTUI(cfg *config.Config, core *service.Core, logger *slog.Logger) error {
	styles.ApplyTheme(cfg.UI.Theme)

	p := tea.NewProgram(
		tui.NewModel(core),
		tea.WithAltScreen(),
	)

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runHeadless prints every notification until interrupted. Requested
// downloads are issued once, against the first available snapshot.
func runHeadless(w io.Writer, core *service.Core, downloads []string, logger *slog.Logger) error {
	obs := core.Subscribe()
	defer obs.Close()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	pending := downloads
	for {
		select {
		case <-signalCh:
			return nil
		case n, ok := <-obs.C():
			if !ok {
				return nil
			}
			fmt.Fprintln(w, describe(n))

			snap, isSnap := n.Value.(domain.CatalogSnapshot)
			if len(pending) == 0 || !isSnap || !snap.Available() {
				continue
			}
			items, missing := core.Lookup(pending...)
			pending = nil
			for _, name := range missing {
				fmt.Fprintf(w, "no media matches %q\n", name)
			}
			if len(items) == 0 {
				continue
			}
			ids := make([]string, len(items))
			for i, item := range items {
				ids[i] = item.ID
			}
			if _, err := core.RequestDownload(ids...); err != nil {
				logger.Error("download request failed", "error", err)
				fmt.Fprintf(w, "download: %v\n", err)
			}
		}
	}
}

// describe renders one notification as a log line
func describe(n hub.Notification) string {
	switch v := n.Value.(type) {
	case domain.CatalogSnapshot:
		if !v.Available() {
			return fmt.Sprintf("%-18s reset", n.Channel)
		}
		missing := 0
		for i := range v.Items {
			if v.Thumbnail(i) == nil {
				missing++
			}
		}
		return fmt.Sprintf("%-18s %s gen=%d items=%d missing_thumbnails=%d",
			n.Channel, v.Device, v.Generation, v.Len(), missing)
	case []domain.TransferTask:
		parts := make([]string, len(v))
		for i, t := range v {
			parts[i] = fmt.Sprintf("%s %s %d%% %d/%d", shortID(t.ID), t.Label(), t.Progress, t.ItemsDone, t.ItemsTotal)
		}
		return fmt.Sprintf("%-18s [%s]", n.Channel, strings.Join(parts, ", "))
	case domain.MediaStoreInfo:
		return fmt.Sprintf("%-18s %s photos=%d videos=%d", n.Channel, v.Indexing, v.PhotoCount, v.VideoCount)
	default:
		return fmt.Sprintf("%-18s %v", n.Channel, v)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
