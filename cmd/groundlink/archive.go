package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmcdole/groundlink/internal/catalog"
	"github.com/mmcdole/groundlink/internal/domain"
)

const (
	FlagLimit  = "limit"
	FlagClear  = "clear"
	FlagFilter = "filter"
)

// GetHistoryCmd returns the transfer history command.
func GetHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt(FlagLimit)
			if err != nil {
				return fmt.Errorf("%s flag: %w", FlagLimit, err)
			}
			wipe, err := cmd.Flags().GetBool(FlagClear)
			if err != nil {
				return fmt.Errorf("%s flag: %w", FlagClear, err)
			}

			cfg, _, closer, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if wipe {
				return st.ClearHistory()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FINISHED\tKIND\tDEVICE\tSTATE\tITEMS\tDETAIL")
			for _, t := range st.TransferHistory(limit) {
				state := string(t.State)
				if t.Reason != domain.ReasonNone {
					state += " (" + string(t.Reason) + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
					t.FinishedAt.Format("2006-01-02 15:04:05"), t.Kind, t.Device, state, t.ItemsDone, t.ItemsTotal, t.Detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int(FlagLimit, 20, "number of transfers to show (0 for all)")
	cmd.Flags().Bool(FlagClear, false, "delete the history")

	return cmd
}

// GetCatalogCmd returns the archived catalog command.
func GetCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog [device]",
		Short: "List archived media catalogs, or one device's catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := cmd.Flags().GetString(FlagFilter)
			if err != nil {
				return fmt.Errorf("%s flag: %w", FlagFilter, err)
			}

			cfg, _, closer, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, id := range st.ListDevices() {
					snap, _ := st.GetCatalog(id)
					fmt.Fprintf(out, "%s\t%d items\tsynchronized %s\n",
						id, snap.Len(), snap.PublishedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			}

			snap, ok := st.GetCatalog(domain.DeviceIdentity(args[0]))
			if !ok {
				return fmt.Errorf("no archived catalog for %s", args[0])
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tSIZE\tDURATION\tTHUMB")
			for _, m := range catalog.Filter(snap, query) {
				thumb := "-"
				if snap.Thumbnail(m.Index) != nil {
					thumb = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					m.Item.ID, m.Item.Name, m.Item.Kind, m.Item.FormattedSize(), m.Item.FormattedDuration(), thumb)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String(FlagFilter, "", "fuzzy filter on media names")

	return cmd
}
