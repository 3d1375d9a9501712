package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"live-trader/internal/calendar"
)

func newNoTradeCmd(rc *rootConfig) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "no-trade <identity>",
		Short: "Append a no-trade record carrying the latest positions forward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := calendar.ParseLabel(label); err != nil {
				return err
			}
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.Ledger.RecordNoTrade(cmd.Context(), args[0], label)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "appended record %d for %s at %s\n", id, args[0], label)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Label to record (YYYY-MM-DD or YYYY-MM-DD HH:00:00)")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

func newRunCmd(rc *rootConfig) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "run <identity>",
		Short: "Run one decision cycle now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			now := a.Resolver.Now()
			if at != "" {
				now, err = time.ParseInLocation(time.DateTime, at, a.Resolver.Location())
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			res, err := a.Engine.RunCycle(cmd.Context(), args[0], now)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluate at this instant instead of now (YYYY-MM-DD HH:MM:SS)")
	return cmd
}

func newSyncCmd(rc *rootConfig) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "sync <identity>",
		Short: "Replace the ledger's positions with the broker's",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if label == "" {
				label = calendar.FormatHourLabel(a.Resolver.Now())
			}
			res, err := a.Engine.Sync(cmd.Context(), args[0], label)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Label for the sync record (default the current hour)")
	return cmd
}

func newSummaryCmd(rc *rootConfig) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "summary <identity>",
		Short: "Write the end-of-day trade summary CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if date == "" {
				date = calendar.FormatDate(a.Resolver.Now())
			}
			path, err := a.Eod.SummarizeDay(cmd.Context(), args[0], date)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "no trades for %s on %s\n", args[0], date)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Trading date YYYY-MM-DD (default today)")
	return cmd
}

func newExportCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Mirror every ledger into the SQLite journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.MirrorJournal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mirrored %d records\n", n)
			return nil
		},
	}
}
