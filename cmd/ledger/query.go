package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"live-trader/internal/calendar"
	"live-trader/internal/types"
)

type positionsOutput struct {
	Identity  string          `json:"identity"`
	Date      string          `json:"date"`
	RecordID  int64           `json:"record_id"`
	Positions types.Positions `json:"positions"`
}

func newIdentitiesCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "identities",
		Short: "List identities with a ledger on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.Store.Identities()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newShowCmd(rc *rootConfig) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "show <identity>",
		Short: "Print every record of an identity's ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.Ledger.Records(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if date != "" {
				filtered := recs[:0]
				for _, r := range recs {
					if calendar.LabelDate(r.Date) == date {
						filtered = append(filtered, r)
					}
				}
				recs = filtered
			}
			return writeJSON(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Only records dated YYYY-MM-DD")
	return cmd
}

func newLatestCmd(rc *rootConfig) *cobra.Command {
	var date string
	var strict bool
	cmd := &cobra.Command{
		Use:   "latest <identity>",
		Short: "Positions as of a date or label",
		Long: "Without --strict, falls back to the newest record overall when none matches the date. " +
			"With --strict, only records of the same label are considered.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if date == "" {
				date = calendar.FormatDate(a.Resolver.Now())
			}
			query := a.Ledger.LatestPositions
			if strict {
				query = a.Ledger.LatestAsOf
			}
			pos, id, err := query(cmd.Context(), args[0], date)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), positionsOutput{Identity: args[0], Date: date, RecordID: id, Positions: pos})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date or hour label (default today)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Do not fall back to older records")
	return cmd
}

func newHoldingsCmd(rc *rootConfig) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "holdings <identity>",
		Short: "Holdings an agent would be shown when deciding at a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if label == "" {
				l, ok := a.Resolver.CurrentPeriodLabel(a.Resolver.Now())
				if !ok {
					return fmt.Errorf("not inside a decision hour, pass --label")
				}
				label = l
			}
			pos, err := a.Ledger.HoldingsForDecision(cmd.Context(), args[0], label)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), positionsOutput{Identity: args[0], Date: label, RecordID: -1, Positions: pos})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Reference label (default the current period)")
	return cmd
}

func newNextCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Print the next decision instant and its label",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.Scheduler()
			if err != nil {
				return err
			}
			now := a.Resolver.Now()
			instant, label := a.Resolver.NextDecisionInstant(now)
			fmt.Fprintf(cmd.OutOrStdout(), "now:   %s\nnext:  %s (%s)\nwake:  %s\n",
				a.Resolver.Format(now), a.Resolver.Format(instant), label, a.Resolver.Format(sched.NextWake(now)))
			return nil
		},
	}
}
