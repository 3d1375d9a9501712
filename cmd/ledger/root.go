package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"live-trader/internal/app"
	"live-trader/internal/logger"
	"live-trader/internal/store"
)

type rootConfig struct {
	ConfigPath string
	Trace      bool
}

func newRootCmd() *cobra.Command {
	rc := &rootConfig{}
	cmd := &cobra.Command{
		Use:          "ledger",
		Short:        "Inspect and maintain agent position ledgers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			// stdout carries command output.
			lc := logger.LoadConfigFromEnv()
			lc.Output = os.Stderr
			lc.TracingEnabled = rc.Trace
			return logger.InitWithConfig(lc)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Shutdown(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVarP(&rc.ConfigPath, "config", "c", "config.yaml", "Path to the trader config")
	cmd.PersistentFlags().BoolVar(&rc.Trace, "trace", false, "Export spans (see LOG_TRACING_*)")

	cmd.AddCommand(
		newIdentitiesCmd(rc),
		newShowCmd(rc),
		newLatestCmd(rc),
		newHoldingsCmd(rc),
		newNoTradeCmd(rc),
		newRunCmd(rc),
		newSyncCmd(rc),
		newSummaryCmd(rc),
		newExportCmd(rc),
		newNextCmd(rc),
	)
	return cmd
}

// build loads the config and wires the app. The caller closes it.
func (rc *rootConfig) build(cmd *cobra.Command) (*app.App, error) {
	cfg, err := store.LoadConfig(rc.ConfigPath)
	if err != nil {
		return nil, err
	}
	return app.Build(cmd.Context(), cfg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
