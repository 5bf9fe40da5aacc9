package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/solvesync/internal/client"
	"github.com/openmined/solvesync/internal/client/config"
	"github.com/openmined/solvesync/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the SolveSync client daemon",
		RunE:  runDaemon,
	}
	addDaemonFlags(daemonCmd)
	return daemonCmd
}

func addDaemonFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("http-addr", "a", config.DefaultHTTPAddr, "Address to bind the local http server")
	cmd.Flags().StringP("http-token", "t", "", "Access token for the local http server")
	cmd.Flags().Duration("settle-delay", config.DefaultSettleDelay, "Wait after a network online signal before syncing")
	cmd.Flags().Duration("probe-interval", config.DefaultProbeInterval, "Interval between server health probes")
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize, "Items per bulk import request")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	showHeader()
	slog.Info("solvesync", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)
	slog.Info("daemon using config", "path", cfg.Path)

	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", labelStyle.Render("control plane token"), cfg.HTTPToken)

	defer slog.Info("Bye!")
	if err := c.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("daemon start", "error", err)
		return err
	}
	return nil
}
