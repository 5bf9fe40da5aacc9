package main

import (
	"fmt"

	"github.com/openmined/solvesync/internal/client/connectivity"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send pending mutations to the server once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			result := c.Sync().TriggerSync(cmd.Context())
			out := cmd.OutOrStdout()

			switch result {
			case connectivity.TriggerEmpty:
				fmt.Fprintln(out, mutedStyle.Render("Nothing to sync"))
			case connectivity.TriggerOffline:
				fmt.Fprintf(out, "%s server unreachable, %d mutations still pending\n", badge(errStyle, "OFFLINE"), c.Outbox().Count(cmd.Context()))
			case connectivity.TriggerBusy:
				fmt.Fprintln(out, warnStyle.Render("A sync is already running"))
			default:
				status := c.Sync().Status()
				if status.LastRun != nil {
					r := status.LastRun.Result
					fmt.Fprintf(out, "%s sent=%d failed=%d evicted=%d pending=%d\n",
						badge(okStyle, "SYNCED"), r.SuccessCount, r.FailureCount, r.Evicted, status.Pending)
				}
			}
			return nil
		},
	}
}
