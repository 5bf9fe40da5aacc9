package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/solvesync/internal/client"
	"github.com/openmined/solvesync/internal/mutation"
	"github.com/spf13/cobra"
)

func init() {
	queueCmd := newQueueCmd()
	queueCmd.AddCommand(newQueueListCmd())
	queueCmd.AddCommand(newQueueRemoveCmd())
	queueCmd.AddCommand(newQueueClearCmd())
	rootCmd.AddCommand(queueCmd)
}

func newQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q", "outbox"},
		Short:   "Inspect and manage mutations waiting to be synced",
	}
}

// openClient creates a client without the control plane for one-shot commands.
func openClient(cmd *cobra.Command, opts ...client.Option) (*client.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cmd.SilenceUsage = true
	return client.New(cfg, append(opts, client.WithoutControlPlane())...)
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pending mutations, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			items := c.Outbox().ListAll(cmd.Context())
			if c.Outbox().Degraded() {
				fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render("outbox is running on its backup copy"))
			}
			printQueue(cmd.OutOrStdout(), items, time.Now())
			return nil
		},
	}
}

func printQueue(out io.Writer, items []*mutation.Queued, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No pending mutations"))
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMUTATION\tQUEUED\tRETRIES")
	for _, q := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", q.ID, q.Name, humanize.RelTime(q.Timestamp, now, "ago", "from now"), q.RetryCount)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d pending\n", len(items))
}

func newQueueRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove [ID]",
		Aliases: []string{"rm"},
		Short:   "Drop one pending mutation without sending it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Outbox().Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed %s\n", badge(okStyle, "OK"), args[0])
			return nil
		},
	}
}

func newQueueClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every pending mutation without sending it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the queue without --yes")
			}

			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			n := c.Outbox().Count(cmd.Context())
			c.Outbox().Clear(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%s cleared %d pending mutations\n", badge(okStyle, "OK"), n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the queue")
	return cmd
}
