package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/imroc/req/v3"
	"github.com/openmined/solvesync/internal/client/handlers"
	"github.com/spf13/cobra"
)

var errNoToken = errors.New("control plane token not configured, set --http-token or " + envPrefix + "_HTTP_TOKEN")

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

// newStatusCmd queries a running daemon through its control plane.
func newStatusCmd() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"watch-status"},
		Short:   "Show the status of the running daemon",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.HTTPToken == "" {
				return errNoToken
			}

			api := req.C().
				SetBaseURL("http://" + cfg.HTTPAddr).
				SetTimeout(5 * time.Second).
				SetCommonBearerAuthToken(cfg.HTTPToken)

			show := func() error {
				status, raw, err := fetchStatus(cmd.Context(), api)
				if err != nil {
					return err
				}
				if asJSON {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\n", raw)
					return nil
				}
				printStatus(cmd.OutOrStdout(), status)
				return nil
			}

			if !watch {
				return show()
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := show(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", badge(errStyle, "ERROR"), err)
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval with --watch")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status json")
	cmd.Flags().StringP("http-addr", "a", "", "address of the daemon control plane")
	cmd.Flags().StringP("http-token", "t", "", "access token of the daemon control plane")
	return cmd
}

func fetchStatus(ctx context.Context, api *req.Client) (*handlers.StatusResponse, []byte, error) {
	var status handlers.StatusResponse
	var apiErr handlers.ControlPlaneError

	res, err := api.R().
		SetContext(ctx).
		SetSuccessResult(&status).
		SetErrorResult(&apiErr).
		Get("/v1/status")
	if err != nil {
		return nil, nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	if res.IsErrorState() {
		return nil, nil, fmt.Errorf("daemon returned %d: %s", res.StatusCode, apiErr.Error)
	}
	return &status, res.Bytes(), nil
}

func printStatus(out io.Writer, s *handlers.StatusResponse) {
	conn := okStyle.Render("online")
	if !s.Online {
		conn = errStyle.Render("offline")
	}

	pending := mutedStyle.Render("0 pending")
	if s.Pending > 0 {
		pending = warnStyle.Render(fmt.Sprintf("%s pending", humanize.Comma(int64(s.Pending))))
	}

	fmt.Fprintf(out, "%s  %s  %s", conn, pending, mutedStyle.Render("v"+s.Version))
	if s.Degraded {
		fmt.Fprintf(out, "  %s", errStyle.Render("outbox degraded"))
	}
	fmt.Fprintln(out)
}
