package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/openmined/solvesync/internal/client"
	"github.com/openmined/solvesync/internal/client/bulkimport"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newImportCmd())
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [FILE]",
		Short: "Upload a JSON or YAML export of sessions and solves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := bulkimport.LoadBatchFile(args[0])
			if err != nil {
				return err
			}

			tracker := newImportTracker(cmd.ErrOrStderr())
			c, err := openClient(cmd, client.WithImportProgress(tracker.Update))
			if err != nil {
				return err
			}
			defer c.Close()

			report, err := c.Importer().Import(cmd.Context(), batch)
			tracker.Finish()
			if report != nil {
				printImportReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if !report.Succeeded() {
				return fmt.Errorf("import finished with failed chunks")
			}
			return nil
		},
	}
	cmd.Flags().Int("chunk-size", bulkimport.DefaultChunkSize, "Items per bulk import request")
	return cmd
}

// importTracker renders one progress bar per phase.
type importTracker struct {
	out   io.Writer
	mu    sync.Mutex
	phase bulkimport.Phase
	bar   *progressbar.ProgressBar
}

func newImportTracker(out io.Writer) *importTracker {
	return &importTracker{out: out}
}

func (t *importTracker) Update(p bulkimport.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bar == nil || t.phase != p.Type {
		if t.bar != nil {
			_ = t.bar.Finish()
		}
		t.phase = p.Type
		t.bar = progressbar.NewOptions(
			p.TotalItems,
			progressbar.OptionSetWriter(t.out),
			progressbar.OptionSetDescription(fmt.Sprintf("Importing %s", p.Type)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString(string(p.Type)),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	_ = t.bar.Set(p.ItemsProcessed)
}

func (t *importTracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar != nil {
		_ = t.bar.Finish()
		fmt.Fprintln(t.out)
	}
}

func printImportReport(out io.Writer, r *bulkimport.Report) {
	printPhase := func(res *bulkimport.Result) {
		if res == nil {
			return
		}
		status := badge(okStyle, "OK")
		switch {
		case res.Failed():
			status = badge(errStyle, "FAILED")
		case !res.Complete():
			status = badge(warnStyle, "PARTIAL")
		}
		fmt.Fprintf(out, "%-8s %s chunks ok=%d failed=%d items=%d\n", res.Phase, status, res.SuccessCount, res.FailureCount, res.TotalItems)
		for _, e := range res.Errors {
			fmt.Fprintf(out, "  chunk %d (items %s): %s\n", e.ChunkIndex+1, e.ItemRange, mutedStyle.Render(e.Error))
		}
	}

	printPhase(r.Sessions)
	printPhase(r.Solves)
	if r.SolvesSkipped {
		fmt.Fprintln(out, warnStyle.Render("solves skipped because some session chunks were not accepted"))
	}
	if r.Interrupted {
		fmt.Fprintln(out, warnStyle.Render("import interrupted"))
	}
}
