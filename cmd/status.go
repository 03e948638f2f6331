package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/metrolab/tripline/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest run and current table counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.LatestRun(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		count, err := st.TripCount(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		formatStatus(os.Stdout, run, count)
		return nil
	},
}

func formatStatus(out io.Writer, run *model.PipelineRun, tripCount int64) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Stored trips:\t%d\n", tripCount)

	if run == nil {
		_, _ = fmt.Fprintln(w, "Last run:\tnone")
		_ = w.Flush()
		return
	}

	_, _ = fmt.Fprintf(w, "Last run:\t%s\n", truncateID(run.ID))
	_, _ = fmt.Fprintf(w, "Finished:\t%s\n", run.FinishedAt.Format("2006-01-02 15:04"))
	_, _ = fmt.Fprintf(w, "Total rows:\t%d\n", run.TotalRows)
	_, _ = fmt.Fprintf(w, "Accepted:\t%d\n", run.Accepted)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", run.Rejected)
	_, _ = fmt.Fprintf(w, "Quality score:\t%.2f%%\n", run.QualityScore)
	for _, reason := range model.RejectionReasons() {
		if n := run.Breakdown[reason]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", string(reason), n)
		}
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
