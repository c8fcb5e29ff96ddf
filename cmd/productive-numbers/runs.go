package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/productive-numbers/internal/config"
	"github.com/withObsrvr/productive-numbers/internal/metadata"
)

func newRunsCmd() *cobra.Command {
	var (
		dsn string
		n   int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the run catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return fmt.Errorf("%w: --catalog-dsn required", config.ErrInvalid)
			}
			if n < 1 {
				return fmt.Errorf("%w: --last must be positive", config.ErrInvalid)
			}

			w, err := metadata.NewPostgresWriter(cmd.Context(), metadata.CatalogConfig{PostgresDSN: dsn})
			if err != nil {
				return err
			}
			defer w.Close()

			runs, err := w.RecentRuns(cmd.Context(), n)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tFINISHED\tRANGE\tFOUND\tTHIS RUN\tELAPSED\tSTATUS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%d\t%d\t%s\t%s\n",
					r.RunID,
					r.FinishedAt.Local().Format(time.DateTime),
					r.RangeStart, r.RangeEnd,
					r.Found,
					r.FoundThisRun,
					r.Elapsed.Round(time.Second),
					runStatus(r),
				)
			}
			return tw.Flush()
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&dsn, "catalog-dsn", "", "PostgreSQL DSN for the run catalog")
	fs.IntVar(&n, "last", 10, "number of runs to list")
	return cmd
}

func runStatus(r metadata.RunRecord) string {
	switch {
	case r.AlreadyComplete:
		return "already complete"
	case r.Interrupted:
		return "interrupted"
	default:
		return "complete"
	}
}
