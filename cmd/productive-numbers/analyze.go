package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/productive-numbers/internal/analysis"
	"github.com/withObsrvr/productive-numbers/internal/logging"
	"github.com/withObsrvr/productive-numbers/internal/productive"
	"github.com/withObsrvr/productive-numbers/internal/storage"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		input     string
		output    string
		format    string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Export every digit split of the numbers in a result file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(logging.Config{Format: logFormat, Level: "info"})
			log := logging.Component("analyze")

			if output == "" {
				output = "splits_analysis.csv"
				if format == analysis.FormatParquet {
					output = "splits_analysis.parquet"
				}
			}

			values, err := storage.ReadResults(input)
			if err != nil {
				return err
			}
			log.Info("loaded numbers", "count", len(values), "input", input)

			report := analysis.Analyze(values, productive.New(nil))
			if err := analysis.WriteFile(output, format, report); err != nil {
				return fmt.Errorf("write analysis: %w", err)
			}

			log.Info("analysis written",
				"output", output,
				"format", format,
				"numbers", report.Numbers,
				"splits", len(report.Splits),
			)
			if report.Failed > 0 {
				log.Warn("splits with non-prime A×B+1", "failed", report.Failed, "total", len(report.Splits))
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&input, "input", "found.txt", "result file to analyze")
	fs.StringVar(&output, "output", "", "output file (default splits_analysis.csv or .parquet)")
	fs.StringVar(&format, "format", analysis.FormatCSV, "output format: csv or parquet")
	fs.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	return cmd
}
