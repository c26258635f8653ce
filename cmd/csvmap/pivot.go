package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"csvmapper/internal/dataprocessing"
	"csvmapper/internal/infrastructure"
	"csvmapper/pkg/contracts/domain"
)

type pivotOptions struct {
	index   []string
	columns []string
	values  []string
	agg     string
	format  string
	output  string
}

func newPivotCmd(root *rootOptions) *cobra.Command {
	opts := &pivotOptions{}

	cmd := &cobra.Command{
		Use:   "pivot <file>",
		Short: "Aggregate a file into a pivot table",
		Long: `Group rows by the index fields, spread the column fields across output
columns and aggregate each value field per cell.

Aggregations: sum, mean, count, min, max.`,
		Example: `  csvmap pivot custom_mapped_data.csv --index region --values amount --agg sum
  csvmap pivot sales.xlsx --index region --columns quarter --values amount,units --agg mean -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPivot(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringSliceVar(&opts.index, "index", nil, "index (row) fields")
	cmd.Flags().StringSliceVar(&opts.columns, "columns", nil, "column fields")
	cmd.Flags().StringSliceVar(&opts.values, "values", nil, "value fields")
	cmd.Flags().StringVar(&opts.agg, "agg", string(domain.AggSum), "aggregation function")
	cmd.Flags().StringVar(&opts.format, "format", "", "output format: csv or xlsx (default from --output, else csv)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `output file, "-" for stdout (default custom_pivot_data.<format>)`)
	_ = cmd.MarkFlagRequired("index")
	_ = cmd.MarkFlagRequired("values")

	return cmd
}

func runPivot(cmd *cobra.Command, root *rootOptions, opts *pivotOptions, path string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger, err := root.fileLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	output, format, err := resolveOutput(domain.StagePivot, opts.output, opts.format)
	if err != nil {
		return err
	}

	table, err := readTable(cfg, path, logger)
	if err != nil {
		return err
	}

	ctx := infrastructure.EnsureTraceID(cmd.Context())

	pivot, err := dataprocessing.NewAggregator(logger).Pivot(table, domain.PivotRequest{
		Index:   opts.index,
		Columns: opts.columns,
		Values:  opts.values,
		AggFunc: domain.AggFunc(opts.agg),
	})
	if err != nil {
		return err
	}

	if err := writeTable(cfg, pivot, output, format, cmd.OutOrStdout(), logger); err != nil {
		return err
	}
	logger.InfoContext(ctx, "pivot completed",
		slog.String("aggfunc", opts.agg),
		slog.Int("input_rows", table.Len()),
		slog.Int("output_rows", pivot.Len()),
		slog.String("output", output))
	if output != stdoutPath {
		fmt.Fprintf(cmd.OutOrStdout(), "pivoted %d rows into %d -> %s\n", table.Len(), pivot.Len(), output)
	}
	return nil
}
