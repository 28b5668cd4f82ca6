package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"workbench/internal/app"
	"workbench/internal/domain"
	"workbench/internal/resultview"
	"workbench/internal/service"
)

const formatTable = "table"

// cellSpace keeps multi-line and tabbed values on one table row.
var cellSpace = strings.NewReplacer("\t", " ", "\n", " ")

type queryFlags struct {
	connection int64
	sort       string
	desc       bool
	format     string
}

func newQueryCmd(opts *options) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run one SQL statement",
		Long: "Run a SQL statement on a saved, active connection and print the result. " +
			"The statement is recorded in the history like any other execution.",
		Example: `  workbench query --connection 1 "SELECT * FROM users"
  workbench query --connection 1 --sort id --desc --format csv "SELECT * FROM users" > query_results.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))
			return runQuery(cmd.Context(), a, f, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int64Var(&f.connection, "connection", 0, "Connection ID")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Sort the result by this column")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "Sort descending")
	cmd.Flags().StringVar(&f.format, "format", formatTable, "Output format: table, csv or json")
	_ = cmd.MarkFlagRequired("connection")
	return cmd
}

func runQuery(ctx context.Context, a *app.App, f queryFlags, sql string, out io.Writer) error {
	switch f.format {
	case formatTable, service.FormatCSV, service.FormatJSON:
	default:
		return fmt.Errorf("unknown format %q (want table, csv or json)", f.format)
	}

	res, err := a.Queries.Execute(ctx, f.connection, sql)
	if err != nil {
		return err
	}
	if f.sort != "" {
		dir := resultview.Ascending
		if f.desc {
			dir = resultview.Descending
		}
		if _, err := a.Results.Window(f.connection, service.WindowRequest{Sort: f.sort, Dir: dir}); err != nil {
			return err
		}
	}

	if f.format != formatTable {
		exp, err := a.Results.Export(f.connection, f.format)
		if err != nil {
			return err
		}
		_, err = out.Write(exp.Data)
		return err
	}
	return writeTable(a, f.connection, res, out)
}

// writeTable prints the whole current view aligned in columns, then the summary line.
func writeTable(a *app.App, connectionID int64, res *domain.QueryResult, out io.Writer) error {
	if len(res.Columns) == 0 {
		_, err := fmt.Fprintf(out, "%s (%d ms)\n", res.Message, res.ExecutionTime)
		return err
	}

	cols, rows, err := a.Results.Rows(connectionID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	cells := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			cells[i] = cellSpace.Replace(resultview.CellText(row[col]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "(%d rows, %d ms)\n", len(rows), res.ExecutionTime)
	return err
}
