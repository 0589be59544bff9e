package main

import (
	"time"

	"github.com/spf13/cobra"

	"cashflow/internal/core"
	apphttp "cashflow/internal/http"
)

var (
	summaryStart, summaryEnd string
	summaryFilters           []string
	summaryOp                string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Income and expense totals, transfers excluded",
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().StringVar(&summaryStart, "start", "", "First day or month (default: first of this month)")
	summaryCmd.Flags().StringVar(&summaryEnd, "end", "", "Last day or month (default: today)")
	summaryCmd.Flags().StringArrayVarP(&summaryFilters, "filter", "f", nil, "Condition field:op:value (repeatable)")
	summaryCmd.Flags().StringVar(&summaryOp, "op", "", "Combine filters with and|or")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	q := requestFlags{start: summaryStart, end: summaryEnd, filters: summaryFilters, op: summaryOp}.values()
	start, end, err := apphttp.ParseRange(q, time.Now())
	if err != nil {
		return err
	}
	where, err := apphttp.ParseWhere(q)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.reports.SimpleCashFlow(ctx, start, end, where)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(apphttp.SummaryResponse{
			Start:   string(core.DayOf(start)),
			End:     string(core.DayOf(end)),
			Summary: sum,
			Net:     sum.Income + sum.Expense,
		})
	}
	return renderSummary(start, end, sum)
}
