package main

import (
	"github.com/spf13/cobra"

	apphttp "cashflow/internal/http"
)

var (
	sankeyStart, sankeyEnd string
	sankeyGroupBy          string
	sankeyFilters          []string
	sankeyOp               string
)

var sankeyCmd = &cobra.Command{
	Use:   "sankey",
	Short: "Flows from income groups through the budget to expense groups",
	RunE:  runSankey,
}

func init() {
	sankeyCmd.Flags().StringVar(&sankeyStart, "start", "", "First day or month (default: open)")
	sankeyCmd.Flags().StringVar(&sankeyEnd, "end", "", "Last day or month (default: open)")
	sankeyCmd.Flags().StringVarP(&sankeyGroupBy, "group-by", "g", "", "category, group, payee or account (default category)")
	sankeyCmd.Flags().StringArrayVarP(&sankeyFilters, "filter", "f", nil, "Condition field:op:value (repeatable)")
	sankeyCmd.Flags().StringVar(&sankeyOp, "op", "", "Combine filters with and|or")
	rootCmd.AddCommand(sankeyCmd)
}

func runSankey(cmd *cobra.Command, _ []string) error {
	q := requestFlags{start: sankeyStart, end: sankeyEnd, filters: sankeyFilters, op: sankeyOp}.values()
	if sankeyGroupBy != "" {
		q.Set("groupBy", sankeyGroupBy)
	}
	req, err := apphttp.ParseSankeyRequest(q)
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

	data, err := a.reports.Sankey(ctx, req)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(data)
	}
	return renderSankey(data)
}
