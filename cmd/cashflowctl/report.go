package main

import (
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	apphttp "cashflow/internal/http"
	"cashflow/internal/report"
)

// requestFlags are the query options shared by report and enqueue.
type requestFlags struct {
	start, end, forecast string
	source, method       string
	averageMonths        int
	averageYears         int
	filters              []string
	op                   string
	concise              string
	preset               string
}

var reportFlags requestFlags

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Cash-flow series with an optional forecast",
	Example: `  cashflowctl report --start 2024-01 --end 2024-06 --forecast 2024-12 --source schedule
  cashflowctl report --filter account:is:checking --filter payee:isNot:landlord --op and
  cashflowctl report --preset household`,
	RunE: runReport,
}

func init() {
	addRequestFlags(reportCmd, &reportFlags)
	rootCmd.AddCommand(reportCmd)
}

func addRequestFlags(cmd *cobra.Command, f *requestFlags) {
	cmd.Flags().StringVar(&f.start, "start", "", "First day or month (default: first of this month)")
	cmd.Flags().StringVar(&f.end, "end", "", "Last day or month (default: today)")
	cmd.Flags().StringVar(&f.forecast, "forecast", "", "Forecast horizon day or month")
	cmd.Flags().StringVar(&f.source, "source", "", "Forecast source: none, schedule, transactions")
	cmd.Flags().StringVar(&f.method, "method", "", "Averaging method: lastMonths, perMonth")
	cmd.Flags().IntVar(&f.averageMonths, "average-months", 0, "Months of history for lastMonths")
	cmd.Flags().IntVar(&f.averageYears, "average-years", 0, "Years of history for perMonth")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "Condition field:op:value (repeatable)")
	cmd.Flags().StringVar(&f.op, "op", "", "Combine filters with and|or")
	cmd.Flags().StringVar(&f.concise, "concise", "", "Force monthly (true) or daily (false) buckets")
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "Use a saved preset instead of the flags above")
}

// values maps the flags onto the query parameters the HTTP API accepts.
func (f requestFlags) values() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("start", f.start)
	set("end", f.end)
	set("forecast", f.forecast)
	set("source", f.source)
	set("method", f.method)
	set("op", f.op)
	set("concise", f.concise)
	if f.averageMonths > 0 {
		q.Set("averageMonths", strconv.Itoa(f.averageMonths))
	}
	if f.averageYears > 0 {
		q.Set("averageYears", strconv.Itoa(f.averageYears))
	}
	for _, c := range f.filters {
		q.Add("filter", c)
	}
	return q
}

// request builds the cash-flow request from a preset or from the flags.
// showBalance is false only when a preset hides it.
func (f requestFlags) request(a *app, now time.Time) (req report.CashFlowRequest, showBalance bool, err error) {
	if f.preset != "" {
		p, err := a.preset(f.preset)
		if err != nil {
			return report.CashFlowRequest{}, false, err
		}
		req, err = p.Request(now)
		return req, p.Balance(), err
	}
	req, err = apphttp.ParseCashFlowRequest(f.values(), now)
	return req, true, err
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req, showBalance, err := reportFlags.request(a, time.Now())
	if err != nil {
		return err
	}
	maxMonths := 0
	if req.Forecasting() {
		if maxMonths, err = a.reports.MaxMonths(ctx); err != nil {
			return err
		}
	}
	if err := req.Validate(maxMonths); err != nil {
		return err
	}

	rep, err := a.reports.CashFlowByDate(ctx, req)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(rep)
	}
	return renderReport(req, rep, showBalance)
}
