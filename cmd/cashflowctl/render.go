package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"cashflow/internal/core"
	"cashflow/internal/report"
	"cashflow/internal/series"
)

// stdout receives tables and JSON output.
var stdout io.Writer = os.Stdout

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reloadHint reminds that running servers cache reports for a while.
func reloadHint() {
	pterm.Info.Println("Send SIGHUP to running cashflow servers and workers to drop their cached reports.")
}

func printError(err error) {
	switch report.Classify(err) {
	case report.KindInvalid:
		pterm.Error.Printfln("invalid request: %v", err)
	case report.KindUnsupported:
		pterm.Warning.Printfln("not supported: %v", err)
	default:
		pterm.Error.Println(err)
	}
}

func renderTable(data pterm.TableData) error {
	s, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithRightAlignment().
		WithData(data).
		Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, s)
	return err
}

// reportRows lays out one row per bucket, history first. Forecast rows are
// marked with a trailing asterisk on the period.
func reportRows(rep series.Report, showBalance bool) pterm.TableData {
	header := []string{"Period", "Income", "Expenses", "Change", "Transfers"}
	if showBalance {
		header = append(header, "Balance")
	}
	rows := pterm.TableData{header}

	add := func(points []series.BalancePoint, marker string) {
		for _, p := range points {
			row := []string{p.Label.Title + marker, p.Label.Income, p.Label.Expenses, p.Label.Change, p.Label.Transfers}
			if showBalance {
				row = append(row, p.Label.Balance)
			}
			rows = append(rows, row)
		}
	}
	add(rep.Graph.Balances, "")
	add(rep.Graph.FutureBalances, " *")
	return rows
}

func totalsRows(rep series.Report, showBalance bool) pterm.TableData {
	rows := pterm.TableData{
		{"Total", "Amount"},
		{"Income", core.FormatCurrency(rep.TotalIncome)},
		{"Expenses", core.FormatCurrency(rep.TotalExpenses)},
		{"Transfers", core.FormatCurrency(rep.TotalTransfers)},
		{"Change", core.FormatCurrency(rep.TotalChange)},
	}
	if showBalance {
		rows = append(rows,
			[]string{"Starting balance", core.FormatCurrency(rep.StartingBalance)},
			[]string{"Balance", core.FormatCurrency(rep.Balance)},
		)
		if len(rep.Graph.FutureBalances) > 0 {
			rows = append(rows, []string{"Projected balance", core.FormatCurrency(rep.ProjectedBalance)})
		}
	}
	return rows
}

func renderReport(req report.CashFlowRequest, rep series.Report, showBalance bool) error {
	title := fmt.Sprintf("Cash flow %s to %s", core.DayOf(req.Start), core.DayOf(req.End))
	if req.Forecasting() {
		title += fmt.Sprintf(", forecast to %s (%s)", core.DayOf(req.Forecast), req.Params.Source)
	}
	pterm.DefaultSection.Println(title)
	if err := renderTable(reportRows(rep, showBalance)); err != nil {
		return err
	}
	if len(rep.Graph.FutureBalances) > 0 {
		pterm.Println("* forecast")
	}
	return renderTable(totalsRows(rep, showBalance))
}

func renderSummary(start, end time.Time, sum report.Summary) error {
	pterm.DefaultSection.Printfln("Summary %s to %s", core.DayOf(start), core.DayOf(end))
	return renderTable(pterm.TableData{
		{"", "Amount"},
		{"Income", core.FormatCurrency(sum.Income)},
		{"Expenses", core.FormatCurrency(sum.Expense)},
		{"Net", core.FormatCurrency(sum.Income + sum.Expense)},
	})
}

// sankeyRows resolves link indexes to node names.
func sankeyRows(data report.SankeyData) pterm.TableData {
	rows := pterm.TableData{{"From", "To", "Amount"}}
	name := func(i int) string {
		if i < 0 || i >= len(data.Nodes) {
			return "#" + strconv.Itoa(i)
		}
		return data.Nodes[i].Name
	}
	for _, l := range data.Links {
		rows = append(rows, []string{name(l.Source), name(l.Target), core.FormatCurrency(l.Value)})
	}
	return rows
}

func renderSankey(data report.SankeyData) error {
	if len(data.Links) == 0 {
		pterm.Info.Println("No flows in the selected range.")
		return nil
	}
	return renderTable(sankeyRows(data))
}

func renderOptions(opts report.Options) error {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	pterm.DefaultSection.Println("Forecast sources")
	sources := pterm.TableData{{"Source", "Supported"}}
	for _, s := range opts.Sources {
		sources = append(sources, []string{string(s.Value), yesNo(s.Supported)})
	}
	if err := renderTable(sources); err != nil {
		return err
	}

	pterm.DefaultSection.Println("Methods")
	methods := pterm.TableData{{"Method", "Supported"}}
	for _, m := range opts.Methods {
		methods = append(methods, []string{string(m.Value), yesNo(m.Supported)})
	}
	if err := renderTable(methods); err != nil {
		return err
	}

	first, last := "-", "-"
	if n := len(opts.Months); n > 0 {
		first, last = opts.Months[n-1].Pretty, opts.Months[0].Pretty
	}
	pterm.Info.Printfln("History: %s to %s (%d months usable for averages)", first, last, opts.MaxMonths)
	pterm.Info.Printfln("Defaults: source %s, method %s, %d months, %d years",
		opts.Defaults.Source, opts.Defaults.Method, opts.Defaults.AverageMonths, opts.Defaults.AverageYears)
	return nil
}
