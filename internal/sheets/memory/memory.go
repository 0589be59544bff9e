package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cashflow/internal/series"
	"cashflow/internal/sheets"
)

// Export is one recorded export.
type Export struct {
	Title  string
	Report series.Report
	Rows   [][]any
}

// Exporter keeps exports in memory. It stands in for a spreadsheet in
// development and tests.
type Exporter struct {
	mu      sync.Mutex
	exports []Export
}

var _ sheets.ReportExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// Export records the report and returns a synthetic reference.
func (e *Exporter) Export(_ context.Context, title string, rep series.Report) (string, error) {
	if len(rep.Graph.Balances) == 0 && len(rep.Graph.FutureBalances) == 0 {
		return "", errors.New("report has no points to export")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports = append(e.exports, Export{Title: title, Report: rep, Rows: sheets.Rows(title, rep)})
	return fmt.Sprintf("mem:%d", len(e.exports)), nil
}

// Exports returns a copy of everything exported so far.
func (e *Exporter) Exports() []Export {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Export(nil), e.exports...)
}
