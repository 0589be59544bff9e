package sheets

import (
	"context"

	"cashflow/internal/series"
)

// ReportExporter publishes a computed report to an external sheet and
// returns a reference to the written range.
type ReportExporter interface {
	Export(ctx context.Context, title string, rep series.Report) (ref string, err error)
}
