package query

import (
	"fmt"
	"sort"

	"cashflow/internal/core"
)

// TotalsRow is one aggregated row of a TotalsQuery. Parent fields are only
// set when grouping by category.
type TotalsRow struct {
	ParentID   string
	ParentName string
	ID         string
	Name       string
	Assets     int64
	Debts      int64
}

// UncategorizedName labels rows without a category or group.
const UncategorizedName = "Uncategorized"

func (g GroupBy) Validate() error {
	switch g {
	case GroupByCategory, GroupByGroup, GroupByPayee, GroupByAccount:
		return nil
	}
	return fmt.Errorf("%w: unknown groupBy %q", ErrInvalidCondition, g)
}

// BuildTotals shapes aggregated rows into split totals, nesting categories
// under their group when grouping by category. Output is sorted by name.
func BuildTotals(g GroupBy, rows []TotalsRow) []core.SplitTotal {
	split := func(r TotalsRow) core.SplitTotal {
		return core.SplitTotal{
			Name:        r.Name,
			TotalAssets: r.Assets,
			TotalDebts:  r.Debts,
			TotalTotals: r.Assets + r.Debts,
		}
	}

	if g != GroupByCategory {
		out := make([]core.SplitTotal, 0, len(rows))
		for _, r := range rows {
			out = append(out, split(r))
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	}

	index := make(map[string]int)
	var out []core.SplitTotal
	for _, r := range rows {
		i, ok := index[r.ParentID]
		if !ok {
			i = len(out)
			index[r.ParentID] = i
			out = append(out, core.SplitTotal{Name: r.ParentName})
		}
		g := &out[i]
		g.TotalAssets += r.Assets
		g.TotalDebts += r.Debts
		g.TotalTotals += r.Assets + r.Debts
		g.Categories = append(g.Categories, split(r))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	for i := range out {
		cats := out[i].Categories
		sort.SliceStable(cats, func(a, b int) bool { return cats[a].Name < cats[b].Name })
	}
	return out
}
