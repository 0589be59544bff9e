package report

import (
	"context"
	"reflect"
	"testing"

	"cashflow/internal/core"
	"cashflow/internal/query"
)

func TestToSankey(t *testing.T) {
	tests := []struct {
		name    string
		groupBy query.GroupBy
		totals  []core.SplitTotal
		want    SankeyData
	}{
		{
			name:    "category nests under group",
			groupBy: query.GroupByCategory,
			totals: []core.SplitTotal{
				{Name: "Income", TotalTotals: 3000, Categories: []core.SplitTotal{{Name: "Salary", TotalTotals: 3000}}},
				{Name: "Living", TotalTotals: -1500, Categories: []core.SplitTotal{
					{Name: "Rent", TotalTotals: -1200},
					{Name: "Food", TotalTotals: -300},
				}},
			},
			want: SankeyData{
				Nodes: []SankeyNode{{"Budget"}, {"Income"}, {"Salary"}, {"Living"}, {"Rent"}, {"Food"}},
				Links: []SankeyLink{
					{Source: 1, Target: 0, Value: 3000},
					{Source: 2, Target: 1, Value: 3000},
					{Source: 0, Target: 3, Value: 1500},
					{Source: 3, Target: 4, Value: 1200},
					{Source: 3, Target: 5, Value: 300},
				},
			},
		},
		{
			name:    "account splits in and out",
			groupBy: query.GroupByAccount,
			totals:  []core.SplitTotal{{Name: "Checking", TotalAssets: 900, TotalDebts: -400, TotalTotals: 500}},
			want: SankeyData{
				Nodes: []SankeyNode{{"Budget"}, {"Checking"}, {"Checking"}},
				Links: []SankeyLink{
					{Source: 0, Target: 1, Value: 400},
					{Source: 2, Target: 0, Value: 900},
				},
			},
		},
		{
			name:    "payee by net sign, zero skipped",
			groupBy: query.GroupByPayee,
			totals: []core.SplitTotal{
				{Name: "Employer", TotalTotals: 3000},
				{Name: "Grocer", TotalTotals: -250},
				{Name: "Refunds", TotalTotals: 0},
			},
			want: SankeyData{
				Nodes: []SankeyNode{{"Budget"}, {"Employer"}, {"Grocer"}, {"Refunds"}},
				Links: []SankeyLink{
					{Source: 1, Target: 0, Value: 3000},
					{Source: 0, Target: 2, Value: 250},
				},
			},
		},
		{
			name:    "payee named Budget stays its own node",
			groupBy: query.GroupByPayee,
			totals: []core.SplitTotal{
				{Name: "Budget", TotalTotals: -80},
				{Name: "Employer", TotalTotals: 3000},
			},
			want: SankeyData{
				Nodes: []SankeyNode{{"Budget"}, {"Budget"}, {"Employer"}},
				Links: []SankeyLink{
					{Source: 0, Target: 1, Value: 80},
					{Source: 2, Target: 0, Value: 3000},
				},
			},
		},
		{
			name:    "concatenated names do not merge",
			groupBy: query.GroupByCategory,
			totals: []core.SplitTotal{
				{Name: "AB", TotalTotals: -10, Categories: []core.SplitTotal{{Name: "C", TotalTotals: -10}}},
				{Name: "A", TotalTotals: -20, Categories: []core.SplitTotal{{Name: "BC", TotalTotals: -20}}},
			},
			want: SankeyData{
				Nodes: []SankeyNode{{"Budget"}, {"AB"}, {"C"}, {"A"}, {"BC"}},
				Links: []SankeyLink{
					{Source: 0, Target: 1, Value: 10},
					{Source: 1, Target: 2, Value: 10},
					{Source: 0, Target: 3, Value: 20},
					{Source: 3, Target: 4, Value: 20},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToSankey(tt.totals, tt.groupBy)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToSankey() =\n%+v\nwant\n%+v", got, tt.want)
			}
		})
	}
}

func TestSankey_FromStore(t *testing.T) {
	svc := newTestService(ledger(t))
	got, err := svc.Sankey(context.Background(), SankeyRequest{
		Start:   day(2024, 1, 1),
		End:     day(2024, 3, 31),
		GroupBy: query.GroupByGroup,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Nodes) == 0 || got.Nodes[0].Name != BudgetNode {
		t.Fatalf("nodes = %+v", got.Nodes)
	}
	var in, out int64
	for _, l := range got.Links {
		if l.Target == 0 {
			in += l.Value
		}
		if l.Source == 0 {
			out += l.Value
		}
	}
	if in != 900000 || out != 280000 {
		t.Errorf("into budget %d, out of budget %d", in, out)
	}

	if _, err := svc.Sankey(context.Background(), SankeyRequest{GroupBy: "memo"}); err == nil {
		t.Error("unknown groupBy accepted")
	}
}
