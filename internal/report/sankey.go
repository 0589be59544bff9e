package report

import (
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/query"
)

// BudgetNode is the central node every flow passes through.
const BudgetNode = "Budget"

type SankeyNode struct {
	Name string `json:"name"`
}

// SankeyLink connects two nodes by index. Value is in cents and positive.
type SankeyLink struct {
	Source int   `json:"source"`
	Target int   `json:"target"`
	Value  int64 `json:"value"`
}

type SankeyData struct {
	Nodes []SankeyNode `json:"nodes"`
	Links []SankeyLink `json:"links"`
}

// Node keys are namespaced by role so that display names never collide
// with each other or with the budget node.
const budgetKey = "budget"

func sankeyKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// sankeyBuilder keeps display names and unique keys in step; node names may
// repeat while keys do not.
type sankeyBuilder struct {
	data  SankeyData
	index map[string]int
}

func newSankeyBuilder() *sankeyBuilder {
	b := &sankeyBuilder{index: make(map[string]int)}
	b.node(budgetKey, BudgetNode)
	return b
}

func (b *sankeyBuilder) node(key, name string) {
	if _, ok := b.index[key]; ok {
		return
	}
	b.index[key] = len(b.data.Nodes)
	b.data.Nodes = append(b.data.Nodes, SankeyNode{Name: name})
}

func (b *sankeyBuilder) link(from, to string, value int64) {
	if value == 0 {
		return
	}
	b.data.Links = append(b.data.Links, SankeyLink{Source: b.index[from], Target: b.index[to], Value: value})
}

// signed links an entity to its parent: outflow runs parent to child,
// inflow child to parent.
func (b *sankeyBuilder) signed(parent, child string, total int64) {
	if total < 0 {
		b.link(parent, child, -total)
	} else {
		b.link(child, parent, total)
	}
}

// ToSankey converts split totals into nodes and links around BudgetNode.
//
// Category: group to Budget, then group to category.
// Account: separate in and out nodes per account using assets and debts.
// Group and Payee: entity to Budget by the sign of its net total.
func ToSankey(totals []core.SplitTotal, groupBy query.GroupBy) SankeyData {
	b := newSankeyBuilder()

	switch groupBy {
	case query.GroupByCategory:
		for _, group := range totals {
			gk := sankeyKey("group", group.Name)
			b.node(gk, group.Name)
			b.signed(budgetKey, gk, group.TotalTotals)
			for _, cat := range group.Categories {
				ck := sankeyKey("category", group.Name, cat.Name)
				b.node(ck, cat.Name)
				b.signed(gk, ck, cat.TotalTotals)
			}
		}
	case query.GroupByAccount:
		for _, acct := range totals {
			out, in := sankeyKey("out", acct.Name), sankeyKey("in", acct.Name)
			b.node(out, acct.Name)
			if acct.TotalDebts < 0 {
				b.link(budgetKey, out, -acct.TotalDebts)
			}
			b.node(in, acct.Name)
			if acct.TotalAssets > 0 {
				b.link(in, budgetKey, acct.TotalAssets)
			}
		}
	default:
		for _, t := range totals {
			k := sankeyKey("entity", t.Name)
			b.node(k, t.Name)
			b.signed(budgetKey, k, t.TotalTotals)
		}
	}
	return b.data
}
