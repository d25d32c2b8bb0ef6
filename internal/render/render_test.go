package render

import (
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"ledger/internal/core"
)

// countTables parses md as GitHub-flavoured markdown and counts its tables
// and their body rows.
func countTables(t *testing.T, md string) (tables int, rows []int) {
	t.Helper()
	parser := goldmark.New(goldmark.WithExtensions(extension.Table)).Parser()
	doc := parser.Parse(text.NewReader([]byte(md)))
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*east.Table); ok {
			tables++
			count := 0
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if _, ok := c.(*east.TableRow); ok {
					count++
				}
			}
			rows = append(rows, count)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return tables, rows
}

func TestReportMarkdown(t *testing.T) {
	res := &core.AnalyticsResult{
		ByCategory: []core.CategorySum{{Name: "Food", Sum: 150}, {Name: "Transport", Sum: 200}},
		ByMonth:    []core.MonthSum{{Month: "2025-01", Sum: 350}},
		Total:      350,
	}
	md := ReportMarkdown(core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31), res)

	for _, want := range []string{
		"# Report 2025-01-01 to 2025-01-31",
		"| Food | 150.00 | 42.9% |",
		"| Transport | 200.00 | 57.1% |",
		"| 2025-01 | 350.00 |",
		"**Total: 350.00**",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	tables, rows := countTables(t, md)
	if tables != 2 {
		t.Fatalf("expected 2 tables, got %d:\n%s", tables, md)
	}
	if rows[0] != 2 || rows[1] != 1 {
		t.Errorf("unexpected row counts %v", rows)
	}
}

func TestReportMarkdown_Empty(t *testing.T) {
	empty := &core.AnalyticsResult{ByCategory: []core.CategorySum{}, ByMonth: []core.MonthSum{}}
	for _, res := range []*core.AnalyticsResult{nil, empty} {
		md := ReportMarkdown(core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31), res)
		if !strings.Contains(md, "No transactions in this period") {
			t.Errorf("expected empty notice, got:\n%s", md)
		}
		if tables, _ := countTables(t, md); tables != 0 {
			t.Errorf("expected no tables, got %d", tables)
		}
	}
}

func TestReportMarkdown_ZeroTotalAndEscaping(t *testing.T) {
	res := &core.AnalyticsResult{
		ByCategory: []core.CategorySum{{Name: "A|B", Sum: 0}},
		ByMonth:    []core.MonthSum{{Month: "2025-01", Sum: 0}},
	}
	md := ReportMarkdown(core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31), res)
	if !strings.Contains(md, `| A\|B | 0.00 | - |`) {
		t.Errorf("unexpected category row:\n%s", md)
	}
	if tables, rows := countTables(t, md); tables != 2 || rows[0] != 1 {
		t.Errorf("escaped pipe broke the table: %d tables, rows %v", tables, rows)
	}
}

func TestTransactionsMarkdown(t *testing.T) {
	list := []core.Transaction{
		{ID: 2, Date: core.NewDate(2025, 1, 2), Amount: core.Money{Cents: 1050}, Category: "Food", Description: "lunch"},
		{ID: 1, Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 200}, Category: "Bus"},
	}
	md := TransactionsMarkdown(list)
	if !strings.Contains(md, "| 2 | 2025-01-02 | 10.50 | Food | lunch |") {
		t.Errorf("missing first row:\n%s", md)
	}
	if !strings.Contains(md, "2 transactions, 12.50 in total") {
		t.Errorf("missing footer:\n%s", md)
	}
	if _, rows := countTables(t, md); len(rows) != 1 || rows[0] != 2 {
		t.Errorf("unexpected table rows %v", rows)
	}

	if got := TransactionsMarkdown(nil); !strings.Contains(got, "No transactions") {
		t.Errorf("unexpected empty listing %q", got)
	}
}

func TestTerminal(t *testing.T) {
	out := Terminal("# Title\n\nSome **bold** words.\n", StylePlain)
	if !strings.Contains(out, "Title") || !strings.Contains(out, "bold") {
		t.Errorf("rendered output lost content: %q", out)
	}

	const md = "plain"
	if got := Terminal(md, "no-such-style"); got != md {
		t.Errorf("expected fallback to raw markdown, got %q", got)
	}
}
