// Package render formats ledger data as markdown and renders it for terminals.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Glamour style names accepted by Terminal.
const (
	StyleAuto  = "auto"
	StylePlain = "notty"
)

// ReportMarkdown renders res for the from..to period.
func ReportMarkdown(from, to core.Date, res *core.AnalyticsResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Report %s to %s\n\n", from, to)

	if res == nil || (len(res.ByCategory) == 0 && len(res.ByMonth) == 0) {
		b.WriteString("_No transactions in this period._\n")
		return b.String()
	}

	total := decimal.NewFromFloat(res.Total)

	conditionalBlock(&b, func(w io.Writer) bool {
		fmt.Fprintln(w, "## By category")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Category | Amount | Share |")
		fmt.Fprintln(w, "|:---|---:|---:|")
		for _, c := range res.ByCategory {
			fmt.Fprintf(w, "| %s | %s | %s |\n", escapeCell(c.Name), amount(c.Sum), share(decimal.NewFromFloat(c.Sum), total))
		}
		fmt.Fprintln(w)
		return len(res.ByCategory) > 0
	})

	conditionalBlock(&b, func(w io.Writer) bool {
		fmt.Fprintln(w, "## By month")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Month | Amount |")
		fmt.Fprintln(w, "|:---|---:|")
		for _, m := range res.ByMonth {
			fmt.Fprintf(w, "| %s | %s |\n", escapeCell(m.Month), amount(m.Sum))
		}
		fmt.Fprintln(w)
		return len(res.ByMonth) > 0
	})

	fmt.Fprintf(&b, "**Total: %s**\n", amount(res.Total))
	return b.String()
}

// TransactionsMarkdown renders list as a table.
func TransactionsMarkdown(list []core.Transaction) string {
	if len(list) == 0 {
		return "_No transactions._\n"
	}
	var b strings.Builder
	var sum int64
	b.WriteString("| ID | Date | Amount | Category | Description |\n")
	b.WriteString("|---:|:---|---:|:---|:---|\n")
	for _, t := range list {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			t.ID, t.Date, t.Amount, escapeCell(t.Category), escapeCell(t.Description))
		sum += t.Amount.Cents
	}
	fmt.Fprintf(&b, "\n%d transactions, %s in total\n", len(list), core.Money{Cents: sum})
	return b.String()
}

// Terminal renders md with the given glamour style, returning md unchanged
// when rendering fails.
func Terminal(md, style string) string {
	if style == "" {
		style = StyleAuto
	}
	out, err := glamour.Render(md, style)
	if err != nil {
		return md
	}
	return out
}

func amount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func share(part, total decimal.Decimal) string {
	if total.IsZero() {
		return "-"
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// conditionalBlock writes what block produced to w only if block returns true.
func conditionalBlock(w io.Writer, block func(io.Writer) bool) {
	var buf bytes.Buffer
	if block(&buf) {
		io.Copy(w, &buf)
	}
}
