package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
)

const progressBarWidth = 20

// dashboardText renders one badge per verdict class with its count. The
// badge matching the active verdict filter is highlighted.
func dashboardText(b *enrich.Board, th Theme) string {
	parts := make([]string, 0, len(dashboardOrder))
	for i, v := range dashboardOrder {
		label := fmt.Sprintf("%d %s %d", i+1, v.Label(), b.Dashboard[v])
		if strings.EqualFold(b.Controls.ActiveVerdict, string(v)) {
			parts = append(parts, fmt.Sprintf("[%s:%s:b] %s [-:-:-]", th.Surface, th.VerdictTag(v), label))
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s] %s [-]", th.VerdictTag(v), label))
	}
	return strings.Join(parts, " ")
}

func progressText(p enrich.Progress, th Theme) string {
	if p.Text == "" {
		return fmt.Sprintf("[%s]Waiting for job status...[-]", th.Muted)
	}
	if p.Total == 0 && !p.Complete {
		return fmt.Sprintf("[%s]%s[-]", th.Muted, p.Text)
	}
	filled := p.Percent() * progressBarWidth / 100
	if p.Complete {
		filled = progressBarWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)

	color := th.Accent
	if p.Complete {
		color = th.Clean
	}
	text := fmt.Sprintf("[%s]%s[-] %s", color, bar, p.Text)
	if !p.Complete {
		text += fmt.Sprintf(" (%d%%)", p.Percent())
	}
	return text
}

func filterBarText(c enrich.Controls, th Theme) string {
	active := func(name, value string) string {
		if value == "" || value == enrich.FilterAll {
			return fmt.Sprintf("[%s]%s: all[-]", th.Muted, name)
		}
		return fmt.Sprintf("[%s::b]%s: %s[-::-]", th.Accent, name, tview.Escape(value))
	}
	search := fmt.Sprintf("[%s]search: -[-]", th.Muted)
	if c.Search != "" {
		search = fmt.Sprintf("[%s::b]search: %s[-::-]", th.Accent, tview.Escape(c.Search))
	}
	return " " + strings.Join([]string{active("verdict", c.ActiveVerdict), active("type", c.ActiveType), search}, "  ")
}

// providerColumn summarises how many providers reported for a card.
func providerColumn(c *enrich.Card) string {
	if !c.Type.Enrichable() {
		return "n/a"
	}
	if c.Loading {
		return "loading..."
	}
	got := len(c.Rows)
	if c.NoData != nil {
		got += len(c.NoData.Rows)
	}
	return fmt.Sprintf("%d/%d", got, enrich.ExpectedProviders(c.Type))
}

// cardDetailText renders the detail pane of a card: provider rows, the
// collapsed no-record group, and the pending counter.
func cardDetailText(c *enrich.Card, th Theme) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%s::b]%s[-::-]\n", th.Text, tview.Escape(c.Value))
	fmt.Fprintf(&sb, "[%s]type:[-] %s", th.Muted, c.Type)
	if c.RawMatch != "" && c.RawMatch != c.Value {
		fmt.Fprintf(&sb, "  [%s]matched as:[-] %s", th.Muted, tview.Escape(c.RawMatch))
	}
	sb.WriteString("\n")
	if c.Verdict != "" {
		fmt.Fprintf(&sb, "[%s]worst:[-] [%s::b]%s[-::-]\n", th.Muted, th.VerdictTag(c.Verdict), c.Verdict.Label())
	}
	sb.WriteString("\n")

	if !c.Type.Enrichable() {
		fmt.Fprintf(&sb, "[%s]Not enriched for this indicator type.[-]\n", th.Muted)
		return sb.String()
	}
	if c.Loading {
		fmt.Fprintf(&sb, "[%s]Loading enrichment...[-]\n", th.Muted)
		return sb.String()
	}

	for _, r := range c.Rows {
		writeRow(&sb, r, th)
	}

	if c.NoData != nil {
		marker := "▸"
		if c.NoData.Expanded {
			marker = "▾"
		}
		fmt.Fprintf(&sb, "[%s]%s %s[-] [%s](n to toggle)[-]\n", th.NoData, marker, c.NoData.Summary, th.Muted)
		if c.NoData.Expanded {
			for _, r := range c.NoData.Rows {
				sb.WriteString("  ")
				writeRow(&sb, r, th)
			}
		}
	}

	if c.Pending != "" {
		fmt.Fprintf(&sb, "\n[%s]%s[-]\n", th.Muted, c.Pending)
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, r enrich.Row, th Theme) {
	fmt.Fprintf(sb, "[%s::b]%-10s[-::-] %s\n", th.VerdictTag(r.Verdict), r.Badge, tview.Escape(r.Detail))
}
