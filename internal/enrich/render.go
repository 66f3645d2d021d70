package enrich

import (
	"fmt"
	"time"
)

// RenderSync projects admitted items into a single card. It knows nothing
// about the dashboard, ordering or filters.
type RenderSync struct{}

// Describe builds the detail line and copy summary for an item.
func Describe(it EnrichmentItem) (Row, string) {
	v := it.EffectiveVerdict()
	row := Row{Provider: it.Provider, Verdict: v, Badge: v.Label()}

	if v == VerdictError {
		row.Detail = it.Provider + ": " + it.Error
		return row, fmt.Sprintf("%s: error (%s)", it.Provider, it.Error)
	}

	var text string
	switch v {
	case VerdictMalicious:
		text = fmt.Sprintf("%d/%d malicious", it.DetectionCount, it.TotalEngines)
	case VerdictSuspicious:
		text = "Suspicious"
	case VerdictClean:
		text = fmt.Sprintf("Clean, scanned by %d engines", it.TotalEngines)
	default:
		text = "Not found in " + it.Provider + "'s database"
	}

	row.Detail = it.Provider + ": " + text
	if d := formatScanDate(it.ScanDate); d != "" {
		row.Detail += " - scanned " + d
	}
	return row, fmt.Sprintf("%s: %s (%s)", it.Provider, v, text)
}

// Apply renders one admitted item into card and returns the indicator's
// worst verdict. ind must already include the item in its received list.
func (RenderSync) Apply(card *Card, ind *Indicator, row Row) Verdict {
	card.Loading = false

	if row.Verdict == VerdictNoData {
		if card.NoData == nil {
			card.NoData = &NoDataGroup{}
		}
		card.NoData.Rows = append(card.NoData.Rows, row)
		card.NoData.Summary = plural(len(card.NoData.Rows), "provider") + ": no record"
	} else {
		card.Rows = append(card.Rows, row)
	}

	if remaining := ind.Remaining(); remaining > 0 {
		card.Pending = plural(remaining, "provider") + " still loading..."
	} else {
		card.Pending = ""
	}

	worst, ok := ind.Worst()
	if !ok {
		return ""
	}
	card.Verdict = worst.Verdict
	card.Enrichment = worst.Summary
	return worst.Verdict
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func formatScanDate(s *string) string {
	if s == nil || *s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return *s
}
