package enrich

import "strings"

// WarningKind classifies provider failures worth a banner.
type WarningKind string

const (
	WarningRateLimit WarningKind = "rate_limit"
	WarningAuth      WarningKind = "auth"
)

// Warning is a classified provider failure.
type Warning struct {
	Kind     WarningKind
	Provider string
	Message  string
}

// WarningDetector classifies error items by their text.
type WarningDetector struct{}

// Classify inspects one item. ok is false for results and unrelated errors.
func (WarningDetector) Classify(it EnrichmentItem) (Warning, bool) {
	if !it.IsError() || it.Error == "" {
		return Warning{}, false
	}
	msg := strings.ToLower(it.Error)
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return Warning{
			Kind:     WarningRateLimit,
			Provider: it.Provider,
			Message: "Warning: Rate limit reached for " + it.Provider +
				". Consider using offline mode or checking your API key in Settings.",
		}, true
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return Warning{
			Kind:     WarningAuth,
			Provider: it.Provider,
			Message: "Warning: Authentication error for " + it.Provider +
				". Please check your API key configuration in Settings.",
		}, true
	}
	return Warning{}, false
}

// Scan classifies it and, on a match, overwrites the board's banner.
func (d WarningDetector) Scan(b *Board, it EnrichmentItem) (Warning, bool) {
	w, ok := d.Classify(it)
	if ok {
		b.Warning = w.Message
	}
	return w, ok
}

// Export renders the clipboard export: one line per indicator in extraction
// order, with the worst-verdict summary when one exists.
func Export(st *State) string {
	lines := make([]string, 0, len(st.order))
	for _, ind := range st.order {
		if w, ok := ind.Worst(); ok && w.Summary != "" {
			lines = append(lines, ind.Value+" | "+w.Summary)
			continue
		}
		lines = append(lines, ind.Value)
	}
	return strings.Join(lines, "\n")
}
