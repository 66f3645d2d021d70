package enrich

import "fmt"

// Row is one provider line in an indicator's detail view.
type Row struct {
	Provider string
	Verdict  Verdict
	Badge    string
	Detail   string
}

// NoDataGroup collects no_data rows under a collapsed, count-labelled header.
type NoDataGroup struct {
	Rows     []Row
	Summary  string
	Expanded bool
}

// Card is the view of a single indicator.
type Card struct {
	Value    string
	Type     IOCType
	RawMatch string

	// Verdict mirrors the indicator's worst verdict once known.
	Verdict Verdict
	// Loading is the placeholder shown until the first provider reports.
	Loading bool
	Rows    []Row
	NoData  *NoDataGroup
	// Pending is the "N providers still loading" text, empty once removed.
	Pending string
	// Enrichment is the worst-verdict summary read by copy and export.
	Enrichment string
	Hidden     bool
}

// CopyText returns the single-indicator clipboard text.
func (c *Card) CopyText() string {
	if c.Enrichment == "" {
		return c.Value
	}
	return c.Value + " | " + c.Enrichment
}

// Progress is the job progress slot.
type Progress struct {
	Done          int
	Total         int
	Complete      bool
	Text          string
	ExportEnabled bool
}

// Percent returns done/total rounded to a whole percentage.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Done*100 + p.Total/2) / p.Total
}

// Controls holds the active state of the filter controls.
type Controls struct {
	ActiveVerdict string
	ActiveType    string
	Search        string
}

// Board is the console's view model: cards in display order plus the
// dashboard, progress, banner and filter controls.
type Board struct {
	cards     []*Card
	index     map[string]*Card
	Dashboard map[Verdict]int
	Progress  Progress
	Warning   string
	Controls  Controls
}

// NewBoard creates one card per indicator, in extraction order. Enrichable
// cards start in the loading state.
func NewBoard(st *State) *Board {
	b := &Board{
		index:     make(map[string]*Card),
		Dashboard: make(map[Verdict]int),
		Controls:  Controls{ActiveVerdict: FilterAll, ActiveType: FilterAll},
	}
	for _, ind := range st.order {
		c := &Card{
			Value:    ind.Value,
			Type:     ind.Type,
			RawMatch: ind.RawMatch,
			Loading:  ind.Expected > 0,
		}
		b.cards = append(b.cards, c)
		b.index[ind.Value] = c
	}
	for _, v := range verdictOrder {
		b.Dashboard[v] = 0
	}
	return b
}

// Card returns the card for value.
func (b *Board) Card(value string) (*Card, bool) {
	c, ok := b.index[value]
	return c, ok
}

// Cards returns the cards in display order. The pointers are the board's own
// cards, so callers see later mutations.
func (b *Board) Cards() []*Card {
	out := make([]*Card, len(b.cards))
	copy(out, b.cards)
	return out
}

// VisibleCards returns the cards not hidden by the filter, in display order.
func (b *Board) VisibleCards() []*Card {
	var out []*Card
	for _, c := range b.cards {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// SetProgress updates the progress slot for a tick. A lower done count for
// the same total comes from an overlapping fetch that returned late and is
// ignored, as is anything after completion.
func (b *Board) SetProgress(done, total int) {
	if b.Progress.Complete {
		return
	}
	if total == b.Progress.Total && done < b.Progress.Done {
		return
	}
	b.Progress.Done = done
	b.Progress.Total = total
	b.Progress.Text = fmt.Sprintf("%d/%d providers complete", done, total)
}

// MarkComplete finalises the progress slot and enables export.
func (b *Board) MarkComplete(done, total int) {
	b.Progress.Done = done
	b.Progress.Total = total
	b.Progress.Complete = true
	b.Progress.Text = "Enrichment complete"
	b.Progress.ExportEnabled = true
}

// MarkOffline clears every loading placeholder for a session that will never
// poll, and enables export of the bare indicator list.
func (b *Board) MarkOffline() {
	for _, c := range b.cards {
		c.Loading = false
	}
	b.Progress.Text = "Offline mode: enrichment disabled"
	b.Progress.ExportEnabled = true
}
