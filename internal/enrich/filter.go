package enrich

import "strings"

// FilterAll is the value that disables a filter dimension.
const FilterAll = "all"

// FilterState holds the three independent filter predicates.
type FilterState struct {
	Verdict string
	Type    string
	Search  string
}

// FilterEngine decides card visibility from FilterState.
type FilterEngine struct {
	state FilterState
}

// NewFilterEngine returns a filter that shows everything.
func NewFilterEngine() *FilterEngine {
	return &FilterEngine{state: FilterState{Verdict: FilterAll, Type: FilterAll}}
}

// State returns the current filter state.
func (f *FilterEngine) State() FilterState { return f.state }

// SelectVerdict toggles the verdict dimension: choosing the active verdict
// resets it to all.
func (f *FilterEngine) SelectVerdict(v string) {
	f.state.Verdict = toggle(f.state.Verdict, v)
}

// SelectType toggles the type dimension the same way as SelectVerdict.
func (f *FilterEngine) SelectType(t string) {
	f.state.Type = toggle(f.state.Type, t)
}

// SetSearch replaces the search string. Search has no toggle.
func (f *FilterEngine) SetSearch(s string) { f.state.Search = s }

// Reset clears all three dimensions.
func (f *FilterEngine) Reset() {
	f.state = FilterState{Verdict: FilterAll, Type: FilterAll}
}

func toggle(current, chosen string) string {
	chosen = strings.ToLower(strings.TrimSpace(chosen))
	if chosen == "" || chosen == FilterAll || strings.EqualFold(current, chosen) {
		return FilterAll
	}
	return chosen
}

// Matches reports whether a card passes all three predicates.
func (f *FilterEngine) Matches(c *Card) bool {
	verdict := strings.ToLower(f.state.Verdict)
	typ := strings.ToLower(f.state.Type)
	search := strings.ToLower(f.state.Search)

	verdictOK := verdict == FilterAll || verdict == strings.ToLower(string(c.Verdict))
	typeOK := typ == FilterAll || typ == strings.ToLower(string(c.Type))
	searchOK := search == "" || strings.Contains(strings.ToLower(c.Value), search)
	return verdictOK && typeOK && searchOK
}

// Apply sets visibility on every card and mirrors the filter state onto the
// board's controls. It returns the number of visible cards.
func (f *FilterEngine) Apply(b *Board) int {
	visible := 0
	for _, c := range b.cards {
		c.Hidden = !f.Matches(c)
		if !c.Hidden {
			visible++
		}
	}
	b.Controls = Controls{
		ActiveVerdict: f.state.Verdict,
		ActiveType:    f.state.Type,
		Search:        f.state.Search,
	}
	return visible
}
