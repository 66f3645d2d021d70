package enrich

import "strings"

// Received is one provider verdict merged into an indicator.
type Received struct {
	Provider string
	Verdict  Verdict
	// Summary is the one-line text used by copy and export,
	// e.g. "VirusTotal: malicious (3/70 malicious)".
	Summary string
}

// Indicator is the per-value aggregation state.
type Indicator struct {
	Value    string
	Type     IOCType
	RawMatch string
	Expected int
	Received []Received

	// worst indexes Received; -1 while no provider has reported.
	worst int
}

// Worst returns the entry holding the indicator's worst verdict. ok is false
// while the indicator is still pending.
func (ind *Indicator) Worst() (Received, bool) {
	if ind.worst < 0 || ind.worst >= len(ind.Received) {
		return Received{}, false
	}
	return ind.Received[ind.worst], true
}

// WorstVerdict returns the worst verdict class, or "" while pending.
func (ind *Indicator) WorstVerdict() Verdict {
	if w, ok := ind.Worst(); ok {
		return w.Verdict
	}
	return ""
}

// Remaining returns how many providers have not reported yet.
func (ind *Indicator) Remaining() int {
	if r := ind.Expected - len(ind.Received); r > 0 {
		return r
	}
	return 0
}

// Seed describes an indicator as delivered by the extraction step.
type Seed struct {
	Value    string  `json:"value"`
	Type     IOCType `json:"type"`
	RawMatch string  `json:"raw_match,omitempty"`
}

// State is the aggregation state for one job. It is owned by the caller of
// the polling loop and handed to each pipeline stage.
type State struct {
	seen       map[ItemKey]struct{}
	indicators map[string]*Indicator
	order      []*Indicator
}

// NewState builds aggregation state from the extracted indicators. Duplicate
// values keep their first occurrence.
func NewState(seeds []Seed) *State {
	st := &State{
		seen:       make(map[ItemKey]struct{}),
		indicators: make(map[string]*Indicator, len(seeds)),
	}
	for _, s := range seeds {
		if s.Value == "" {
			continue
		}
		if _, dup := st.indicators[s.Value]; dup {
			continue
		}
		t := IOCType(strings.ToLower(string(s.Type)))
		ind := &Indicator{
			Value:    s.Value,
			Type:     t,
			RawMatch: s.RawMatch,
			Expected: ExpectedProviders(t),
			worst:    -1,
		}
		st.indicators[s.Value] = ind
		st.order = append(st.order, ind)
	}
	return st
}

// Indicator looks up an indicator by its canonical value.
func (s *State) Indicator(value string) (*Indicator, bool) {
	ind, ok := s.indicators[value]
	return ind, ok
}

// Indicators returns indicators in extraction order.
func (s *State) Indicators() []*Indicator {
	out := make([]*Indicator, len(s.order))
	copy(out, s.order)
	return out
}

// Admitted reports how many (indicator, provider) pairs have been admitted.
func (s *State) Admitted() int { return len(s.seen) }

// Deduplicator admits each (indicator, provider) pair once across all ticks.
type Deduplicator struct{}

// Admit returns the items of a snapshot whose key has not been admitted
// before, and admits them. Repeats inside the same snapshot are dropped too.
func (Deduplicator) Admit(st *State, items []EnrichmentItem) []EnrichmentItem {
	var fresh []EnrichmentItem
	for _, it := range items {
		k := it.Key()
		if _, ok := st.seen[k]; ok {
			continue
		}
		st.seen[k] = struct{}{}
		fresh = append(fresh, it)
	}
	return fresh
}

// Aggregator maintains the received list of each indicator.
type Aggregator struct{}

// Update appends a provider entry and returns the recomputed worst entry.
func (Aggregator) Update(ind *Indicator, provider string, verdict Verdict, summary string) Received {
	ind.Received = append(ind.Received, Received{
		Provider: provider,
		Verdict:  verdict,
		Summary:  summary,
	})
	ind.worst = worstIndex(ind.Received)
	return ind.Received[ind.worst]
}

// worstIndex scans all entries; ties keep the first one seen.
func worstIndex(entries []Received) int {
	best := -1
	for i, e := range entries {
		if best < 0 || e.Verdict.Severity() > entries[best].Verdict.Severity() {
			best = i
		}
	}
	return best
}
