package enrich

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Ashfaaq98/enrich-console/internal/logger"
)

// Options configures an Engine.
type Options struct {
	// Clock drives the severity debounce. Nil means the real clock.
	Clock clockwork.Clock
	// SortDebounce is the quiet period before a reorder.
	SortDebounce time.Duration
	// Dispatch runs deferred work (the debounced reorder) on the goroutine
	// that owns the engine. Nil runs it inline on the timer goroutine, which
	// is only safe when nothing else touches the engine concurrently.
	Dispatch func(func())
	// OnReorder, if set, is called after each debounced reorder.
	OnReorder func()
	Logger    *logger.Logger
}

// Update describes one admitted item after it was applied.
type Update struct {
	Item    EnrichmentItem
	Row     Row
	Worst   Verdict
	Summary string
	// Changed is true when the indicator's worst verdict class moved.
	Changed bool
}

// Report summarises one tick.
type Report struct {
	Applied []Update
	// Dropped counts malformed items and items without a matching indicator.
	Dropped int
	Warning *Warning
}

// Engine runs the per-tick pipeline against a State and a Board. It is not
// safe for concurrent use: every call must come from the owning goroutine.
type Engine struct {
	state *State
	board *Board

	dedup  Deduplicator
	agg    Aggregator
	render RenderSync
	dash   DashboardSync
	warn   WarningDetector
	sorter *SeverityOrderer
	filter *FilterEngine

	log *logger.Logger
}

// NewEngine builds the aggregation state and board for seeds.
func NewEngine(seeds []Seed, opts Options) *Engine {
	st := NewState(seeds)
	b := NewBoard(st)
	e := &Engine{
		state:  st,
		board:  b,
		filter: NewFilterEngine(),
		log:    logger.OrDiscard(opts.Logger),
	}

	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	onReorder := opts.OnReorder
	e.sorter = NewSeverityOrderer(b, opts.Clock, opts.SortDebounce, func(f func()) {
		dispatch(func() {
			f()
			if onReorder != nil {
				onReorder()
			}
		})
	})

	e.dash.Recompute(st, b)
	e.filter.Apply(b)
	return e
}

// State exposes the aggregation state.
func (e *Engine) State() *State { return e.state }

// Board exposes the view model.
func (e *Engine) Board() *Board { return e.board }

// Filter exposes the current filter state.
func (e *Engine) Filter() FilterState { return e.filter.State() }

// ApplyStatus applies one status payload. All four dependent views are
// refreshed before it returns.
func (e *Engine) ApplyStatus(status *JobStatus) Report {
	var rep Report
	if status == nil {
		return rep
	}

	e.board.SetProgress(status.Done, status.Total)

	valid := make([]EnrichmentItem, 0, len(status.Results))
	for _, it := range status.Results {
		if !it.wellFormed() {
			rep.Dropped++
			continue
		}
		valid = append(valid, it)
	}

	changed := false
	for _, it := range e.dedup.Admit(e.state, valid) {
		up, ok := e.apply(it)
		if !ok {
			rep.Dropped++
			continue
		}
		rep.Applied = append(rep.Applied, up)
		changed = changed || up.Changed

		e.dash.Recompute(e.state, e.board)
		e.sorter.Schedule()
		if w, ok := e.warn.Scan(e.board, it); ok {
			rep.Warning = &w
			e.log.WithFields(logger.Fields{
				"provider": w.Provider,
				"kind":     w.Kind,
			}).Warn("provider warning raised")
		}
	}

	if changed {
		e.filter.Apply(e.board)
	}

	if len(rep.Applied) > 0 || rep.Dropped > 0 {
		e.log.WithFields(logger.Fields{
			"applied": len(rep.Applied),
			"dropped": rep.Dropped,
			"done":    status.Done,
			"total":   status.Total,
		}).Debug("tick applied")
	}
	return rep
}

func (e *Engine) apply(it EnrichmentItem) (Update, bool) {
	ind, ok := e.state.Indicator(it.IOCValue)
	if !ok || ind.Expected == 0 {
		return Update{}, false
	}
	card, ok := e.board.Card(it.IOCValue)
	if !ok {
		return Update{}, false
	}

	before := ind.WorstVerdict()
	row, summary := Describe(it)
	e.agg.Update(ind, it.Provider, row.Verdict, summary)
	worst := e.render.Apply(card, ind, row)

	return Update{
		Item:    it,
		Row:     row,
		Worst:   worst,
		Summary: card.Enrichment,
		Changed: worst != before,
	}, true
}

// Complete marks the job finished.
func (e *Engine) Complete(status *JobStatus) {
	if status == nil {
		e.board.MarkComplete(e.board.Progress.Done, e.board.Progress.Total)
		return
	}
	e.board.MarkComplete(status.Done, status.Total)
}

// Offline marks a session that never polls.
func (e *Engine) Offline() { e.board.MarkOffline() }

// SelectVerdict toggles the verdict filter and re-applies it.
func (e *Engine) SelectVerdict(v string) int {
	e.filter.SelectVerdict(v)
	return e.filter.Apply(e.board)
}

// SelectType toggles the type filter and re-applies it.
func (e *Engine) SelectType(t string) int {
	e.filter.SelectType(t)
	return e.filter.Apply(e.board)
}

// SetSearch sets the search filter and re-applies it.
func (e *Engine) SetSearch(s string) int {
	e.filter.SetSearch(s)
	return e.filter.Apply(e.board)
}

// ResetFilters clears every filter dimension.
func (e *Engine) ResetFilters() int {
	e.filter.Reset()
	return e.filter.Apply(e.board)
}

// SortNow reorders immediately, dropping any pending debounced reorder.
func (e *Engine) SortNow() {
	e.sorter.Cancel()
	SortBySeverity(e.board)
}

// SortPending reports whether a debounced reorder is waiting.
func (e *Engine) SortPending() bool { return e.sorter.Pending() }

// Reorders returns how many debounced severity reorders have run.
func (e *Engine) Reorders() uint64 { return e.sorter.Reorders() }

// Export renders the clipboard export for the whole job.
func (e *Engine) Export() string { return Export(e.state) }

// Close cancels pending deferred work.
func (e *Engine) Close() { e.sorter.Cancel() }
