package enrich

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Ashfaaq98/enrich-console/internal/sched"
)

// DashboardSync recomputes the per-verdict counts shown on the dashboard.
type DashboardSync struct{}

// Recompute counts worst verdicts over every known indicator and writes the
// counts into the board's slots. Pending indicators are not counted.
func (DashboardSync) Recompute(st *State, b *Board) map[Verdict]int {
	counts := make(map[Verdict]int, len(verdictOrder))
	for _, v := range verdictOrder {
		counts[v] = 0
	}
	for _, ind := range st.order {
		if v := ind.WorstVerdict(); v != "" {
			counts[v]++
		}
	}
	for v, n := range counts {
		b.Dashboard[v] = n
	}
	return counts
}

// DefaultSortDebounce is the quiet period before a severity reorder.
const DefaultSortDebounce = 100 * time.Millisecond

// SeverityOrderer coalesces reorder requests and sorts cards most severe first.
type SeverityOrderer struct {
	task *sched.Task
}

// NewSeverityOrderer creates an orderer for b. dispatch runs the reorder on
// the goroutine that owns the board.
func NewSeverityOrderer(b *Board, clock clockwork.Clock, delay time.Duration, dispatch func(func())) *SeverityOrderer {
	if delay <= 0 {
		delay = DefaultSortDebounce
	}
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &SeverityOrderer{
		task: sched.NewTask(clock, delay, func() {
			dispatch(func() { SortBySeverity(b) })
		}),
	}
}

// Schedule requests a reorder after the debounce window.
func (o *SeverityOrderer) Schedule() { o.task.Schedule() }

// Cancel drops a pending reorder.
func (o *SeverityOrderer) Cancel() bool { return o.task.Cancel() }

// Pending reports whether a reorder is waiting for the quiet period.
func (o *SeverityOrderer) Pending() bool { return o.task.Pending() }

// Reorders returns how many debounced reorders have run.
func (o *SeverityOrderer) Reorders() uint64 { return o.task.Runs() }

// SortBySeverity reorders the board's cards by worst verdict, most severe
// first. The sort is stable and moves the existing cards. Cards without a
// verdict yet rank with no_data.
func SortBySeverity(b *Board) {
	sort.SliceStable(b.cards, func(i, j int) bool {
		return cardSeverity(b.cards[i]) > cardSeverity(b.cards[j])
	})
}

func cardSeverity(c *Card) int {
	if c.Verdict == "" {
		return VerdictNoData.Severity()
	}
	return c.Verdict.Severity()
}
