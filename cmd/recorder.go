package cmd

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/enrich-console/internal/bus"
	"github.com/Ashfaaq98/enrich-console/internal/enrich"
	"github.com/Ashfaaq98/enrich-console/internal/logger"
	"github.com/Ashfaaq98/enrich-console/internal/store"
)

const (
	recorderBuffer  = 512
	recorderTimeout = 5 * time.Second
	actorConsole    = "console"
)

var errRecorderClosed = errors.New("recorder closed")

// sessionStore is the part of the store the recorder writes to.
type sessionStore interface {
	SaveResult(ctx context.Context, sessionID string, item enrich.EnrichmentItem) (bool, error)
	SaveWarning(ctx context.Context, sessionID string, w enrich.Warning) error
	UpdateProgress(ctx context.Context, sessionID string, done, total int, complete bool) error
	LogSessionAction(ctx context.Context, sessionID, action, actor string, details map[string]interface{}) error
}

type recordKind int

const (
	recordResult recordKind = iota
	recordWarning
	recordProgress
	recordComplete
	recordExport
)

func (k recordKind) String() string {
	switch k {
	case recordResult:
		return "result"
	case recordWarning:
		return "warning"
	case recordProgress:
		return "progress"
	case recordComplete:
		return "complete"
	case recordExport:
		return "export"
	default:
		return "unknown"
	}
}

type record struct {
	kind     recordKind
	update   enrich.Update
	warning  enrich.Warning
	done     int
	total    int
	counts   map[enrich.Verdict]int
	exported int
}

// recorder persists admitted results and fans verdict changes out to the
// bus. The engine owner enqueues; Run does the I/O on its own goroutine.
type recorder struct {
	sessionID string
	jobID     string
	store     sessionStore // nil disables persistence
	bus       bus.Bus
	log       *logrus.Entry

	mu     sync.Mutex
	closed bool
	ch     chan record
}

func newRecorder(sessionID, jobID string, st sessionStore, b bus.Bus, log *logger.Logger) *recorder {
	if b == nil {
		b = bus.NewNullBus(log)
	}
	return &recorder{
		sessionID: sessionID,
		jobID:     jobID,
		store:     st,
		bus:       b,
		log:       logger.OrDiscard(log).WithComponent("recorder").WithField("session_id", sessionID),
		ch:        make(chan record, recorderBuffer),
	}
}

func (r *recorder) enqueue(rec record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errRecorderClosed
	}
	r.ch <- rec
	return nil
}

// submit enqueues rec. A record arriving after Close is lost.
func (r *recorder) submit(rec record) {
	if err := r.enqueue(rec); err != nil {
		r.log.WithError(err).WithField("kind", rec.kind.String()).Debug("session activity not recorded")
	}
}

// Report enqueues everything a tick produced, with the board's progress
// after the tick.
func (r *recorder) Report(rep enrich.Report, p enrich.Progress) {
	for _, up := range rep.Applied {
		r.submit(record{kind: recordResult, update: up})
	}
	if rep.Warning != nil {
		r.submit(record{kind: recordWarning, warning: *rep.Warning})
	}
	r.submit(record{kind: recordProgress, done: p.Done, total: p.Total})
}

// Complete enqueues the end of the session with the final dashboard counts.
func (r *recorder) Complete(p enrich.Progress, dashboard map[enrich.Verdict]int) {
	counts := make(map[enrich.Verdict]int, len(dashboard))
	for v, n := range dashboard {
		counts[v] = n
	}
	r.submit(record{kind: recordComplete, done: p.Done, total: p.Total, counts: counts})
}

// Exported records that the operator exported n indicators.
func (r *recorder) Exported(n int) {
	r.submit(record{kind: recordExport, exported: n})
}

// Close stops accepting records. Run drains what is queued and returns.
func (r *recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.ch)
}

// Run processes records until Close. Writes outlive ctx cancellation so a
// shutdown still flushes the queue.
func (r *recorder) Run(ctx context.Context) error {
	base := context.WithoutCancel(ctx)
	for rec := range r.ch {
		wctx, cancel := context.WithTimeout(base, recorderTimeout)
		if err := r.handle(wctx, rec); err != nil {
			r.log.WithError(err).Warn("failed to record session activity")
		}
		cancel()
	}
	return nil
}

func (r *recorder) handle(ctx context.Context, rec record) error {
	switch rec.kind {
	case recordResult:
		return r.result(ctx, rec.update)
	case recordWarning:
		if r.store != nil {
			if err := r.store.SaveWarning(ctx, r.sessionID, rec.warning); err != nil {
				return err
			}
			return r.store.LogSessionAction(ctx, r.sessionID, store.ActionWarningRaised, actorConsole, map[string]interface{}{
				"provider": rec.warning.Provider,
				"kind":     string(rec.warning.Kind),
			})
		}
	case recordProgress:
		if r.store != nil {
			return r.store.UpdateProgress(ctx, r.sessionID, rec.done, rec.total, false)
		}
	case recordComplete:
		return r.complete(ctx, rec)
	case recordExport:
		if r.store != nil {
			return r.store.LogSessionAction(ctx, r.sessionID, store.ActionExported, actorConsole, map[string]interface{}{
				"indicators": rec.exported,
			})
		}
	}
	return nil
}

func (r *recorder) result(ctx context.Context, up enrich.Update) error {
	if r.store != nil {
		if _, err := r.store.SaveResult(ctx, r.sessionID, up.Item); err != nil {
			return err
		}
	}
	if !up.Changed {
		return nil
	}
	return r.bus.PublishVerdict(ctx, bus.VerdictMessage{
		SessionID: r.sessionID,
		JobID:     r.jobID,
		IOCValue:  up.Item.IOCValue,
		IOCType:   string(up.Item.IOCType),
		Verdict:   string(up.Worst),
		Provider:  up.Item.Provider,
		Summary:   up.Summary,
		Timestamp: time.Now().Unix(),
	})
}

func (r *recorder) complete(ctx context.Context, rec record) error {
	if r.store != nil {
		if err := r.store.UpdateProgress(ctx, r.sessionID, rec.done, rec.total, true); err != nil {
			return err
		}
		details := map[string]interface{}{"done": rec.done, "total": rec.total}
		for v, n := range rec.counts {
			details[string(v)] = n
		}
		if err := r.store.LogSessionAction(ctx, r.sessionID, store.ActionSessionComplete, actorConsole, details); err != nil {
			return err
		}
	}
	return r.bus.PublishSession(ctx, bus.SessionMessage{
		SessionID: r.sessionID,
		JobID:     r.jobID,
		State:     "complete",
		Done:      rec.done,
		Total:     rec.total,
		Timestamp: time.Now().Unix(),
	})
}
