// Package poller drives the status loop of an enrichment job.
package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
	"github.com/Ashfaaq98/enrich-console/internal/logger"
)

// DefaultInterval is the fixed poll period.
const DefaultInterval = 750 * time.Millisecond

// ModeOnline is the only mode in which a job is polled.
const ModeOnline = "online"

var (
	// ErrDisabled is returned by Start when the session is offline or has no job id.
	ErrDisabled = errors.New("polling disabled: offline mode or no job id")
	// ErrAlreadyStarted is returned by Start once the poller has left the idle state.
	ErrAlreadyStarted = errors.New("poller already started")
)

// State is the lifecycle state of a Poller.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config configures a Poller.
type Config struct {
	JobID    string
	Mode     string
	Interval time.Duration
	Source   Source
	Clock    clockwork.Clock
	// Dispatch hands delivered payloads to the goroutine that owns the
	// engine. Nil delivers on the fetch goroutine, serialised by the poller.
	Dispatch func(func())
	Logger   *logger.Logger
}

// Stats counts poll activity.
type Stats struct {
	Ticks     int
	Delivered int
	Failures  int
	Dropped   int
}

// Poller fetches job status on a fixed period until the job completes.
type Poller struct {
	cfg      Config
	onStatus func(*enrich.JobStatus)
	onDone   func(*enrich.JobStatus)
	log      *logger.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	stats  Stats
	done   chan struct{}

	deliverMu sync.Mutex
}

// New creates an idle poller. onStatus receives every parsed payload,
// including ones with no new items; onDone is called exactly once, after
// the onStatus call for the payload that reported completion.
func New(cfg Config, onStatus, onDone func(*enrich.JobStatus)) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Poller{
		cfg:      cfg,
		onStatus: onStatus,
		onDone:   onDone,
		log:      logger.OrDiscard(cfg.Logger),
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// Enabled reports whether the configuration allows polling at all.
func (p *Poller) Enabled() bool {
	return strings.EqualFold(p.cfg.Mode, ModeOnline) && strings.TrimSpace(p.cfg.JobID) != "" && p.cfg.Source != nil
}

// Start moves the poller from idle to polling. The first fetch happens one
// interval after Start.
func (p *Poller) Start(ctx context.Context) error {
	if !p.Enabled() {
		return ErrDisabled
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = StatePolling

	ticker := p.cfg.Clock.NewTicker(p.cfg.Interval)
	go p.loop(ctx, ticker)

	p.log.WithFields(logger.Fields{
		"job_id":   p.cfg.JobID,
		"interval": p.cfg.Interval.String(),
	}).Info("polling started")
	return nil
}

// Stop halts polling. In-flight fetches are cancelled and any payload that
// still arrives is dropped. Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() bool {
	if p.state == StateStopped {
		return false
	}
	wasPolling := p.state == StatePolling
	p.state = StateStopped
	if p.cancel != nil {
		p.cancel()
	}
	if wasPolling {
		close(p.done)
	}
	return wasPolling
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats returns a copy of the counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Done is closed when a started poller stops.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) loop(ctx context.Context, ticker clockwork.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.mu.Lock()
			p.stats.Ticks++
			p.mu.Unlock()
			// No in-flight guard: a slow response may overlap the next tick.
			go p.fetch(ctx)
		}
	}
}

func (p *Poller) fetch(ctx context.Context) {
	status, err := p.cfg.Source.Status(ctx, p.cfg.JobID)
	if err != nil {
		p.mu.Lock()
		p.stats.Failures++
		p.mu.Unlock()
		if ctx.Err() == nil {
			p.log.WithFields(logger.Fields{"job_id": p.cfg.JobID, "error": err}).Debug("status tick skipped")
		}
		return
	}
	if status == nil {
		return
	}

	if p.cfg.Dispatch != nil {
		p.cfg.Dispatch(func() { p.deliver(status) })
		return
	}
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()
	p.deliver(status)
}

// deliver runs on the owning goroutine.
func (p *Poller) deliver(status *enrich.JobStatus) {
	p.mu.Lock()
	if p.state != StatePolling {
		p.stats.Dropped++
		p.mu.Unlock()
		return
	}
	p.stats.Delivered++
	finished := false
	if status.Complete {
		finished = p.stopLocked()
	}
	p.mu.Unlock()

	if p.onStatus != nil {
		p.onStatus(status)
	}
	if finished {
		p.log.WithFields(logger.Fields{
			"job_id": p.cfg.JobID,
			"done":   status.Done,
			"total":  status.Total,
		}).Info("job complete, polling stopped")
		if p.onDone != nil {
			p.onDone(status)
		}
	}
}
