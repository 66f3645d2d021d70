package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Ashfaaq98/enrich-console/internal/bus"
	"github.com/Ashfaaq98/enrich-console/internal/enrich"
	"github.com/Ashfaaq98/enrich-console/internal/logger"
	"github.com/Ashfaaq98/enrich-console/internal/poller"
	"github.com/Ashfaaq98/enrich-console/internal/session"
	"github.com/Ashfaaq98/enrich-console/internal/store"
	"github.com/Ashfaaq98/enrich-console/internal/ui"
)

var (
	manifestPath string
	replayPath   string
	exportFile   string
	noTUI        bool
	forceTUI     bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow an enrichment job and render verdicts as they arrive",
	Long: `Load a session manifest and follow its enrichment job until it completes.

The manifest carries the job id, the mode and the extracted indicators. Online
sessions poll GET /enrichment/status/{job_id} every poll.interval; offline
sessions render the indicators without enrichment.

Examples:
  # Follow a live job in the TUI
  enrich-console watch --manifest session.json

  # Headless: print progress lines and the export when done
  enrich-console watch --manifest session.json --no-tui

  # Replay recorded status snapshots instead of polling the backend
  enrich-console watch --manifest session.json --replay frames.json`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Session manifest (JSON)")
	watchCmd.Flags().StringVar(&replayPath, "replay", "", "Replay recorded status frames from a JSON file instead of polling")
	watchCmd.Flags().StringVar(&exportFile, "export-file", "", "Also write exports to this file")
	watchCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Run in headless mode without TUI")
	watchCmd.Flags().BoolVar(&forceTUI, "force-tui", false, "Force TUI mode even when no terminal is detected")
	watchCmd.Flags().String("theme", "", "TUI theme (dark, light, neon, cb-safe, high-contrast)")
	watchCmd.Flags().Duration("interval", poller.DefaultInterval, "Status poll interval")
	watchCmd.MarkFlagRequired("manifest")

	viper.BindPFlag("ui.theme", watchCmd.Flags().Lookup("theme"))
	viper.BindPFlag("poll.interval", watchCmd.Flags().Lookup("interval"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	m, err := session.Load(manifestPath)
	if err != nil {
		return err
	}

	useTUI := !noTUI && (forceTUI || canInitializeTUI())

	// The TUI owns the terminal, so logs go to a file while it runs.
	var logOut io.Writer = os.Stderr
	if useTUI {
		f, err := logger.OpenFile(cfg.Log.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not open log file %s: %v\n", cfg.Log.File, err)
			logOut = io.Discard
		} else {
			defer f.Close()
			logOut = f
		}
	}
	log := newLogger(cfg.Log, logOut)
	if !noTUI && !useTUI {
		log.WithField("terminal", terminalInfo()).Warn("no usable terminal, running headless")
	}

	src, label, err := buildSource(cfg, m)
	if err != nil {
		return err
	}

	var st *store.Store
	if cfg.Database.Path != "" {
		st, err = store.NewStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer st.Close()
	}

	eventBus := bus.NewBus(cfg.Redis.URL, cfg.Redis.Stream, log)
	defer eventBus.Close()

	sessionID, err := startSession(ctx, st, eventBus, m, label, log)
	if err != nil {
		return err
	}

	var recStore sessionStore
	if st != nil {
		recStore = st
	}
	w := &watcher{
		cfg:      cfg,
		manifest: m,
		source:   src,
		rec:      newRecorder(sessionID, m.JobID, recStore, eventBus, log),
		log:      log,
		out:      cmd.OutOrStdout(),
	}

	log.WithFields(logger.Fields{
		"session_id": sessionID,
		"job_id":     m.JobID,
		"mode":       m.Mode,
		"source":     label,
		"indicators": len(m.Indicators),
		"enrichable": m.Enrichable(),
		"tui":        useTUI,
	}).Info("watch started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.rec.Run(gctx) })
	g.Go(func() error {
		defer w.rec.Close()
		if useTUI {
			log.WithField("terminal", terminalInfo()).Debug("starting TUI")
			return w.runTUI(gctx)
		}
		return w.runHeadless(gctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.WithField("session_id", sessionID).Info("watch stopped")
	return err
}

// buildSource picks the status source. A replay file turns the session
// online so the recording drives the poller.
func buildSource(cfg Config, m *session.Manifest) (poller.Source, string, error) {
	if replayPath != "" {
		src, err := poller.NewFileSource(replayPath)
		if err != nil {
			return nil, "", err
		}
		m.Mode = session.ModeOnline
		if m.JobID == "" {
			m.JobID = "replay"
		}
		return src, "replay:" + replayPath, nil
	}
	if !m.Online() {
		return nil, session.ModeOffline, nil
	}
	return poller.NewHTTPSource(poller.HTTPOptions{
		BaseURL: cfg.Status.BaseURL,
		Timeout: cfg.Status.Timeout,
	}), cfg.Status.BaseURL, nil
}

// startSession persists the session and announces it on the bus. Without a
// store the session id is still generated so bus messages correlate.
func startSession(ctx context.Context, st *store.Store, b bus.Bus, m *session.Manifest, source string, log *logger.Logger) (string, error) {
	id := uuid.New().String()
	if st != nil {
		var err error
		id, err = st.SaveSession(ctx, store.Session{
			JobID:          m.JobID,
			Mode:           m.Mode,
			Title:          m.Title,
			Source:         source,
			IndicatorCount: len(m.Indicators),
		}, m.Indicators)
		if err != nil {
			return "", fmt.Errorf("failed to save session: %w", err)
		}
		if err := st.LogSessionAction(ctx, id, store.ActionSessionStarted, actorConsole, map[string]interface{}{
			"job_id":     m.JobID,
			"mode":       m.Mode,
			"indicators": len(m.Indicators),
		}); err != nil {
			log.WithError(err).Warn("failed to write audit entry")
		}
	}
	if err := b.PublishSession(ctx, bus.SessionMessage{
		SessionID: id,
		JobID:     m.JobID,
		State:     "started",
		Timestamp: time.Now().Unix(),
	}); err != nil {
		log.WithError(err).Warn("failed to publish session start")
	}
	return id, nil
}

// watcher wires one session's engine, poller and recorder to a front end.
type watcher struct {
	cfg      Config
	manifest *session.Manifest
	source   poller.Source
	rec      *recorder
	log      *logger.Logger
	out      io.Writer

	lastDone, lastTotal int
}

func (w *watcher) newEngine(dispatch func(func()), onReorder func()) *enrich.Engine {
	return enrich.NewEngine(w.manifest.Indicators, enrich.Options{
		SortDebounce: w.cfg.Sort.Debounce,
		Dispatch:     dispatch,
		OnReorder:    onReorder,
		Logger:       w.log,
	})
}

// newPoller builds the poller. onTick runs after every applied payload and
// onFinish once the job completes, both on the owning goroutine.
func (w *watcher) newPoller(e *enrich.Engine, dispatch func(func()), onTick func(enrich.Report), onFinish func()) *poller.Poller {
	return poller.New(poller.Config{
		JobID:    w.manifest.JobID,
		Mode:     w.manifest.Mode,
		Interval: w.cfg.Poll.Interval,
		Source:   w.source,
		Dispatch: dispatch,
		Logger:   w.log,
	}, func(status *enrich.JobStatus) {
		rep := e.ApplyStatus(status)
		w.rec.Report(rep, e.Board().Progress)
		onTick(rep)
	}, func(status *enrich.JobStatus) {
		e.Complete(status)
		b := e.Board()
		w.rec.Complete(b.Progress, b.Dashboard)
		onFinish()
	})
}

// startPolling starts p, or marks the engine offline when polling is disabled.
func (w *watcher) startPolling(ctx context.Context, p *poller.Poller, e *enrich.Engine) (bool, error) {
	if err := p.Start(ctx); err != nil {
		if errors.Is(err, poller.ErrDisabled) {
			w.log.WithField("mode", w.manifest.Mode).Info("polling disabled for this session")
			e.Offline()
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (w *watcher) export(text string, indicators int) error {
	if exportFile != "" {
		if err := os.WriteFile(exportFile, []byte(text+"\n"), 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		w.log.WithField("path", exportFile).Info("export written")
	}
	w.rec.Exported(indicators)
	return nil
}

func (w *watcher) runTUI(ctx context.Context) error {
	var engine *enrich.Engine
	console := ui.NewUI(ctx, ui.Options{
		Theme:  w.cfg.UI.Theme,
		Title:  sessionTitle(w.manifest),
		Logger: w.log,
		OnExport: func(text string) error {
			return w.export(text, len(engine.State().Indicators()))
		},
	})
	engine = w.newEngine(console.Dispatch, console.Refresh)
	defer engine.Close()
	console.Bind(engine)

	p := w.newPoller(engine, console.Dispatch, func(enrich.Report) { console.Refresh() }, console.Refresh)
	if _, err := w.startPolling(ctx, p, engine); err != nil {
		return err
	}
	defer p.Stop()
	console.Refresh()

	watchConfig(w.log, func(name string) {
		console.Dispatch(func() { console.SetTheme(name) })
	})

	err := console.Start(ctx)
	w.logStats(ctx, engine, console.GetStats())
	return err
}

func (w *watcher) runHeadless(ctx context.Context) error {
	loop := newSerialLoop()
	engine := w.newEngine(loop.Dispatch, nil)
	defer engine.Close()

	p := w.newPoller(engine, loop.Dispatch, func(rep enrich.Report) {
		w.printTick(engine.Board(), rep)
	}, func() {
		w.printFinal(engine)
		loop.Quit()
	})
	polling, err := w.startPolling(ctx, p, engine)
	if err != nil {
		return err
	}
	if !polling {
		w.printFinal(engine)
		w.logStats(ctx, engine, nil)
		return nil
	}
	defer p.Stop()

	watchConfig(w.log, nil)
	err = loop.Run(ctx)
	w.logStats(ctx, engine, nil)
	return err
}

// sessionStats gathers the end-of-session counters. Front end stats are
// prefixed with "ui_" and bus stats with "bus_".
func (w *watcher) sessionStats(ctx context.Context, e *enrich.Engine, frontEnd map[string]interface{}) logger.Fields {
	fields := logger.Fields{
		"indicators": len(w.manifest.Indicators),
		"enrichable": w.manifest.Enrichable(),
		"admitted":   e.State().Admitted(),
		"reorders":   e.Reorders(),
	}
	for k, v := range frontEnd {
		fields["ui_"+k] = v
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recorderTimeout)
	defer cancel()
	stats, err := w.rec.bus.GetStats(sctx)
	if err != nil {
		logger.OrDiscard(w.log).WithError(err).Debug("failed to read bus stats")
		return fields
	}
	for k, v := range stats {
		fields["bus_"+k] = v
	}
	return fields
}

func (w *watcher) logStats(ctx context.Context, e *enrich.Engine, frontEnd map[string]interface{}) {
	logger.OrDiscard(w.log).WithFields(w.sessionStats(ctx, e, frontEnd)).Info("session summary")
}

// printTick prints a progress line when progress moved or items were applied.
func (w *watcher) printTick(b *enrich.Board, rep enrich.Report) {
	if rep.Warning != nil {
		fmt.Fprintf(w.out, "! %s\n", rep.Warning.Message)
	}
	p := b.Progress
	if len(rep.Applied) == 0 && p.Done == w.lastDone && p.Total == w.lastTotal {
		return
	}
	w.lastDone, w.lastTotal = p.Done, p.Total
	fmt.Fprintf(w.out, "[%3d%%] %s | %s\n", p.Percent(), p.Text, dashboardLine(b))
	for _, up := range rep.Applied {
		if up.Changed {
			fmt.Fprintf(w.out, "       %s -> %s\n", up.Item.IOCValue, up.Worst.Label())
		}
	}
}

func (w *watcher) printFinal(e *enrich.Engine) {
	e.SortNow()
	b := e.Board()
	fmt.Fprintf(w.out, "%s | %s\n\n", b.Progress.Text, dashboardLine(b))
	text := e.Export()
	fmt.Fprintln(w.out, text)
	if err := w.export(text, len(e.State().Indicators())); err != nil {
		w.log.WithError(err).Error("export failed")
	}
}

// dashboardLine renders the verdict counts, most severe first.
func dashboardLine(b *enrich.Board) string {
	verdicts := enrich.Verdicts()
	parts := make([]string, 0, len(verdicts))
	for i := len(verdicts) - 1; i >= 0; i-- {
		v := verdicts[i]
		parts = append(parts, fmt.Sprintf("%s=%d", v, b.Dashboard[v]))
	}
	return strings.Join(parts, " ")
}

func sessionTitle(m *session.Manifest) string {
	if m.Title != "" {
		return m.Title
	}
	if m.JobID != "" {
		return "job " + m.JobID
	}
	return "offline session"
}
