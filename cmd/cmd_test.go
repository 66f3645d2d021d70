package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/enrich-console/internal/bus"
	"github.com/Ashfaaq98/enrich-console/internal/enrich"
	"github.com/Ashfaaq98/enrich-console/internal/logger"
	"github.com/Ashfaaq98/enrich-console/internal/session"
	"github.com/Ashfaaq98/enrich-console/internal/store"
)

// capturingBus records what the recorder publishes.
type capturingBus struct {
	mu       sync.Mutex
	verdicts []bus.VerdictMessage
	sessions []bus.SessionMessage
}

func (b *capturingBus) PublishVerdict(_ context.Context, msg bus.VerdictMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verdicts = append(b.verdicts, msg)
	return nil
}

func (b *capturingBus) PublishSession(_ context.Context, msg bus.SessionMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = append(b.sessions, msg)
	return nil
}

func (b *capturingBus) GetStats(context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"type": "capture"}, nil
}
func (b *capturingBus) HealthCheck(context.Context) error { return nil }
func (b *capturingBus) Close() error                      { return nil }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seeds() []enrich.Seed {
	return []enrich.Seed{
		{Value: "1.2.3.4", Type: enrich.TypeIPv4},
		{Value: "evil.com", Type: enrich.TypeDomain},
	}
}

func newTestEngine(t *testing.T) *enrich.Engine {
	t.Helper()
	e := enrich.NewEngine(seeds(), enrich.Options{Clock: clockwork.NewFakeClock()})
	t.Cleanup(e.Close)
	return e
}

func vt(value string, t enrich.IOCType, v enrich.Verdict) enrich.EnrichmentItem {
	return enrich.EnrichmentItem{
		Kind: enrich.KindResult, IOCValue: value, IOCType: t, Provider: "VT",
		Verdict: v, DetectionCount: 3, TotalEngines: 70,
	}
}

func TestRecorderPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	id, err := st.SaveSession(ctx, store.Session{JobID: "job-1", Mode: session.ModeOnline}, seeds())
	require.NoError(t, err)

	capture := &capturingBus{}
	rec := newRecorder(id, "job-1", st, capture, nil)
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	e := newTestEngine(t)

	status := &enrich.JobStatus{Total: 4, Done: 2, Results: []enrich.EnrichmentItem{
		vt("1.2.3.4", enrich.TypeIPv4, enrich.VerdictMalicious),
		{Kind: enrich.KindError, IOCValue: "evil.com", IOCType: enrich.TypeDomain, Provider: "AbuseIPDB", Error: "429 Too Many Requests"},
	}}
	rep := e.ApplyStatus(status)
	rec.Report(rep, e.Board().Progress)

	// Same snapshot again: nothing new is admitted.
	rep = e.ApplyStatus(status)
	rec.Report(rep, e.Board().Progress)

	final := &enrich.JobStatus{Total: 4, Done: 4, Complete: true}
	e.Complete(final)
	rec.Complete(e.Board().Progress, e.Board().Dashboard)
	rec.Exported(2)
	rec.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not drain")
	}

	items, err := st.GetSessionResults(ctx, id)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	sess, _, err := st.GetSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, sess.Complete)
	assert.Equal(t, 4, sess.Done)

	warnings, err := st.GetWarnings(ctx, id)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "AbuseIPDB", warnings[0].Provider)

	audit, err := st.GetAuditEntries(ctx, id, 0)
	require.NoError(t, err)
	actions := make([]string, 0, len(audit))
	for _, a := range audit {
		actions = append(actions, a.Action)
	}
	assert.ElementsMatch(t, []string{store.ActionWarningRaised, store.ActionSessionComplete, store.ActionExported}, actions)

	// Both indicators moved verdict class once; the repeated tick published nothing.
	require.Len(t, capture.verdicts, 2)
	assert.Equal(t, "malicious", capture.verdicts[0].Verdict)
	assert.Equal(t, "VT: malicious (3/70 malicious)", capture.verdicts[0].Summary)
	assert.Equal(t, "error", capture.verdicts[1].Verdict)
	require.Len(t, capture.sessions, 1)
	assert.Equal(t, "complete", capture.sessions[0].State)
}

func TestRecorderWithoutStore(t *testing.T) {
	capture := &capturingBus{}
	rec := newRecorder("s1", "", nil, capture, nil)

	rec.Report(enrich.Report{Applied: []enrich.Update{{
		Item:    vt("1.2.3.4", enrich.TypeIPv4, enrich.VerdictClean),
		Worst:   enrich.VerdictClean,
		Changed: true,
	}}}, enrich.Progress{Total: 2, Done: 1})
	rec.Close()
	require.NoError(t, rec.Run(context.Background()))

	assert.Len(t, capture.verdicts, 1)
	assert.ErrorIs(t, rec.enqueue(record{kind: recordExport}), errRecorderClosed)
}

func TestRecorderLogsRecordsAfterClose(t *testing.T) {
	var logs bytes.Buffer
	log := logger.New(logger.Options{Level: "debug", Format: "json", Output: &logs})
	rec := newRecorder("s1", "", nil, &capturingBus{}, log)
	rec.Close()

	rec.Exported(3)
	rec.Report(enrich.Report{}, enrich.Progress{Total: 2, Done: 2})

	out := logs.String()
	assert.Contains(t, out, "session activity not recorded")
	assert.Contains(t, out, `"kind":"export"`)
	assert.Contains(t, out, `"kind":"progress"`)
	assert.Contains(t, out, errRecorderClosed.Error())
}

func TestSerialLoopRunsWorkInOrder(t *testing.T) {
	loop := newSerialLoop()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		loop.Dispatch(func() { got = append(got, i) })
	}
	loop.Dispatch(loop.Quit)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)

	// Dispatch after exit must not block.
	loop.Dispatch(func() { t.Error("work ran after the loop exited") })
}

func TestSerialLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, newSerialLoop().Run(ctx), context.Canceled)
}

func TestExportStoredSessionReplaysResults(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	id, err := st.SaveSession(ctx, store.Session{Mode: session.ModeOnline}, seeds())
	require.NoError(t, err)
	_, err = st.SaveResult(ctx, id, vt("1.2.3.4", enrich.TypeIPv4, enrich.VerdictMalicious))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, exportStoredSession(ctx, &out, st, id, nil))
	assert.Equal(t, "1.2.3.4 | VT: malicious (3/70 malicious)\nevil.com\n", out.String())

	audit, err := st.GetAuditEntries(ctx, id, 1)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, store.ActionExported, audit[0].Action)

	assert.ErrorIs(t, exportStoredSession(ctx, &out, st, "missing", nil), store.ErrSessionNotFound)
}

func TestExportReplayedStopsAtCompleteFrame(t *testing.T) {
	frames := []enrich.JobStatus{
		{Total: 4, Done: 1, Results: []enrich.EnrichmentItem{vt("evil.com", enrich.TypeDomain, enrich.VerdictClean)}},
		{Total: 4, Done: 4, Complete: true, Results: []enrich.EnrichmentItem{
			vt("evil.com", enrich.TypeDomain, enrich.VerdictClean),
			vt("1.2.3.4", enrich.TypeIPv4, enrich.VerdictSuspicious),
		}},
	}
	data, err := json.Marshal(frames)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "frames.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m := &session.Manifest{JobID: "j", Mode: session.ModeOnline, Indicators: seeds()}
	var out bytes.Buffer
	require.NoError(t, exportReplayed(context.Background(), &out, m, path, nil))
	assert.Equal(t,
		"1.2.3.4 | VT: suspicious (Suspicious)\nevil.com | VT: clean (Clean, scanned by 70 engines)\n",
		out.String())

	out.Reset()
	require.NoError(t, exportReplayed(context.Background(), &out, m, "", nil))
	assert.Equal(t, "1.2.3.4\nevil.com\n", out.String())
}

func TestHeadlessOutput(t *testing.T) {
	var out bytes.Buffer
	w := &watcher{
		manifest: &session.Manifest{Indicators: seeds()},
		rec:      newRecorder("s", "", nil, &capturingBus{}, nil),
		out:      &out,
	}
	e := newTestEngine(t)

	status := &enrich.JobStatus{Total: 4, Done: 1, Results: []enrich.EnrichmentItem{vt("evil.com", enrich.TypeDomain, enrich.VerdictMalicious)}}
	w.printTick(e.Board(), e.ApplyStatus(status))
	w.printTick(e.Board(), e.ApplyStatus(status))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "an unchanged tick prints nothing")
	assert.Equal(t, "[ 25%] 1/4 providers complete | malicious=1 suspicious=0 clean=0 no_data=0 error=0", lines[0])
	assert.Equal(t, "       evil.com -> MALICIOUS", lines[1])

	out.Reset()
	e.Complete(&enrich.JobStatus{Total: 4, Done: 4, Complete: true})
	w.printFinal(e)
	assert.Contains(t, out.String(), "Enrichment complete | malicious=1")
	assert.Contains(t, out.String(), "1.2.3.4\nevil.com | VT: malicious (3/70 malicious)\n")
}

func TestSessionStats(t *testing.T) {
	w := &watcher{
		manifest: &session.Manifest{Indicators: append(seeds(), enrich.Seed{Value: "CVE-2024-3094", Type: enrich.TypeCVE})},
		rec:      newRecorder("s", "", nil, &capturingBus{}, nil),
	}
	e := newTestEngine(t)
	e.ApplyStatus(&enrich.JobStatus{Total: 4, Done: 1, Results: []enrich.EnrichmentItem{vt("evil.com", enrich.TypeDomain, enrich.VerdictClean)}})

	fields := w.sessionStats(context.Background(), e, map[string]interface{}{"theme": "dark"})
	assert.Equal(t, 3, fields["indicators"])
	assert.Equal(t, 2, fields["enrichable"])
	assert.Equal(t, 1, fields["admitted"])
	assert.Equal(t, uint64(0), fields["reorders"])
	assert.Equal(t, "dark", fields["ui_theme"])
	assert.Equal(t, "capture", fields["bus_type"])
}

func TestConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := configFrom(v)

	assert.Equal(t, 750*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 100*time.Millisecond, cfg.Sort.Debounce)
	assert.Equal(t, 10*time.Second, cfg.Status.Timeout)
	assert.Equal(t, bus.DefaultVerdictStream, cfg.Redis.Stream)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "logs/enrich-console.log", cfg.Log.File)

	v.Set("poll.interval", "2s")
	assert.Equal(t, 2*time.Second, configFrom(v).Poll.Interval)
}

func TestRemoveDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	for _, f := range []string{path, path + "-wal"} {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	}

	var out bytes.Buffer
	require.NoError(t, removeDatabase(&out, path))
	assert.Contains(t, out.String(), "history.db, history.db-wal")
	assert.NoFileExists(t, path)

	out.Reset()
	require.NoError(t, removeDatabase(&out, path))
	assert.Contains(t, out.String(), "No database files found")
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("YES\n"), &out, "? "))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "? "))
}

func TestSessionFormatting(t *testing.T) {
	assert.Equal(t, "not started", progressLabel(store.Session{}))
	assert.Equal(t, "3/6 providers", progressLabel(store.Session{Done: 3, Total: 6}))
	assert.Equal(t, "complete (6/6)", progressLabel(store.Session{Done: 6, Total: 6, Complete: true}))
	assert.Equal(t, "done=4 total=4", detailsLine(map[string]interface{}{"total": 4, "done": 4}))
}
