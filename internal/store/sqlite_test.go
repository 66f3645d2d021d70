package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStore(t *testing.T) {
	store := newTestStore(t)

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 5, count, "sessions, indicators, results, warnings, audit_entries")
}

func TestSaveAndGetSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seeds := []enrich.Seed{
		{Value: "evil.com", Type: enrich.TypeDomain, RawMatch: "evil[.]com"},
		{Value: "1.2.3.4", Type: enrich.TypeIPv4},
		{Value: "CVE-2024-3094", Type: enrich.TypeCVE},
	}
	id, err := store.SaveSession(ctx, Session{JobID: "job-1", Mode: "online", Title: "phish report"}, seeds)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, got, err := store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "job-1", sess.JobID)
	assert.Equal(t, "online", sess.Mode)
	assert.Equal(t, 3, sess.IndicatorCount)
	assert.False(t, sess.Complete)
	assert.Equal(t, seeds, got, "indicators keep extraction order")

	_, _, err = store.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdateProgress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id, err := store.SaveSession(ctx, Session{Mode: "online"}, nil)
	require.NoError(t, err)

	require.NoError(t, store.UpdateProgress(ctx, id, 2, 5, false))
	require.NoError(t, store.UpdateProgress(ctx, id, 5, 5, true))
	// A late tick never clears completion.
	require.NoError(t, store.UpdateProgress(ctx, id, 5, 5, false))

	sess, _, err := store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, sess.Done)
	assert.Equal(t, 5, sess.Total)
	assert.True(t, sess.Complete)

	assert.ErrorIs(t, store.UpdateProgress(ctx, "missing", 1, 1, false), ErrSessionNotFound)
}

func TestSaveResultIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id, err := store.SaveSession(ctx, Session{Mode: "online"}, []enrich.Seed{{Value: "evil.com", Type: enrich.TypeDomain}})
	require.NoError(t, err)

	date := "2024-01-02T03:04:05Z"
	first := enrich.EnrichmentItem{
		Kind: enrich.KindResult, IOCValue: "evil.com", IOCType: enrich.TypeDomain,
		Provider: "VirusTotal", Verdict: enrich.VerdictMalicious,
		DetectionCount: 4, TotalEngines: 70, ScanDate: &date,
	}
	second := enrich.EnrichmentItem{
		Kind: enrich.KindError, IOCValue: "evil.com", IOCType: enrich.TypeDomain,
		Provider: "ThreatFox", Error: "HTTP 429",
	}

	wrote, err := store.SaveResult(ctx, id, first)
	require.NoError(t, err)
	assert.True(t, wrote)
	wrote, err = store.SaveResult(ctx, id, first)
	require.NoError(t, err)
	assert.False(t, wrote)
	_, err = store.SaveResult(ctx, id, second)
	require.NoError(t, err)

	items, err := store.GetSessionResults(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first, items[0])
	assert.Equal(t, second, items[1])

	counts, err := store.CountByVerdict(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"malicious": 1, "error": 1}, counts)
}

func TestCountByVerdictUsesVerdictClass(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id, err := store.SaveSession(ctx, Session{Mode: "online"}, []enrich.Seed{{Value: "evil.com", Type: enrich.TypeDomain}})
	require.NoError(t, err)

	for provider, verdict := range map[string]enrich.Verdict{"VirusTotal": "Malicious", "OTX": "unknown"} {
		_, err := store.SaveResult(ctx, id, enrich.EnrichmentItem{
			Kind: enrich.KindResult, IOCValue: "evil.com", IOCType: enrich.TypeDomain,
			Provider: provider, Verdict: verdict,
		})
		require.NoError(t, err)
	}

	counts, err := store.CountByVerdict(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"malicious": 1, "no_data": 1}, counts)

	// The stored item keeps the token the backend sent.
	items, err := store.GetSessionResults(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestListSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := store.SaveSession(ctx, Session{Mode: "offline", Title: title}, nil)
		require.NoError(t, err)
	}

	all, err := store.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Title)

	limited, err := store.ListSessions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestWarningsAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id, err := store.SaveSession(ctx, Session{Mode: "online"}, []enrich.Seed{{Value: "x.example", Type: enrich.TypeDomain}})
	require.NoError(t, err)

	require.NoError(t, store.SaveWarning(ctx, id, enrich.Warning{
		Kind: enrich.WarningAuth, Provider: "VirusTotal", Message: "Warning: Authentication error for VirusTotal.",
	}))
	warnings, err := store.GetWarnings(ctx, id)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "auth", warnings[0].Kind)
	assert.Equal(t, "VirusTotal", warnings[0].Provider)

	require.NoError(t, store.DeleteSession(ctx, id))
	_, _, err = store.GetSession(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	warnings, err = store.GetWarnings(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.ErrorIs(t, store.DeleteSession(ctx, id), ErrSessionNotFound)
}
