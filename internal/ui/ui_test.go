package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/jonboulle/clockwork"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
)

func newTestUI(t *testing.T, opts Options, seeds ...enrich.Seed) (*UI, *enrich.Engine) {
	t.Helper()
	e := enrich.NewEngine(seeds, enrich.Options{Clock: clockwork.NewFakeClock()})
	t.Cleanup(e.Close)
	if opts.Theme == "" {
		opts.Theme = "dark"
	}
	ui := NewUI(context.Background(), opts)
	ui.Bind(e)
	return ui, e
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func sampleSeeds() []enrich.Seed {
	return []enrich.Seed{
		{Value: "evil.com", Type: enrich.TypeDomain},
		{Value: "1.2.3.4", Type: enrich.TypeIPv4},
		{Value: "CVE-2024-3094", Type: enrich.TypeCVE},
	}
}

func applySample(ui *UI, e *enrich.Engine) {
	e.ApplyStatus(&enrich.JobStatus{Total: 4, Done: 2, Results: []enrich.EnrichmentItem{
		{Kind: enrich.KindResult, IOCValue: "evil.com", IOCType: enrich.TypeDomain, Provider: "VirusTotal",
			Verdict: enrich.VerdictMalicious, DetectionCount: 5, TotalEngines: 70},
		{Kind: enrich.KindError, IOCValue: "1.2.3.4", IOCType: enrich.TypeIPv4, Provider: "AbuseIPDB", Error: "HTTP 429"},
	}})
	ui.Refresh()
}

func TestNewUI(t *testing.T) {
	ui, _ := newTestUI(t, Options{}, sampleSeeds()...)

	stats := ui.GetStats()
	if stats["indicators"] != 3 {
		t.Fatalf("expected 3 indicators, got %v", stats["indicators"])
	}
	if stats["visible"] != 3 {
		t.Fatalf("expected 3 visible rows, got %v", stats["visible"])
	}
	if got := ui.cardTable.GetRowCount(); got != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", got)
	}
	if got := ui.cardTable.GetCell(1, 0).Text; got != "PENDING" {
		t.Fatalf("expected enrichable card to start pending, got %q", got)
	}
	if got := ui.cardTable.GetCell(3, 3).Text; got != "n/a" {
		t.Fatalf("expected cve provider column n/a, got %q", got)
	}
}

func TestStartWithoutEngine(t *testing.T) {
	ui := NewUI(context.Background(), Options{Theme: "dark"})
	if err := ui.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail without a bound engine")
	}
}

func TestRefreshRendersSlots(t *testing.T) {
	ui, e := newTestUI(t, Options{}, sampleSeeds()...)
	applySample(ui, e)

	if !strings.Contains(ui.dashboard.GetText(true), "MALICIOUS 1") {
		t.Fatalf("dashboard missing malicious count: %q", ui.dashboard.GetText(true))
	}
	if !strings.Contains(ui.progress.GetText(true), "2/4 providers complete") {
		t.Fatalf("progress not rendered: %q", ui.progress.GetText(true))
	}
	if !strings.Contains(ui.banner.GetText(true), "Rate limit reached for AbuseIPDB") {
		t.Fatalf("banner not rendered: %q", ui.banner.GetText(true))
	}
	if got := ui.cardTable.GetCell(1, 0).Text; got != "MALICIOUS" {
		t.Fatalf("expected first card malicious, got %q", got)
	}
	if got := ui.cardTable.GetCell(1, 3).Text; got != "1/2" {
		t.Fatalf("expected 1/2 providers, got %q", got)
	}
}

func TestDigitKeysToggleVerdictFilter(t *testing.T) {
	ui, e := newTestUI(t, Options{}, sampleSeeds()...)
	applySample(ui, e)

	if ev := ui.handleKey(runeKey('1')); ev != nil {
		t.Fatal("digit key should be consumed")
	}
	if e.Filter().Verdict != "malicious" {
		t.Fatalf("expected malicious filter, got %q", e.Filter().Verdict)
	}
	if len(ui.rows) != 1 || ui.rows[0].Value != "evil.com" {
		t.Fatalf("expected only evil.com visible, got %d rows", len(ui.rows))
	}
	if !strings.Contains(ui.filterBar.GetText(true), "verdict: malicious") {
		t.Fatalf("filter bar not updated: %q", ui.filterBar.GetText(true))
	}

	ui.handleKey(runeKey('1'))
	if e.Filter().Verdict != enrich.FilterAll {
		t.Fatalf("second press should reset to all, got %q", e.Filter().Verdict)
	}
	if len(ui.rows) != 3 {
		t.Fatalf("expected all rows visible again, got %d", len(ui.rows))
	}
}

func TestSearchInputFiltersCards(t *testing.T) {
	ui, e := newTestUI(t, Options{}, sampleSeeds()...)
	ui.search.SetText("EVIL")
	if e.Filter().Search != "EVIL" {
		t.Fatalf("search not forwarded, got %q", e.Filter().Search)
	}
	if len(ui.rows) != 1 {
		t.Fatalf("expected 1 row after search, got %d", len(ui.rows))
	}

	ui.handleKey(runeKey('x'))
	if len(ui.rows) != 3 || ui.search.GetText() != "" {
		t.Fatalf("reset should clear search and show all rows")
	}
}

func TestNoDataGroupToggle(t *testing.T) {
	ui, e := newTestUI(t, Options{}, enrich.Seed{Value: "evil.com", Type: enrich.TypeDomain})
	e.ApplyStatus(&enrich.JobStatus{Results: []enrich.EnrichmentItem{
		{Kind: enrich.KindResult, IOCValue: "evil.com", IOCType: enrich.TypeDomain, Provider: "ThreatFox", Verdict: enrich.VerdictNoData},
	}})
	ui.Refresh()

	text := ui.detail.GetText(true)
	if !strings.Contains(text, "1 provider: no record") || strings.Contains(text, "ThreatFox's database") {
		t.Fatalf("expected collapsed group, got %q", text)
	}
	if !strings.Contains(text, "1 provider still loading...") {
		t.Fatalf("expected pending counter, got %q", text)
	}

	ui.handleKey(runeKey('n'))
	if !strings.Contains(ui.detail.GetText(true), "Not found in ThreatFox's database") {
		t.Fatalf("expected expanded group, got %q", ui.detail.GetText(true))
	}
}

func TestExportRequiresCompletion(t *testing.T) {
	var exported string
	ui, e := newTestUI(t, Options{OnExport: func(text string) error {
		exported = text
		return nil
	}}, sampleSeeds()...)
	applySample(ui, e)

	ui.handleKey(runeKey('e'))
	if exported != "" || ui.dialogActive {
		t.Fatal("export should be disabled before completion")
	}

	e.Complete(&enrich.JobStatus{Total: 4, Done: 4, Complete: true})
	ui.Refresh()
	ui.handleKey(runeKey('e'))
	want := "evil.com | VirusTotal: malicious (5/70 malicious)\n1.2.3.4 | AbuseIPDB: error (HTTP 429)\nCVE-2024-3094"
	if exported != want {
		t.Fatalf("unexpected export:\n%s", exported)
	}
	if !ui.dialogActive {
		t.Fatal("expected export dialog to open")
	}

	// Keys go to the dialog while it is open.
	if ev := ui.handleKey(runeKey('1')); ev == nil {
		t.Fatal("global keys must not fire while a dialog is open")
	}
	ui.restoreMainLayout()
	if ui.dialogActive {
		t.Fatal("dialog should be closed")
	}
}

func TestExportErrorIsReported(t *testing.T) {
	ui, e := newTestUI(t, Options{OnExport: func(string) error { return errors.New("disk full") }}, sampleSeeds()...)
	e.Complete(nil)
	ui.handleKey(runeKey('e'))
	if ui.dialogActive {
		t.Fatal("failed export should not open the dialog")
	}
	if !strings.Contains(ui.statusBar.GetText(true), "disk full") {
		t.Fatalf("status should mention the failure: %q", ui.statusBar.GetText(true))
	}
}

func TestThemeCycle(t *testing.T) {
	ui, _ := newTestUI(t, Options{Theme: "dark"})
	seen := map[string]bool{}
	for range ThemeNames() {
		seen[ui.theme.Name] = true
		ui.handleKey(runeKey('T'))
	}
	if len(seen) != len(ThemeNames()) {
		t.Fatalf("expected to visit every theme, saw %v", seen)
	}
	if ui.theme.Name != "dark" {
		t.Fatalf("expected cycle to wrap to dark, got %s", ui.theme.Name)
	}
	if ThemeByName("unknown").Name != "dark" {
		t.Fatal("unknown theme should fall back to dark")
	}
}

func TestEmptyBoard(t *testing.T) {
	ui, e := newTestUI(t, Options{})
	e.Offline()
	ui.Refresh()

	if got := ui.cardTable.GetRowCount(); got != 1 {
		t.Fatalf("expected only the header row, got %d", got)
	}
	if got := ui.detail.GetText(true); !strings.Contains(got, "No indicators were found") {
		t.Fatalf("unexpected detail text %q", got)
	}
	if got := e.Export(); got != "" {
		t.Fatalf("expected empty export, got %q", got)
	}
}
