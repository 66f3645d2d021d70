package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
	"github.com/Ashfaaq98/enrich-console/internal/logger"
)

// dashboardOrder is the order of the dashboard badges; digit keys 1-5 select them.
var dashboardOrder = []enrich.Verdict{
	enrich.VerdictMalicious,
	enrich.VerdictSuspicious,
	enrich.VerdictClean,
	enrich.VerdictNoData,
	enrich.VerdictError,
}

// Options configures the console.
type Options struct {
	Theme  string
	Title  string
	Logger *logger.Logger
	// OnExport receives the export text when the user exports. Nil only
	// shows the text.
	OnExport func(text string) error
}

// UI is the terminal board for one enrichment session.
type UI struct {
	app    *tview.Application
	engine *enrich.Engine
	log    *logrus.Entry
	opts   Options

	// Layout components
	root      *tview.Flex
	appTitle  *tview.TextView
	dashboard *tview.TextView
	banner    *tview.TextView
	progress  *tview.TextView
	filterBar *tview.TextView
	search    *tview.InputField
	cardTable *tview.Table
	detail    *tview.TextView
	statusBar *tview.TextView

	// State
	theme         Theme
	rows          []*enrich.Card
	selectedValue string
	dialogActive  bool
	lastFocus     tview.Primitive

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewUI builds the layout. Bind must be called before Start.
func NewUI(ctx context.Context, opts Options) *UI {
	uiCtx, cancel := context.WithCancel(ctx)

	themeName := opts.Theme
	if themeName == "" {
		themeName = "dark"
		if !detectTrueColor() {
			themeName = "high-contrast"
		}
	}

	ui := &UI{
		app:    tview.NewApplication(),
		log:    logger.OrDiscard(opts.Logger).WithComponent("ui"),
		opts:   opts,
		theme:  ThemeByName(themeName),
		ctx:    uiCtx,
		cancel: cancel,
	}

	ui.setupLayout()
	ui.app.SetInputCapture(ui.handleKey)
	ui.applyTheme()
	return ui
}

// Bind attaches the engine whose board the UI renders.
func (ui *UI) Bind(e *enrich.Engine) {
	ui.engine = e
	ui.Refresh()
}

// Dispatch runs f on the UI goroutine and redraws afterwards. It is the
// single entry point for every mutation coming from other goroutines.
func (ui *UI) Dispatch(f func()) {
	ui.app.QueueUpdateDraw(f)
}

// Start runs the event loop until the user quits or ctx is cancelled.
func (ui *UI) Start(ctx context.Context) error {
	if ui.engine == nil {
		return fmt.Errorf("ui: no engine bound")
	}
	ui.log.Info("starting TUI")

	go func() {
		select {
		case <-ctx.Done():
		case <-ui.ctx.Done():
		}
		ui.cancel()
		ui.app.Stop()
	}()

	ui.running = true
	err := ui.app.Run()
	ui.running = false
	ui.log.WithError(err).Debug("TUI event loop returned")
	return err
}

// Stop stops the TUI application
func (ui *UI) Stop() {
	ui.running = false
	ui.cancel()
	ui.app.Stop()
}

func (ui *UI) setupLayout() {
	ui.appTitle = tview.NewTextView().SetDynamicColors(true)

	ui.dashboard = tview.NewTextView().SetDynamicColors(true)
	ui.dashboard.SetBorder(true).SetTitle(" Verdicts ").SetTitleAlign(tview.AlignLeft)

	ui.banner = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)

	ui.progress = tview.NewTextView().SetDynamicColors(true)
	ui.progress.SetBorder(true).SetTitle(" Progress ").SetTitleAlign(tview.AlignLeft)

	ui.filterBar = tview.NewTextView().SetDynamicColors(true)

	ui.search = tview.NewInputField().SetLabel(" / ").SetFieldWidth(0)
	ui.search.SetChangedFunc(func(text string) {
		if ui.engine == nil {
			return
		}
		ui.engine.SetSearch(text)
		ui.renderFilters()
		ui.renderCards()
	})
	ui.search.SetDoneFunc(func(key tcell.Key) {
		ui.app.SetFocus(ui.cardTable)
	})

	ui.cardTable = tview.NewTable().SetSelectable(true, false).SetFixed(1, 0)
	ui.cardTable.SetBorder(true).SetTitle(" Indicators ").SetTitleAlign(tview.AlignLeft)
	ui.cardTable.SetSelectionChangedFunc(func(row, column int) {
		if c := ui.cardAt(row); c != nil {
			ui.selectedValue = c.Value
		}
		ui.renderDetail()
	})

	ui.detail = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true).SetScrollable(true)
	ui.detail.SetBorder(true).SetTitle(" Detail ").SetTitleAlign(tview.AlignLeft)

	ui.statusBar = tview.NewTextView().SetDynamicColors(true)

	header := tview.NewFlex().
		AddItem(ui.dashboard, 0, 3, false).
		AddItem(ui.progress, 0, 2, false)

	controls := tview.NewFlex().
		AddItem(ui.filterBar, 0, 1, false).
		AddItem(ui.search, 0, 1, false)

	body := tview.NewFlex().
		AddItem(ui.cardTable, 0, 3, true).
		AddItem(ui.detail, 0, 2, false)

	ui.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.appTitle, 1, 0, false).
		AddItem(header, 3, 0, false).
		AddItem(ui.banner, 1, 0, false).
		AddItem(controls, 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(ui.statusBar, 1, 0, false)

	ui.app.SetRoot(ui.root, true)
	ui.app.SetFocus(ui.cardTable)
}

func (ui *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if ui.dialogActive || ui.app.GetFocus() == ui.search {
		return event
	}
	if ui.engine == nil {
		return event
	}

	switch event.Key() {
	case tcell.KeyCtrlC:
		ui.Stop()
		return nil
	case tcell.KeyEsc:
		ui.setStatusDirect("Ready")
		return nil
	case tcell.KeyRune:
	default:
		return event
	}

	r := event.Rune()
	switch {
	case r >= '1' && r <= '5':
		v := dashboardOrder[r-'1']
		n := ui.engine.SelectVerdict(string(v))
		ui.refreshAfterFilter(n)
		return nil
	}

	switch r {
	case 'q':
		ui.Stop()
	case '/':
		ui.app.SetFocus(ui.search)
		ui.setStatusDirect("Search: type to filter, Enter to return")
	case 'f':
		ui.showTypeFilter()
	case 'x':
		ui.search.SetText("")
		ui.refreshAfterFilter(ui.engine.ResetFilters())
	case 'n':
		ui.toggleNoData()
	case 'c':
		ui.copySelected()
	case 'e':
		ui.export()
	case 's':
		ui.engine.SortNow()
		ui.renderCards()
		ui.setStatusDirect("Sorted by severity")
	case 'T':
		ui.SetTheme(nextTheme(ui.theme.Name))
	case '?':
		ui.showHelp()
	default:
		return event
	}
	return nil
}

func (ui *UI) refreshAfterFilter(visible int) {
	ui.renderFilters()
	ui.renderDashboard()
	ui.renderCards()
	ui.setStatusDirect(fmt.Sprintf("%d indicator(s) shown", visible))
}

// Refresh redraws every slot from the board. Call it on the UI goroutine.
func (ui *UI) Refresh() {
	if ui.engine == nil {
		return
	}
	ui.renderTitle()
	ui.renderDashboard()
	ui.renderProgress()
	ui.renderBanner()
	ui.renderFilters()
	ui.renderCards()
}

func (ui *UI) renderTitle() {
	title := ui.opts.Title
	if title == "" {
		title = "IOC enrichment"
	}
	ui.appTitle.SetText(fmt.Sprintf(" [%s::b]enrich-console[-::-] [%s]%s[-]", ui.theme.Accent, ui.theme.Muted, tview.Escape(title)))
}

func (ui *UI) renderDashboard() {
	ui.dashboard.SetText(dashboardText(ui.engine.Board(), ui.theme))
}

func (ui *UI) renderProgress() {
	ui.progress.SetText(progressText(ui.engine.Board().Progress, ui.theme))
}

func (ui *UI) renderBanner() {
	if w := ui.engine.Board().Warning; w != "" {
		ui.banner.SetText(fmt.Sprintf(" [%s::b]%s[-::-]", ui.theme.Warning, tview.Escape(w)))
		return
	}
	ui.banner.SetText("")
}

func (ui *UI) renderFilters() {
	ui.filterBar.SetText(filterBarText(ui.engine.Board().Controls, ui.theme))
}

// renderCards rebuilds the table from the visible cards, keeping the
// selection on the same indicator when it is still visible.
func (ui *UI) renderCards() {
	th := ui.theme
	ui.cardTable.Clear()
	for col, h := range []string{"Verdict", "Type", "Indicator", "Providers"} {
		ui.cardTable.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(th.Color(th.Accent)).
			SetBackgroundColor(th.Color(th.HeaderBg)).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}

	ui.rows = ui.engine.Board().VisibleCards()
	selectRow := 1
	for i, c := range ui.rows {
		row := i + 1
		badge := "PENDING"
		if c.Verdict != "" {
			badge = c.Verdict.Label()
		} else if !c.Loading && len(c.Rows) == 0 && c.NoData == nil {
			badge = "-"
		}
		ui.cardTable.SetCell(row, 0, tview.NewTableCell(badge).SetTextColor(th.Color(th.VerdictTag(c.Verdict))))
		ui.cardTable.SetCell(row, 1, tview.NewTableCell(string(c.Type)).SetTextColor(th.Color(th.Muted)))
		ui.cardTable.SetCell(row, 2, tview.NewTableCell(tview.Escape(c.Value)).SetTextColor(th.Color(th.Text)).SetExpansion(1))
		ui.cardTable.SetCell(row, 3, tview.NewTableCell(providerColumn(c)).SetTextColor(th.Color(th.Muted)))
		if c.Value == ui.selectedValue {
			selectRow = row
		}
	}

	ui.cardTable.SetTitle(fmt.Sprintf(" Indicators (%d/%d) ", len(ui.rows), len(ui.engine.Board().Cards())))
	if len(ui.rows) > 0 {
		ui.cardTable.Select(selectRow, 0)
	}
	ui.renderDetail()
}

func (ui *UI) renderDetail() {
	if len(ui.engine.Board().Cards()) == 0 {
		ui.detail.SetText(fmt.Sprintf("[%s]No indicators were found on this page[-]", ui.theme.Muted))
		return
	}
	c := ui.selectedCard()
	if c == nil {
		ui.detail.SetText(fmt.Sprintf("[%s]No indicator selected[-]", ui.theme.Muted))
		return
	}
	ui.detail.SetText(cardDetailText(c, ui.theme))
	ui.detail.ScrollToBeginning()
}

func (ui *UI) cardAt(row int) *enrich.Card {
	if row < 1 || row > len(ui.rows) {
		return nil
	}
	return ui.rows[row-1]
}

func (ui *UI) selectedCard() *enrich.Card {
	row, _ := ui.cardTable.GetSelection()
	return ui.cardAt(row)
}

func (ui *UI) toggleNoData() {
	c := ui.selectedCard()
	if c == nil || c.NoData == nil {
		ui.setStatusDirect("No providers without a record for this indicator")
		return
	}
	c.NoData.Expanded = !c.NoData.Expanded
	ui.renderDetail()
}

func (ui *UI) copySelected() {
	c := ui.selectedCard()
	if c == nil {
		return
	}
	ui.showTextModal("Copy", c.CopyText())
}

func (ui *UI) export() {
	if !ui.engine.Board().Progress.ExportEnabled {
		ui.setStatusDirect("Export is available once enrichment completes")
		return
	}
	text := ui.engine.Export()
	if ui.opts.OnExport != nil {
		if err := ui.opts.OnExport(text); err != nil {
			ui.log.WithError(err).Error("export failed")
			ui.setStatusDirect(fmt.Sprintf("[%s]Export failed: %v[-]", ui.theme.Error, err))
			return
		}
	}
	ui.showTextModal("Export", text)
}

// SetTheme applies a named theme. Call it on the UI goroutine.
func (ui *UI) SetTheme(name string) {
	ui.theme = ThemeByName(name)
	ui.applyTheme()
	ui.Refresh()
	ui.setStatusDirect("Theme: " + ui.theme.Name)
	ui.log.WithField("theme", ui.theme.Name).Debug("theme applied")
}

func (ui *UI) applyTheme() {
	th := ui.theme
	surface := th.Color(th.Surface)
	for _, tv := range []*tview.TextView{ui.appTitle, ui.dashboard, ui.banner, ui.progress, ui.filterBar, ui.detail, ui.statusBar} {
		tv.SetBackgroundColor(surface)
		tv.SetTextColor(th.Color(th.Text))
		tv.SetBorderColor(th.Color(th.Border))
	}
	ui.cardTable.SetBackgroundColor(surface)
	ui.cardTable.SetBorderColor(th.Color(th.FocusBorder))
	ui.cardTable.SetSelectedStyle(tcell.StyleDefault.Background(th.Color(th.SelectionBg)).Foreground(th.Color(th.SelectionFg)))

	ui.search.SetBackgroundColor(surface)
	ui.search.SetLabelColor(th.Color(th.Accent))
	ui.search.SetFieldBackgroundColor(th.Color(th.SelectionBg))
	ui.search.SetFieldTextColor(th.Color(th.Text))
}

func (ui *UI) setStatusDirect(message string) {
	ui.statusBar.SetText(fmt.Sprintf("[%s]%s[-] [%s]|[-] %s [%s]|[-] %s",
		ui.theme.Muted, time.Now().Format("15:04:05"),
		ui.theme.Muted, message,
		ui.theme.Muted, shortcutHints(ui.theme)))
}

// GetStats returns UI statistics
func (ui *UI) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"theme":   ui.theme.Name,
		"visible": len(ui.rows),
		"running": ui.running,
	}
	if ui.engine != nil {
		stats["indicators"] = len(ui.engine.Board().Cards())
		stats["admitted"] = ui.engine.State().Admitted()
		stats["reorders"] = ui.engine.Reorders()
	}
	return stats
}

func shortcutHints(th Theme) string {
	keys := []string{"1-5:verdict", "f:type", "/:search", "x:reset", "n:no-data", "c:copy", "e:export", "T:theme", "?:help", "q:quit"}
	return fmt.Sprintf("[%s]%s[-]", th.Muted, strings.Join(keys, " "))
}
