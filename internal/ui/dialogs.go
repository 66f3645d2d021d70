package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
)

// centered wraps p in a flex that keeps it in the middle of the screen.
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (ui *UI) openDialog(p tview.Primitive, focus tview.Primitive) {
	ui.dialogActive = true
	ui.lastFocus = ui.app.GetFocus()
	pages := tview.NewPages().
		AddPage("main", ui.root, true, true).
		AddPage("dialog", p, true, true)
	ui.app.SetRoot(pages, true)
	ui.app.SetFocus(focus)
}

// restoreMainLayout closes any dialog and returns focus to where it was.
func (ui *UI) restoreMainLayout() {
	ui.dialogActive = false
	ui.app.SetRoot(ui.root, true)
	target := ui.lastFocus
	if target == nil {
		target = ui.cardTable
	}
	ui.app.SetFocus(target)
}

// showTextModal shows scrollable text; Esc, Enter or q closes it.
func (ui *UI) showTextModal(title, text string) {
	th := ui.theme
	view := tview.NewTextView().SetText(text).SetScrollable(true).SetWordWrap(true)
	view.SetBorder(true).SetTitle(fmt.Sprintf(" %s (Esc to close) ", title))
	view.SetBackgroundColor(th.Color(th.Surface))
	view.SetTextColor(th.Color(th.Text))
	view.SetBorderColor(th.Color(th.FocusBorder))
	view.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyEnter:
			ui.restoreMainLayout()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				ui.restoreMainLayout()
				return nil
			}
		}
		return event
	})

	lines := strings.Count(text, "\n") + 3
	if lines > 20 {
		lines = 20
	}
	ui.openDialog(centered(view, 90, lines), view)
}

// showTypeFilter lists the indicator types; choosing the active type or
// "all" clears the type filter.
func (ui *UI) showTypeFilter() {
	th := ui.theme
	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true).SetTitle(" Filter by type ")
	list.SetBackgroundColor(th.Color(th.Surface))
	list.SetBorderColor(th.Color(th.FocusBorder))
	list.SetMainTextColor(th.Color(th.Text))
	list.SetSelectedBackgroundColor(th.Color(th.SelectionBg))
	list.SetSelectedTextColor(th.Color(th.SelectionFg))

	active := ui.engine.Filter().Type
	options := []string{enrich.FilterAll}
	for _, t := range enrich.IOCTypes() {
		options = append(options, string(t))
	}
	for i, opt := range options {
		label := opt
		if opt == active {
			label = "● " + opt
		}
		choice := opt
		list.AddItem(label, "", 0, func() {
			ui.restoreMainLayout()
			ui.refreshAfterFilter(ui.engine.SelectType(choice))
		})
		if opt == active {
			list.SetCurrentItem(i)
		}
	}
	list.SetDoneFunc(ui.restoreMainLayout)

	ui.openDialog(centered(list, 30, len(options)+2), list)
}

func (ui *UI) showHelp() {
	help := []string{
		"1-5      toggle verdict filter (malicious, suspicious, clean, no record, error)",
		"f        filter by indicator type",
		"/        search indicators (Enter returns to the table)",
		"x        reset all filters",
		"n        expand or collapse providers without a record",
		"s        sort by severity now",
		"c        show copy text for the selected indicator",
		"e        export all indicators (after enrichment completes)",
		"T        cycle theme",
		"q        quit",
	}
	ui.showTextModal("Help", strings.Join(help, "\n"))
}
