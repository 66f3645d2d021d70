package ui

import (
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
)

// Theme defines UI color tokens. Each token is kept as a hex string so the
// same value serves widget colors and tview color tags.
type Theme struct {
	Name string

	Surface     string
	Border      string
	FocusBorder string
	SelectionBg string
	SelectionFg string
	Text        string
	Muted       string
	Accent      string
	Warning     string
	HeaderBg    string

	// Verdict badge colors, least to most severe.
	Error      string
	NoData     string
	Clean      string
	Suspicious string
	Malicious  string
}

func hex(s string) tcell.Color { return tcell.GetColor(s) }

// Color returns the widget color for a token.
func (t Theme) Color(token string) tcell.Color { return hex(token) }

// VerdictTag returns the color tag for a verdict; pending cards use the muted color.
func (t Theme) VerdictTag(v enrich.Verdict) string {
	switch v {
	case enrich.VerdictMalicious:
		return t.Malicious
	case enrich.VerdictSuspicious:
		return t.Suspicious
	case enrich.VerdictClean:
		return t.Clean
	case enrich.VerdictNoData:
		return t.NoData
	case enrich.VerdictError:
		return t.Error
	default:
		return t.Muted
	}
}

// ThemeNames lists the built-in themes in cycle order.
func ThemeNames() []string {
	return []string{"dark", "light", "neon", "cb-safe", "high-contrast"}
}

// ThemeByName returns a built-in theme; unknown names fall back to dark.
func ThemeByName(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		return Theme{
			Name: "light", Surface: "#ffffff", Border: "#d0d7de", FocusBorder: "#1f6feb",
			SelectionBg: "#e2e8f0", SelectionFg: "#111827", Text: "#111827", Muted: "#6b7280",
			Accent: "#2563eb", Warning: "#b45309", HeaderBg: "#e5e7eb",
			Error: "#b91c1c", NoData: "#6b7280", Clean: "#16a34a", Suspicious: "#ca8a04", Malicious: "#dc2626",
		}
	case "neon":
		return Theme{
			Name: "neon", Surface: "#14111a", Border: "#45385a", FocusBorder: "#ff79c6",
			SelectionBg: "#2a1f3d", SelectionFg: "#f8f5ff", Text: "#f8f5ff", Muted: "#b8a8c9",
			Accent: "#ff6ac1", Warning: "#ffd166", HeaderBg: "#301d49",
			Error: "#ff5555", NoData: "#b8a8c9", Clean: "#34c759", Suspicious: "#ff9f0a", Malicious: "#ff3b30",
		}
	case "cb-safe":
		return Theme{
			Name: "cb-safe", Surface: "#12161e", Border: "#2b3240", FocusBorder: "#4aa8ff",
			SelectionBg: "#2b3240", SelectionFg: "#e6edf3", Text: "#e6edf3", Muted: "#8a939f",
			Accent: "#80b1d3", Warning: "#fdb863", HeaderBg: "#232a38",
			Error: "#d7191c", NoData: "#8a939f", Clean: "#4575b4", Suspicious: "#fc8d59", Malicious: "#d73027",
		}
	case "high-contrast":
		return Theme{
			Name: "high-contrast", Surface: "#000000", Border: "#ffffff", FocusBorder: "#ffff00",
			SelectionBg: "#ffffff", SelectionFg: "#000000", Text: "#ffffff", Muted: "#cccccc",
			Accent: "#00ffff", Warning: "#ffff00", HeaderBg: "#000000",
			Error: "#ff00ff", NoData: "#cccccc", Clean: "#00ff00", Suspicious: "#ffff00", Malicious: "#ff0000",
		}
	default:
		return Theme{
			Name: "dark", Surface: "#12161e", Border: "#2b3240", FocusBorder: "#4aa8ff",
			SelectionBg: "#2b3240", SelectionFg: "#cfd8e3", Text: "#e6edf3", Muted: "#8a939f",
			Accent: "#2dd4bf", Warning: "#f59e0b", HeaderBg: "#1a2332",
			Error: "#ef4444", NoData: "#94a3b8", Clean: "#22c55e", Suspicious: "#ffaf5f", Malicious: "#ff5f5f",
		}
	}
}

// nextTheme returns the theme after name in cycle order.
func nextTheme(name string) string {
	names := ThemeNames()
	for i, n := range names {
		if n == name {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}

func detectTrueColor() bool {
	ct := strings.ToLower(os.Getenv("COLORTERM"))
	if strings.Contains(ct, "truecolor") || strings.Contains(ct, "24bit") {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "truecolor") || strings.Contains(term, "24bit") || strings.Contains(term, "256color")
}
