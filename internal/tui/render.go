package tui

import (
	"regexp"

	"github.com/charmbracelet/lipgloss"
)

// Styles contains lipgloss styles for the TUI
type Styles struct {
	Title     lipgloss.Style
	Marker    lipgloss.Style // [Playground]
	Info      lipgloss.Style // [INFO]
	Status    lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Muted     lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Help      lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Marker: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Info: lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")), // Green
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Tab: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1),
		ActiveTab: lipgloss.NewStyle().
			Background(lipgloss.Color("63")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1),
	}
}

var (
	playgroundMarker = regexp.MustCompile(`\[(Playground)\]`)
	infoMarker       = regexp.MustCompile(`\[(INFO)\]`)
)

// RenderLog styles the tag inside the [Playground] and [INFO] markers of
// a pipeline log, leaving everything else verbatim.
func RenderLog(s Styles, text string) string {
	text = playgroundMarker.ReplaceAllStringFunc(text, func(m string) string {
		return "[" + s.Marker.Render("Playground") + "]"
	})
	return infoMarker.ReplaceAllStringFunc(text, func(m string) string {
		return "[" + s.Info.Render("INFO") + "]"
	})
}
