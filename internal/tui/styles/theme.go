package styles

import "github.com/charmbracelet/lipgloss"

// Theme defines the core UI styles
var Theme = struct {
	App     lipgloss.Style
	Title   lipgloss.Style
	Path    lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Warning lipgloss.Style
	Dim     lipgloss.Style
	Help    lipgloss.Style
}{
	App: lipgloss.NewStyle().
		Padding(1, 2),
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7B61FF")).
		MarginBottom(1),
	Path: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#81A1C1")),
	Success: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#73F59F")),
	Failure: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF5F87")),
	Warning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#D08770")).
		Bold(true),
	Dim: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666")),
	Help: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#5A9")),
}
