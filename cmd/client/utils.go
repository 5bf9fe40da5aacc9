package main

import "github.com/charmbracelet/lipgloss"

// styles by meaning, so every command colors the same outcome the same way
var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// badge renders a short uppercase outcome word, e.g. OK or FAILED.
func badge(style lipgloss.Style, word string) string {
	return style.Render("[" + word + "]")
}
