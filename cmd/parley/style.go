package main

import "github.com/charmbracelet/lipgloss"

var (
	toolStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Italic(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	labelStyle = lipgloss.NewStyle().Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)
)

func renderError(err error) string {
	return errorStyle.Render("Error:") + " " + err.Error()
}
