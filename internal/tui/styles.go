package tui

import "github.com/charmbracelet/lipgloss"

// 256-color palette shared by every view.
const (
	colorAccent = lipgloss.Color("212")
	colorOK     = lipgloss.Color("78")
	colorError  = lipgloss.Color("196")
	colorWarn   = lipgloss.Color("214")
	colorMuted  = lipgloss.Color("241")
	colorLabel  = lipgloss.Color("245")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	spinnerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	successStyle = lipgloss.NewStyle().Foreground(colorOK)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	dimStyle     = lipgloss.NewStyle().Foreground(colorMuted)

	// labelStyle pads row labels so values line up.
	labelStyle = lipgloss.NewStyle().Width(9).Foreground(colorLabel)
)
