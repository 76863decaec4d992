package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("39")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("76")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtitleStyle = lipgloss.NewStyle().Foreground(mutedColor)
	selectedStyle = lipgloss.NewStyle().Bold(true).Background(primaryColor).Foreground(lipgloss.Color("0"))
	pendingStyle  = lipgloss.NewStyle().Foreground(warningColor)
	creditStyle   = lipgloss.NewStyle().Foreground(successColor)
	toastError    = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	toastOK       = lipgloss.NewStyle().Foreground(successColor)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(24)
	activeColumnStyle  = columnStyle.BorderForeground(primaryColor)
	overlayColumnStyle = columnStyle.BorderForeground(warningColor)
)
