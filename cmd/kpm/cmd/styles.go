package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/validate"
)

var (
	okColor      = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")

	titleStyle   = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(okColor).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)

func severityStyle(severity string) lipgloss.Style {
	if severity == validate.SeverityError {
		return errorStyle
	}
	return warningStyle
}

func statusStyle(status string) lipgloss.Style {
	if status == validate.StatusOK {
		return okStyle
	}
	return errorStyle
}
