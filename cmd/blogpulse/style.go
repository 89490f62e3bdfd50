package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// gapStyle colors a gap rate: green under 25, yellow under 50, red otherwise.
func gapStyle(rate int) lipgloss.Style {
	switch {
	case rate < 25:
		return okStyle
	case rate < 50:
		return warnStyle
	default:
		return errorStyle
	}
}

func priorityStyle(p string) lipgloss.Style {
	switch p {
	case "high":
		return errorStyle
	case "medium":
		return warnStyle
	default:
		return mutedStyle
	}
}

func passStyle(passed bool) lipgloss.Style {
	if passed {
		return okStyle
	}
	return errorStyle
}
