package main

import "github.com/charmbracelet/lipgloss"

var (
	colorWhite  = lipgloss.AdaptiveColor{Light: "0", Dark: "15"}
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
)

var (
	styleBrand   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleVersion = lipgloss.NewStyle().Foreground(colorGreen)
	styleLabel   = lipgloss.NewStyle().Foreground(colorDim).Width(10)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	styleHint    = lipgloss.NewStyle().Foreground(colorDim)
	styleCommand = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
)

// Activity state badges.
var (
	badgeIdle    = lipgloss.NewStyle().Foreground(colorDim)
	badgeWorking = lipgloss.NewStyle().Foreground(colorCyan)
	badgeWaiting = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
)

func field(label, value string) string {
	return "  " + styleLabel.Render(label) + " " + styleValue.Render(value)
}

func mark(ok bool) string {
	if ok {
		return styleSuccess.Render("✓")
	}
	return styleError.Render("✗")
}
