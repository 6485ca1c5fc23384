package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/soulcore/pkg/router"
	"github.com/entrhq/soulcore/pkg/verify"
)

// Color palette
var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	butter     = lipgloss.Color("#FFE5A8")
	mutedGray  = lipgloss.Color("#6B7280")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	successStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(butter)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	replyStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)
)

func statusStyle(s verify.Status) lipgloss.Style {
	switch s {
	case verify.StatusSupported:
		return successStyle
	case verify.StatusContradicted:
		return errorStyle
	default:
		return warnStyle
	}
}

func actionStyle(a router.Action) lipgloss.Style {
	switch a {
	case router.ActionUpdated, router.ActionSuggested, router.ActionWritten:
		return successStyle
	case router.ActionFileNotFound:
		return errorStyle
	default:
		return warnStyle
	}
}
