package console

import (
	"commuter/internal/activity"
	"commuter/internal/session"

	"github.com/charmbracelet/lipgloss"
)

type theme struct {
	header      lipgloss.Style
	panel       lipgloss.Style
	activePanel lipgloss.Style
	panelTitle  lipgloss.Style
	inputPanel  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	muted       lipgloss.Style
	modes       map[session.Mode]lipgloss.Style
	roles       map[session.Role]lipgloss.Style
	categories  map[activity.Category]lipgloss.Style
}

func newTheme() theme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	amber := lipgloss.Color("#ffd166")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")
	dark := lipgloss.Color("#22062f")

	badge := func(bg lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Background(bg).Foreground(dark).Bold(true).Padding(0, 1)
	}

	return theme{
		header: lipgloss.NewStyle().
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		activePanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().Foreground(mint).Bold(true),
		inputPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		footer:      lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		muted:       lipgloss.NewStyle().Foreground(muted),
		modes: map[session.Mode]lipgloss.Style{
			session.ModeIdle:         badge(muted),
			session.ModeConnecting:   badge(amber),
			session.ModeAgentActive:  badge(mint),
			session.ModeThinking:     badge(blue),
			session.ModeIntervention: badge(pink),
			session.ModeError:        badge(lipgloss.Color("#ff5f5f")),
		},
		roles: map[session.Role]lipgloss.Style{
			session.RoleUser:   lipgloss.NewStyle().Foreground(mint).Bold(true),
			session.RoleAgent:  lipgloss.NewStyle().Foreground(blue).Bold(true),
			session.RoleSystem: lipgloss.NewStyle().Foreground(muted).Bold(true),
			session.RoleError:  lipgloss.NewStyle().Foreground(pink).Bold(true),
		},
		categories: map[activity.Category]lipgloss.Style{
			activity.CategorySystem: lipgloss.NewStyle().Foreground(muted),
			activity.CategoryAgent:  lipgloss.NewStyle().Foreground(blue),
			activity.CategoryUser:   lipgloss.NewStyle().Foreground(mint),
			activity.CategoryError:  lipgloss.NewStyle().Foreground(pink),
			activity.CategoryRaw:    lipgloss.NewStyle().Foreground(amber),
		},
	}
}
