// ABOUTME: Lip Gloss styles shared by the pharma-tui panes
// ABOUTME: Colours follow the 256-colour palette used across the console

package main

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	selectedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	badgeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	userStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	approvedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("118"))
	paneStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	focusedPaneStyle = paneStyle.BorderForeground(lipgloss.Color("63"))
)
