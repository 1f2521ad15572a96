package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#10B981") // Haven emerald
	accentColor  = lipgloss.Color("#34D399")
	userColor    = lipgloss.Color("#3B82F6")
	dimColor     = lipgloss.Color("#94A3B8")
	cardColor    = lipgloss.Color("#1E293B")
	errorColor   = lipgloss.Color("#EF4444")
	noticeColor  = lipgloss.Color("#F59E0B")
)

// Styles
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	headerInfoStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Padding(0, 1)

	userPrefixStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(userColor)

	agentPrefixStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(primaryColor)

	userTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Faint(true)

	inputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	chatBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true)

	thinkingStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Italic(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(noticeColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	// Listing cards
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cardColor).
			Padding(0, 1)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	cardPriceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Bold(true)

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)
)

func formatUserMessage(text string) string {
	return userPrefixStyle.Render("You:") + " " + userTextStyle.Render(text)
}

func formatAgentMessage(rendered string) string {
	return agentPrefixStyle.Render("Haven:") + " " + rendered
}

func formatSystemMessage(text string) string {
	return systemStyle.Render("• " + text)
}

func formatNotice(text string) string {
	return noticeStyle.Render("! " + text)
}

func formatError(text string) string {
	return errorStyle.Render("✗ " + text)
}

func formatTimestamp(t time.Time) string {
	return timestampStyle.Render(t.Format("15:04"))
}
