package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CommandSuggestion is a slash command shown in the popup
type CommandSuggestion struct {
	Command     string
	Description string
}

var availableCommands = []CommandSuggestion{
	{Command: "/help", Description: "Show help"},
	{Command: "/listings", Description: "Show latest listings"},
	{Command: "/view", Description: "Open listing N"},
	{Command: "/stats", Description: "Session statistics"},
	{Command: "/logout", Description: "End session and sign out"},
	{Command: "/quit", Description: "Exit Haven"},
}

func filterCommands(prefix string) []CommandSuggestion {
	if prefix == "" || prefix == "/" {
		return availableCommands
	}

	prefix = strings.ToLower(prefix)
	var matches []CommandSuggestion
	for _, cmd := range availableCommands {
		if strings.HasPrefix(cmd.Command, prefix) {
			matches = append(matches, cmd)
		}
	}
	return matches
}

// Autocomplete tracks the command popup while a command name is being typed
type Autocomplete struct {
	suggestions []CommandSuggestion
	selected    int
}

// NewAutocomplete creates an inactive popup
func NewAutocomplete() *Autocomplete {
	return &Autocomplete{}
}

// Update refreshes suggestions for the current input. The popup closes once
// the input stops being a bare command name.
func (a *Autocomplete) Update(input string) {
	if !strings.HasPrefix(input, "/") || strings.Contains(input, " ") {
		a.Reset()
		return
	}
	a.suggestions = filterCommands(input)
	if a.selected >= len(a.suggestions) {
		a.selected = 0
	}
}

// IsActive reports whether the popup should be shown
func (a *Autocomplete) IsActive() bool {
	return len(a.suggestions) > 0
}

func (a *Autocomplete) Next() {
	if len(a.suggestions) == 0 {
		return
	}
	a.selected = (a.selected + 1) % len(a.suggestions)
}

func (a *Autocomplete) Prev() {
	if len(a.suggestions) == 0 {
		return
	}
	a.selected = (a.selected - 1 + len(a.suggestions)) % len(a.suggestions)
}

// Selected returns the highlighted command
func (a *Autocomplete) Selected() string {
	if len(a.suggestions) == 0 {
		return ""
	}
	return a.suggestions[a.selected].Command
}

func (a *Autocomplete) Reset() {
	a.suggestions = nil
	a.selected = 0
}

// View renders the popup
func (a *Autocomplete) View() string {
	if !a.IsActive() {
		return ""
	}

	popupStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryColor).
		Padding(0, 1)

	selectedStyle := lipgloss.NewStyle().
		Background(primaryColor).
		Foreground(lipgloss.Color("#FFFFFF"))

	var lines []string
	for i, cmd := range a.suggestions {
		if i == a.selected {
			lines = append(lines, selectedStyle.Render(padRight(cmd.Command, 10)+" "+cmd.Description))
			continue
		}
		lines = append(lines, userTextStyle.Render(padRight(cmd.Command, 10))+" "+helpStyle.Render(cmd.Description))
	}
	return popupStyle.Render(strings.Join(lines, "\n"))
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
