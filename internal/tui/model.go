package tui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/FeelPulse/haven/internal/chat"
	"github.com/FeelPulse/haven/internal/metrics"
	"github.com/FeelPulse/haven/internal/ratelimit"
	"github.com/FeelPulse/haven/pkg/types"
)

// Command represents a slash command
type Command int

const (
	CmdNone Command = iota
	CmdHelp
	CmdListings
	CmdView
	CmdStats
	CmdLogout
	CmdQuit
	CmdUnknown
)

// Options wires the chat screen to a session
type Options struct {
	Session *chat.Session
	Events  <-chan chat.Event // from NotifyChannel; nil disables live updates
	Limiter *ratelimit.Limiter
	Account string // rate limit key and header label
	Backend string
	Metrics *metrics.Collector
	Logout  func() error // run by /logout
}

// NotifyChannel returns a callback for chat.WithNotify and the channel it
// feeds. Message and loading events are dropped while the channel is full
// since each one only makes the screen re-read the log. EventLogout is never
// dropped: the oldest queued events are evicted to make room for it.
func NotifyChannel() (func(chat.Event), <-chan chat.Event) {
	ch := make(chan chat.Event, 64)
	return func(e chat.Event) {
		for {
			select {
			case ch <- e:
				return
			default:
			}
			if e.Kind != chat.EventLogout {
				return
			}
			select {
			case <-ch:
			default:
			}
		}
	}, ch
}

type noteKind int

const (
	noteInfo noteKind = iota
	noteNotice
	noteError
	noteListings
)

// note is a local line shown in the chat but never sent or stored in the
// session log. after is the log length when it was added, for ordering.
type note struct {
	after    int
	kind     noteKind
	text     string
	listings []types.Listing
}

type detailView struct {
	n       int
	listing types.Listing
}

// eventMsg carries a session event into the update loop
type eventMsg chat.Event

// sendDoneMsg is returned when Send settles. text is what was submitted.
type sendDoneMsg struct {
	accepted bool
	text     string
}

// Model is the bubbletea model for the chat screen
type Model struct {
	viewport     viewport.Model
	input        textinput.Model
	spinner      spinner.Model
	autocomplete *Autocomplete

	session *chat.Session
	events  <-chan chat.Event
	limiter *ratelimit.Limiter
	account string
	backend string
	metrics *metrics.Collector
	logout  func() error

	notes  []note
	detail *detailView

	width     int
	height    int
	ready     bool
	sending   bool // a submitted message has not settled yet
	quitting  bool
	expired   bool
	loggedOut bool
}

// New creates the chat screen model
func New(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "I'm looking for a 3BHK penthouse in Mumbai under 10M..."
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = thinkingStyle

	m := opts.Metrics
	if m == nil {
		m = metrics.Default()
	}

	return Model{
		input:        ti,
		spinner:      sp,
		autocomplete: NewAutocomplete(),
		session:      opts.Session,
		events:       opts.Events,
		limiter:      opts.Limiter,
		account:      opts.Account,
		backend:      opts.Backend,
		metrics:      m,
		logout:       opts.Logout,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(ch <-chan chat.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}

		if m.detail != nil {
			switch msg.Type {
			case tea.KeyEsc, tea.KeyEnter, tea.KeyBackspace:
				m.detail = nil
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyTab:
			if m.autocomplete.IsActive() {
				m.completeCommand()
			}
			return m, nil

		case tea.KeyUp:
			if m.autocomplete.IsActive() {
				m.autocomplete.Prev()
				return m, nil
			}
			m.viewport.LineUp(1)
			return m, nil

		case tea.KeyDown:
			if m.autocomplete.IsActive() {
				m.autocomplete.Next()
				return m, nil
			}
			m.viewport.LineDown(1)
			return m, nil

		case tea.KeyPgUp, tea.KeyPgDown:
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd

		case tea.KeyEsc:
			m.autocomplete.Reset()
			return m, nil

		case tea.KeyEnter:
			value := strings.TrimSpace(m.input.Value())
			if m.autocomplete.IsActive() && m.autocomplete.Selected() != value {
				m.completeCommand()
				return m, nil
			}
			return m.submit()
		}

	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.refresh()
		if chat.Event(msg).Kind == chat.EventLogout {
			m.expired = true
			m.quitting = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case sendDoneMsg:
		m.sending = false
		if !msg.accepted && m.input.Value() == "" {
			m.input.SetValue(msg.text)
			m.input.CursorEnd()
		}
		m.refresh()
		return m, nil
	}

	m.input, cmd = m.input.Update(msg)
	m.autocomplete.Update(m.input.Value())
	return m, cmd
}

func (m *Model) completeCommand() {
	m.input.SetValue(m.autocomplete.Selected() + " ")
	m.input.CursorEnd()
	m.autocomplete.Reset()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 1
	inputHeight := 3  // bordered single line
	statusHeight := 2 // status + help line
	chatHeight := height - headerHeight - inputHeight - statusHeight - 2
	if chatHeight < 3 {
		chatHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(width-2, chatHeight)
		m.ready = true
	} else {
		m.viewport.Width = width - 2
		m.viewport.Height = chatHeight
	}
	m.input.Width = width - 8
	m.refresh()
}

// submit handles Enter: a slash command, or a message for the session
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if isCommand(text) {
		m.input.Reset()
		m.autocomplete.Reset()
		cmd, arg := parseCommand(text)
		return m.handleCommand(cmd, arg)
	}

	// Input stays put until the current reply lands
	if m.sending || m.session.Loading() {
		return m, nil
	}

	if m.limiter != nil && !m.limiter.Allow(m.account) {
		wait := m.limiter.RetryAfter(m.account).Round(time.Second)
		m.addNote(noteNotice, fmt.Sprintf("Easy there! You can send %d messages per minute. Try again in %s.", m.limiter.Limit(), wait))
		m.refresh()
		return m, nil
	}

	// A rejected send puts the text back on sendDoneMsg
	m.sending = true
	m.input.Reset()
	return m, sendMessage(m.session, text)
}

func sendMessage(s *chat.Session, text string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{accepted: s.Send(context.Background(), text), text: text}
	}
}

func (m Model) handleCommand(cmd Command, arg string) (tea.Model, tea.Cmd) {
	switch cmd {
	case CmdHelp:
		m.addNote(noteInfo, helpText())

	case CmdListings:
		listings := m.session.Listings()
		if len(listings) == 0 {
			m.addNote(noteInfo, "No listings yet. Ask Haven about a property to see matches.")
			break
		}
		m.notes = append(m.notes, note{after: len(m.session.Messages()), kind: noteListings, listings: listings})

	case CmdView:
		listings := m.session.Listings()
		if len(listings) == 0 {
			m.addNote(noteInfo, "No listings yet. Ask Haven about a property to see matches.")
			break
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(listings) {
			m.addNote(noteNotice, fmt.Sprintf("Usage: /view N where N is 1-%d", len(listings)))
			break
		}
		m.detail = &detailView{n: n, listing: listings[n-1]}
		return m, nil

	case CmdStats:
		m.addNote(noteInfo, m.statsText())

	case CmdLogout:
		if m.logout != nil {
			if err := m.logout(); err != nil {
				m.addNote(noteError, "Logout failed: "+err.Error())
				break
			}
		}
		m.loggedOut = true
		m.quitting = true
		return m, tea.Quit

	case CmdQuit:
		m.quitting = true
		return m, tea.Quit

	case CmdUnknown:
		m.addNote(noteNotice, "Unknown command. Type /help for available commands.")
	}

	m.refresh()
	return m, nil
}

func (m *Model) addNote(kind noteKind, text string) {
	after := 0
	if m.session != nil {
		after = len(m.session.Messages())
	}
	m.notes = append(m.notes, note{after: after, kind: kind, text: text})
}

func (m Model) statsText() string {
	msgs := m.session.Messages()
	users := 0
	for _, msg := range msgs {
		if msg.Role == types.RoleUser {
			users++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Messages: %d (%d sent)\n", len(msgs), users)
	fmt.Fprintf(&b, "Session state: %s\n", m.session.State())
	if m.limiter != nil && m.limiter.Limit() > 0 {
		fmt.Fprintf(&b, "Messages left this minute: %d\n", m.limiter.Remaining(m.account))
	}

	var prom bytes.Buffer
	m.metrics.WritePrometheus(&prom)
	for _, line := range strings.Split(strings.TrimSpace(prom.String()), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		b.WriteString("  " + line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// refresh re-renders the log into the viewport and scrolls to the end
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		switch {
		case m.expired:
			return chat.TextSessionExpired + "\nRun `haven login` to start a new session.\n"
		case m.loggedOut:
			return "Signed out. Your session has been cleared.\n"
		default:
			return "Goodbye!\n"
		}
	}

	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.detail != nil {
		b.WriteString(renderListingDetail(m.detail.n, m.detail.listing, m.width))
		return b.String()
	}

	b.WriteString(chatBorderStyle.Width(m.width - 2).Render(m.viewport.View()))
	b.WriteString("\n")

	if m.session.Loading() {
		b.WriteString(m.spinner.View() + thinkingStyle.Render(" Haven is curating options..."))
	} else if m.limiter != nil && m.limiter.Limit() > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("%d/%d messages left this minute", m.limiter.Remaining(m.account), m.limiter.Limit())))
	}
	b.WriteString("\n")

	if m.autocomplete.IsActive() {
		b.WriteString(m.autocomplete.View())
		b.WriteString("\n")
	}

	b.WriteString(inputBorderStyle.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Enter send · /help commands · PgUp/PgDn scroll · Ctrl+C quit"))

	return b.String()
}

func (m Model) renderHeader() string {
	info := []string{}
	if m.account != "" {
		info = append(info, m.account)
	}
	if m.backend != "" {
		info = append(info, m.backend)
	}
	return headerStyle.Render("Haven AI") + headerInfoStyle.Render(strings.Join(info, " · "))
}

// renderMessages renders the session log with local notes interleaved
func (m Model) renderMessages() string {
	width := m.viewport.Width - 4
	msgs := m.session.Messages()

	if len(msgs) == 0 && len(m.notes) == 0 {
		return systemStyle.Render("Ask Haven about buying, renting or selling a property.\n\nCommands: /help, /listings, /view N, /stats, /logout, /quit")
	}

	var blocks []string
	blocks = m.appendNotes(blocks, 0, width)
	for i, msg := range msgs {
		blocks = append(blocks, formatMessage(msg, width))
		blocks = m.appendNotes(blocks, i+1, width)
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) appendNotes(blocks []string, after, width int) []string {
	for _, n := range m.notes {
		if n.after != after {
			continue
		}
		switch n.kind {
		case noteNotice:
			blocks = append(blocks, formatNotice(wrapText(n.text, width)))
		case noteError:
			blocks = append(blocks, formatError(wrapText(n.text, width)))
		case noteListings:
			blocks = append(blocks, renderCards(n.listings, width))
		default:
			blocks = append(blocks, formatSystemMessage(n.text))
		}
	}
	return blocks
}

// formatMessage renders one log entry with its listing cards
func formatMessage(msg types.Message, width int) string {
	ts := formatTimestamp(msg.Timestamp)
	if msg.Role == types.RoleUser {
		return formatUserMessage(wrapText(msg.Text, width-6)) + "  " + ts
	}

	out := formatAgentMessage(renderIfMarkdown(msg.Text, width-8)) + "  " + ts
	if msg.HasListings() {
		out += "\n" + renderCards(msg.Listings, width)
	}
	return out
}

func renderCards(listings []types.Listing, width int) string {
	cards := make([]string, len(listings))
	for i, l := range listings {
		cards[i] = renderListingCard(i+1, l, width)
	}
	return strings.Join(cards, "\n")
}

// parseCommand parses a slash command and its argument
func parseCommand(input string) (Command, string) {
	input = strings.TrimSpace(input)
	if input == "" || !strings.HasPrefix(input, "/") {
		return CmdNone, ""
	}

	parts := strings.SplitN(input, " ", 2)
	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/help", "/?":
		return CmdHelp, arg
	case "/listings", "/ls":
		return CmdListings, arg
	case "/view", "/v":
		return CmdView, arg
	case "/stats":
		return CmdStats, arg
	case "/logout":
		return CmdLogout, arg
	case "/quit", "/exit", "/q":
		return CmdQuit, arg
	default:
		return CmdUnknown, arg
	}
}

func isCommand(input string) bool {
	return strings.HasPrefix(input, "/")
}

func helpText() string {
	return `Available commands:
  /help        Show this help message
  /listings    Show the listings from the latest reply
  /view N      Open listing N from the latest reply
  /stats       Show session statistics
  /logout      Sign out and clear the stored session
  /quit        Exit Haven

Keyboard shortcuts:
  Enter        Send message
  Tab          Complete command
  ↑/↓          Scroll chat / pick command
  PgUp/PgDn    Scroll chat
  Esc          Close listing details
  Ctrl+C       Quit`
}

// wrapText wraps text to fit within width
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 80
	}
	return wordwrap.String(text, width)
}

// Result says how the chat screen ended
type Result struct {
	Expired   bool // the backend ended the session
	LoggedOut bool // the user ran /logout
}

// Run starts the chat screen and blocks until it exits
func Run(opts Options) (Result, error) {
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if err != nil {
		return Result{}, err
	}
	fm, ok := final.(Model)
	if !ok {
		return Result{}, nil
	}
	return Result{Expired: fm.expired, LoggedOut: fm.loggedOut}, nil
}
