// ABOUTME: Bubble Tea model for pharma-tui: customer sidebar, transcript and message input
// ABOUTME: Chat calls run as commands; their outcomes come back through Update and settle the controller

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389/pharma-console/internal/conversation"
	"github.com/2389/pharma-console/internal/gateway"
)

type focusArea int

const (
	focusSidebar focusArea = iota
	focusInput
)

type turnSettledMsg struct {
	outcome conversation.Outcome
}

type sessionExpiredMsg struct {
	event gateway.ExpiredEvent
}

type model struct {
	ctx    context.Context
	source customerSource
	ctrl   *conversation.Controller

	sidebar  sidebarModel
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer
	// markdownStyle is a glamour standard style name; empty disables
	// markdown rendering of agent replies.
	markdownStyle string

	focus   focusArea
	expired *gateway.ExpiredEvent
	width   int
	height  int
}

func newModel(ctx context.Context, src customerSource, ctrl *conversation.Controller, markdownStyle string) model {
	input := textinput.New()
	input.Placeholder = "Select a customer, then type a message"
	input.CharLimit = 2000
	input.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	m := model{
		ctx:           ctx,
		source:        src,
		ctrl:          ctrl,
		sidebar:       newSidebarModel(),
		input:         input,
		viewport:      viewport.New(80, 20),
		spinner:       sp,
		markdownStyle: markdownStyle,
		focus:         focusSidebar,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(loadCustomers(m.ctx, m.source), textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case customersLoadedMsg:
		m.sidebar = m.sidebar.Update(msg)
		return m, nil

	case turnSettledMsg:
		m.ctrl.Settle(msg.outcome)
		m.refresh()
		return m, nil

	case sessionExpiredMsg:
		ev := msg.event
		m.expired = &ev
		m.input.Blur()
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Transcript().Pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.expired != nil {
		switch msg.String() {
		case "q", "enter", "esc":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "tab":
		return m.toggleFocus()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		if m.sidebar.retry() {
			return m, loadCustomers(m.ctx, m.source)
		}
		return m, nil
	case "enter":
		customer, ok := m.sidebar.current()
		if !ok {
			return m, nil
		}
		m.ctrl.SelectCustomer(customer)
		m.refresh()
		m.focus = focusInput
		return m, m.input.Focus()
	}

	m.sidebar = m.sidebar.Update(msg)
	return m, nil
}

func (m model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.toggleFocus()
	case "enter":
		turn, ok := m.ctrl.Begin(m.input.Value())
		if !ok {
			return m, nil
		}
		m.input.Reset()
		m.refresh()
		return m, tea.Batch(m.exchange(turn), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == focusSidebar {
		m.focus = focusInput
		return m, m.input.Focus()
	}
	m.focus = focusSidebar
	m.input.Blur()
	return m, nil
}

// exchange runs the chat call off the event loop.
func (m model) exchange(turn conversation.Turn) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return turnSettledMsg{outcome: ctrl.Exchange(ctx, turn)}
	}
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height
	m.sidebar.height = height

	mainWidth := max(width-sidebarWidth-6, 20)
	m.viewport.Width = mainWidth
	m.viewport.Height = max(height-8, 3)
	m.input.Width = mainWidth - len(m.input.Prompt) - 1

	m.markdown = nil
	if m.markdownStyle != "" {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.markdownStyle),
			glamour.WithWordWrap(mainWidth-4),
		)
		if err == nil {
			m.markdown = r
		}
	}
	m.refresh()
}

// refresh re-renders the transcript into the viewport.
func (m *model) refresh() {
	m.viewport.SetContent(m.renderTranscript(m.ctrl.Transcript()))
	m.viewport.GotoBottom()
}

func (m model) renderTranscript(snap conversation.Transcript) string {
	if snap.Customer == nil {
		return dimStyle.Render("Select a customer from the list to start chatting.")
	}
	if len(snap.Messages) == 0 {
		return dimStyle.Render(fmt.Sprintf("No messages yet. Chatting as %s.", snap.Customer.DisplayName()))
	}

	var b strings.Builder
	for _, msg := range snap.Messages {
		switch msg.Role {
		case conversation.RoleUser:
			b.WriteString(userStyle.Render("You") + " " + dimStyle.Render(msg.CreatedAt.Format("15:04")) + "\n")
			b.WriteString(msg.Text + "\n\n")
		case conversation.RoleAgent:
			b.WriteString(agentStyle.Render("Agent") + " " + dimStyle.Render(msg.CreatedAt.Format("15:04")) + "\n")
			b.WriteString(m.renderReply(msg.Text) + "\n")
			if msg.Approved {
				note := "Approved"
				if msg.OrderID != nil {
					note += fmt.Sprintf(" · order #%d", *msg.OrderID)
				}
				b.WriteString(approvedStyle.Render(note) + "\n")
			}
			b.WriteString("\n")
		case conversation.RoleTransportError:
			b.WriteString(errorStyle.Render(msg.Text) + "\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) renderReply(text string) string {
	if m.markdown == nil {
		return text
	}
	out, err := m.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func (m model) View() string {
	if m.expired != nil {
		return m.expiredView()
	}

	snap := m.ctrl.Transcript()
	var selectedID int64
	if snap.Customer != nil {
		selectedID = snap.Customer.ID
	}

	header := titleStyle.Render("Pharmacy Console")
	if snap.Customer != nil {
		header += dimStyle.Render(fmt.Sprintf("  %s · %s", snap.Customer.DisplayName(), snap.Customer.Contact()))
	}

	var status string
	switch {
	case snap.Pending:
		status = m.spinner.View() + " " + dimStyle.Render("Waiting for reply...")
	case snap.Banner != "":
		status = errorStyle.Render(snap.Banner)
	default:
		status = dimStyle.Render("tab: switch pane · enter: select/send · pgup/pgdown: scroll · ctrl+c: quit")
	}

	pane := paneStyle
	if m.focus == focusInput {
		pane = focusedPaneStyle
	}
	chat := pane.Width(m.viewport.Width + 2).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			"",
			m.viewport.View(),
			"",
			status,
			m.input.View(),
		),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebar.View(selectedID, m.focus == focusSidebar),
		chat,
	)
}

func (m model) expiredView() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		errorStyle.Render("Session expired"),
		"",
		"Your session is no longer valid.",
		"Run 'pharma-admin login', then start pharma-tui again.",
		"",
		dimStyle.Render("Press q to quit"),
	)
	box := focusedPaneStyle.Padding(1, 3).Render(body)
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
