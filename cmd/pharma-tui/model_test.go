// ABOUTME: Tests for the pharma-tui model driven through Update with fake backends
// ABOUTME: Covers customer loading and retry, chat turns, stale replies and session expiry

package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pharma-console/internal/conversation"
	"github.com/2389/pharma-console/internal/gateway"
	"github.com/2389/pharma-console/internal/pharmacy"
)

type fakeSource struct {
	results []customersLoadedMsg
	calls   int
}

func (f *fakeSource) ListCustomers(context.Context) ([]pharmacy.Customer, error) {
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return r.customers, r.err
}

type senderFunc func(ctx context.Context, customerID int64, message string) (*pharmacy.ChatReply, error)

func (f senderFunc) Chat(ctx context.Context, customerID int64, message string) (*pharmacy.ChatReply, error) {
	return f(ctx, customerID, message)
}

func echoSender() senderFunc {
	return func(_ context.Context, customerID int64, message string) (*pharmacy.ChatReply, error) {
		orderID := int64(42)
		return &pharmacy.ChatReply{
			Reply:    fmt.Sprintf("reply to %d: %s", customerID, message),
			Approved: true,
			OrderID:  &orderID,
		}, nil
	}
}

var testCustomers = []pharmacy.Customer{
	{ID: 1, Name: "Ada", Email: "ada@example.com", IsNewUser: true},
	{ID: 2, Name: "Grace", Phone: "555-0100"},
}

func newTestModel(t *testing.T, src *fakeSource, sender conversation.ChatSender) model {
	t.Helper()
	ctrl := conversation.NewController(sender)
	t.Cleanup(ctrl.Close)
	return newModel(t.Context(), src, ctrl, "")
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	require.True(t, ok)
	return nm, cmd
}

func key(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

// loaded returns a model whose customer list has been fetched.
func loaded(t *testing.T, sender conversation.ChatSender) model {
	t.Helper()
	src := &fakeSource{results: []customersLoadedMsg{{customers: testCustomers}}}
	m := newTestModel(t, src, sender)
	m, _ = update(t, m, loadCustomers(t.Context(), src)())
	return m
}

// submit types text into the input and presses enter, returning the
// exchange command when the turn was accepted.
func submit(t *testing.T, m model, text string) (model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	return update(t, m, key("enter"))
}

// settled runs the exchange carried by cmd and returns its message.
func settled(t *testing.T, cmd tea.Cmd) turnSettledMsg {
	t.Helper()
	require.NotNil(t, cmd)
	for _, msg := range collect(cmd) {
		if out, ok := msg.(turnSettledMsg); ok {
			return out
		}
	}
	t.Fatal("command produced no turnSettledMsg")
	return turnSettledMsg{}
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestModel_InitLoadsCustomers(t *testing.T) {
	src := &fakeSource{results: []customersLoadedMsg{{customers: testCustomers}}}
	m := newTestModel(t, src, echoSender())
	assert.Contains(t, m.View(), "Loading customers...")

	var got *customersLoadedMsg
	for _, msg := range collect(m.Init()) {
		if lm, ok := msg.(customersLoadedMsg); ok {
			got = &lm
		}
	}
	require.NotNil(t, got)

	m, _ = update(t, m, *got)
	view := m.View()
	assert.Contains(t, view, "Ada")
	assert.Contains(t, view, "NEW")
	assert.Contains(t, view, "555-0100")
	assert.Contains(t, view, "Select a customer from the list to start chatting.")
}

func TestModel_LoadFailureOffersRetry(t *testing.T) {
	src := &fakeSource{results: []customersLoadedMsg{
		{err: errors.New("connection refused")},
		{customers: testCustomers},
	}}
	m := newTestModel(t, src, echoSender())

	m, _ = update(t, m, loadCustomers(t.Context(), src)())
	view := m.View()
	assert.Contains(t, view, "Failed to load customers")
	assert.Contains(t, view, "Press r to retry")

	m, cmd := update(t, m, key("r"))
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Loading customers...")

	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "Grace")
	assert.Equal(t, 2, src.calls)

	_, cmd = update(t, m, key("r"))
	assert.Nil(t, cmd, "no retry once loaded")
}

func TestModel_SelectAndChat(t *testing.T) {
	m := loaded(t, echoSender())

	m, _ = update(t, m, key("down"))
	m, _ = update(t, m, key("enter"))
	assert.Equal(t, focusInput, m.focus)
	require.NotNil(t, m.ctrl.Transcript().Customer)
	assert.Equal(t, int64(2), m.ctrl.Transcript().Customer.ID)

	m, cmd := submit(t, m, "refill please")
	assert.Empty(t, m.input.Value(), "input cleared on send")
	assert.True(t, m.ctrl.Transcript().Pending)
	assert.Contains(t, m.View(), "Waiting for reply...")
	assert.Contains(t, m.View(), "refill please")

	m, _ = update(t, m, settled(t, cmd))

	snap := m.ctrl.Transcript()
	require.Len(t, snap.Messages, 2)
	assert.False(t, snap.Pending)
	view := m.View()
	assert.Contains(t, view, "reply to 2: refill please")
	assert.Contains(t, view, "order #42")
}

func TestModel_RejectsBlankAndPendingSubmissions(t *testing.T) {
	m := loaded(t, echoSender())
	m, _ = update(t, m, key("enter"))

	m, cmd := submit(t, m, "   ")
	assert.Nil(t, cmd)
	assert.Empty(t, m.ctrl.Transcript().Messages)

	m, cmd = submit(t, m, "first")
	require.NotNil(t, cmd)

	m, second := submit(t, m, "second")
	assert.Nil(t, second, "a second turn cannot start while one is pending")
	assert.Equal(t, "second", m.input.Value(), "rejected text stays in the input")
	assert.Len(t, m.ctrl.Transcript().Messages, 1)
}

func TestModel_SubmitWithoutSelectionIsRejected(t *testing.T) {
	m := loaded(t, echoSender())
	m, _ = update(t, m, key("tab"))
	require.Equal(t, focusInput, m.focus)

	_, cmd := submit(t, m, "hello")
	assert.Nil(t, cmd)
}

func TestModel_StaleReplyAfterSwitchIsDropped(t *testing.T) {
	m := loaded(t, echoSender())
	m, _ = update(t, m, key("enter"))

	m, cmd := submit(t, m, "for ada")
	out := settled(t, cmd)

	// Switch to Grace before Ada's reply arrives.
	m, _ = update(t, m, key("esc"))
	m, _ = update(t, m, key("down"))
	m, _ = update(t, m, key("enter"))
	assert.Equal(t, int64(2), m.ctrl.Transcript().Customer.ID)

	m, _ = update(t, m, out)
	snap := m.ctrl.Transcript()
	assert.Empty(t, snap.Messages)
	assert.False(t, snap.Pending)
	assert.NotContains(t, m.View(), "reply to 1")
}

func TestModel_TransportErrorShownInline(t *testing.T) {
	failing := senderFunc(func(context.Context, int64, string) (*pharmacy.ChatReply, error) {
		return nil, &gateway.APIError{StatusCode: 503, Detail: "agent offline"}
	})
	m := loaded(t, failing)
	m, _ = update(t, m, key("enter"))

	m, cmd := submit(t, m, "hello")
	m, _ = update(t, m, settled(t, cmd))

	snap := m.ctrl.Transcript()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, conversation.RoleTransportError, snap.Messages[1].Role)
	assert.Contains(t, m.View(), "Error: agent offline")
}

func TestModel_SessionExpiredScreen(t *testing.T) {
	m := loaded(t, echoSender())

	m, _ = update(t, m, sessionExpiredMsg{event: gateway.ExpiredEvent{Method: "GET", Path: gateway.PathCustomers}})
	view := m.View()
	assert.Contains(t, view, "Session expired")
	assert.Contains(t, view, "pharma-admin login")

	_, cmd := update(t, m, key("x"))
	assert.Nil(t, cmd, "other keys are ignored")

	_, cmd = update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_ResizeSizesPanes(t *testing.T) {
	m := loaded(t, echoSender())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120-sidebarWidth-6, m.viewport.Width)
	assert.Equal(t, 32, m.viewport.Height)
	assert.Equal(t, 40, m.sidebar.height)
	assert.Nil(t, m.markdown, "markdown disabled without a style")
}

func TestModel_MarkdownRendering(t *testing.T) {
	ctrl := conversation.NewController(echoSender())
	t.Cleanup(ctrl.Close)
	src := &fakeSource{results: []customersLoadedMsg{{customers: testCustomers}}}
	m := newModel(t.Context(), src, ctrl, "notty")

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	require.NotNil(t, m.markdown)
	assert.Contains(t, m.renderReply("**Paracetamol** is in stock"), "Paracetamol")
}

func TestSidebar_CursorStaysInRange(t *testing.T) {
	s := newSidebarModel().Update(customersLoadedMsg{customers: testCustomers})

	s = s.Update(key("up"))
	assert.Equal(t, 0, s.cursor)

	s = s.Update(key("down"))
	s = s.Update(key("down"))
	assert.Equal(t, 1, s.cursor)

	s = s.Update(customersLoadedMsg{customers: testCustomers[:1]})
	assert.Equal(t, 0, s.cursor)

	_, ok := newSidebarModel().current()
	assert.False(t, ok)
}

func TestSidebar_WindowFollowsCursor(t *testing.T) {
	var customers []pharmacy.Customer
	for i := range 10 {
		customers = append(customers, pharmacy.Customer{ID: int64(i + 1), Name: fmt.Sprintf("C%d", i+1)})
	}
	s := newSidebarModel().Update(customersLoadedMsg{customers: customers})
	s.height = 10 // room for three customers

	assert.Len(t, s.visible(), 3)
	for range 5 {
		s = s.Update(key("down"))
	}
	visible := s.visible()
	require.Len(t, visible, 3)
	assert.Equal(t, int64(6), visible[2].ID)
}
