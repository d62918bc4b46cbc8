// ABOUTME: Customer list pane for pharma-tui
// ABOUTME: Tracks loading, error and cursor state for the customer sidebar

package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389/pharma-console/internal/gateway"
	"github.com/2389/pharma-console/internal/pharmacy"
)

const sidebarWidth = 30

// customerSource lists customers. *gateway.Client satisfies it.
type customerSource interface {
	ListCustomers(ctx context.Context) ([]pharmacy.Customer, error)
}

type customersLoadedMsg struct {
	customers []pharmacy.Customer
	err       error
}

func loadCustomers(ctx context.Context, src customerSource) tea.Cmd {
	return func() tea.Msg {
		customers, err := src.ListCustomers(ctx)
		return customersLoadedMsg{customers: customers, err: err}
	}
}

type sidebarModel struct {
	customers []pharmacy.Customer
	cursor    int
	loading   bool
	err       string
	height    int
}

func newSidebarModel() sidebarModel {
	return sidebarModel{loading: true}
}

func (s sidebarModel) Update(msg tea.Msg) sidebarModel {
	switch msg := msg.(type) {
	case customersLoadedMsg:
		s.loading = false
		if msg.err != nil {
			s.err = "Failed to load customers: " + gateway.ErrorMessage(msg.err)
			return s
		}
		s.err = ""
		s.customers = msg.customers
		if s.cursor >= len(s.customers) {
			s.cursor = max(len(s.customers)-1, 0)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.customers)-1 {
				s.cursor++
			}
		}
	}
	return s
}

// retry reports whether a reload should start and marks the list loading.
func (s *sidebarModel) retry() bool {
	if s.loading || s.err == "" {
		return false
	}
	s.loading = true
	s.err = ""
	return true
}

func (s sidebarModel) current() (pharmacy.Customer, bool) {
	if s.cursor < 0 || s.cursor >= len(s.customers) {
		return pharmacy.Customer{}, false
	}
	return s.customers[s.cursor], true
}

func (s sidebarModel) View(selectedID int64, focused bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Customers"))
	b.WriteString("\n\n")

	switch {
	case s.loading:
		b.WriteString(dimStyle.Render("Loading customers..."))
	case s.err != "":
		b.WriteString(errorStyle.Render(s.err))
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Press r to retry"))
	case len(s.customers) == 0:
		b.WriteString(dimStyle.Render("No customers"))
	default:
		for i, c := range s.visible() {
			idx := s.offset() + i
			marker := "  "
			if idx == s.cursor && focused {
				marker = "> "
			}
			name := truncate(c.DisplayName(), sidebarWidth-8)
			if c.ID == selectedID {
				name = selectedStyle.Render(name)
			}
			if c.IsNewUser {
				name += " " + badgeStyle.Render("NEW")
			}
			fmt.Fprintf(&b, "%s%s\n", marker, name)
			fmt.Fprintf(&b, "  %s\n", dimStyle.Render(truncate(c.Contact(), sidebarWidth-4)))
		}
	}

	style := paneStyle
	if focused {
		style = focusedPaneStyle
	}
	return style.Width(sidebarWidth).Height(max(s.height-2, 1)).Render(b.String())
}

// visible returns the window of customers that fits the pane, keeping the
// cursor in view. Each customer takes two lines.
func (s sidebarModel) visible() []pharmacy.Customer {
	start := s.offset()
	end := min(start+s.capacity(), len(s.customers))
	return s.customers[start:end]
}

func (s sidebarModel) capacity() int {
	if s.height <= 0 {
		return len(s.customers)
	}
	return max((s.height-4)/2, 1)
}

func (s sidebarModel) offset() int {
	capacity := s.capacity()
	if s.cursor < capacity {
		return 0
	}
	return s.cursor - capacity + 1
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
