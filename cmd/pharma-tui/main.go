// ABOUTME: Terminal UI for chatting with the pharmacy agent on behalf of customers
// ABOUTME: Wires config, session store, gateway and conversation controller into a Bubble Tea program

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pharma-console/internal/config"
	"github.com/2389/pharma-console/internal/conversation"
	"github.com/2389/pharma-console/internal/gateway"
	"github.com/2389/pharma-console/internal/logging"
	"github.com/2389/pharma-console/internal/session"
)

func main() {
	var configPath string
	var plain bool

	root := &cobra.Command{
		Use:           "pharma-tui",
		Short:         "Chat with the pharmacy agent as a customer",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, plain)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default: $PHARMA_CONFIG or ~/.config/pharma/console.yaml)")
	root.Flags().BoolVar(&plain, "plain", false, "show agent replies as plain text instead of rendered markdown")

	if err := root.Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, plain bool) error {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logPath, err := logPath()
	if err != nil {
		return err
	}
	logFile, err := logging.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := logging.Setup(cfg.Logging, logFile)

	var store session.Store
	if token := os.Getenv("PHARMA_TOKEN"); token != "" {
		store = session.NewMemoryStore(token)
	} else {
		s, closer, err := session.Open(cfg.Session)
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
		defer closer.Close()
		store = s
	}

	token, err := store.Get()
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if token == "" {
		return fmt.Errorf("not logged in; run 'pharma-admin login' first")
	}

	client := gateway.NewFromConfig(cfg.API, store, gateway.WithLogger(logger))
	ctrl := conversation.NewController(client, conversation.WithLogger(logger))
	defer ctrl.Close()

	markdownStyle := "dark"
	if !lipgloss.HasDarkBackground() {
		markdownStyle = "light"
	}
	if plain {
		markdownStyle = ""
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(ctx, client, ctrl, markdownStyle), tea.WithAltScreen(), tea.WithContext(ctx))
	client.SetExpiryHandler(func(ev gateway.ExpiredEvent) {
		logger.Info("session expired", "method", ev.Method, "path", ev.Path)
		p.Send(sessionExpiredMsg{event: ev})
	})

	logger.Info("pharma-tui started", "base_url", client.BaseURL(), "log", logPath)
	_, err = p.Run()
	if err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// logPath returns $XDG_STATE_HOME/pharma/tui.log, defaulting to ~/.local/state.
func logPath() (string, error) {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "pharma", "tui.log"), nil
}
