// ABOUTME: Command-line admin console for the pharmacy backend
// ABOUTME: Lists records, shows dashboard stats, manages the session and chats on behalf of customers

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pharma-console/internal/config"
	"github.com/2389/pharma-console/internal/gateway"
	"github.com/2389/pharma-console/internal/logging"
	"github.com/2389/pharma-console/internal/session"
)

// tokenEnv overrides the stored session for a single invocation.
const tokenEnv = "PHARMA_TOKEN"

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	if closeErr := a.teardown(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		color.Red("Error: %v\n", err)
		if errors.Is(err, gateway.ErrSessionExpired) {
			color.Yellow("Run 'pharma-admin login' to start a new session.\n")
		}
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root has been set up.
type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	logger  *slog.Logger
	store   session.Store
	closer  io.Closer
	client  *gateway.Client
	out     io.Writer
	expired atomic.Bool
	// ephemeral is set when the session came from tokenEnv and is not persisted.
	ephemeral bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "pharma-admin",
		Short:         "Administer the pharmacy backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.OutOrStdout())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file (default: $PHARMA_CONFIG or ~/.config/pharma/console.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newHashPasswordCmd(),
		newHealthCmd(a),
		newCustomersCmd(a),
		newMedicinesCmd(a),
		newOrdersCmd(a),
		newTracesCmd(a),
		newRefillAlertsCmd(a),
		newStatsCmd(a),
		newRequestCmd(a),
		newChatCmd(a),
	)
	return root
}

func (a *app) setup(out io.Writer) error {
	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.out = out
	a.logger = logging.Setup(cfg.Logging, os.Stderr)

	if token := os.Getenv(tokenEnv); token != "" {
		a.store = session.NewMemoryStore(token)
		a.ephemeral = true
	} else {
		store, closer, err := session.Open(cfg.Session)
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
		a.store = store
		a.closer = closer
	}

	a.client = gateway.NewFromConfig(cfg.API, a.store,
		gateway.WithLogger(a.logger),
		gateway.WithExpiryHandler(a.onExpired),
	)
	return nil
}

// teardown releases the session store.
func (a *app) teardown() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// onExpired runs once per rejected credential. The failing command still
// returns its own error; this only tells the operator where to go next.
func (a *app) onExpired(ev gateway.ExpiredEvent) {
	a.expired.Store(true)
	a.logger.Info("session expired", "method", ev.Method, "path", ev.Path)
	color.New(color.FgYellow).Fprintf(os.Stderr, "Session expired (%s %s). Signed out.\n", ev.Method, ev.Path)
}
