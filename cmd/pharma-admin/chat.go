// ABOUTME: Chat command for pharma-admin: one-shot or interactive chat on behalf of a customer
// ABOUTME: Drives the conversation controller and prints each settled turn

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pharma-console/internal/conversation"
	"github.com/2389/pharma-console/internal/gateway"
	"github.com/2389/pharma-console/internal/pharmacy"
)

var errNotSent = errors.New("message not sent: it is blank or a reply is still pending")

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <customer-id> [message]",
		Short: "Talk to the pharmacy agent as a customer",
		Long: `Talk to the pharmacy agent as a customer.

With a message, sends it and prints the reply. Without one, starts an
interactive session; type /switch <id> to change customer and Ctrl+D to exit.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctrl := conversation.NewController(a.client, conversation.WithLogger(a.logger))
			defer ctrl.Close()
			updates := ctrl.Subscribe(ctx)

			if err := a.selectCustomer(ctx, ctrl, id); err != nil {
				return err
			}

			if len(args) >= 2 {
				return a.chatTurn(ctx, ctrl, updates, strings.Join(args[1:], " "))
			}
			return a.chatREPL(ctx, cmd.InOrStdin(), ctrl, updates)
		},
	}
}

// selectCustomer looks the customer up for display. A failed lookup still
// selects the bare id so the chat can proceed.
func (a *app) selectCustomer(ctx context.Context, ctrl *conversation.Controller, id int64) error {
	customer, err := a.client.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, gateway.ErrSessionExpired) {
			return err
		}
		a.logger.Debug("customer lookup failed", "customer_id", id, "error", err)
		customer = &pharmacy.Customer{ID: id}
	}
	ctrl.SelectCustomer(*customer)
	return nil
}

func (a *app) chatREPL(ctx context.Context, in io.Reader, ctrl *conversation.Controller, updates <-chan conversation.Transcript) error {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	if c := ctrl.Transcript().Customer; c != nil {
		cyan.Fprintf(a.out, "Chat as %s (#%d) (Ctrl+D to exit)\n\n", c.DisplayName(), c.ID)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024) // 1MB max input

	for {
		green.Fprint(a.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case strings.HasPrefix(line, "/switch"):
			id, err := parseID(strings.TrimSpace(strings.TrimPrefix(line, "/switch")))
			if err != nil {
				color.New(color.FgYellow).Fprintf(a.out, "  usage: /switch <customer-id>\n")
				continue
			}
			if err := a.selectCustomer(ctx, ctrl, id); err != nil {
				return err
			}
			if c := ctrl.Transcript().Customer; c != nil {
				cyan.Fprintf(a.out, "Now chatting as %s (#%d)\n\n", c.DisplayName(), c.ID)
			}
			continue
		}

		if err := a.chatTurn(ctx, ctrl, updates, line); err != nil {
			if errors.Is(err, errNotSent) {
				color.New(color.FgYellow).Fprintf(a.out, "  %v\n", err)
				continue
			}
			return err
		}
	}
}

// chatTurn submits text and prints the entries the turn added. It returns
// the session error when the backend rejected the credential.
func (a *app) chatTurn(ctx context.Context, ctrl *conversation.Controller, updates <-chan conversation.Transcript, text string) error {
	before := len(ctrl.Transcript().Messages)

	done, ok := ctrl.Submit(ctx, text)
	if !ok {
		return errNotSent
	}

	snap, err := awaitSettled(ctx, updates, before+2)
	if err != nil {
		return err
	}
	<-done

	for _, m := range snap.Messages[before:] {
		printMessage(a.out, m)
	}
	if a.expired.Load() {
		return gateway.ErrSessionExpired
	}
	return nil
}

// awaitSettled waits for an idle snapshot holding at least want entries.
// Earlier snapshots still buffered in updates are skipped.
func awaitSettled(ctx context.Context, updates <-chan conversation.Transcript, want int) (conversation.Transcript, error) {
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return conversation.Transcript{}, errors.New("conversation closed")
			}
			if !snap.Pending && len(snap.Messages) >= want {
				return snap, nil
			}
		case <-ctx.Done():
			return conversation.Transcript{}, ctx.Err()
		}
	}
}

func printMessage(w io.Writer, m conversation.Message) {
	switch m.Role {
	case conversation.RoleAgent:
		color.New(color.FgCyan).Fprint(w, "agent: ")
		fmt.Fprintln(w, m.Text)
		if m.Approved {
			note := "  approved"
			if m.OrderID != nil {
				note += fmt.Sprintf(", order #%d", *m.OrderID)
			}
			color.New(color.FgGreen).Fprintln(w, note)
		}
		fmt.Fprintln(w)
	case conversation.RoleTransportError:
		color.New(color.FgRed).Fprintln(w, m.Text)
		fmt.Fprintln(w)
	}
}
