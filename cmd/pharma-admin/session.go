// ABOUTME: Session commands for pharma-admin: login, logout, whoami and hash-password
// ABOUTME: Login issues a signed session token and stores it where the gateway will find it

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pharma-console/internal/auth"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as an operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				email = prompt(a.out, reader, "Email", "")
			}
			if password == "" {
				password = prompt(a.out, reader, "Password", "")
			}

			authn, err := auth.NewAuthenticator(a.cfg.Auth, a.logger)
			if err != nil {
				return err
			}
			token, err := authn.Login(email, password)
			if err != nil {
				return err
			}
			if err := a.store.Set(token); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}

			fmt.Fprintln(a.out)
			color.New(color.FgGreen).Fprintf(a.out, "  Logged in as %s\n", strings.ToLower(strings.TrimSpace(email)))
			if a.ephemeral {
				color.New(color.FgYellow).Fprintf(a.out, "  %s is set; this session is not saved\n", tokenEnv)
			}
			fmt.Fprintln(a.out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "operator email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "operator password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.store.Clear(); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
			color.New(color.FgGreen).Fprintln(a.out, "  Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			token, err := a.store.Get()
			if err != nil {
				return fmt.Errorf("reading session: %w", err)
			}
			if token == "" {
				return errors.New("not logged in")
			}
			renderSession(a.out, token, time.Now())
			return nil
		},
	}
}

// renderSession describes a stored token. Opaque tokens that are not JWTs
// are reported as such rather than rejected; the backend decides validity.
func renderSession(w io.Writer, token string, now time.Time) {
	header(w, "Session")
	claims, err := auth.Inspect(token)
	if err != nil {
		fmt.Fprintf(w, "  Opaque token (%s)\n\n", truncate(token, 12))
		return
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "  Operator:\t%s\n", orDash(claims.Subject))
	if !claims.IssuedAt.IsZero() {
		fmt.Fprintf(tw, "  Issued:\t%s\n", claims.IssuedAt.Local().Format(time.RFC3339))
	}
	if !claims.ExpiresAt.IsZero() {
		expires := claims.ExpiresAt.Local().Format(time.RFC3339)
		if claims.Expired(now) {
			expires = color.RedString(expires + " (expired)")
		}
		fmt.Fprintf(tw, "  Expires:\t%s\n", expires)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for auth.operators",
		Args:  cobra.MaximumNArgs(1),
		// Hashing needs neither config nor a session store.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				password = prompt(out, bufio.NewReader(cmd.InOrStdin()), "Password", "")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, hash)
			return nil
		},
	}
}

func prompt(w io.Writer, reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(w, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(w, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(w)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
