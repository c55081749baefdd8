// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/auth"
)

// UserData is the JSON payload of login and whoami.
type UserData struct {
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	Role      string     `json:"role"`
	Admin     bool       `json:"admin"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	TokenPath string     `json:"token_path"`
}

func userData(u *api.User, tokens *auth.FileTokenStore) UserData {
	data := UserData{
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Admin:     u.IsAdmin(),
		TokenPath: tokens.Path(),
	}
	if exp, ok := auth.TokenExpiry(tokens.Token()); ok {
		data.ExpiresAt = &exp
	}
	return data
}

func renderUser(w io.Writer, d UserData) {
	fmt.Fprintln(w, RenderField("Email", d.Email))
	if d.Name != "" {
		fmt.Fprintln(w, RenderField("Name", d.Name))
	}
	fmt.Fprintln(w, RenderField("Role", d.Role))
	if d.ExpiresAt != nil {
		fmt.Fprintln(w, RenderField("Session expires", d.ExpiresAt.Local().Format("2006-01-02 15:04")))
	}
}

// =============================================================================
// LOGIN
// =============================================================================

func newLoginCmd(opts *options, e *env) *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an administrator",
		Long: `Login authenticates against the backend and stores the session token in
~/.ragdesk/admin_token. Document uploads, deletions, reindexing and the
metrics report need an admin session.`,
		Example: `  ragdesk login --email admin@example.com
  echo "$PASSWORD" | ragdesk login --email admin@example.com --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			errOut := cmd.ErrOrStderr()

			if email == "" {
				fmt.Fprint(errOut, PromptStyle.Render("Email: "))
				line, err := readLine(in)
				if err != nil {
					return fmt.Errorf("read email: %w", err)
				}
				email = line
			}
			password, err := readPassword(cmd, in, passwordStdin)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			user, err := e.authManager().Login(cmd.Context(), email, password)
			if err != nil {
				return &CommandError{Command: "login", Action: "authentication", Err: err}
			}

			data := userData(user, e.tokens)
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render("Logged in as "+user.Email))
				renderUser(w, data)
				if !data.Admin {
					fmt.Fprintln(w, WarningStyle.Render("This account is not an administrator; admin operations will be refused."))
				}
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

// readPassword reads from stdin when asked to or when stdin is not a
// terminal, and otherwise prompts without echo.
func readPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	if !fromStdin && cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), PromptStyle.Render("Password: "))
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine(in)
}

// readLine returns one trimmed line. A final line without newline counts.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// LOGOUT AND WHOAMI
// =============================================================================

func newLogoutCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored admin session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			had := e.tokens.Token() != ""
			if err := e.authManager().Logout(); err != nil {
				return &CommandError{Command: "logout", Action: "token removal", Err: err}
			}
			data := map[string]any{"logged_out": had}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				if had {
					fmt.Fprintln(w, SuccessStyle.Render("Logged out"))
				} else {
					fmt.Fprintln(w, DimStyle.Render("No active session"))
				}
			})
		},
	}
}

func newWhoamiCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Long:  "Whoami verifies the stored session with the backend and prints the account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			user, err := e.authManager().Verify(cmd.Context())
			if err != nil {
				return &CommandError{Command: "whoami", Action: "session check", Err: err}
			}
			data := userData(user, e.tokens)
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				renderUser(w, data)
			})
		},
	}
}
