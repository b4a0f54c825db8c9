package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/aehx/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthStatus reports whether the backend has accounts and whether the saved session is valid.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	status, err := r.api().Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Session")
	r.writePlain("Server:        %s\n", r.client.BaseURL())
	r.writePlain("Has users:     %t\n", status.HasUsers)
	r.writePlain("Authenticated: %t\n", status.Authenticated)
	if status.User != nil {
		r.writePlain("User:          %s (%s)\n", status.User.Username, status.User.UID)
	}
	if !status.HasUsers {
		r.writePlainln("No accounts yet; create one in the web UI first.")
	}
	return nil
}

// AuthLogin opens a session with username and password and saves it.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	username := cmd.StringArg("username")
	if username == "" {
		username = r.config.Auth.Username
	}
	password := cmd.String("password")

	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username (argument or auth.username in config)", shared.ErrMissingArgument)
	}
	if password == "" {
		return fmt.Errorf("%w: --password or AEHX_PASSWORD", shared.ErrMissingArgument)
	}

	r.logger.Info("logging in", "user", username, "server", r.client.BaseURL())

	result, err := r.api().Login(ctx, username, password)
	if err != nil {
		return err
	}

	if err := r.saveAuth(username); err != nil {
		return err
	}

	r.writePlain("✓ Logged in as %s\n", username)
	if result.Session.ExpiresAt != "" {
		r.writePlain("  Session expires: %s\n", result.Session.ExpiresAt)
	}
	return nil
}

// AuthLogout ends the session on the server and forgets the saved one.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.api().Logout(ctx); err != nil {
		r.logger.Warn("server logout failed", "error", err)
	}

	if err := r.openDB(); err != nil {
		return err
	}
	if err := r.auth.Delete(r.client.BaseURL()); err != nil {
		return fmt.Errorf("failed to forget session: %w", err)
	}

	r.writePlain("✓ Logged out\n")
	return nil
}

// AuthMe prints the user of the current session.
func (r *Runner) AuthMe(ctx context.Context, cmd *cli.Command) error {
	user, err := r.api().Me(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, cmd.Bool("pretty"))
	}
	r.writePlain("%s (%s)", user.Username, user.UID)
	if user.Role != "" {
		r.writePlain(" [%s]", user.Role)
	}
	r.writePlain("\n")
	return nil
}

// AuthImport adopts a browser session captured as a cURL command.
//
// Accepts the command inline or from a file and saves the cookies and CSRF token.
func (r *Runner) AuthImport(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var session *shared.BrowserSession
	var err error

	if curlFile != "" {
		session, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		session, err = shared.ParseCurlCommand([]byte(curlCmd))
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	if origin := session.Origin(); origin != "" && !strings.HasPrefix(r.client.BaseURL(), origin) {
		r.logger.Warn("captured request targets a different server", "captured", origin, "configured", r.client.BaseURL())
	}

	client := r.api()
	if err := client.ImportSession(session); err != nil {
		return fmt.Errorf("failed to import session: %w", err)
	}

	username := ""
	if user, err := client.Me(ctx); err != nil {
		r.logger.Warn("imported session was not accepted", "error", err)
	} else {
		username = user.Username
	}

	if client.CSRFToken() == "" {
		if _, err := client.RefreshCSRF(ctx); err != nil {
			r.logger.Warn("could not fetch csrf token", "error", err)
		}
	}

	if err := r.saveAuth(username); err != nil {
		return err
	}

	r.writePlain("✓ Imported %d cookies", len(client.Cookies()))
	if username != "" {
		r.writePlain(" for %s", username)
	}
	r.writePlain("\n")
	return nil
}
