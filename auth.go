package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/zumo-go/internal/browser"
	"github.com/tonimelisma/zumo-go/internal/oauth"
	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// Login flags, bound in newLoginCmd().
var (
	flagLoginToken    string
	flagLoginProvider string
	flagLoginDevice   bool
	flagLoginBrowser  bool
	flagLoginDevTools string
)

// oauthConfig builds provider OAuth settings. Tests point it at a mock server.
var oauthConfig = oauth.Config

// errInteractiveLogin stops a headless login that reached a page needing
// a person to fill it in.
var errInteractiveLogin = errors.New(
	"the provider asked for interactive sign-in; use --devtools with a browser, or --device")

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the Mobile Service",
		Long: `Log in to the Mobile Service and save the session for later commands.

  --token T                       exchange an existing authentication token
  --provider P --device           sign in with the provider's device code flow
  --provider P --browser          follow the provider's login redirects headlessly
  --provider P --devtools ws://…  drive a Chrome tab over the DevTools protocol`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().StringVar(&flagLoginToken, "token", "", "authentication token to exchange")
	cmd.Flags().StringVar(&flagLoginProvider, "provider", "", "identity provider (microsoftaccount, google, twitter, facebook)")
	cmd.Flags().BoolVar(&flagLoginDevice, "device", false, "use the OAuth2 device code flow")
	cmd.Flags().BoolVar(&flagLoginBrowser, "browser", false, "use a browser login")
	cmd.Flags().StringVar(&flagLoginDevTools, "devtools", "", "DevTools websocket URL of a Chrome tab (implies --browser)")
	cmd.MarkFlagsMutuallyExclusive("token", "provider")
	cmd.MarkFlagsMutuallyExclusive("device", "browser")
	cmd.MarkFlagsMutuallyExclusive("device", "devtools")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the logged-in user and session expiry",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx, stop := shutdownContext(cmd.Context(), logger)
	defer stop()

	sess, err := NewCLISession(resolvedCfg, nil, logger)
	if err != nil {
		return err
	}

	logger.Info("login started", slog.String("profile", sess.Profile.Name))

	var (
		user     *zumo.User
		provider zumo.Provider
	)

	switch {
	case flagLoginToken != "":
		user, err = sess.Client.LoginWithToken(ctx, flagLoginToken)
	case flagLoginProvider != "":
		provider, err = zumo.ParseProvider(flagLoginProvider)
		if err != nil {
			return err
		}

		switch {
		case flagLoginDevice:
			user, err = loginWithDevice(ctx, sess, provider)
		case flagLoginBrowser || flagLoginDevTools != "":
			user, err = loginWithBrowser(ctx, sess, provider)
		default:
			return fmt.Errorf("--provider needs --device, --browser, or --devtools")
		}
	default:
		return fmt.Errorf("specify --token, or --provider with --device, --browser, or --devtools")
	}

	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	providerName := ""
	if provider.Valid() {
		providerName = provider.String()
	}

	if err := sess.Save(providerName); err != nil {
		return err
	}

	logger.Info("login successful",
		slog.String("profile", sess.Profile.Name),
		slog.String("user_id", user.UserID),
	)
	statusf("Logged in as %s.\n", user.UserID)

	return nil
}

// loginWithDevice obtains a provider token with the device code flow and
// exchanges it at login/{provider}.
func loginWithDevice(ctx context.Context, sess *CLISession, provider zumo.Provider) (*zumo.User, error) {
	var clientID, clientSecret string

	switch provider {
	case zumo.ProviderMicrosoftAccount:
		clientID = sess.Profile.MicrosoftClientID
	case zumo.ProviderGoogle:
		clientID, clientSecret = sess.Profile.GoogleClientID, sess.Profile.GoogleClientSecret
	}

	cfg, err := oauthConfig(provider, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	tok, err := oauth.DeviceLogin(ctx, cfg, func(da oauth.DeviceAuth) {
		// Device code prompts must always be visible, even with --quiet.
		fmt.Fprintf(os.Stderr, "To sign in, visit: %s\n", da.VerificationURI)
		fmt.Fprintf(os.Stderr, "Enter code: %s\n", da.UserCode)
	}, sess.Logger)
	if err != nil {
		return nil, err
	}

	return sess.Client.LoginWithProvider(ctx, provider, oauth.ProviderPayload(tok))
}

// loginWithBrowser runs a browser login on a headless surface, or on a
// Chrome tab when --devtools is set, and waits for it to finish.
func loginWithBrowser(parent context.Context, sess *CLISession, provider zumo.Provider) (*zumo.User, error) {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	d := browser.NewDispatcher()
	defer d.Close()

	progress := newLoginProgress(!flagQuiet && stderrIsTerminal())
	defer progress.stop()

	var surface zumo.Surface

	if flagLoginDevTools != "" {
		tab, err := browser.DialDevTools(ctx, flagLoginDevTools, d, sess.Logger)
		if err != nil {
			return nil, err
		}
		defer tab.Close()

		tab.OnVisual = progress.show
		surface = tab
	} else {
		h := browser.NewHeadless(ctx, &http.Client{Timeout: sess.Profile.TimeoutDuration()}, d, sess.Logger)
		h.OnVisual = func(v zumo.Visual) {
			progress.show(v)

			if v == zumo.VisualVisible {
				cancel(errInteractiveLogin)
			}
		}
		h.OnError = func(err error) { cancel(err) }
		surface = h
	}

	future, err := sess.Client.LoginWithBrowser(ctx, provider, surface)
	if err != nil {
		return nil, err
	}

	// The future always resolves once ctx is done, so this cannot hang.
	user, err := future.Wait(context.Background())
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return nil, cause
		}

		return nil, err
	}

	return user, nil
}

// loginProgress shows a spinner while a browser login is loading. Visual
// changes arrive on the dispatcher goroutine; stop runs on the caller's.
type loginProgress struct {
	mu      sync.Mutex
	enabled bool
	spinner *pterm.SpinnerPrinter
}

func newLoginProgress(enabled bool) *loginProgress {
	return &loginProgress{enabled: enabled}
}

func (p *loginProgress) show(v zumo.Visual) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}

	switch v {
	case zumo.VisualLoading:
		if p.spinner == nil {
			p.spinner, _ = pterm.DefaultSpinner.
				WithWriter(os.Stderr).
				WithRemoveWhenDone(true).
				Start("Contacting the identity provider")
		}
	case zumo.VisualVisible:
		if p.spinner != nil {
			p.spinner.UpdateText("Waiting for sign-in to complete in the browser")
		}
	case zumo.VisualHidden:
		p.stopLocked()
	}
}

func (p *loginProgress) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
}

func (p *loginProgress) stopLocked() {
	if p.spinner != nil {
		_ = p.spinner.Stop()
		p.spinner = nil
	}
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	sess, err := NewCLISession(resolvedCfg, nil, logger)
	if err != nil {
		return err
	}

	if err := sess.Forget(); err != nil {
		return err
	}

	logger.Info("logout successful", slog.String("profile", sess.Profile.Name))
	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Profile    string     `json:"profile"`
	ServiceURL string     `json:"service_url"`
	UserID     string     `json:"user_id"`
	Provider   string     `json:"provider,omitempty"`
	LoggedInAt time.Time  `json:"logged_in_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Expired    bool       `json:"expired"`
}

// runWhoami reports the stored session without contacting the service.
func runWhoami(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	sess, err := NewCLISession(resolvedCfg, nil, logger)
	if err != nil {
		return err
	}

	rec, err := sess.Store.Load(sess.Profile.Name)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	if err := sess.RequireLogin(); err != nil || rec == nil {
		return errNotLoggedIn
	}

	out := whoamiOutput{
		Profile:    sess.Profile.Name,
		ServiceURL: rec.ServiceURL,
		UserID:     rec.UserID,
		Provider:   rec.Provider,
		LoggedInAt: rec.CreatedAt,
	}

	// Tokens that are not JWTs carry no expiry; that is not an error.
	if claims, err := zumo.ParseTokenClaims(rec.AuthenticationToken); err != nil {
		logger.Debug("session token has no readable claims", slog.String("error", err.Error()))
	} else if exp := claims.Expiry(); !exp.IsZero() {
		out.ExpiresAt = &exp
		out.Expired = claims.Expired(time.Now())
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	printWhoamiText(cmd, &out)

	return nil
}

func printWhoamiText(cmd *cobra.Command, out *whoamiOutput) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "User:      %s\n", out.UserID)
	fmt.Fprintf(w, "Profile:   %s\n", out.Profile)
	fmt.Fprintf(w, "Service:   %s\n", out.ServiceURL)

	if out.Provider != "" {
		fmt.Fprintf(w, "Provider:  %s\n", out.Provider)
	}

	fmt.Fprintf(w, "Logged in: %s\n", formatTime(out.LoggedInAt))

	switch {
	case out.ExpiresAt == nil:
		fmt.Fprintf(w, "Expires:   unknown\n")
	case out.Expired:
		fmt.Fprintf(w, "Expires:   %s (expired)\n", formatTime(*out.ExpiresAt))
	default:
		fmt.Fprintf(w, "Expires:   %s\n", formatTime(*out.ExpiresAt))
	}
}
