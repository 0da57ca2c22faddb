package zumo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Login endpoint paths, relative to the service URL.
const (
	loginPath     = "login"
	loginDonePath = "login/done"
	loginModeKey  = "authenticationToken"
)

// Login mode labels for metrics.
const (
	modeToken    = "token"
	modeProvider = "provider"
	modeBrowser  = "browser"
)

// loginResponse mirrors the JSON returned by the login endpoints and
// carried in the browser completion fragment.
type loginResponse struct {
	AuthenticationToken string `json:"authenticationToken"`
	User                *struct {
		UserID string `json:"userId"`
	} `json:"user"`
}

// parseLoginResponse extracts the session token and user from a login
// response body. A body lacking either is ErrInvalidLoginResponse.
func parseLoginResponse(data []byte) (string, *User, error) {
	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidLoginResponse, err)
	}

	if lr.AuthenticationToken == "" || lr.User == nil || lr.User.UserID == "" {
		return "", nil, ErrInvalidLoginResponse
	}

	return lr.AuthenticationToken, &User{UserID: lr.User.UserID}, nil
}

// AuthToken returns the current session token, or "" when logged out.
func (c *Client) AuthToken() string {
	return c.session.AuthToken()
}

// CurrentUser returns the logged-in user, or nil.
func (c *Client) CurrentUser() *User {
	return c.session.CurrentUser()
}

// State reports the login state.
func (c *Client) State() State {
	return c.session.State()
}

// LoginInProgress reports whether a browser login is outstanding.
func (c *Client) LoginInProgress() bool {
	return c.session.LoginInProgress()
}

// LoginWithToken exchanges an authentication token obtained out of band
// for a Mobile Services session. An empty token is rejected before any
// request is made. On failure the existing session is left untouched.
func (c *Client) LoginWithToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	c.logger.Info("starting token exchange login")

	path := loginPath + "?mode=" + loginModeKey
	user, err := c.login(ctx, path, map[string]string{loginModeKey: token})
	c.metrics.observeLogin(modeToken, err)

	return user, err
}

// LoginWithProvider logs in with a token object issued by provider, e.g.
// {"access_token": "..."} for Microsoft Account or Google.
func (c *Client) LoginWithProvider(ctx context.Context, provider Provider, providerToken map[string]any) (*User, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProvider, int(provider))
	}

	if len(providerToken) == 0 {
		return nil, ErrEmptyToken
	}

	c.logger.Info("starting provider token login", slog.String("provider", provider.String()))

	user, err := c.login(ctx, loginPath+"/"+provider.String(), providerToken)
	c.metrics.observeLogin(modeProvider, err)

	return user, err
}

func (c *Client) login(ctx context.Context, path string, payload any) (*User, error) {
	data, err := c.Post(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	token, user, err := parseLoginResponse(data)
	if err != nil {
		return nil, err
	}

	c.session.set(token, user)

	c.logger.Info("login successful", slog.String("user_id", user.UserID))

	return user, nil
}

// RestoreSession installs a previously obtained session, e.g. one loaded
// from disk. An empty token logs out.
func (c *Client) RestoreSession(token, userID string) {
	if token == "" {
		c.session.clear()
		return
	}

	c.session.set(token, &User{UserID: userID})
}

// Logout forgets the session token and user. It is safe to call at any time.
func (c *Client) Logout() {
	c.session.clear()
	c.logger.Debug("session cleared")
}
