package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/zumo-go/internal/sessionstore"
	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// testSessionToken returns a JWT shaped like a Mobile Services session
// token, expiring at exp.
func testSessionToken(t *testing.T, exp time.Time) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &zumo.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
		UID:              "Facebook:1",
	}).SignedString([]byte("service-master-key"))
	require.NoError(t, err)

	return tok
}

func loginResponseJSON(token, userID string) string {
	return fmt.Sprintf(`{"authenticationToken":%q,"user":{"userId":%q}}`, token, userID)
}

func TestLogin_Token_SavesSession(t *testing.T) {
	dir := newTestEnv(t)

	var (
		mu   sync.Mutex
		body map[string]string
		key  string
	)

	srv := newMobileService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" || r.URL.RawQuery != "mode=authenticationToken" {
			http.NotFound(w, r)
			return
		}

		mu.Lock()
		key = r.Header.Get("X-ZUMO-APPLICATION")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Unlock()

		_, _ = w.Write([]byte(loginResponseJSON("session-T", "Facebook:1")))
	}))

	_, err := runCLI(t, nil, "--service-url", srv.URL, "--app-key", "app-key", "login", "--token", "provider-token")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, map[string]string{"authenticationToken": "provider-token"}, body)
	assert.Equal(t, "app-key", key)
	mu.Unlock()

	rec := loadSession(t, dir)
	require.NotNil(t, rec)
	assert.Equal(t, srv.URL, rec.ServiceURL)
	assert.Equal(t, "session-T", rec.AuthenticationToken)
	assert.Equal(t, "Facebook:1", rec.UserID)
	assert.Empty(t, rec.Provider)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestLogin_TokenRejected(t *testing.T) {
	dir := newTestEnv(t)

	srv := newMobileService(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))

	_, err := runCLI(t, nil, "--service-url", srv.URL, "login", "--token", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, zumo.ErrUnauthorized)
	assert.Contains(t, err.Error(), "login failed")
	assert.Nil(t, loadSession(t, dir))
}

func TestLogin_FlagValidation(t *testing.T) {
	newTestEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no mode", []string{"login"}, "specify --token"},
		{"provider without flow", []string{"login", "--provider", "google"}, "--provider needs"},
		{"unknown provider", []string{"login", "--provider", "myspace", "--device"}, "unknown authentication provider"},
		{"token and provider", []string{"login", "--token", "t", "--provider", "google"}, "none of the others can be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--service-url", "https://todo.azure-mobile.net"}, tt.args...)

			_, err := runCLI(t, nil, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLogin_Device(t *testing.T) {
	dir := newTestEnv(t)

	oauthMux := http.NewServeMux()
	oauthMux.HandleFunc("POST /devicecode", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"device_code":"dc","user_code":"ABCD-1234",` +
			`"verification_uri":"https://example.com/device","expires_in":900,"interval":1}`))
	})
	oauthMux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"google-access","id_token":"google-id","token_type":"Bearer","expires_in":3600}`))
	})

	oauthSrv := httptest.NewServer(oauthMux)
	t.Cleanup(oauthSrv.Close)

	old := oauthConfig
	oauthConfig = func(provider zumo.Provider, clientID, clientSecret string) (*oauth2.Config, error) {
		assert.Equal(t, zumo.ProviderGoogle, provider)
		assert.Equal(t, "g-client", clientID)

		return &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: oauthSrv.URL + "/devicecode",
				TokenURL:      oauthSrv.URL + "/token",
			},
		}, nil
	}

	t.Cleanup(func() { oauthConfig = old })

	var (
		mu      sync.Mutex
		payload map[string]string
	)

	srv := newMobileService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/google" {
			http.NotFound(w, r)
			return
		}

		mu.Lock()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Unlock()

		_, _ = w.Write([]byte(loginResponseJSON("session-G", "Google:7")))
	}))

	cfgPath := writeConfig(t, fmt.Sprintf(`
[profile.default]
service_url = %q
google_client_id = "g-client"
`, srv.URL))

	_, err := runCLI(t, nil, "--config", cfgPath, "login", "--provider", "google", "--device")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, map[string]string{"access_token": "google-access", "id_token": "google-id"}, payload)
	mu.Unlock()

	rec := loadSession(t, dir)
	require.NotNil(t, rec)
	assert.Equal(t, "session-G", rec.AuthenticationToken)
	assert.Equal(t, "Google:7", rec.UserID)
	assert.Equal(t, "google", rec.Provider)
}

// newBrowserLoginService emulates a service whose provider signs the user
// in without interaction: /login/google -> /provider -> /login/done#token=...
func newBrowserLoginService(t *testing.T, interactive bool) *httptest.Server {
	t.Helper()

	fragment := "token=" + url.QueryEscape(loginResponseJSON("session-B", "Google:9"))

	mux := http.NewServeMux()
	mux.HandleFunc("/login/google", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/provider")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/provider", func(w http.ResponseWriter, _ *http.Request) {
		if interactive {
			_, _ = w.Write([]byte("<html><form>password</form></html>"))
			return
		}

		w.Header().Set("Location", "/login/done#"+fragment)
		w.WriteHeader(http.StatusFound)
	})

	return newMobileService(t, mux)
}

func TestLogin_BrowserHeadless(t *testing.T) {
	dir := newTestEnv(t)
	srv := newBrowserLoginService(t, false)

	_, err := runCLI(t, nil, "--service-url", srv.URL, "login", "--provider", "google", "--browser")
	require.NoError(t, err)

	rec := loadSession(t, dir)
	require.NotNil(t, rec)
	assert.Equal(t, "session-B", rec.AuthenticationToken)
	assert.Equal(t, "Google:9", rec.UserID)
	assert.Equal(t, "google", rec.Provider)
}

func TestLogin_BrowserHeadless_InteractivePage(t *testing.T) {
	dir := newTestEnv(t)
	srv := newBrowserLoginService(t, true)

	_, err := runCLI(t, nil, "--service-url", srv.URL, "login", "--provider", "google", "--browser")
	require.ErrorIs(t, err, errInteractiveLogin)
	assert.Nil(t, loadSession(t, dir))
}

func TestLogin_BrowserDevToolsUnreachable(t *testing.T) {
	newTestEnv(t)

	_, err := runCLI(t, nil, "--service-url", "https://todo.azure-mobile.net",
		"login", "--provider", "google", "--devtools", "ws://127.0.0.1:1/devtools/page/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")
}

func TestWhoami_JSON(t *testing.T) {
	dir := newTestEnv(t)

	exp := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	seedSession(t, dir, "https://todo.azure-mobile.net", testSessionToken(t, exp))

	out, err := runCLI(t, nil, "--service-url", "https://todo.azure-mobile.net/", "--json", "whoami")
	require.NoError(t, err)

	var got whoamiOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "default", got.Profile)
	assert.Equal(t, "Facebook:1", got.UserID)
	assert.Equal(t, "facebook", got.Provider)
	assert.Equal(t, "https://todo.azure-mobile.net", got.ServiceURL)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, exp.Equal(*got.ExpiresAt))
	assert.False(t, got.Expired)
}

func TestWhoami_TextExpired(t *testing.T) {
	dir := newTestEnv(t)
	seedSession(t, dir, "https://todo.azure-mobile.net", testSessionToken(t, time.Now().Add(-time.Hour)))

	out, err := runCLI(t, nil, "--service-url", "https://todo.azure-mobile.net", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "User:      Facebook:1")
	assert.Contains(t, out, "(expired)")
}

func TestWhoami_OpaqueToken(t *testing.T) {
	dir := newTestEnv(t)
	seedSession(t, dir, "https://todo.azure-mobile.net", "opaque")

	out, err := runCLI(t, nil, "--service-url", "https://todo.azure-mobile.net", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Expires:   unknown")
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	newTestEnv(t)

	_, err := runCLI(t, nil, "--service-url", "https://todo.azure-mobile.net", "whoami")
	require.ErrorIs(t, err, errNotLoggedIn)
}

func TestWhoami_SessionForAnotherService(t *testing.T) {
	dir := newTestEnv(t)
	seedSession(t, dir, "https://other.azure-mobile.net", "T")

	_, err := runCLI(t, nil, "--service-url", "https://todo.azure-mobile.net", "whoami")
	require.ErrorIs(t, err, errNotLoggedIn)
}

func TestLogout_RemovesSession(t *testing.T) {
	dir := newTestEnv(t)
	seedSession(t, dir, "https://todo.azure-mobile.net", "T")

	_, err := runCLI(t, nil, "--service-url", "https://todo.azure-mobile.net", "logout")
	require.NoError(t, err)
	assert.Nil(t, loadSession(t, dir))

	// Idempotent.
	_, err = runCLI(t, nil, "--service-url", "https://todo.azure-mobile.net", "logout")
	require.NoError(t, err)
}

func TestLogin_ProfileNameCannotEscapeSessionDir(t *testing.T) {
	dir := newTestEnv(t)

	_, err := runCLI(t, nil, "--profile", "../../escape", "--service-url", "https://todo.azure-mobile.net",
		"login", "--token", "provider-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, sessionstore.ErrInvalidProfile)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "escape.json"))
	assert.True(t, os.IsNotExist(statErr))
}
