package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/zumo-go/internal/config"
	"github.com/tonimelisma/zumo-go/internal/sessionstore"
	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

func testProfile(serviceURL string) *config.ResolvedProfile {
	return &config.ResolvedProfile{
		Name:         "default",
		ServiceURL:   serviceURL,
		SessionStore: config.SessionStoreFile,
		Network:      config.NetworkConfig{Timeout: "30s"},
	}
}

func TestNewCLISession_RequiresServiceURL(t *testing.T) {
	newTestEnv(t)

	_, err := NewCLISession(testProfile(""), nil, discardLogger())
	require.ErrorIs(t, err, config.ErrNoServiceURL)
}

func TestCLISession_SaveAndRestore(t *testing.T) {
	dir := newTestEnv(t)

	sess, err := NewCLISession(testProfile("https://todo.azure-mobile.net/"), nil, discardLogger())
	require.NoError(t, err)
	assert.ErrorIs(t, sess.RequireLogin(), errNotLoggedIn)
	assert.ErrorIs(t, sess.Save(""), errNotLoggedIn)

	sess.Client.RestoreSession("T", "U")
	require.NoError(t, sess.Save("google"))

	info, err := os.Stat(filepath.Join(config.SessionDir(dir), "default.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := NewCLISession(testProfile("https://todo.azure-mobile.net"), nil, discardLogger())
	require.NoError(t, err)
	require.NoError(t, again.RequireLogin())
	assert.Equal(t, "T", again.Client.AuthToken())
	assert.Equal(t, "U", again.Client.CurrentUser().UserID)

	require.NoError(t, again.Forget())
	assert.Equal(t, zumo.StateLoggedOut, again.Client.State())
	assert.Nil(t, loadSession(t, dir))
}

func TestCLISession_Apply(t *testing.T) {
	newTestEnv(t)

	sess, err := NewCLISession(testProfile("https://todo.azure-mobile.net"), nil, discardLogger())
	require.NoError(t, err)

	sess.Apply(&sessionstore.Record{ServiceURL: "https://todo.azure-mobile.net", AuthenticationToken: "T1", UserID: "U1"})
	assert.Equal(t, "T1", sess.Client.AuthToken())

	sess.Apply(&sessionstore.Record{ServiceURL: "https://elsewhere.azure-mobile.net", AuthenticationToken: "T2", UserID: "U2"})
	assert.Equal(t, zumo.StateLoggedOut, sess.Client.State())

	sess.Apply(&sessionstore.Record{ServiceURL: "https://todo.azure-mobile.net", AuthenticationToken: "T3", UserID: "U3"})
	sess.Apply(nil)
	assert.Empty(t, sess.Client.AuthToken())
}

func TestCLISession_Headers(t *testing.T) {
	dir := newTestEnv(t)

	var (
		mu      sync.Mutex
		ua, iid string
	)

	srv := newMobileService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ua = r.Header.Get("User-Agent")
		iid = r.Header.Get(zumo.HeaderInstallationID)
		mu.Unlock()

		_, _ = w.Write([]byte(`[]`))
	}))

	rp := testProfile(srv.URL)

	sess, err := NewCLISession(rp, nil, discardLogger())
	require.NoError(t, err)

	_, err = sess.Client.Table("t").GetAll(context.Background())
	require.NoError(t, err)

	stored, err := config.InstallationID(dir)
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, "zumo-go/"+version, ua)
	assert.Equal(t, stored, iid)
	mu.Unlock()

	rp.Network.UserAgent = "todo-cli/2"
	assert.Equal(t, "todo-cli/2", userAgent(rp))
}

func TestOpenStore_File(t *testing.T) {
	dir := newTestEnv(t)

	store := openStore(testProfile("https://x.azure-mobile.net"), discardLogger())
	fs, ok := store.(*sessionstore.FileStore)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(fs.Path("default"), dir))
}

func TestOpenStore_KeyringUnavailableFallsBackToFile(t *testing.T) {
	dir := newTestEnv(t)

	old := openKeyringStore
	openKeyringStore = func() (*sessionstore.KeyringStore, error) {
		return nil, sessionstore.ErrNoNativeKeyring
	}
	t.Cleanup(func() { openKeyringStore = old })

	rp := testProfile("https://todo.azure-mobile.net")
	rp.SessionStore = config.SessionStoreKeyring

	sess, err := NewCLISession(rp, nil, discardLogger())
	require.NoError(t, err)

	fs, ok := sess.Store.(*sessionstore.FileStore)
	require.True(t, ok, "expected a file store, got %T", sess.Store)

	require.NoError(t, fs.Save("default", &sessionstore.Record{
		ServiceURL:          "https://todo.azure-mobile.net",
		AuthenticationToken: "session-T",
		UserID:              "Facebook:1",
	}))

	_, err = os.Stat(filepath.Join(config.SessionDir(dir), "default.json"))
	assert.NoError(t, err)
}

func TestOpenStore_Keyring(t *testing.T) {
	newTestEnv(t)

	ks := sessionstore.NewKeyringStore(keyring.NewArrayKeyring(nil))

	old := openKeyringStore
	openKeyringStore = func() (*sessionstore.KeyringStore, error) { return ks, nil }
	t.Cleanup(func() { openKeyringStore = old })

	rp := testProfile("https://todo.azure-mobile.net")
	rp.SessionStore = config.SessionStoreKeyring

	assert.Same(t, ks, openStore(rp, discardLogger()))
}
