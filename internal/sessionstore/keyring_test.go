package sessionstore

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringStore_RoundTrip(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	store := NewKeyringStore(ring)

	rec, err := store.Load("default")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Save("default", testRecord()))

	item, err := ring.Get("session:default")
	require.NoError(t, err)
	assert.Contains(t, string(item.Data), `"authentication_token": "session-token"`)

	rec, err = store.Load("default")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Google:1", rec.UserID)

	require.NoError(t, store.Delete("default"))
	require.NoError(t, store.Delete("default"))

	rec, err = store.Load("default")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestKeyringStore_Corrupt(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "session:default", Data: []byte("garbage")}})

	_, err := NewKeyringStore(ring).Load("default")
	assert.Error(t, err)
}

func TestStoresImplementStore(t *testing.T) {
	var _ Store = NewFileStore(t.TempDir())
	var _ Store = NewKeyringStore(keyring.NewArrayKeyring(nil))
}

func TestNativeBackends_NeverFile(t *testing.T) {
	for _, goos := range []string{"darwin", "windows", "linux", "freebsd", "plan9", "js"} {
		for _, b := range nativeBackends(goos) {
			assert.NotEqual(t, keyring.FileBackend, b, goos)
		}
	}

	assert.NotEmpty(t, nativeBackends("linux"))
	assert.Empty(t, nativeBackends("plan9"))
}

func TestOpenKeyring_NoBackends(t *testing.T) {
	_, err := openKeyring(nil)
	require.ErrorIs(t, err, ErrNoNativeKeyring)

	_, err = openKeyring([]keyring.BackendType{})
	require.ErrorIs(t, err, ErrNoNativeKeyring)
}

func TestOpenKeyring_UnknownBackendFails(t *testing.T) {
	_, err := openKeyring([]keyring.BackendType{keyring.BackendType("no-such-backend")})
	require.Error(t, err)
	assert.ErrorIs(t, err, keyring.ErrNoAvailImpl)
}
