package sessionstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnSaveAndDelete(t *testing.T) {
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Save("default", testRecord()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Record, 16)
	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, store.Path("default"), func(rec *Record) { changes <- rec }, slog.Default())
	}()

	next := testRecord()
	next.AuthenticationToken = "rotated"

	// The watcher starts asynchronously; keep saving until it reports.
	var got *Record
	require.Eventually(t, func() bool {
		_ = store.Save("default", next)

		select {
		case got = <-changes:
			return got != nil && got.AuthenticationToken == "rotated"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, store.Delete("default"))

	assert.Eventually(t, func() bool {
		select {
		case rec := <-changes:
			return rec == nil
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_StartsBeforeFirstSave(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "sessions"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Record, 16)
	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, store.Path("default"), func(rec *Record) { changes <- rec }, slog.Default())
	}()

	require.Eventually(t, func() bool {
		_ = store.Save("default", testRecord())

		select {
		case rec := <-changes:
			return rec != nil && rec.AuthenticationToken == "session-token"
		case err := <-done:
			t.Errorf("Watch returned early: %v", err)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
}

func TestWatch_UncreatableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := Watch(context.Background(), filepath.Join(blocker, "sessions", "default.json"), func(*Record) {}, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessionstore: creating")
}
