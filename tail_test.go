package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// growingTable serves a table that gains one row per request.
type growingTable struct {
	mu    sync.Mutex
	calls int
}

func (g *growingTable) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	rows := make([]map[string]any, 0, n+1)
	for i := 0; i <= n; i++ {
		rows = append(rows, map[string]any{"id": i, "text": "row"})
	}

	_ = json.NewEncoder(w).Encode(rows)
}

// syncBuffer is a bytes.Buffer safe to read while the tailer writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestTable(t *testing.T, url string, opts ...zumo.Option) *zumo.Table {
	t.Helper()

	c, err := zumo.NewClient(url, "", append([]zumo.Option{zumo.WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)

	return c.Table("todoitem")
}

func decodeLines(t *testing.T, s string) []map[string]any {
	t.Helper()

	var rows []map[string]any

	dec := json.NewDecoder(strings.NewReader(s))
	for dec.More() {
		var row map[string]any
		require.NoError(t, dec.Decode(&row))
		rows = append(rows, row)
	}

	return rows
}

func TestTailer_PrintsOnlyNewRows(t *testing.T) {
	srv := newMobileService(t, &growingTable{})

	var out bytes.Buffer
	tl := newTailer(newTestTable(t, srv.URL), &out, true, discardLogger())

	require.NoError(t, tl.poll(context.Background()))
	assert.Len(t, decodeLines(t, out.String()), 2)

	out.Reset()
	require.NoError(t, tl.poll(context.Background()))

	rows := decodeLines(t, out.String())
	require.Len(t, rows, 1)
	assert.InDelta(t, 2.0, rows[0]["id"], 0)
}

func TestTailer_TextOutput(t *testing.T) {
	srv := newMobileService(t, &growingTable{})

	var out bytes.Buffer
	tl := newTailer(newTestTable(t, srv.URL), &out, false, discardLogger())

	require.NoError(t, tl.poll(context.Background()))
	assert.Contains(t, out.String(), "row")
}

func TestTailer_PollError(t *testing.T) {
	srv := newMobileService(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))

	tl := newTailer(newTestTable(t, srv.URL), io.Discard, true, discardLogger())
	assert.ErrorIs(t, tl.poll(context.Background()), zumo.ErrUnauthorized)
}

func TestTailer_RunStopsOnCancel(t *testing.T) {
	srv := newMobileService(t, &growingTable{})

	out := &syncBuffer{}
	tl := newTailer(newTestTable(t, srv.URL), out, true, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		tl.run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") >= 4
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tailer did not stop after cancel")
	}
}

func TestRowKey(t *testing.T) {
	assert.Equal(t, "id:7", rowKey(zumo.Item{"id": json.Number("7"), "x": 1}))
	assert.Equal(t, "id:abc", rowKey(zumo.Item{"id": "abc"}))
	assert.Equal(t, `row:{"a":1,"b":"x"}`, rowKey(zumo.Item{"b": "x", "a": 1}))
	assert.Equal(t, `row:{"id":null}`, rowKey(zumo.Item{"id": nil}))
}

func TestServeMetrics(t *testing.T) {
	srv := newMobileService(t, &growingTable{})

	reg := prometheus.NewRegistry()
	table := newTestTable(t, srv.URL, zumo.WithMetrics(zumo.NewMetrics(reg)))

	_, err := table.GetAll(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := serveMetrics(ctx, "127.0.0.1:0", reg, discardLogger())
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `zumo_requests_total{code="200",method="GET"} 1`)

	cancel()

	assert.Eventually(t, func() bool {
		r, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return true
		}

		r.Body.Close()

		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServeMetrics_BadAddress(t *testing.T) {
	_, err := serveMetrics(context.Background(), "256.0.0.1:http-nope", prometheus.NewRegistry(), discardLogger())
	assert.Error(t, err)
}

func TestTableTail_IntervalTooShort(t *testing.T) {
	newTestEnv(t)

	_, err := runCLI(t, nil, "--service-url", "https://todo.azure-mobile.net", "table", "tail", "todoitem", "--interval", "10ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--interval must be at least")
}
