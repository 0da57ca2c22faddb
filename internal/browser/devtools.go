package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// readLimit bounds a single DevTools message. Page events can be large.
const readLimit = 16 << 20

// blankPage is loaded to hide the login page once the flow is over.
const blankPage = "about:blank"

// cdpMessage is a DevTools protocol frame: a command response when ID is
// set, an event otherwise.
type cdpMessage struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *cdpError       `json:"error,omitempty"`
}

type cdpCommand struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *cdpError) Error() string {
	return fmt.Sprintf("devtools error %d: %s", e.Code, e.Message)
}

type requestPaused struct {
	RequestID string `json:"requestId"`
	Request   struct {
		URL         string `json:"url"`
		URLFragment string `json:"urlFragment"`
	} `json:"request"`
}

type frameNavigated struct {
	Frame struct {
		ID          string `json:"id"`
		ParentID    string `json:"parentId"`
		URL         string `json:"url"`
		URLFragment string `json:"urlFragment"`
	} `json:"frame"`
}

// DevTools is a Surface backed by a Chrome tab controlled over the
// DevTools protocol. Document requests are intercepted with the Fetch
// domain so that a canceled navigation never reaches the network.
type DevTools struct {
	conn       *websocket.Conn
	dispatcher *Dispatcher
	logger     *slog.Logger

	// OnVisual, if set, is called on the dispatcher with each visual change.
	OnVisual func(zumo.Visual)

	ctx    context.Context
	cancel context.CancelFunc
	nextID atomic.Int64
	events chan cdpMessage

	mu      sync.Mutex
	pending map[int64]chan cdpMessage
	readErr error

	handlers handlerSet
	wg       sync.WaitGroup
}

// DialDevTools connects to a page target's websocket debugger URL, e.g.
// ws://127.0.0.1:9222/devtools/page/<id>, and enables page events and
// document interception.
func DialDevTools(ctx context.Context, wsURL string, d *Dispatcher, logger *slog.Logger) (*DevTools, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: connecting to %s: %w", wsURL, err)
	}

	conn.SetReadLimit(readLimit)

	runCtx, cancel := context.WithCancel(context.Background())

	t := &DevTools{
		conn:       conn,
		dispatcher: d,
		logger:     logger,
		ctx:        runCtx,
		cancel:     cancel,
		events:     make(chan cdpMessage, 64),
		pending:    make(map[int64]chan cdpMessage),
	}

	t.wg.Add(2)
	go t.readLoop()
	go t.eventLoop()

	if err := t.setup(ctx); err != nil {
		t.Close()
		return nil, err
	}

	logger.Info("connected to browser tab", slog.String("url", wsURL))

	return t, nil
}

func (t *DevTools) setup(ctx context.Context) error {
	if _, err := t.call(ctx, "Page.enable", nil); err != nil {
		return fmt.Errorf("browser: enabling page events: %w", err)
	}

	patterns := map[string]any{
		"patterns": []map[string]string{
			{"urlPattern": "*", "resourceType": "Document", "requestStage": "Request"},
		},
	}

	if _, err := t.call(ctx, "Fetch.enable", patterns); err != nil {
		return fmt.Errorf("browser: enabling request interception: %w", err)
	}

	return nil
}

// Close disconnects from the tab. The tab itself stays open.
func (t *DevTools) Close() error {
	err := t.conn.Close(websocket.StatusNormalClosure, "")
	t.cancel()
	t.wg.Wait()

	if err != nil {
		// The peer may already have dropped the connection.
		t.logger.Debug("closing devtools connection", slog.String("error", err.Error()))
	}

	return nil
}

// Navigate loads rawURL in the tab.
func (t *DevTools) Navigate(rawURL string) error {
	res, err := t.call(t.ctx, "Page.navigate", map[string]string{"url": rawURL})
	if err != nil {
		return fmt.Errorf("browser: navigating to %s: %w", rawURL, err)
	}

	var out struct {
		ErrorText string `json:"errorText"`
	}

	if len(res) > 0 {
		if err := json.Unmarshal(res, &out); err != nil {
			return fmt.Errorf("browser: decoding navigate result: %w", err)
		}
	}

	// The tab reports an aborted navigation when a handler canceled the
	// very first request; that is not a failure to start.
	if out.ErrorText != "" && out.ErrorText != "net::ERR_ABORTED" {
		return fmt.Errorf("browser: navigating to %s: %s", rawURL, out.ErrorText)
	}

	return nil
}

func (t *DevTools) Subscribe(handlers zumo.NavigationHandlers) func() {
	return t.handlers.subscribe(handlers)
}

func (t *DevTools) RunOnPrimary(fn func()) {
	t.dispatcher.Run(fn)
}

// SetVisual brings the tab to the front when it becomes visible and blanks
// it when hidden. The loading state needs no change in the tab.
func (t *DevTools) SetVisual(v zumo.Visual) {
	switch v {
	case zumo.VisualVisible:
		t.send("Page.bringToFront", nil)
	case zumo.VisualHidden:
		t.send("Page.navigate", map[string]string{"url": blankPage})
	}

	if t.OnVisual != nil {
		t.OnVisual(v)
	}
}

// call sends a command and waits for its response.
func (t *DevTools) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := t.nextID.Add(1)
	ch := make(chan cdpMessage, 1)

	t.mu.Lock()
	if t.readErr != nil {
		err := t.readErr
		t.mu.Unlock()

		return nil, err
	}

	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, t.conn, cdpCommand{ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("browser: sending %s: %w", method, err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, t.connErr()
		}

		if msg.Error != nil {
			return nil, fmt.Errorf("browser: %s: %w", method, msg.Error)
		}

		return msg.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// send writes a command without waiting for the response. It is used from
// the event loop and the dispatcher, which must not block on the reader.
func (t *DevTools) send(method string, params any) {
	id := t.nextID.Add(1)

	if err := wsjson.Write(t.ctx, t.conn, cdpCommand{ID: id, Method: method, Params: params}); err != nil {
		t.logger.Warn("devtools command failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
	}
}

func (t *DevTools) connErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.readErr != nil {
		return t.readErr
	}

	return errors.New("browser: devtools connection closed")
}

// readLoop routes responses to their callers and queues events.
func (t *DevTools) readLoop() {
	defer t.wg.Done()
	defer close(t.events)

	for {
		var msg cdpMessage
		if err := wsjson.Read(t.ctx, t.conn, &msg); err != nil {
			t.mu.Lock()
			t.readErr = fmt.Errorf("browser: devtools connection lost: %w", err)

			for id, ch := range t.pending {
				close(ch)
				delete(t.pending, id)
			}
			t.mu.Unlock()

			if t.ctx.Err() == nil {
				t.logger.Warn("devtools connection lost", slog.String("error", err.Error()))
			}

			return
		}

		if msg.ID != 0 {
			t.mu.Lock()
			ch, ok := t.pending[msg.ID]
			t.mu.Unlock()

			if ok {
				ch <- msg
			}

			continue
		}

		select {
		case t.events <- msg:
		case <-t.ctx.Done():
			return
		}
	}
}

// eventLoop turns DevTools events into navigation notifications, in order.
func (t *DevTools) eventLoop() {
	defer t.wg.Done()

	for msg := range t.events {
		switch msg.Method {
		case "Fetch.requestPaused":
			t.onRequestPaused(msg.Params)
		case "Page.frameNavigated":
			t.onFrameNavigated(msg.Params)
		}
	}
}

func (t *DevTools) onRequestPaused(params json.RawMessage) {
	var ev requestPaused
	if err := json.Unmarshal(params, &ev); err != nil {
		t.logger.Warn("decoding Fetch.requestPaused", slog.String("error", err.Error()))
		return
	}

	url := ev.Request.URL + ev.Request.URLFragment

	if t.handlers.starting(url).Canceled() {
		t.send("Fetch.failRequest", map[string]string{
			"requestId":   ev.RequestID,
			"errorReason": "Aborted",
		})

		return
	}

	t.send("Fetch.continueRequest", map[string]string{"requestId": ev.RequestID})
}

func (t *DevTools) onFrameNavigated(params json.RawMessage) {
	var ev frameNavigated
	if err := json.Unmarshal(params, &ev); err != nil {
		t.logger.Warn("decoding Page.frameNavigated", slog.String("error", err.Error()))
		return
	}

	if ev.Frame.ParentID != "" {
		return
	}

	t.handlers.finished(ev.Frame.URL + ev.Frame.URLFragment)
}
