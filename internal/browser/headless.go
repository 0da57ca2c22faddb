package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// maxRedirects matches net/http's default redirect limit.
const maxRedirects = 10

// Headless is a Surface without a window: it fetches pages with an HTTP
// client and follows redirects itself, raising a navigation event for every
// hop. It completes logins whose provider redirects back without user
// interaction (an existing provider session, a local emulator, tests).
type Headless struct {
	ctx        context.Context
	httpClient *http.Client
	dispatcher *Dispatcher
	logger     *slog.Logger

	// OnVisual, if set, is called on the dispatcher with each visual change.
	OnVisual func(zumo.Visual)
	// OnError, if set, is called when a navigation fails without a response.
	OnError func(error)

	handlers handlerSet
}

// NewHeadless creates a headless surface. Requests are bound to ctx. The
// transport, jar, and timeout of hc are reused; its redirect policy is not.
func NewHeadless(ctx context.Context, hc *http.Client, d *Dispatcher, logger *slog.Logger) *Headless {
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Headless{
		ctx:        ctx,
		httpClient: hc,
		dispatcher: d,
		logger:     logger,
	}
}

// Navigate starts fetching rawURL on a new goroutine.
func (h *Headless) Navigate(rawURL string) error {
	req, err := http.NewRequestWithContext(h.ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("browser: creating request for %s: %w", rawURL, err)
	}

	go h.load(req)

	return nil
}

func (h *Headless) Subscribe(handlers zumo.NavigationHandlers) func() {
	return h.handlers.subscribe(handlers)
}

func (h *Headless) RunOnPrimary(fn func()) {
	h.dispatcher.Run(fn)
}

func (h *Headless) SetVisual(v zumo.Visual) {
	h.logger.Debug("headless surface visual", slog.String("visual", v.String()))

	if h.OnVisual != nil {
		h.OnVisual(v)
	}
}

// errHopCanceled marks a redirect chain stopped by a handler.
var errHopCanceled = errors.New("browser: navigation canceled")

func (h *Headless) load(req *http.Request) {
	if h.handlers.starting(req.URL.String()).Canceled() {
		h.logger.Debug("navigation canceled before request", slog.String("url", req.URL.Redacted()))
		return
	}

	// Set when a handler stops the redirect chain.
	var canceled bool

	client := *h.httpClient
	client.CheckRedirect = func(next *http.Request, via []*http.Request) error {
		err := h.checkRedirect(next, via)
		if errors.Is(err, errHopCanceled) {
			canceled = true
			return http.ErrUseLastResponse
		}

		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		h.logger.Warn("headless navigation failed",
			slog.String("url", req.URL.Redacted()),
			slog.String("error", err.Error()),
		)

		if h.OnError != nil {
			h.OnError(err)
		}

		return
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if canceled {
		return
	}

	h.handlers.finished(resp.Request.URL.String())
}

// checkRedirect raises the navigation event for a redirect hop.
func (h *Headless) checkRedirect(next *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("browser: stopped after %d redirects", maxRedirects)
	}

	if h.handlers.starting(next.URL.String()).Canceled() {
		h.logger.Debug("redirect canceled by handler", slog.Int("hop", len(via)))
		return errHopCanceled
	}

	return nil
}
