package zumo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// Visual is the presentation state a Surface is asked to show.
type Visual int

const (
	// VisualHidden hides both the browser and the loading indicator.
	VisualHidden Visual = iota
	// VisualLoading shows the loading indicator over a hidden browser.
	VisualLoading
	// VisualVisible shows the browser so the user can interact with it.
	VisualVisible
)

func (v Visual) String() string {
	switch v {
	case VisualHidden:
		return "hidden"
	case VisualLoading:
		return "loading"
	case VisualVisible:
		return "visible"
	default:
		return "unknown"
	}
}

// NavigationStarting describes a navigation about to happen. A handler may
// call Cancel to stop it.
type NavigationStarting struct {
	URL      string
	canceled atomic.Bool
}

// NewNavigationStarting is used by Surface implementations to build the
// event passed to OnStarting.
func NewNavigationStarting(rawURL string) *NavigationStarting {
	return &NavigationStarting{URL: rawURL}
}

// Cancel asks the surface not to perform the navigation.
func (n *NavigationStarting) Cancel() {
	n.canceled.Store(true)
}

// Canceled reports whether a handler canceled the navigation.
func (n *NavigationStarting) Canceled() bool {
	return n.canceled.Load()
}

// NavigationHandlers receives navigation notifications from a Surface.
// Either field may be nil.
type NavigationHandlers struct {
	// OnStarting runs before a navigation, including redirects. The surface
	// must call it synchronously and honor Cancel afterwards.
	OnStarting func(*NavigationStarting)
	// OnFinished runs after a page finished loading.
	OnFinished func(url string)
}

// Surface is the navigable browser a browser login drives. Implementations
// wrap a web view, a remote-controlled browser tab, or a headless fetcher.
//
// Handlers may call the returned unsubscribe function from inside a
// notification, so implementations must not hold locks while notifying.
type Surface interface {
	// Navigate starts loading url. It returns once the navigation has been
	// started, not when it finishes.
	Navigate(url string) error
	// Subscribe registers handlers and returns a function removing them.
	Subscribe(h NavigationHandlers) (unsubscribe func())
	// RunOnPrimary schedules fn on the surface's primary (UI) thread.
	RunOnPrimary(fn func())
	// SetVisual switches the presentation state. It is only called from
	// functions passed to RunOnPrimary.
	SetVisual(v Visual)
}

// LoginWithBrowser starts a browser-driven OAuth login with provider on
// surface and returns a Future resolving to the logged-in user.
//
// Invalid arguments and a login already in progress are reported
// immediately as errors; nothing is started in that case. Once started, the
// flow ends when the surface navigates to the service's login/done URL,
// when navigation cannot start, or when ctx is canceled. In every case the
// handlers are removed, the surface is hidden, and the Future resolves
// exactly once. A failed login leaves the client logged out.
func (c *Client) LoginWithBrowser(ctx context.Context, provider Provider, surface Surface) (*Future[*User], error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProvider, int(provider))
	}

	if surface == nil {
		return nil, ErrNilSurface
	}

	if err := c.session.beginLogin(); err != nil {
		return nil, err
	}

	flow := &browserLogin{
		client:   c,
		provider: provider,
		surface:  surface,
		doneURL:  c.loginDoneURL(),
		future:   newFuture[*User](),
	}

	startURL := c.LoginURL(provider)

	c.logger.Info("starting browser login",
		slog.String("provider", provider.String()),
		slog.String("url", startURL),
	)

	flow.setUnsubscribe(surface.Subscribe(NavigationHandlers{
		OnStarting: flow.onStarting,
		OnFinished: flow.onFinished,
	}))

	surface.RunOnPrimary(func() { surface.SetVisual(VisualLoading) })

	go flow.watchContext(ctx)

	if err := surface.Navigate(startURL); err != nil {
		flow.complete("", nil, fmt.Errorf("zumo: starting browser navigation: %w", err))
	}

	return flow.future, nil
}

// browserLogin is the state of one LoginWithBrowser call.
type browserLogin struct {
	client   *Client
	provider Provider
	surface  Surface
	doneURL  string
	future   *Future[*User]

	mu          sync.Mutex
	unsubscribe func()
	finished    bool
}

func (b *browserLogin) setUnsubscribe(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unsubscribe = fn
}

func (b *browserLogin) isFinished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.finished
}

// onStarting watches for the completion URL and extracts the session from
// its fragment.
func (b *browserLogin) onStarting(ev *NavigationStarting) {
	if b.isFinished() || !strings.HasPrefix(ev.URL, b.doneURL) {
		return
	}

	ev.Cancel()

	params := parseFragment(fragmentOf(ev.URL))

	if raw, ok := params["token"]; ok {
		token, user, err := parseLoginResponse([]byte(raw))
		b.complete(token, user, err)

		return
	}

	if reason, ok := params["error"]; ok {
		b.complete("", nil, &LoginError{Provider: b.provider, Reason: reason})
		return
	}

	b.complete("", nil, ErrInvalidLoginResponse)
}

// onFinished reveals the provider's page once it has loaded.
func (b *browserLogin) onFinished(url string) {
	if b.isFinished() || strings.HasPrefix(url, b.doneURL) {
		return
	}

	b.surface.RunOnPrimary(func() { b.surface.SetVisual(VisualVisible) })
}

func (b *browserLogin) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		b.complete("", nil, fmt.Errorf("%w: %w", ErrLoginCanceled, ctx.Err()))
	case <-b.future.Done():
	}
}

// complete ends the flow. Only the first call has any effect.
func (b *browserLogin) complete(token string, user *User, err error) {
	b.mu.Lock()
	if b.finished {
		b.mu.Unlock()
		return
	}

	b.finished = true
	unsubscribe := b.unsubscribe
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	b.surface.RunOnPrimary(func() { b.surface.SetVisual(VisualHidden) })

	logger := b.client.logger
	if err != nil {
		b.client.session.endLogin("", nil)
		logger.Warn("browser login failed",
			slog.String("provider", b.provider.String()),
			slog.String("error", err.Error()),
		)
	} else {
		b.client.session.endLogin(token, user)
		logger.Info("browser login successful",
			slog.String("provider", b.provider.String()),
			slog.String("user_id", user.UserID),
		)
	}

	b.client.metrics.observeLogin(modeBrowser, err)
	b.future.resolve(user, err)
}
