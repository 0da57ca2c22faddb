package browser

import (
	"sync"

	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// handlerSet is the subscriber list shared by the surfaces. Notifications
// run on a snapshot with no lock held, so a handler may unsubscribe itself.
type handlerSet struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]zumo.NavigationHandlers
}

func (s *handlerSet) subscribe(h zumo.NavigationHandlers) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers == nil {
		s.handlers = make(map[int]zumo.NavigationHandlers)
	}

	id := s.nextID
	s.nextID++
	s.handlers[id] = h

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.handlers, id)
	}
}

func (s *handlerSet) snapshot() []zumo.NavigationHandlers {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]zumo.NavigationHandlers, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h)
	}

	return out
}

// starting notifies every OnStarting handler and returns the event so the
// caller can check whether it was canceled.
func (s *handlerSet) starting(url string) *zumo.NavigationStarting {
	ev := zumo.NewNavigationStarting(url)

	for _, h := range s.snapshot() {
		if h.OnStarting != nil {
			h.OnStarting(ev)
		}
	}

	return ev
}

func (s *handlerSet) finished(url string) {
	for _, h := range s.snapshot() {
		if h.OnFinished != nil {
			h.OnFinished(url)
		}
	}
}

func (s *handlerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.handlers)
}
