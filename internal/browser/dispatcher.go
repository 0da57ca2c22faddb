// Package browser provides navigation surfaces for browser-driven logins:
// a headless redirect follower and a Chrome tab driven over the DevTools
// protocol. Both run their presentation work on a Dispatcher, which plays
// the role of a UI thread.
package browser

import "sync"

// Dispatcher runs queued functions one at a time, in order, on a single
// goroutine. Run never blocks, so queued functions may enqueue more work.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewDispatcher starts the dispatcher goroutine.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	go d.loop()

	return d
}

// Run queues fn. Functions queued after Close are dropped.
func (d *Dispatcher) Run(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	d.signal()
}

// Close runs what is already queued, then stops the goroutine. It must not
// be called from a queued function.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.signal()
	<-d.done
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)

	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				closed := d.closed
				d.mu.Unlock()

				if closed {
					return
				}

				break
			}

			fn := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.mu.Unlock()

			fn()
		}
	}
}
