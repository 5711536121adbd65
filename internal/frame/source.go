// Package frame abstracts the per-frame scheduling signal that drives the
// simulation loop and camera transitions.
package frame

import (
	"sync"
	"time"
)

// Source delivers frame timestamps. Each Subscribe call gets its own
// channel; stop must be called exactly once to release it.
type Source interface {
	Subscribe() (frames <-chan time.Time, stop func())
}

// Ticker fires at Rate frames per second off the wall clock.
type Ticker struct {
	Rate float64
}

// Interval returns the frame interval; non-positive rates mean 60 fps.
func (t Ticker) Interval() time.Duration {
	if t.Rate <= 0 {
		return time.Second / 60
	}
	return time.Duration(float64(time.Second) / t.Rate)
}

// Subscribe implements Source.
func (t Ticker) Subscribe() (<-chan time.Time, func()) {
	tk := time.NewTicker(t.Interval())
	return tk.C, tk.Stop
}

type subscriber struct {
	ch   chan time.Time
	done chan struct{}
}

// Manual delivers a frame only when Fire is called. Tests and hosts that
// own their render loop use it.
type Manual struct {
	mu   sync.Mutex
	subs []*subscriber
}

// NewManual creates a manual source.
func NewManual() *Manual {
	return &Manual{}
}

// Subscribe implements Source.
func (m *Manual) Subscribe() (<-chan time.Time, func()) {
	s := &subscriber{ch: make(chan time.Time), done: make(chan struct{})}
	m.mu.Lock()
	m.subs = append(m.subs, s)
	m.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			close(s.done)
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, cur := range m.subs {
				if cur == s {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Fire hands ts to every current subscriber, blocking until each one has
// received it or unsubscribed. It returns how many received the frame.
func (m *Manual) Fire(ts time.Time) int {
	m.mu.Lock()
	subs := append([]*subscriber(nil), m.subs...)
	m.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		select {
		case s.ch <- ts:
			delivered++
		case <-s.done:
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions.
func (m *Manual) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
