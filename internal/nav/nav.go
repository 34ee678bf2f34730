// Package nav tracks where the client currently is and moves it elsewhere.
package nav

import "sync"

// Well-known surfaces.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Navigator moves the client to another surface.
//
// Navigate must be idempotent: navigating to the current location is a no-op and
// reports false.
type Navigator interface {
	Navigate(path string) bool
}

// Location is an in-memory Navigator that remembers the current path.
type Location struct {
	mu        sync.Mutex
	current   string
	listeners []func(from, to string)
}

// NewLocation starts at the given path.
func NewLocation(start string) *Location {
	if start == "" {
		start = HomePath
	}
	return &Location{current: start}
}

// Current returns the current path.
func (l *Location) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Navigate moves to path and notifies listeners. Returns false without side effects
// when already there.
func (l *Location) Navigate(path string) bool {
	l.mu.Lock()
	if l.current == path {
		l.mu.Unlock()
		return false
	}
	from := l.current
	l.current = path
	listeners := append([]func(from, to string){}, l.listeners...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(from, path)
	}
	return true
}

// OnChange registers fn to run after every actual move.
func (l *Location) OnChange(fn func(from, to string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

var _ Navigator = (*Location)(nil)
