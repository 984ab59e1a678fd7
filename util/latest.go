package util

import (
	"sync"
)

// Pulse is a wake-up signal that never queues more than one
// notification. Any number of Fire calls between two receives on C
// collapse into a single pending notification.
type Pulse struct {
	notify chan struct{}
}

// NewPulse creates a new Pulse with nothing pending.
func NewPulse() *Pulse {
	return &Pulse{notify: make(chan struct{}, 1)}
}

// Fire marks the pulse as pending. It never blocks.
func (p *Pulse) Fire() {
	select {
	case p.notify <- struct{}{}:
	default:
		// already pending
	}
}

// C returns the notification channel for use in select statements.
func (p *Pulse) C() <-chan struct{} {
	return p.notify
}

// Drain consumes a pending notification without blocking and reports
// whether there was one.
func (p *Pulse) Drain() bool {
	select {
	case <-p.notify:
		return true
	default:
		return false
	}
}

// Pending checks if a notification is waiting to be consumed. This is
// a non-destructive check.
func (p *Pulse) Pending() bool {
	return len(p.notify) > 0
}

// Latest holds a single, most recent value and a Pulse announcing
// that it changed. Only the most recent value is retained.
type Latest[T any] struct {
	mu    sync.Mutex
	value T
	pulse *Pulse
}

// NewLatest creates a new Latest instance.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{pulse: NewPulse()}
}

// Send stores value and signals the change. It is non-blocking.
func (l *Latest[T]) Send(value T) {
	l.mu.Lock()
	l.value = value
	l.mu.Unlock()
	l.pulse.Fire()
}

// Channel returns the notification channel for use in select statements.
func (l *Latest[T]) Channel() <-chan struct{} {
	return l.pulse.C()
}

// Value returns the most recent value.
func (l *Latest[T]) Value() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// LatestMap keeps the most recent value per key until it is consumed.
type LatestMap[T any] struct {
	mu     sync.Mutex
	values map[string]T
	pulse  *Pulse
}

// NewLatestMap creates a new LatestMap instance.
func NewLatestMap[T any]() *LatestMap[T] {
	return &LatestMap[T]{
		values: make(map[string]T),
		pulse:  NewPulse(),
	}
}

// Send stores value under key, replacing any unconsumed value for the
// same key. It is non-blocking.
func (l *LatestMap[T]) Send(key string, value T) {
	l.mu.Lock()
	l.values[key] = value
	l.mu.Unlock()
	l.pulse.Fire()
}

// Channel returns the notification channel for use in select statements.
func (l *LatestMap[T]) Channel() <-chan struct{} {
	return l.pulse.C()
}

// ConsumeValues returns all unconsumed values and empties the map. A
// notification still pending for the consumed values is dropped.
func (l *LatestMap[T]) ConsumeValues() map[string]T {
	l.mu.Lock()
	defer l.mu.Unlock()
	ret := l.values
	l.values = make(map[string]T)
	l.pulse.Drain()
	return ret
}

// HasPending checks if a notification is waiting to be consumed.
func (l *LatestMap[T]) HasPending() bool {
	return l.pulse.Pending()
}
