// Package wake provides the level-like wake signal used to interrupt the
// control loop's idle wait. Multiple notifications before a drain collapse
// into a single wake; the payload slot keeps the latest trigger only.
package wake

import "sync"

// Payload identifies the external trigger that produced a wake
type Payload struct {
	ID        string // Unique event ID
	Component string // Triggering component name, if known
	Event     string // Device event kind, e.g. "toggle"
	State     string // Reported state, if any
}

// Signal is a binary wake flag plus a single guarded payload slot.
// Notify never blocks; Drain reads and clears the slot.
type Signal struct {
	mu      sync.Mutex
	payload *Payload
	ch      chan struct{}
}

// NewSignal creates an unset signal
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify stores the payload and sets the signal. If the signal is already
// set, the wake collapses and only the payload is replaced.
func (s *Signal) Notify(p Payload) {
	s.mu.Lock()
	s.payload = &p
	s.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	default:
		// Already set - collapse
	}
}

// C returns the channel that becomes readable when the signal is set.
// Receiving from it consumes the signal.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Drain returns the stashed payload and clears the slot.
// Returns nil if no payload was stashed.
func (s *Signal) Drain() *Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.payload
	s.payload = nil
	return p
}
