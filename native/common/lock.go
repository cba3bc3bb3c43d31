package common

import "errors"

// ErrReentrant is returned when an entry point is invoked while another call
// in the same lock domain has not yet returned.
var ErrReentrant = errors.New("reentrant call")

// Lock is a call-depth flag guarding one lock domain. It is not a mutex: a
// nested entry from the same goroutine fails fast instead of blocking.
// Callers serialize top-level entry themselves.
type Lock struct {
	entered bool
}

// Enter marks the domain as busy.
func (l *Lock) Enter() error {
	if l.entered {
		return ErrReentrant
	}
	l.entered = true
	return nil
}

// Exit clears the flag set by Enter.
func (l *Lock) Exit() { l.entered = false }

// Held reports whether a call is in progress.
func (l *Lock) Held() bool { return l.entered }
