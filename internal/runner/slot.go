package runner

import (
	"sync"

	"lucid/internal/errors"
)

// Slot is the single process-wide execution permission. At most one session
// holds it at a time; acquisition fails with a conflict error naming the
// holder. It is an explicit single-owner register rather than a bare flag so
// release can be tied to the owning session on every exit path.
type Slot struct {
	mu     sync.Mutex
	holder string
}

// TryAcquire claims the slot for sessionID or reports the current holder.
func (s *Slot) TryAcquire(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder != "" {
		return errors.Conflictf("another task is already running (session %s); wait for it to complete or cancel it", s.holder)
	}
	s.holder = sessionID
	return nil
}

// Release frees the slot if sessionID still owns it. Releasing a slot held
// by someone else is a no-op, which makes release idempotent across the
// cancel path and the execution unit's deferred cleanup.
func (s *Slot) Release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder == sessionID {
		s.holder = ""
	}
}

// Holder returns the session currently holding the slot, or "".
func (s *Slot) Holder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder
}
