package lock

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ILockManager defines the interface for the file based lock provider.
type ILockManager interface {
	// Acquire obtains the lock for the given resource, polling until the
	// timeout elapses. A marker abandoned longer than the staleness
	// threshold is reclaimed along the way. On failure a *TimeoutError is
	// returned and no marker is left behind.
	Acquire(resource string, timeout time.Duration) (*Handle, error)

	// Verify checks that the lock behind the handle is still held by its
	// owner. It returns a *LostError if the marker vanished or now belongs
	// to someone else.
	Verify(h *Handle) error

	// Release removes the lock marker of the handle. Releasing an already
	// released lock is a no-op, and a marker that meanwhile belongs to a
	// different holder is left untouched.
	Release(h *Handle) error

	// WithLock runs fn while holding the lock for resource. The lock is
	// released on every exit path, including panics.
	WithLock(resource string, timeout time.Duration, fn func(h *Handle) error) error

	// Inspect returns the metadata of the current marker for resource.
	// The boolean indicates whether a marker exists. A marker whose
	// metadata is missing or unreadable is reported as held with nil
	// metadata.
	Inspect(resource string) (meta *Meta, held bool, err error)

	// ReleaseAll releases every lock this manager still holds and returns
	// the number of released locks. Used for shutdown cleanup.
	ReleaseAll() int
}

// --------------------------------------------------------------------------
// Handle and marker metadata
// --------------------------------------------------------------------------

// Handle represents ownership of an acquired lock. It carries identity
// only; the acquisition time lives in the marker metadata.
type Handle struct {
	resource string
	holderID string
}

// NewHandle recreates a handle from a resource name and holder id. This
// exists for workflows where acquire and release happen in separate
// processes and the holder id travels between them.
func NewHandle(resource, holderID string) *Handle {
	return &Handle{resource: resource, holderID: holderID}
}

func (h *Handle) Resource() string { return h.resource }

func (h *Handle) HolderID() string { return h.holderID }

// Meta is the holder metadata persisted inside a lock marker. The metadata
// exists for diagnosability and staleness judgement; the marker directory
// itself is the exclusion token.
type Meta struct {
	HolderID   string    `json:"holder_id"`
	Resource   string    `json:"resource"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Age returns how long ago the marker was created.
func (m *Meta) Age() time.Duration {
	return time.Since(m.AcquiredAt)
}

// --------------------------------------------------------------------------
// Custom Error Types
// --------------------------------------------------------------------------

// TimeoutError is returned when the lock could not be acquired within the
// caller's timeout.
type TimeoutError struct {
	Resource string
	Waited   time.Duration
	Attempts int
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("lock timeout for %q after %s (%d attempts)",
		e.Resource, e.Waited.Round(time.Millisecond), e.Attempts)
}

// LostError is returned by Verify when lock ownership cannot be confirmed
// anymore. Publishing must stop immediately in that case.
type LostError struct {
	Resource string
	HolderID string
	Reason   string
}

// Error implements the error interface.
func (e *LostError) Error() string {
	return fmt.Sprintf("lock for %q lost: %s", e.Resource, e.Reason)
}
