// Package lock implements mutual exclusion between release publishers that
// share nothing but a filesystem namespace. It coordinates access to the
// per-resource release manifests without any lock service or network
// protocol.
//
// Core Functionality:
//   - Lock acquisition with ownership verification
//   - Reclaim of markers abandoned by crashed publishers, with a
//     configurable age threshold
//   - Safe release operations that verify ownership
//   - Scoped execution that guarantees release on every exit path
//
// Implementation Approach:
//
//	Locks are built on the one atomic primitive every POSIX filesystem
//	offers: creating a directory fails if it already exists.
//
//	- Lock Acquisition: Attempts to create the marker directory
//	  release_<resource>.lock. Creation succeeds for exactly one process;
//	  everyone else polls until the marker disappears or the timeout
//	  elapses. There is never a separate existence check before the
//	  create, the create is the check.
//
//	- Holder Metadata: A meta.json carrying the holder id (host, pid and
//	  a random uuid) and the acquisition time is written into the marker.
//	  The metadata is diagnostic, the directory itself is the exclusion
//	  token.
//
//	- Staleness: A marker older than StaleAfter is assumed to belong to a
//	  crashed publisher and may be reclaimed. Reclaim renames the marker
//	  to a unique trash name first; rename is atomic, so of several
//	  waiting processes exactly one wins and the others keep polling.
//
//	- Safe Release: Release reads the marker metadata and removes the
//	  marker only if the holder id matches. Releasing twice, or releasing
//	  a marker that was reclaimed and re-acquired by someone else, is a
//	  no-op.
//
// Thread Safety:
//
//	All methods are safe for concurrent use within a process. Cross
//	process safety relies on the atomicity of mkdir and rename on the
//	shared filesystem.
//
// Limitations:
//
//	Staleness is wall clock based. Clock skew between hosts shifts the
//	effective threshold, so StaleAfter needs a generous margin over the
//	longest expected publish duration.
//
// Usage Example:
//
//	mgr := lock.NewLockManager(lock.Config{Dir: "/var/tmp/release-locks"})
//	err := mgr.WithLock("linux", 5*time.Minute, func(h *lock.Handle) error {
//		// publish while holding the lock
//		return nil
//	})
package lock
