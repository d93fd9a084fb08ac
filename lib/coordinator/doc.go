// Package coordinator drives a complete release publication: acquire the
// per-resource lock, run the guarded manifest update and release the lock
// on every path, successful or not.
//
// The publish sequence advances through a fixed set of states (idle,
// acquiring-lock, lock-held, fetching, merging, writing, syncing, released)
// that is observable through OnTransition. Lock ownership is re-verified
// between the manifest phases, so a lock that was reclaimed by another
// publisher stops the run before the next phase takes effect.
//
// Every failure category maps to a distinct process exit code via ExitCode,
// letting pipeline callers distinguish lock contention from merge conflicts
// and remote failures without parsing log output.
package coordinator
