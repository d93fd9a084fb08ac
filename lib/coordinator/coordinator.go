package coordinator

import (
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/relgate/relgate/common"
	"github.com/relgate/relgate/lib/lock"
	"github.com/relgate/relgate/lib/manifest"
)

var Logger = common.GetLogger("coordinator")

var (
	metricPublishSuccess = metrics.NewCounter(`relgate_publish_success_total`)
	metricPublishFailure = metrics.NewCounter(`relgate_publish_failure_total`)
)

// ----------------------------------------------------------------------------
// Publish States
// ----------------------------------------------------------------------------

// State describes where in the publish sequence a run currently is.
type State int

const (
	StateIdle State = iota
	StateAcquiringLock
	StateLockHeld
	StateFetching
	StateMerging
	StateWriting
	StateSyncing
	StateReleasedSuccess
	StateReleasedFailure
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateAcquiringLock:   "acquiring-lock",
	StateLockHeld:        "lock-held",
	StateFetching:        "fetching",
	StateMerging:         "merging",
	StateWriting:         "writing",
	StateSyncing:         "syncing",
	StateReleasedSuccess: "released/success",
	StateReleasedFailure: "released/failure",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ----------------------------------------------------------------------------
// Exit Codes
// ----------------------------------------------------------------------------

// Exit codes let pipeline callers react to failure categories without
// parsing log output. ExitConfig doubles as the catch-all for errors
// outside the known categories.
const (
	ExitSuccess     = 0
	ExitConfig      = 1
	ExitLockTimeout = 2
	ExitLockLost    = 3
	ExitMerge       = 4
	ExitSync        = 5
)

// ExitCode maps the error returned by Publish to its process exit code.
func ExitCode(err error) int {
	var (
		timeoutErr *lock.TimeoutError
		lostErr    *lock.LostError
		mergeErr   *manifest.MergeError
		syncErr    *manifest.SyncError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &timeoutErr):
		return ExitLockTimeout
	case errors.As(err, &lostErr):
		return ExitLockLost
	case errors.As(err, &mergeErr):
		return ExitMerge
	case errors.As(err, &syncErr):
		return ExitSync
	default:
		return ExitConfig
	}
}

// ----------------------------------------------------------------------------
// Coordinator
// ----------------------------------------------------------------------------

// Coordinator runs the publish sequence on top of a lock manager and a
// manifest store. It is meant for one publish at a time; create a fresh
// coordinator per run if publishes happen concurrently.
type Coordinator struct {
	config common.CoordinatorConfig
	locks  lock.ILockManager
	store  manifest.IManifestStore

	// OnTransition, if set, observes every state change. Used by the CLI
	// progress output.
	OnTransition func(State)

	state State
}

// New creates a coordinator from its collaborators. The store's remote
// side may be absent (local-only mode); the lock manager is mandatory.
func New(config common.CoordinatorConfig, locks lock.ILockManager, store manifest.IManifestStore) *Coordinator {
	return &Coordinator{
		config: config,
		locks:  locks,
		store:  store,
		state:  StateIdle,
	}
}

// State returns the most recent publish state.
func (c *Coordinator) State() State {
	return c.state
}

// Publish merges rec into the manifest of resource and publishes the
// result, holding the resource lock for the whole sequence. An empty
// resource falls back to the configured one. The returned error maps to
// a process exit code via ExitCode.
func (c *Coordinator) Publish(resource string, rec manifest.Record) error {
	c.transition(StateIdle)

	if err := c.config.Validate(); err != nil {
		return c.fail(resource, err)
	}
	if resource == "" {
		resource = c.config.Resource
	}

	c.transition(StateAcquiringLock)
	err := c.locks.WithLock(resource, c.config.LockTimeout(), func(h *lock.Handle) error {
		c.transition(StateLockHeld)
		Logger.Infof("lock for %q held as %s", resource, h.HolderID())

		c.transition(StateFetching)
		checkpoint := 0
		verify := func() error {
			if err := c.locks.Verify(h); err != nil {
				return err
			}
			// the verify checkpoints sit exactly on the phase boundaries
			checkpoint++
			switch checkpoint {
			case 1:
				c.transition(StateMerging)
			case 2:
				c.transition(StateWriting)
			case 3:
				c.transition(StateSyncing)
			}
			return nil
		}

		return c.store.Update(resource, verify, manifest.InsertOrReplace(rec, c.config.MergeKeyFields...))
	})
	if err != nil {
		return c.fail(resource, err)
	}

	c.transition(StateReleasedSuccess)
	metricPublishSuccess.Inc()
	Logger.Infof("publish for %q succeeded", resource)
	return nil
}

func (c *Coordinator) fail(resource string, err error) error {
	c.transition(StateReleasedFailure)
	metricPublishFailure.Inc()
	Logger.Errorf("publish for %q failed: %v", resource, err)
	return err
}

func (c *Coordinator) transition(next State) {
	Logger.Debugf("state %s -> %s", c.state, next)
	c.state = next
	if c.OnTransition != nil {
		c.OnTransition(next)
	}
}
