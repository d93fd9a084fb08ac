package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/relgate/relgate/common"
)

var Logger = common.GetLogger("lock")

var (
	metricAcquired  = metrics.NewCounter(`relgate_lock_acquired_total`)
	metricContended = metrics.NewCounter(`relgate_lock_contended_total`)
	metricReclaimed = metrics.NewCounter(`relgate_lock_stale_reclaimed_total`)
	metricTimeout   = metrics.NewCounter(`relgate_lock_timeout_total`)
	metricReleased  = metrics.NewCounter(`relgate_lock_released_total`)
)

// Config holds the parameters for the lock manager.
type Config struct {
	// Dir is the directory lock markers are created in. All cooperating
	// processes must point at the same directory.
	Dir string

	// PollInterval is the pause between acquisition attempts.
	PollInterval time.Duration

	// StaleAfter is the marker age after which the holder counts as dead
	// and the marker may be reclaimed.
	StaleAfter time.Duration
}

type lockMgrImpl struct {
	config Config
	held   *xsync.MapOf[string, *Handle]
}

// NewLockManager creates a lock manager rooted at config.Dir. Zero values
// fall back to the defaults from the common package.
func NewLockManager(config Config) ILockManager {
	if config.Dir == "" {
		config.Dir = os.TempDir()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = common.DefaultPollIntervalMS * time.Millisecond
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = common.DefaultStaleAfterSecond * time.Second
	}
	return &lockMgrImpl{
		config: config,
		held:   xsync.NewMapOf[string, *Handle](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ILockManager)
// --------------------------------------------------------------------------

func (m *lockMgrImpl) Acquire(resource string, timeout time.Duration) (*Handle, error) {
	if err := common.ValidateResource(resource); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("lock timeout must be positive, got %s", timeout)
	}

	holderID := newHolderID()
	start := time.Now()
	deadline := start.Add(timeout)
	attempts := 0

	for {
		attempts++
		h, err := m.tryCreate(resource, holderID)
		if err == nil {
			metricAcquired.Inc()
			Logger.Debugf("acquired lock for %q as %s (attempt %d)", resource, holderID, attempts)
			return h, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock marker for %q: %w", resource, err)
		}

		// marker exists, check whether its holder is long dead
		metricContended.Inc()
		if m.reclaimIfStale(resource) {
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		time.Sleep(min(m.config.PollInterval, remaining))
	}

	// last resort before giving up
	if m.reclaimIfStale(resource) {
		attempts++
		if h, err := m.tryCreate(resource, holderID); err == nil {
			metricAcquired.Inc()
			Logger.Debugf("acquired lock for %q as %s after reclaim", resource, holderID)
			return h, nil
		}
	}

	metricTimeout.Inc()
	return nil, &TimeoutError{Resource: resource, Waited: time.Since(start), Attempts: attempts}
}

func (m *lockMgrImpl) Verify(h *Handle) error {
	if h == nil {
		return fmt.Errorf("verify: nil lock handle")
	}

	markerPath := m.markerPath(h.resource)
	if _, err := os.Stat(markerPath); errors.Is(err, os.ErrNotExist) {
		return &LostError{Resource: h.resource, HolderID: h.holderID, Reason: "marker is gone"}
	} else if err != nil {
		return &LostError{Resource: h.resource, HolderID: h.holderID,
			Reason: fmt.Sprintf("marker unreadable: %v", err)}
	}

	meta, err := readMeta(markerPath)
	if err != nil {
		return &LostError{Resource: h.resource, HolderID: h.holderID,
			Reason: fmt.Sprintf("marker metadata unreadable: %v", err)}
	}
	if meta.HolderID != h.holderID {
		return &LostError{Resource: h.resource, HolderID: h.holderID,
			Reason: fmt.Sprintf("now held by %s", meta.HolderID)}
	}
	return nil
}

func (m *lockMgrImpl) Release(h *Handle) error {
	if h == nil {
		return nil
	}
	m.held.Delete(h.resource)

	markerPath := m.markerPath(h.resource)
	meta, err := readMeta(markerPath)
	if errors.Is(err, os.ErrNotExist) {
		// already released, nothing to do
		return nil
	}
	if err != nil {
		// ownership cannot be proven without metadata, leave the marker alone
		Logger.Warningf("release %q: marker metadata unreadable, leaving marker in place: %v", h.resource, err)
		return nil
	}
	if meta.HolderID != h.holderID {
		Logger.Warningf("release %q: marker now held by %s, leaving it in place", h.resource, meta.HolderID)
		return nil
	}

	if err := os.RemoveAll(markerPath); err != nil {
		return fmt.Errorf("remove lock marker for %q: %w", h.resource, err)
	}

	metricReleased.Inc()
	Logger.Debugf("released lock for %q", h.resource)
	return nil
}

func (m *lockMgrImpl) WithLock(resource string, timeout time.Duration, fn func(h *Handle) error) error {
	h, err := m.Acquire(resource, timeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Release(h); err != nil {
			Logger.Errorf("failed to release lock for %q: %v", resource, err)
		}
	}()
	return fn(h)
}

func (m *lockMgrImpl) Inspect(resource string) (*Meta, bool, error) {
	if err := common.ValidateResource(resource); err != nil {
		return nil, false, err
	}

	markerPath := m.markerPath(resource)
	meta, err := readMeta(markerPath)
	if err == nil {
		return meta, true, nil
	}

	if _, statErr := os.Stat(markerPath); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, statErr
	}

	// the marker exists but its metadata is missing or corrupt, e.g. the
	// holder died between creating the marker and writing the metadata
	Logger.Debugf("inspect %q: marker metadata unreadable: %v", resource, err)
	return nil, true, nil
}

func (m *lockMgrImpl) ReleaseAll() int {
	released := 0
	m.held.Range(func(_ string, h *Handle) bool {
		if err := m.Release(h); err != nil {
			Logger.Errorf("failed to release lock for %q: %v", h.resource, err)
		} else {
			released++
		}
		return true
	})
	return released
}

// --------------------------------------------------------------------------
// Marker handling
// --------------------------------------------------------------------------

// markerPath returns the marker directory for a resource,
// e.g. <dir>/release_linux.lock
func (m *lockMgrImpl) markerPath(resource string) string {
	return filepath.Join(m.config.Dir, fmt.Sprintf("release_%s.lock", resource))
}

// tryCreate attempts the atomic marker creation. There is no existence
// check beforehand: mkdir failing with os.ErrExist IS the contention signal.
func (m *lockMgrImpl) tryCreate(resource, holderID string) (*Handle, error) {
	markerPath := m.markerPath(resource)

	err := os.Mkdir(markerPath, 0o755)
	if errors.Is(err, os.ErrNotExist) {
		// the lock directory itself is missing
		if err = os.MkdirAll(m.config.Dir, 0o755); err == nil {
			err = os.Mkdir(markerPath, 0o755)
		}
	}
	if err != nil {
		return nil, err
	}

	meta := &Meta{HolderID: holderID, Resource: resource, AcquiredAt: time.Now().UTC()}
	if err := writeMeta(markerPath, meta); err != nil {
		// ownership cannot be proven without metadata, back out
		_ = os.RemoveAll(markerPath)
		return nil, err
	}

	h := &Handle{resource: resource, holderID: holderID}
	m.held.Store(resource, h)
	return h, nil
}

// reclaimIfStale removes the marker for resource if its age exceeds the
// staleness threshold. The marker is renamed to a unique trash name first;
// rename is atomic, so of several waiting processes exactly one wins the
// reclaim and the others keep polling.
func (m *lockMgrImpl) reclaimIfStale(resource string) bool {
	markerPath := m.markerPath(resource)

	age, ok := m.markerAge(markerPath)
	if !ok || age <= m.config.StaleAfter {
		return false
	}

	trash := fmt.Sprintf("%s.stale-%s", markerPath, uuid.NewString())
	if err := os.Rename(markerPath, trash); err != nil {
		// someone else reclaimed or released it first
		return false
	}
	if err := os.RemoveAll(trash); err != nil {
		Logger.Warningf("failed to remove reclaimed marker %s: %v", trash, err)
	}

	metricReclaimed.Inc()
	Logger.Warningf("reclaimed stale lock for %q (age %s, threshold %s)",
		resource, age.Round(time.Second), m.config.StaleAfter)
	return true
}

// markerAge determines the age of a marker from its metadata, falling back
// to the directory mtime when the metadata is unreadable. Ages are wall
// clock based.
func (m *lockMgrImpl) markerAge(markerPath string) (time.Duration, bool) {
	if meta, err := readMeta(markerPath); err == nil {
		return meta.Age(), true
	}
	info, err := os.Stat(markerPath)
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}
