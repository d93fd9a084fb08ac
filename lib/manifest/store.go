package manifest

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/VictoriaMetrics/metrics"
	"github.com/relgate/relgate/common"
	"github.com/relgate/relgate/remote"
)

var Logger = common.GetLogger("manifest")

var (
	metricCommitted        = metrics.NewCounter(`relgate_manifest_committed_total`)
	metricRolledBack       = metrics.NewCounter(`relgate_manifest_rolled_back_total`)
	metricDownloadFallback = metrics.NewCounter(`relgate_manifest_download_fallback_total`)
)

// VerifyFunc is called between the phases of an update. Returning an error
// aborts the update before the next phase takes effect; the store rolls
// back whatever has been written locally and propagates the error. The
// coordinator passes a check that the publish lock is still held.
type VerifyFunc func() error

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// SyncError marks a failed upload of a committed local manifest. The local
// state has been rolled back to the backup when this is returned.
type SyncError struct {
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync manifest for %q: %v", e.Resource, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IManifestStore is the interface for reading and updating the per resource
// release manifests.
type IManifestStore interface {
	// Update runs one guarded read-merge-write cycle for resource:
	// download (or fall back to the local copy), back up, merge, replace
	// atomically, upload. On an upload failure the previous local state
	// is restored byte for byte and a *SyncError returned.
	Update(resource string, verify VerifyFunc, merge MergeFunc) error

	// Load reads and parses the local manifest copy.
	Load(resource string) (*Document, error)

	// LocalPath returns the path of the local manifest copy.
	LocalPath(resource string) string
}

// Config holds the parameters for the manifest store.
type Config struct {
	// WorkDir is the local directory for manifest and backup files
	WorkDir string

	// RemotePrefix is prepended to object names on the remote side
	RemotePrefix string
}

type storeImpl struct {
	config Config
	remote remote.IRemoteSync
}

// NewStore creates a manifest store. rs may be nil for local-only
// operation, in which case download and upload are skipped.
func NewStore(config Config, rs remote.IRemoteSync) IManifestStore {
	return &storeImpl{
		config: config,
		remote: rs,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IManifestStore)
// --------------------------------------------------------------------------

func (s *storeImpl) LocalPath(resource string) string {
	return filepath.Join(s.config.WorkDir, manifestFileName(resource))
}

func (s *storeImpl) Load(resource string) (*Document, error) {
	if err := common.ValidateResource(resource); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.LocalPath(resource))
	if err != nil {
		return nil, err
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("manifest for %q: %w", resource, err)
	}
	return doc, nil
}

func (s *storeImpl) Update(resource string, verify VerifyFunc, merge MergeFunc) error {
	if err := common.ValidateResource(resource); err != nil {
		return err
	}
	if merge == nil {
		return fmt.Errorf("merge function must not be nil")
	}
	if verify == nil {
		verify = func() error { return nil }
	}
	if err := os.MkdirAll(s.config.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	local := s.LocalPath(resource)
	backup := local + ".bak"

	// phase 1: refresh the local copy, the remote is the source of truth
	s.download(resource, local)

	// phase 2: snapshot the current state for rollback
	hadLocal, err := s.snapshot(local, backup)
	if err != nil {
		return err
	}
	// the backup never outlives the update
	defer func() { _ = os.Remove(backup) }()

	if err := verify(); err != nil {
		return err
	}

	// phase 3: load and merge in memory
	doc, err := s.loadOrDefault(local, hadLocal)
	if err != nil {
		return err
	}
	if err := merge(doc); err != nil {
		return err
	}

	if err := verify(); err != nil {
		return err
	}

	// phase 4: atomic local replace
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encode manifest for %q: %w", resource, err)
	}
	if err := common.WriteFileAtomic(local, data, 0o644); err != nil {
		return fmt.Errorf("write manifest for %q: %w", resource, err)
	}

	if err := verify(); err != nil {
		s.rollback(resource, local, backup, hadLocal)
		return err
	}

	// phase 5: publish
	if s.remote != nil {
		if err := s.remote.Upload(local, s.remotePath(resource)); err != nil {
			s.rollback(resource, local, backup, hadLocal)
			return &SyncError{Resource: resource, Err: err}
		}
	}

	metricCommitted.Inc()
	Logger.Infof("manifest for %q committed (%d releases)", resource, len(doc.Releases))
	return nil
}

// --------------------------------------------------------------------------
// Update phases
// --------------------------------------------------------------------------

// download refreshes the local copy. Failures are not fatal: the update
// falls back to the existing local copy.
func (s *storeImpl) download(resource, local string) {
	if s.remote == nil {
		return
	}
	err := s.remote.Download(s.remotePath(resource), local)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		Logger.Infof("no remote manifest for %q yet", resource)
	default:
		metricDownloadFallback.Inc()
		Logger.Warningf("manifest download for %q failed, falling back to local copy: %v", resource, err)
	}
}

// snapshot copies the current manifest to the backup path. A missing local
// manifest is fine, the update then starts from the default document.
func (s *storeImpl) snapshot(local, backup string) (hadLocal bool, err error) {
	data, err := os.ReadFile(local)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read manifest: %w", err)
	}
	if err := common.WriteFileAtomic(backup, data, 0o644); err != nil {
		return false, fmt.Errorf("write backup: %w", err)
	}
	return true, nil
}

// loadOrDefault parses the local manifest. A parse failure counts as a
// merge rejection: nothing has been written yet and an unparseable
// manifest must not be published over.
func (s *storeImpl) loadOrDefault(local string, hadLocal bool) (*Document, error) {
	if !hadLocal {
		return NewDocument(), nil
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, NewMergeError("manifest is not valid JSON: %v", err)
	}
	return doc, nil
}

// rollback restores the pre-update state byte for byte. Without a previous
// local manifest the rollback is the removal of the half-published file.
func (s *storeImpl) rollback(resource, local, backup string, hadLocal bool) {
	metricRolledBack.Inc()
	if !hadLocal {
		if err := os.Remove(local); err != nil && !errors.Is(err, os.ErrNotExist) {
			Logger.Errorf("rollback for %q: remove %s: %v", resource, local, err)
		}
		return
	}
	if err := os.Rename(backup, local); err != nil {
		Logger.Errorf("rollback for %q: restore backup: %v", resource, err)
		return
	}
	Logger.Warningf("manifest for %q rolled back to backup", resource)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// manifestFileName returns the canonical per resource file name,
// e.g. releases_linux.json
func manifestFileName(resource string) string {
	return fmt.Sprintf("releases_%s.json", resource)
}

func (s *storeImpl) remotePath(resource string) string {
	return path.Join(s.config.RemotePrefix, manifestFileName(resource))
}
