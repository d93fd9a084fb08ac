package remote

import (
	"fmt"

	"github.com/relgate/relgate/common"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IRemoteSync is the interface for transferring manifest objects between the
// local working directory and the remote location. Implementations are not
// required to be safe for concurrent use; the coordinator serializes all
// transfers under the resource lock.
type IRemoteSync interface {
	// Connect initializes the remote with the given configuration
	Connect(config common.RemoteConfig) error
	// Download copies the remote object at remotePath to the local file
	// localPath. The local file is replaced atomically. If the remote
	// object does not exist, the returned *TransportError wraps
	// os.ErrNotExist and the local file is left untouched.
	Download(remotePath, localPath string) error
	// Upload copies the local file at localPath to the remote object
	// remotePath, creating or overwriting it.
	Upload(localPath, remotePath string) error
	// Close releases any connections held by the remote
	Close() error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Op identifies the direction of a failed transfer.
type Op string

const (
	OpDownload Op = "download"
	OpUpload   Op = "upload"
)

// TransportError wraps any failure to move bytes to or from the remote.
// The coordinator treats download errors as recoverable (fall back to the
// local manifest copy) and upload errors as fatal to the publish.
type TransportError struct {
	Op   Op     // direction of the failed transfer
	Path string // remote path involved
	Err  error  // underlying cause
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError for the given operation and path.
func NewTransportError(op Op, path string, err error) *TransportError {
	return &TransportError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}
