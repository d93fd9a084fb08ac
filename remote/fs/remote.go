// Package fs implements remote.IRemoteSync on top of a mounted filesystem
// path, typically an NFS share or a CI artifact volume. Objects are placed
// with write-to-temp-then-rename so a crashed upload never leaves a torn
// object behind.
package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/relgate/relgate/common"
	"github.com/relgate/relgate/remote"
)

var Logger = common.GetLogger("remote")

// NewFSRemote creates a remote backed by a directory tree. The base
// directory is taken from the endpoint on Connect.
func NewFSRemote() remote.IRemoteSync {
	return &fsRemote{}
}

type fsRemote struct {
	base string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see remote.IRemoteSync)
// --------------------------------------------------------------------------

func (r *fsRemote) Connect(config common.RemoteConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("fs remote: endpoint must not be empty")
	}
	if err := os.MkdirAll(config.Endpoint, 0o755); err != nil {
		return fmt.Errorf("fs remote: create base directory %s: %w", config.Endpoint, err)
	}
	r.base = config.Endpoint
	return nil
}

func (r *fsRemote) Download(remotePath, localPath string) error {
	if r.base == "" {
		return fmt.Errorf("fs remote not initialized")
	}

	src := filepath.Join(r.base, filepath.FromSlash(remotePath))
	data, err := os.ReadFile(src)
	if err != nil {
		// a missing object keeps its os.ErrNotExist identity through the wrap
		return remote.NewTransportError(remote.OpDownload, remotePath, err)
	}

	if err := common.WriteFileAtomic(localPath, data, 0o644); err != nil {
		return remote.NewTransportError(remote.OpDownload, remotePath, err)
	}

	Logger.Debugf("downloaded %s (%d bytes)", remotePath, len(data))
	return nil
}

func (r *fsRemote) Upload(localPath, remotePath string) error {
	if r.base == "" {
		return fmt.Errorf("fs remote not initialized")
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return remote.NewTransportError(remote.OpUpload, remotePath, err)
	}

	dst := filepath.Join(r.base, filepath.FromSlash(remotePath))
	if err := common.WriteFileAtomic(dst, data, 0o644); err != nil {
		return remote.NewTransportError(remote.OpUpload, remotePath, err)
	}

	Logger.Debugf("uploaded %s (%d bytes)", remotePath, len(data))
	return nil
}

func (r *fsRemote) Close() error {
	r.base = ""
	return nil
}
