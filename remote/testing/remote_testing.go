// Package testing provides a shared conformance suite for remote.IRemoteSync
// implementations. Every backend must behave identically from the
// coordinator's point of view, so the suite pins the contract once.
package testing

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/relgate/relgate/remote"
)

// RemoteFactory is a function that creates a new, connected IRemoteSync
// bound to a fresh and empty remote namespace. Implementations should
// register cleanup on t.
type RemoteFactory func(t *testing.T) remote.IRemoteSync

// RunRemoteSyncTests runs the conformance suite for an IRemoteSync implementation.
func RunRemoteSyncTests(t *testing.T, name string, factory RemoteFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("DownloadMissing", func(t *testing.T) {
			testDownloadMissing(t, factory(t))
		})

		t.Run("RoundTrip", func(t *testing.T) {
			testRoundTrip(t, factory(t))
		})

		t.Run("UploadOverwrites", func(t *testing.T) {
			testUploadOverwrites(t, factory(t))
		})

		t.Run("DownloadReplacesLocal", func(t *testing.T) {
			testDownloadReplacesLocal(t, factory(t))
		})

		t.Run("NestedRemotePath", func(t *testing.T) {
			testNestedRemotePath(t, factory(t))
		})

		t.Run("UploadMissingLocal", func(t *testing.T) {
			testUploadMissingLocal(t, factory(t))
		})
	})
}

func testDownloadMissing(t *testing.T, r remote.IRemoteSync) {
	local := filepath.Join(t.TempDir(), "manifest.json")

	err := r.Download("releases/releases_linux.json", local)
	if err == nil {
		t.Fatalf("expected error downloading a missing object")
	}

	var terr *remote.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *remote.TransportError, got %T: %v", err, err)
	}
	if terr.Op != remote.OpDownload {
		t.Errorf("expected op %q, got %q", remote.OpDownload, terr.Op)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing object should wrap os.ErrNotExist, got: %v", err)
	}
	if _, statErr := os.Stat(local); !os.IsNotExist(statErr) {
		t.Errorf("failed download must not create the local file")
	}
}

func testRoundTrip(t *testing.T, r remote.IRemoteSync) {
	dir := t.TempDir()
	content := []byte(`{"releases":[{"version":"1.0.0","channel":"stable"}]}`)

	src := filepath.Join(dir, "out.json")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("failed to write local file: %v", err)
	}
	if err := r.Upload(src, "releases/releases_linux.json"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	dst := filepath.Join(dir, "in.json")
	if err := r.Download("releases/releases_linux.json", dst); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("downloaded bytes differ: got %s, want %s", got, content)
	}
}

func testUploadOverwrites(t *testing.T, r remote.IRemoteSync) {
	dir := t.TempDir()
	first := []byte(`{"releases":[]}`)
	second := []byte(`{"releases":[{"version":"2.0.0"}]}`)

	src := filepath.Join(dir, "out.json")
	for _, content := range [][]byte{first, second} {
		if err := os.WriteFile(src, content, 0o644); err != nil {
			t.Fatalf("failed to write local file: %v", err)
		}
		if err := r.Upload(src, "manifest.json"); err != nil {
			t.Fatalf("upload failed: %v", err)
		}
	}

	dst := filepath.Join(dir, "in.json")
	if err := r.Download("manifest.json", dst); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Errorf("expected second upload to win: got %s, want %s", got, second)
	}
}

func testDownloadReplacesLocal(t *testing.T, r remote.IRemoteSync) {
	dir := t.TempDir()
	content := []byte(`{"releases":[{"version":"3.1.4"}]}`)

	src := filepath.Join(dir, "out.json")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("failed to write local file: %v", err)
	}
	if err := r.Upload(src, "manifest.json"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	dst := filepath.Join(dir, "in.json")
	if err := os.WriteFile(dst, []byte("stale local content"), 0o644); err != nil {
		t.Fatalf("failed to pre-fill local file: %v", err)
	}
	if err := r.Download("manifest.json", dst); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("download must replace local content: got %s, want %s", got, content)
	}
}

func testNestedRemotePath(t *testing.T, r remote.IRemoteSync) {
	dir := t.TempDir()
	content := []byte(`{"releases":[]}`)

	src := filepath.Join(dir, "out.json")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("failed to write local file: %v", err)
	}
	if err := r.Upload(src, "releases/v2/linux/releases_linux.json"); err != nil {
		t.Fatalf("upload to nested path failed: %v", err)
	}

	dst := filepath.Join(dir, "in.json")
	if err := r.Download("releases/v2/linux/releases_linux.json", dst); err != nil {
		t.Fatalf("download from nested path failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("downloaded bytes differ: got %s, want %s", got, content)
	}
}

func testUploadMissingLocal(t *testing.T, r remote.IRemoteSync) {
	err := r.Upload(filepath.Join(t.TempDir(), "does-not-exist.json"), "manifest.json")
	if err == nil {
		t.Fatalf("expected error uploading a missing local file")
	}

	var terr *remote.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *remote.TransportError, got %T: %v", err, err)
	}
	if terr.Op != remote.OpUpload {
		t.Errorf("expected op %q, got %q", remote.OpUpload, terr.Op)
	}
}
