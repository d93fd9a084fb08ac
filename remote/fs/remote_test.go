package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relgate/relgate/common"
	"github.com/relgate/relgate/remote"
	remotetesting "github.com/relgate/relgate/remote/testing"
)

func newTestRemote(t *testing.T) remote.IRemoteSync {
	r := NewFSRemote()
	if err := r.Connect(common.RemoteConfig{Endpoint: t.TempDir()}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestFSRemoteConformance(t *testing.T) {
	remotetesting.RunRemoteSyncTests(t, "fs", newTestRemote)
}

func TestConnectRejectsEmptyEndpoint(t *testing.T) {
	if err := NewFSRemote().Connect(common.RemoteConfig{}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}

func TestObjectLandsUnderBase(t *testing.T) {
	base := t.TempDir()
	r := NewFSRemote()
	if err := r.Connect(common.RemoteConfig{Endpoint: base}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	src := filepath.Join(t.TempDir(), "out.json")
	if err := os.WriteFile(src, []byte(`{"releases":[]}`), 0o644); err != nil {
		t.Fatalf("failed to write local file: %v", err)
	}
	if err := r.Upload(src, "releases/releases_linux.json"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(base, "releases", "releases_linux.json")); err != nil {
		t.Errorf("expected object under base directory: %v", err)
	}
}
