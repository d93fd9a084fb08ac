package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/relgate/relgate/common"
	"github.com/relgate/relgate/remote"
)

const testObject = "releases_linux.json"

// fakeRemote is an in-memory IRemoteSync with failure injection
type fakeRemote struct {
	mu           sync.Mutex
	objects      map[string][]byte
	failDownload bool
	failUpload   bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{objects: make(map[string][]byte)}
}

func (f *fakeRemote) Connect(config common.RemoteConfig) error { return nil }

func (f *fakeRemote) Download(remotePath, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDownload {
		return remote.NewTransportError(remote.OpDownload, remotePath, errors.New("injected download failure"))
	}
	data, ok := f.objects[remotePath]
	if !ok {
		return remote.NewTransportError(remote.OpDownload, remotePath, os.ErrNotExist)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (f *fakeRemote) Upload(localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload {
		return remote.NewTransportError(remote.OpUpload, remotePath, errors.New("injected upload failure"))
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return remote.NewTransportError(remote.OpUpload, remotePath, err)
	}
	f.objects[remotePath] = append([]byte(nil), data...)
	return nil
}

func (f *fakeRemote) Close() error { return nil }

func (f *fakeRemote) object(remotePath string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[remotePath]
	return data, ok
}

func newTestStore(t *testing.T, rs remote.IRemoteSync) IManifestStore {
	t.Helper()
	return NewStore(Config{WorkDir: t.TempDir()}, rs)
}

func TestUpdateCommitsLocallyAndRemotely(t *testing.T) {
	rs := newFakeRemote()
	rs.objects[testObject] = []byte(`{"releases":[]}`)
	s := newTestStore(t, rs)

	rec := Record{"version": "1.2.3", "channel": "stable", "archive": "app-1.2.3.zip"}
	if err := s.Update("linux", nil, InsertOrReplace(rec)); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	doc, err := s.Load("linux")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(doc.Releases) != 1 || doc.Releases[0]["version"] != "1.2.3" {
		t.Errorf("unexpected local releases: %v", doc.Releases)
	}

	localData, err := os.ReadFile(s.LocalPath("linux"))
	if err != nil {
		t.Fatalf("read local manifest: %v", err)
	}
	remoteData, ok := rs.object(testObject)
	if !ok || !bytes.Equal(remoteData, localData) {
		t.Errorf("remote object must equal the local manifest")
	}

	if _, err := os.Stat(s.LocalPath("linux") + ".bak"); !os.IsNotExist(err) {
		t.Errorf("backup must not outlive the update")
	}
}

func TestUploadFailureRollsBack(t *testing.T) {
	rs := newFakeRemote()
	rs.failUpload = true
	s := newTestStore(t, rs)

	original := []byte(`{"releases": []}` + "\n")
	if err := os.WriteFile(s.LocalPath("linux"), original, 0o644); err != nil {
		t.Fatalf("seed local manifest: %v", err)
	}

	err := s.Update("linux", nil, InsertOrReplace(Record{"version": "9.9.9", "channel": "stable"}))
	var serr *SyncError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SyncError, got %T: %v", err, err)
	}
	if serr.Resource != "linux" {
		t.Errorf("sync error resource = %q, want linux", serr.Resource)
	}

	got, err := os.ReadFile(s.LocalPath("linux"))
	if err != nil {
		t.Fatalf("read local manifest: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("local manifest must be restored byte for byte:\n got: %s\nwant: %s", got, original)
	}
	if _, ok := rs.object(testObject); ok {
		t.Errorf("remote must stay untouched after a failed upload")
	}
	if _, err := os.Stat(s.LocalPath("linux") + ".bak"); !os.IsNotExist(err) {
		t.Errorf("backup must not outlive the update")
	}
}

func TestUploadFailureWithoutPriorManifest(t *testing.T) {
	rs := newFakeRemote()
	rs.failUpload = true
	s := newTestStore(t, rs)

	err := s.Update("linux", nil, InsertOrReplace(Record{"version": "1.0.0", "channel": "stable"}))
	var serr *SyncError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SyncError, got %T: %v", err, err)
	}

	// rollback restores the state of "no manifest yet"
	if _, err := os.Stat(s.LocalPath("linux")); !os.IsNotExist(err) {
		t.Errorf("rollback must remove the half-published manifest")
	}
}

func TestDownloadFailureFallsBackToLocal(t *testing.T) {
	rs := newFakeRemote()
	rs.failDownload = true
	s := newTestStore(t, rs)

	seed := &Document{Releases: []Record{{"version": "1.0.0", "channel": "stable"}}}
	data, err := seed.Encode()
	if err != nil {
		t.Fatalf("encode seed: %v", err)
	}
	if err := os.WriteFile(s.LocalPath("linux"), data, 0o644); err != nil {
		t.Fatalf("seed local manifest: %v", err)
	}

	if err := s.Update("linux", nil, InsertOrReplace(Record{"version": "1.1.0", "channel": "stable"})); err != nil {
		t.Fatalf("update must survive a failed download: %v", err)
	}

	doc, err := s.Load("linux")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(doc.Releases) != 2 {
		t.Errorf("expected merge on top of the local copy, got %v", doc.Releases)
	}
	if _, ok := rs.object(testObject); !ok {
		t.Errorf("upload must still publish the merged manifest")
	}
}

func TestMissingRemoteObjectStartsFromDefault(t *testing.T) {
	rs := newFakeRemote()
	s := newTestStore(t, rs)

	if err := s.Update("linux", nil, InsertOrReplace(Record{"version": "0.1.0", "channel": "beta"})); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	doc, err := s.Load("linux")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(doc.Releases) != 1 {
		t.Errorf("expected a single release in the fresh manifest, got %v", doc.Releases)
	}
	if _, ok := rs.object(testObject); !ok {
		t.Errorf("fresh manifest must be published to the remote")
	}
}

func TestMergeRejectionLeavesEverythingUntouched(t *testing.T) {
	s := newTestStore(t, nil)

	seed := &Document{Releases: []Record{{"version": "1.0.0", "channel": "stable"}}}
	data, err := seed.Encode()
	if err != nil {
		t.Fatalf("encode seed: %v", err)
	}
	if err := os.WriteFile(s.LocalPath("linux"), data, 0o644); err != nil {
		t.Fatalf("seed local manifest: %v", err)
	}

	err = s.Update("linux", nil, AppendIfAbsent(Record{"version": "1.0.0", "channel": "stable"}))
	var merr *MergeError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MergeError, got %T: %v", err, err)
	}

	got, err := os.ReadFile(s.LocalPath("linux"))
	if err != nil {
		t.Fatalf("read local manifest: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("rejected merge must not change the manifest")
	}
	if _, err := os.Stat(s.LocalPath("linux") + ".bak"); !os.IsNotExist(err) {
		t.Errorf("backup must not outlive the update")
	}
}

func TestCorruptManifestIsMergeRejection(t *testing.T) {
	s := newTestStore(t, nil)

	corrupt := []byte("{broken")
	if err := os.WriteFile(s.LocalPath("linux"), corrupt, 0o644); err != nil {
		t.Fatalf("seed local manifest: %v", err)
	}

	err := s.Update("linux", nil, InsertOrReplace(Record{"version": "1.0.0", "channel": "stable"}))
	var merr *MergeError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MergeError for a corrupt manifest, got %T: %v", err, err)
	}

	got, err := os.ReadFile(s.LocalPath("linux"))
	if err != nil {
		t.Fatalf("read local manifest: %v", err)
	}
	if !bytes.Equal(got, corrupt) {
		t.Errorf("a corrupt manifest must not be overwritten")
	}
}

func TestLocalOnlyMode(t *testing.T) {
	s := newTestStore(t, nil)

	if err := s.Update("linux", nil, InsertOrReplace(Record{"version": "1.0.0", "channel": "stable"})); err != nil {
		t.Fatalf("local-only update failed: %v", err)
	}

	doc, err := s.Load("linux")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(doc.Releases) != 1 {
		t.Errorf("expected one release, got %v", doc.Releases)
	}
}

func TestUpdateRejectsNilMerge(t *testing.T) {
	s := newTestStore(t, nil)
	if err := s.Update("linux", nil, nil); err == nil {
		t.Fatalf("expected error for nil merge function")
	}
}

func TestVerifyAbortHonorsCheckpoints(t *testing.T) {
	for abortAt := 1; abortAt <= 3; abortAt++ {
		t.Run(fmt.Sprintf("checkpoint%d", abortAt), func(t *testing.T) {
			s := newTestStore(t, nil)

			original := []byte(`{"releases": []}` + "\n")
			if err := os.WriteFile(s.LocalPath("linux"), original, 0o644); err != nil {
				t.Fatalf("seed local manifest: %v", err)
			}

			wantErr := errors.New("lock no longer held")
			calls := 0
			verify := func() error {
				calls++
				if calls == abortAt {
					return wantErr
				}
				return nil
			}

			err := s.Update("linux", verify, InsertOrReplace(Record{"version": "1.0.0", "channel": "stable"}))
			if !errors.Is(err, wantErr) {
				t.Fatalf("expected the verify error, got %v", err)
			}

			got, err := os.ReadFile(s.LocalPath("linux"))
			if err != nil {
				t.Fatalf("read local manifest: %v", err)
			}
			if !bytes.Equal(got, original) {
				t.Errorf("abort at checkpoint %d must leave the manifest as before", abortAt)
			}
			if _, err := os.Stat(s.LocalPath("linux") + ".bak"); !os.IsNotExist(err) {
				t.Errorf("backup must not outlive the update")
			}
		})
	}
}

func TestReaderNeverSeesPartialManifest(t *testing.T) {
	s := newTestStore(t, nil)
	local := s.LocalPath("linux")

	stop := make(chan struct{})
	var torn int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			data, err := os.ReadFile(local)
			if err != nil {
				// not written yet
				continue
			}
			var doc Document
			if err := json.Unmarshal(data, &doc); err != nil {
				atomic.StoreInt32(&torn, 1)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		rec := Record{"version": fmt.Sprintf("1.0.%d", i), "channel": "stable"}
		if err := s.Update("linux", nil, InsertOrReplace(rec)); err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()

	if atomic.LoadInt32(&torn) != 0 {
		t.Fatalf("a concurrent reader observed a partial manifest")
	}
}
