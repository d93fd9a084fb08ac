package util

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/relgate/relgate/common"
)

func remoteConfig(endpoint string) *common.CoordinatorConfig {
	return &common.CoordinatorConfig{Remote: common.RemoteConfig{Endpoint: endpoint}}
}

func TestGetRemoteLocalOnly(t *testing.T) {
	rs, err := GetRemote(remoteConfig(""))
	if err != nil {
		t.Fatalf("local-only must not fail: %v", err)
	}
	if rs != nil {
		t.Errorf("no endpoint must mean no remote, got %T", rs)
	}
}

func TestGetRemoteDirectoryEndpoint(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bucket")

	rs, err := GetRemote(remoteConfig(dir))
	if err != nil {
		t.Fatalf("directory endpoint failed: %v", err)
	}
	defer rs.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("the filesystem remote must create its base directory: %v", err)
	}
}

func TestGetRemoteHTTPEndpoint(t *testing.T) {
	rs, err := GetRemote(remoteConfig("http://127.0.0.1:9/manifests"))
	if err != nil {
		t.Fatalf("http endpoint failed: %v", err)
	}
	if rs == nil {
		t.Fatalf("expected a remote for an http endpoint")
	}
	_ = rs.Close()
}

func TestGetRemoteRejectsUnknownScheme(t *testing.T) {
	for _, endpoint := range []string{"ftp://cdn.example.com/releases", "s3://bucket/releases"} {
		rs, err := GetRemote(remoteConfig(endpoint))
		if err == nil || !strings.Contains(err.Error(), "unsupported remote scheme") {
			t.Errorf("endpoint %q must be rejected, got rs=%v err=%v", endpoint, rs, err)
		}
	}
}

func TestSplitFields(t *testing.T) {
	tests := map[string]struct {
		in   string
		want []string
	}{
		"plain":          {"version,channel", []string{"version", "channel"}},
		"spaced":         {" version , channel ", []string{"version", "channel"}},
		"empty pieces":   {"version,,channel,", []string{"version", "channel"}},
		"single":         {"build_id", []string{"build_id"}},
		"nothing usable": {" , ", nil},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := SplitFields(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitFields(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
