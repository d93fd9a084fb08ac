package publish

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func setRecordFlags(t *testing.T, version, channel, archive, sha, recordJSON string) {
	t.Helper()
	viper.Set("version", version)
	viper.Set("channel", channel)
	viper.Set("archive", archive)
	viper.Set("sha256", sha)
	viper.Set("record-json", recordJSON)
	t.Cleanup(viper.Reset)
}

func TestBuildRecordFromFlags(t *testing.T) {
	setRecordFlags(t, "1.2.3", "stable", "app-1.2.3.zip", "deadbeef", "")

	rec, err := buildRecord()
	if err != nil {
		t.Fatalf("buildRecord failed: %v", err)
	}
	if rec["version"] != "1.2.3" || rec["channel"] != "stable" {
		t.Errorf("unexpected record: %v", rec)
	}
	if rec["archive"] != "app-1.2.3.zip" || rec["sha256"] != "deadbeef" {
		t.Errorf("optional fields missing: %v", rec)
	}
	published, ok := rec["published_at"].(string)
	if !ok {
		t.Fatalf("published_at missing: %v", rec)
	}
	if _, err := time.Parse(time.RFC3339, published); err != nil {
		t.Errorf("published_at %q is not RFC3339: %v", published, err)
	}
}

func TestBuildRecordSkipsEmptyOptionalFields(t *testing.T) {
	setRecordFlags(t, "1.2.3", "beta", "", "", "")

	rec, err := buildRecord()
	if err != nil {
		t.Fatalf("buildRecord failed: %v", err)
	}
	if _, ok := rec["archive"]; ok {
		t.Errorf("empty archive must not appear in the record: %v", rec)
	}
	if _, ok := rec["sha256"]; ok {
		t.Errorf("empty sha256 must not appear in the record: %v", rec)
	}
}

func TestBuildRecordFromJSON(t *testing.T) {
	setRecordFlags(t, "", "", "", "", `{"version": "2.0.0", "channel": "beta", "notes": "first rc"}`)

	rec, err := buildRecord()
	if err != nil {
		t.Fatalf("buildRecord failed: %v", err)
	}
	if rec["version"] != "2.0.0" || rec["channel"] != "beta" || rec["notes"] != "first rc" {
		t.Errorf("unexpected record: %v", rec)
	}
	if _, ok := rec["published_at"]; ok {
		t.Errorf("a verbatim record must not be amended: %v", rec)
	}
}

func TestBuildRecordRejectsBadInput(t *testing.T) {
	tests := map[string]struct {
		version    string
		recordJSON string
		wantErr    string
	}{
		"missing version":     {wantErr: "--version or --record-json"},
		"invalid record JSON": {recordJSON: "{broken", wantErr: "invalid record JSON"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			setRecordFlags(t, tt.version, "", "", "", tt.recordJSON)
			_, err := buildRecord()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q error, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStartMetricsPushValidatesTarget(t *testing.T) {
	if err := startMetricsPush(""); err != nil {
		t.Errorf("empty push target must be a no-op, got %v", err)
	}
	if err := startMetricsPush("ftp://metrics.invalid/push"); err == nil {
		t.Errorf("expected an error for an unusable push target")
	}
}
