package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const metaFileName = "meta.json"

// newHolderID creates a unique holder identity. Host and pid are included
// for diagnosability, the uuid makes the id collision free.
func newHolderID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString())
}

// writeMeta persists the holder metadata inside a freshly created marker
func writeMeta(markerPath string, meta *Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(markerPath, metaFileName), data, 0o644)
}

// readMeta loads the holder metadata of a marker
func readMeta(markerPath string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(markerPath, metaFileName))
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s: %w", metaFileName, err)
	}
	return &meta, nil
}
