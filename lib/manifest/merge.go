package manifest

import (
	"fmt"

	"github.com/relgate/relgate/common"
)

// MergeFunc combines a new release into the manifest in memory. It must not
// touch the filesystem; the store decides when the result becomes visible.
type MergeFunc func(doc *Document) error

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// MergeError marks a rejected combine step. The manifest is left untouched
// when a merge fails.
type MergeError struct {
	Reason string
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	return fmt.Sprintf("merge rejected: %s", e.Reason)
}

// NewMergeError creates a new MergeError with a formatted reason.
func NewMergeError(format string, args ...interface{}) *MergeError {
	return &MergeError{Reason: fmt.Sprintf(format, args...)}
}

// --------------------------------------------------------------------------
// Merge policies
// --------------------------------------------------------------------------

// InsertOrReplace is the default policy: a record with the same key
// replaces the existing entry in place, anything else appends at the tail.
// Without explicit keyFields the common.DefaultMergeKeyFields apply.
func InsertOrReplace(rec Record, keyFields ...string) MergeFunc {
	return func(doc *Document) error {
		fields := normalizeKeyFields(keyFields)
		key, err := rec.mergeKey(fields)
		if err != nil {
			return NewMergeError("%v", err)
		}

		for i, existing := range doc.Releases {
			existingKey, err := existing.mergeKey(fields)
			if err != nil {
				// historic entries without the key fields can never collide
				continue
			}
			if existingKey == key {
				doc.Releases[i] = rec
				return nil
			}
		}

		doc.Releases = append(doc.Releases, rec)
		return nil
	}
}

// AppendIfAbsent treats a duplicate key as an error instead of replacing
// the existing entry.
func AppendIfAbsent(rec Record, keyFields ...string) MergeFunc {
	return func(doc *Document) error {
		fields := normalizeKeyFields(keyFields)
		key, err := rec.mergeKey(fields)
		if err != nil {
			return NewMergeError("%v", err)
		}

		for _, existing := range doc.Releases {
			existingKey, err := existing.mergeKey(fields)
			if err != nil {
				continue
			}
			if existingKey == key {
				return NewMergeError("release %s already exists", key)
			}
		}

		doc.Releases = append(doc.Releases, rec)
		return nil
	}
}

func normalizeKeyFields(fields []string) []string {
	if len(fields) == 0 {
		return common.DefaultMergeKeyFields
	}
	return fields
}
