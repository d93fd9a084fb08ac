package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// releasesField is the one manifest collection the coordinator interprets
const releasesField = "releases"

// --------------------------------------------------------------------------
// Release records
// --------------------------------------------------------------------------

// Record is one release entry. The schema is owned by the publishing
// pipelines; the store only requires the merge key fields to be present.
type Record map[string]interface{}

// mergeKey joins the values of the key fields into a comparable identity
func (r Record) mergeKey(fields []string) (string, error) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v, ok := r[f]
		if !ok {
			return "", fmt.Errorf("record is missing merge key field %q", f)
		}
		s := fmt.Sprintf("%v", v)
		if s == "" {
			return "", fmt.Errorf("merge key field %q is empty", f)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "|"), nil
}

// --------------------------------------------------------------------------
// Manifest document
// --------------------------------------------------------------------------

// Document is the decoded manifest. Only the releases collection is
// interpreted; every other top level field is carried through untouched.
type Document struct {
	Releases []Record

	// raw bytes of the passthrough fields
	extra map[string]json.RawMessage
}

// NewDocument returns the default manifest used when neither a remote nor a
// local copy exists yet.
func NewDocument() *Document {
	return &Document{Releases: []Record{}}
}

// UnmarshalJSON implements json.Unmarshaler, splitting the releases
// collection from the passthrough fields.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Releases = []Record{}
	d.extra = make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if k == releasesField {
			if err := json.Unmarshal(v, &d.Releases); err != nil {
				return fmt.Errorf("decode %s: %w", releasesField, err)
			}
			if d.Releases == nil {
				// "releases": null counts as empty
				d.Releases = []Record{}
			}
			continue
		}
		d.extra[k] = v
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Passthrough fields keep their raw
// bytes; the field order is stable because encoding/json sorts map keys.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.extra)+1)
	for k, v := range d.extra {
		out[k] = v
	}

	releases := d.Releases
	if releases == nil {
		releases = []Record{}
	}
	data, err := json.Marshal(releases)
	if err != nil {
		return nil, err
	}
	out[releasesField] = data

	return json.Marshal(out)
}

// Encode renders the manifest the way it is stored on disk
func (d *Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeDocument parses manifest bytes
func DecodeDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
