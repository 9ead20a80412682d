package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SchemaVersion is the current on-disk cache format version
const SchemaVersion = 3

// versionKey is reserved at the top level of every cache file for the schema
// version tag and never appears as an entry key.
const versionKey = "schema_version"

// blob is a cache file decoded without interpreting entry values, so the
// migration steps can see pre-current value shapes.
type blob struct {
	version int
	entries map[string]json.RawMessage
}

// readBlob loads a cache file. Files written before versioning carry no tag
// and are treated as version 1.
func readBlob(path string) (*blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", path, err)
	}
	b := &blob{version: 1, entries: raw}
	if tag, ok := raw[versionKey]; ok {
		if err := json.Unmarshal(tag, &b.version); err != nil {
			return nil, fmt.Errorf("decode schema version in %s: %w", path, err)
		}
		delete(raw, versionKey)
	}
	return b, nil
}

// decodeEntries converts migrated raw values into typed entries. Nulls stay
// as explicit failed-lookup records.
func decodeEntries(raw map[string]json.RawMessage) (map[string]Entry, error) {
	out := make(map[string]Entry, len(raw))
	for key, value := range raw {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return nil, fmt.Errorf("decode cache entry %q: %w", key, err)
		}
		out[key] = e
	}
	return out, nil
}

// loadNamespace reads, migrates and decodes one cache file. An absent file
// yields an empty namespace at the current schema version.
func loadNamespace(path string) (*Namespace, error) {
	ns := NewNamespace()
	b, err := readBlob(path)
	if os.IsNotExist(err) {
		return ns, nil
	}
	if err != nil {
		return nil, err
	}
	migrate(b)
	entries, err := decodeEntries(b.entries)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", path, err)
	}
	ns.fill(entries)
	return ns, nil
}

// saveNamespace writes the full namespace with the schema version tag at the
// top level. The write goes through a temp file and rename so a crash cannot
// leave a truncated cache behind.
func saveNamespace(path string, ns *Namespace) error {
	out := make(map[string]any, ns.Len()+1)
	out[versionKey] = SchemaVersion
	for key, e := range ns.Snapshot() {
		if key == versionKey {
			continue // reserved for the version tag
		}
		out[key] = e
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
