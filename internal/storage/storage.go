// Package storage persists small whole-document JSON files atomically.
//
// The queue, the identity cache, and the device state are each one bounded
// JSON document rewritten on every mutation. A failed write must never
// truncate a previously valid image, so every save goes through a temp file
// in the same directory followed by a rename.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SaveJSON marshals v and atomically replaces the document at path.
//
// The temp file is fsynced before the rename so a power loss at any point
// leaves either the old image or the new one, never a torn file.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("save %s: marshal: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save %s: create temp: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save %s: write temp: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save %s: sync temp: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save %s: close temp: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save %s: rename: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadJSON reads the document at path into v.
// A missing file is not an error: v is left untouched and ok is false.
func LoadJSON(path string, v any) (ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("load %s: parse: %w", filepath.Base(path), err)
	}
	return true, nil
}

// Remove deletes the document at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
