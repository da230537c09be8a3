// Package names persists the row-aligned declaration name table.
package names

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Write stores names as a JSON array at path.
func Write(path string, names []string) error {
	if names == nil {
		names = []string{}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("cannot write names %s: %w", path, err)
	}
	return nil
}

// Read loads the name table at path.
func Read(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read names %s: %w", path, err)
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return nil, fmt.Errorf("invalid names %s: %w", path, err)
	}
	return names, nil
}
