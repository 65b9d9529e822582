package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FlagStore persists the selected configuration id. An empty path keeps the
// selection in memory only.
type FlagStore struct {
	path string

	mu       sync.Mutex
	selected string
	loaded   bool
}

type flagFile struct {
	SelectedStorage string `yaml:"selected_storage"`
}

// NewFlagStore creates a flag store backed by a YAML file at path
func NewFlagStore(path string) *FlagStore {
	return &FlagStore{path: path}
}

// Selected returns the selected configuration id, or "" when none was saved
func (f *FlagStore) Selected() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loaded || f.path == "" {
		return f.selected, nil
	}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.loaded = true
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read selection file: %w", err)
	}

	var file flagFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return "", fmt.Errorf("failed to parse selection file %s: %w", f.path, err)
	}
	f.selected = file.SelectedStorage
	f.loaded = true
	return f.selected, nil
}

// SetSelected records id as the selected configuration
func (f *FlagStore) SetSelected(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.path != "" {
		data, err := yaml.Marshal(flagFile{SelectedStorage: id})
		if err != nil {
			return fmt.Errorf("failed to encode selection: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
			return fmt.Errorf("failed to create selection directory: %w", err)
		}
		tmp := f.path + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return fmt.Errorf("failed to write selection file: %w", err)
		}
		if err := os.Rename(tmp, f.path); err != nil {
			return fmt.Errorf("failed to replace selection file: %w", err)
		}
	}

	f.selected = id
	f.loaded = true
	return nil
}
