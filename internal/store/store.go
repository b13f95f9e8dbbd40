// Package store persists event specs in a YAML file.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"schedcal/internal/config"
	appLog "schedcal/internal/log"
	"schedcal/internal/model"
)

// document is the on-disk layout of the events file.
type document struct {
	Events []model.EventSpec `yaml:"events"`
}

// File is a YAML events file. Save may be called from several goroutines.
type File struct {
	path string
	mu   sync.Mutex
}

// Open returns a File for path. The file is not touched until Load or Save.
func Open(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("events file path is empty")
	}
	return &File{path: path}, nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load reads all event specs. A missing file yields an empty list.
func (f *File) Load() ([]model.EventSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Info("events file not found; starting empty", "path", f.path)
			return []model.EventSpec{}, nil
		}
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}

	out := make([]model.EventSpec, 0, len(doc.Events))
	for i, spec := range doc.Events {
		if spec.Name == "" {
			appLog.Error("skipping stored event without name", errors.New("missing name"), "path", f.path, "index", i)
			continue
		}
		out = append(out, spec)
	}
	appLog.Debug("events file loaded", "path", f.path, "count", len(out))
	return out, nil
}

// Save replaces the file contents with specs, written atomically with
// 0600 permissions.
func (f *File) Save(specs []model.EventSpec) error {
	if specs == nil {
		specs = []model.EventSpec{}
	}
	data, err := yaml.Marshal(&document{Events: specs})
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := config.WriteFileAtomic(f.path, data, ".schedcal-events-*.tmp"); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	appLog.Debug("events file saved", "path", f.path, "count", len(specs))
	return nil
}
