package providers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Entry is one item of a YAML-backed tab or bookmark list.
type Entry struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	URL    string `yaml:"url"`
	Folder string `yaml:"folder,omitempty"`
	Active bool   `yaml:"active,omitempty"`
}

type collectionFile struct {
	Entries []Entry `yaml:"entries"`
}

// Collection is a list of entries persisted as a YAML file. A missing file
// is an empty list. Entries without an id get one on first load.
type Collection struct {
	path string
	mu   sync.Mutex
}

// NewCollection returns a collection stored at path.
func NewCollection(path string) *Collection {
	return &Collection{path: path}
}

// Path returns the backing file.
func (c *Collection) Path() string {
	return c.path
}

// Load returns every entry.
func (c *Collection) Load() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// Save replaces the stored entries.
func (c *Collection) Save(entries []Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(entries)
}

// Update loads, applies fn and saves the result.
func (c *Collection) Update(fn func([]Entry) ([]Entry, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load()
	if err != nil {
		return err
	}
	entries, err = fn(entries)
	if err != nil {
		return err
	}
	return c.save(entries)
}

// Find returns the entry with id.
func (c *Collection) Find(id string) (Entry, bool, error) {
	entries, err := c.Load()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Remove deletes the entry with id and reports whether it existed.
func (c *Collection) Remove(id string) (bool, error) {
	found := false
	err := c.Update(func(entries []Entry) ([]Entry, error) {
		out := entries[:0]
		for _, e := range entries {
			if e.ID == id {
				found = true
				continue
			}
			out = append(out, e)
		}
		return out, nil
	})
	return found, err
}

func (c *Collection) load() ([]Entry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", c.path, err)
	}

	var file collectionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", c.path, err)
	}

	assigned := false
	for i := range file.Entries {
		if file.Entries[i].ID == "" {
			file.Entries[i].ID = uuid.NewString()
			assigned = true
		}
	}
	if assigned {
		if err := c.save(file.Entries); err != nil {
			return nil, err
		}
	}
	return file.Entries, nil
}

func (c *Collection) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := yaml.Marshal(collectionFile{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", c.path, err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.path, err)
	}
	return os.Rename(tmp, c.path)
}
