package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dealwatch/models"
)

// ErrRegistryCorrupt marks a registry file that exists but cannot be read.
// It is surfaced instead of an empty registry so corruption is never
// mistaken for "no monitors".
var ErrRegistryCorrupt = errors.New("registry file corrupt")

type registryFile struct {
	Monitors map[string]*models.Monitor `json:"monitors"`
}

// registry owns the single on-disk monitor mapping. Every mutation is one
// read-modify-write cycle under the exclusive lock; writes go through a
// temp file plus rename so a lock-free reader always sees the last fully
// written version, never a partial write.
type registry struct {
	mu   sync.Mutex
	path string
}

func newRegistry(path string) *registry {
	return &registry{path: path}
}

func (r *registry) load() (map[string]*models.Monitor, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*models.Monitor), nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryCorrupt, err)
	}
	if file.Monitors == nil {
		file.Monitors = make(map[string]*models.Monitor)
	}
	return file.Monitors, nil
}

func (r *registry) save(monitors map[string]*models.Monitor) error {
	data, err := json.MarshalIndent(registryFile{Monitors: monitors}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("write registry: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write registry: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// mutate runs fn on the freshly loaded registry and persists the result,
// all inside the exclusive critical section. fn returning an error aborts
// without writing.
func (r *registry) mutate(fn func(map[string]*models.Monitor) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	monitors, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(monitors); err != nil {
		return err
	}
	return r.save(monitors)
}

// view reads the registry without taking the write lock. Rename-based
// writes guarantee the snapshot is a complete version.
func (r *registry) view() (map[string]*models.Monitor, error) {
	return r.load()
}
