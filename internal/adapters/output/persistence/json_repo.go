package persistence

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONIdentityRepository keeps the bridge identity in a small JSON file.
type JSONIdentityRepository struct {
	filepath string
	mu       sync.RWMutex
}

func NewJSONIdentityRepository(filepath string) *JSONIdentityRepository {
	return &JSONIdentityRepository{filepath: filepath}
}

// Get returns nil when the file does not exist yet.
func (r *JSONIdentityRepository) Get(ctx context.Context) (*model.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var identity model.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", r.filepath, err)
	}
	return &identity, nil
}

// Save replaces the file atomically.
func (r *JSONIdentityRepository) Save(ctx context.Context, identity *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.filepath), ".bridge-state-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.filepath)
}
