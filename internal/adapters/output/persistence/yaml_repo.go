package persistence

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. HUE_EMULATOR_DOMOTICZ_URL.
const EnvPrefix = "HUE_EMULATOR"

// YAMLConfigRepository loads the configuration from a YAML file, then lets
// the environment override single values. Devices and scenes come from the
// file only.
type YAMLConfigRepository struct {
	filepath string
}

func NewYAMLConfigRepository(filepath string) *YAMLConfigRepository {
	return &YAMLConfigRepository{filepath: filepath}
}

func (r *YAMLConfigRepository) Get(ctx context.Context) (*model.Config, error) {
	cfg := model.DefaultConfig()

	f, err := os.Open(r.filepath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults and environment only.
	case err != nil:
		return nil, fmt.Errorf("opening config file: %w", err)
	default:
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: parsing %s: %v", model.ErrInvalidConfig, r.filepath, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", model.ErrInvalidConfig, err)
	}
	return cfg, nil
}
