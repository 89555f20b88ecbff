package service

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
	"domoticz-hue-emulator/internal/domain/translator"
	"domoticz-hue-emulator/internal/ports"
	"fmt"
	"strings"
)

type ConfigService struct {
	repo ports.ConfigRepository
}

func NewConfigService(repo ports.ConfigRepository) *ConfigService {
	return &ConfigService{
		repo: repo,
	}
}

// Load reads and validates the configuration and derives the light namespace.
func (s *ConfigService) Load(ctx context.Context) (*model.Config, []model.Light, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	lights := cfg.Lights()
	var errs []string
	for _, l := range lights {
		if _, err := translator.NewLevelScale(l.Level); err != nil {
			errs = append(errs, fmt.Sprintf("light %q: %v", l.Name, err))
		}
	}
	if len(errs) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", model.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return cfg, lights, nil
}
