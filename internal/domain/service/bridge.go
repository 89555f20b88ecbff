package service

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
	"domoticz-hue-emulator/internal/domain/registry"
	"domoticz-hue-emulator/internal/domain/translator"
	"domoticz-hue-emulator/internal/ports"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Logger is the logging interface the service needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type BridgeService struct {
	backend           ports.BackendPort
	identities        ports.IdentityRepository
	registry          *registry.Registry
	translatorFactory *translator.Factory
	logger            Logger
	observer          ports.CommandObserver

	// Commands for one light run one at a time, so its plan is always made
	// against the state the previous command left.
	commandLocks map[string]*sync.Mutex

	identityMu sync.Mutex
	identity   model.Identity

	reconcileMu sync.Mutex
}

func NewBridgeService(backend ports.BackendPort, identities ports.IdentityRepository, reg *registry.Registry, identity model.Identity) *BridgeService {
	s := &BridgeService{
		backend:           backend,
		identities:        identities,
		registry:          reg,
		translatorFactory: translator.NewFactory(),
		logger:            noopLogger{},
		commandLocks:      make(map[string]*sync.Mutex, reg.Len()),
		identity:          identity,
	}
	for _, v := range reg.List() {
		s.commandLocks[v.Light.ID] = &sync.Mutex{}
	}
	return s
}

// SetLogger sets the logger for the service.
func (s *BridgeService) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetObserver registers a receiver for command outcomes.
func (s *BridgeService) SetObserver(o ports.CommandObserver) {
	s.observer = o
}

func (s *BridgeService) ListLights(ctx context.Context) []model.LightView {
	views := s.registry.List()
	for i := range views {
		views[i].Metadata = s.translatorFactory.GetTranslator(views[i].Light).GetMetadata()
	}
	return views
}

func (s *BridgeService) GetLight(ctx context.Context, id string) (model.LightView, error) {
	v, err := s.registry.Get(id)
	if err != nil {
		return model.LightView{}, err
	}
	v.Metadata = s.translatorFactory.GetTranslator(v.Light).GetMetadata()
	return v, nil
}

// SetLightState plans the backend commands for a request, runs them in order
// and applies the accepted attributes to the registry. Once the backend has
// proved unreachable the remaining commands of the request are not sent.
func (s *BridgeService) SetLightState(ctx context.Context, id string, update model.StateUpdate) ([]model.AttributeResult, error) {
	lock, ok := s.commandLocks[id]
	if !ok {
		return nil, fmt.Errorf("light %s: %w", id, model.ErrLightNotFound)
	}
	lock.Lock()
	defer lock.Unlock()

	view, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	light := view.Light
	steps := s.translatorFactory.GetTranslator(light).Plan(light, view.State, update)

	var results []model.AttributeResult
	var unreachable error
	for _, step := range steps {
		err := step.Err
		executed := false
		if err == nil && step.Command != nil {
			if unreachable != nil {
				err = unreachable
			} else {
				executed = true
				err = s.backend.Execute(ctx, light.Target(), step.Command)
				if s.observer != nil {
					s.observer.ObserveCommand(step.Command, err)
				}
				if model.Unreachable(err) {
					unreachable = err
				}
			}
		}
		for _, r := range step.Results {
			r.Err = err
			results = append(results, r)
		}
		if err != nil {
			s.logger.Warn("light command failed", "light", id, "name", light.Name, "error", err)
			if executed && !model.Unreachable(err) {
				// The backend answered, so the light is reachable.
				if _, err := s.registry.ApplyOptimistic(id, model.StatePatch{}); err != nil {
					return nil, err
				}
			}
			continue
		}
		switch {
		case step.Command != nil:
			_, err = s.registry.ApplyOptimistic(id, step.Patch)
		case !step.Patch.IsZero():
			_, err = s.registry.ApplyLocal(id, step.Patch)
		}
		if err != nil {
			return nil, err
		}
	}

	if unreachable != nil {
		if err := s.registry.MarkUnreachable(id); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Pair answers the link handshake with a new username and records it.
func (s *BridgeService) Pair(ctx context.Context, deviceType string) (string, error) {
	username := strings.ReplaceAll(uuid.NewString(), "-", "")

	s.identityMu.Lock()
	s.identity.Usernames = append(s.identity.Usernames, username)
	snapshot := s.identityCopy()
	s.identityMu.Unlock()

	if s.identities != nil {
		if err := s.identities.Save(ctx, &snapshot); err != nil {
			// The username works regardless; it is only lost across restarts.
			s.logger.Warn("persisting paired username failed", "error", err)
		}
	}
	s.logger.Info("client paired", "devicetype", deviceType, "username", username)
	return username, nil
}

func (s *BridgeService) Identity() model.Identity {
	s.identityMu.Lock()
	defer s.identityMu.Unlock()
	return s.identityCopy()
}

// identityCopy must be called with identityMu held.
func (s *BridgeService) identityCopy() model.Identity {
	id := s.identity
	id.Usernames = append([]string(nil), s.identity.Usernames...)
	return id
}
