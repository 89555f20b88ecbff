package service

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
	"time"
)

// Reconcile reads every light from the backend and refreshes the registry.
// A light written by a command while its read was in flight keeps the newer
// state. Only one pass runs at a time; a call made during a pass returns at once.
func (s *BridgeService) Reconcile(ctx context.Context) error {
	if !s.reconcileMu.TryLock() {
		s.logger.Debug("reconcile already running")
		return nil
	}
	defer s.reconcileMu.Unlock()

	var refreshed, stale, failed int
	for _, listed := range s.registry.List() {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := listed.Light.ID
		// The cached values merged below must be the ones rev guards.
		view, rev, err := s.registry.Snapshot(id)
		if err != nil {
			return err
		}

		backend, err := s.backend.QueryState(ctx, view.Light.Target())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			s.logger.Warn("light state query failed", "light", id, "name", view.Light.Name, "error", err)
			if err := s.registry.MarkUnreachable(id); err != nil {
				return err
			}
			continue
		}

		state := s.project(view, backend)
		if view.Light.IsScene() && !view.Light.SupportsOff {
			// Domoticz keeps reporting such scenes as on after activation.
			state.On = view.State.On
		}
		applied, err := s.registry.RefreshIfUnchanged(id, state, rev)
		if err != nil {
			return err
		}
		if applied {
			refreshed++
		} else {
			stale++
		}
	}
	s.logger.Debug("reconcile finished", "refreshed", refreshed, "superseded", stale, "failed", failed)
	return nil
}

// RunPoller reconciles immediately and then every interval until ctx is done.
// A non-positive interval disables polling.
func (s *BridgeService) RunPoller(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("reconcile failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ApplyBackendEvent refreshes the light behind target with state pushed by
// the backend. It reports whether target is a configured light.
func (s *BridgeService) ApplyBackendEvent(target model.Target, backend model.BackendState) bool {
	id, ok := s.registry.Lookup(target)
	if !ok {
		return false
	}
	view, err := s.registry.Get(id)
	if err != nil {
		return false
	}
	if err := s.registry.Refresh(id, s.project(view, backend)); err != nil {
		return false
	}
	s.logger.Debug("backend event applied", "light", id, "on", backend.On)
	return true
}

// project converts backend state for the light. Color attributes the backend
// did not report keep their cached values.
func (s *BridgeService) project(view model.LightView, backend model.BackendState) model.LightState {
	state := s.translatorFactory.GetTranslator(view.Light).ToHue(backend, view.Light)
	if view.Light.Capability.Colored() && !view.Light.IsScene() && backend.Color == nil {
		state.Hue, state.Sat = view.State.Hue, view.State.Sat
		state.XY, state.CT = view.State.XY, view.State.CT
		if view.State.ColorMode != "" {
			state.ColorMode = view.State.ColorMode
		}
	}
	return state
}
