package ingame

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tobbstr/tickfsm"
)

type baseState = tickfsm.BaseState[StateID, Event, *Scene]

// newState builds the states of the scene. It is registered as the state factory of the machine.
func newState(id StateID) tickfsm.State[StateID, Event, *Scene] {
	switch id {
	case Initialization:
		return &initializationState{}
	case DemoInitialization:
		return &demoInitializationState{}
	case DemoStart:
		return &demoStartState{}
	case DemoResult:
		return &demoResultState{}
	case Shutdown:
		return &shutdownState{}
	default:
		return nil
	}
}

// send stages event, treating a rejection as a failure of the calling hook.
func send(m *Machine, event Event) error {
	accepted, err := m.SendEvent(event)
	if err != nil {
		return err
	}
	if !accepted {
		return fmt.Errorf("event (%s) rejected in state (%s)", event, m.CurrentStateName())
	}
	return nil
}

// holder holds a scene resource from Enter to Exit. Closing the machine releases it when the state is left without
// Exit being called.
type holder struct {
	scene *Scene
	name  string
}

func (h *holder) hold(sc *Scene, name string) {
	h.Close()
	h.scene, h.name = sc, name
	sc.acquire(name)
}

func (h *holder) Close() error {
	if h.scene != nil {
		h.scene.release(h.name)
		h.scene = nil
	}
	return nil
}

type initializationState struct {
	baseState
	holder
}

func (s *initializationState) Enter(ctx context.Context, m *Machine) error {
	s.hold(m.Context(), "scene")
	m.Context().logger.InfoContext(ctx, "scene initialized")
	return send(m, OnInitialized)
}

func (s *initializationState) Exit(ctx context.Context, m *Machine) error {
	return s.Close()
}

type demoInitializationState struct {
	baseState
	holder
}

func (s *demoInitializationState) Enter(ctx context.Context, m *Machine) error {
	sc := m.Context()
	sc.round++
	s.hold(sc, "stream")
	sc.logger.InfoContext(ctx, "demo initialized", slog.Int("round", sc.round))
	return send(m, OnDemoStarted)
}

func (s *demoInitializationState) Exit(ctx context.Context, m *Machine) error {
	return s.Close()
}

// demoStartState runs the demo in the background. The demo posts OnDemoFinished when it is over.
type demoStartState struct {
	baseState
	holder
}

func (s *demoStartState) Enter(ctx context.Context, m *Machine) error {
	sc := m.Context()
	s.hold(sc, "demo")
	sc.logger.InfoContext(ctx, "demo started", slog.Int("round", sc.round), slog.Duration("duration", sc.cfg.DemoDuration))
	sc.post(OnDemoFinished, sc.cfg.DemoDuration)
	return nil
}

func (s *demoStartState) Exit(ctx context.Context, m *Machine) error {
	return s.Close()
}

type demoResultState struct {
	baseState
	holder
	ticks int
}

func (s *demoResultState) Enter(ctx context.Context, m *Machine) error {
	s.ticks = 0
	s.hold(m.Context(), "result")
	return nil
}

func (s *demoResultState) Update(ctx context.Context, m *Machine) error {
	sc := m.Context()
	s.ticks++
	if s.ticks < sc.cfg.ResultTicks {
		return nil
	}
	if sc.round >= sc.cfg.Rounds {
		sc.logger.InfoContext(ctx, "all rounds played", slog.Int("rounds", sc.round))
		return send(m, OnAbort)
	}
	return send(m, OnNextDemoStarted)
}

func (s *demoResultState) Exit(ctx context.Context, m *Machine) error {
	return s.Close()
}

// GuardEvent keeps the result on screen until it has been shown for the configured number of ticks.
func (s *demoResultState) GuardEvent(m *Machine, event Event) bool {
	return event == OnNextDemoStarted && s.ticks < m.Context().cfg.ResultTicks
}

type shutdownState struct {
	baseState
}

func (s *shutdownState) Enter(ctx context.Context, m *Machine) error {
	m.ClearStack()
	m.Context().logger.InfoContext(ctx, "scene shut down", slog.Int("rounds", m.Context().round))
	return nil
}

// GuardEvent makes Shutdown terminal.
func (s *shutdownState) GuardEvent(m *Machine, event Event) bool {
	return true
}
