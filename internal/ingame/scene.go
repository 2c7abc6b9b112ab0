// Package ingame drives a demo scene with a tickfsm.Machine.
//
// The scene cycles through rounds of Initialization, DemoInitialization, DemoStart and DemoResult until the
// configured number of rounds is played, then shuts down. The Controller ticks the machine at a fixed frame rate
// and feeds it the events posted by background work.
package ingame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tobbstr/tickfsm"
)

// StateID identifies the states of the scene.
type StateID int

const (
	Initialization StateID = iota
	DemoInitialization
	DemoStart
	DemoResult
	Shutdown
)

func (s StateID) String() string {
	switch s {
	case Initialization:
		return "Initialization"
	case DemoInitialization:
		return "DemoInitialization"
	case DemoStart:
		return "DemoStart"
	case DemoResult:
		return "DemoResult"
	case Shutdown:
		return "Shutdown"
	default:
		return fmt.Sprintf("StateID(%d)", int(s))
	}
}

// Event is sent to the machine to move the scene along.
type Event int

const (
	OnInitialized Event = iota
	OnDemoStarted
	OnDemoFinished
	OnNextDemoStarted
	OnAbort
)

func (e Event) String() string {
	switch e {
	case OnInitialized:
		return "OnInitialized"
	case OnDemoStarted:
		return "OnDemoStarted"
	case OnDemoFinished:
		return "OnDemoFinished"
	case OnNextDemoStarted:
		return "OnNextDemoStarted"
	case OnAbort:
		return "OnAbort"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Machine is the state machine driving a Scene.
type Machine = tickfsm.Machine[StateID, Event, *Scene]

// Config holds the pacing of the scene.
type Config struct {
	// FrameInterval is the time between two ticks.
	FrameInterval time.Duration
	// DemoDuration is how long a demo runs before it reports being finished.
	DemoDuration time.Duration
	// ResultTicks is the number of ticks the result of a round is shown.
	ResultTicks int
	// Rounds is the number of demos played before the scene shuts down.
	Rounds int
	// ErrorMode decides what happens to state hook failures.
	ErrorMode tickfsm.UnhandledErrorMode
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.FrameInterval <= 0:
		return errors.New("frame interval must be positive")
	case c.DemoDuration < 0:
		return errors.New("demo duration must not be negative")
	case c.ResultTicks < 1:
		return errors.New("result ticks must be at least 1")
	case c.Rounds < 1:
		return errors.New("rounds must be at least 1")
	}
	return nil
}

// Scene is the context shared by the states of the machine.
type Scene struct {
	cfg    Config
	logger *slog.Logger

	// inbox receives the events posted by background work. Only the controller drains it.
	inbox chan Event
	// work runs background work. It is set by the controller for the duration of a run.
	work    *errgroup.Group
	workCtx context.Context

	round     int
	resources map[string]int
}

func newScene(cfg Config, logger *slog.Logger) *Scene {
	return &Scene{
		cfg:       cfg,
		logger:    logger,
		inbox:     make(chan Event, 8),
		resources: make(map[string]int),
	}
}

// Round returns the number of the round being played, starting at 1.
func (s *Scene) Round() int {
	return s.round
}

// Held returns the names of the resources currently held, sorted.
func (s *Scene) Held() []string {
	return slices.Sorted(maps.Keys(s.resources))
}

func (s *Scene) acquire(name string) {
	s.resources[name]++
}

func (s *Scene) release(name string) {
	if s.resources[name] <= 1 {
		delete(s.resources, name)
		return
	}
	s.resources[name]--
}

// post sends event to the controller after delay, unless the run ends first.
func (s *Scene) post(event Event, delay time.Duration) {
	ctx := s.workCtx
	s.work.Go(func() error {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil
		}
		select {
		case s.inbox <- event:
		case <-ctx.Done():
		}
		return nil
	})
}
