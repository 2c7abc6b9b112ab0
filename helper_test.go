package tickfsm

import (
	"context"
	"fmt"
)

type optional[A any] struct {
	value A
	valid bool
}

type result[A any] struct {
	optional optional[A]
	panicked bool
}

// unarySupplierFunc is a function that doesn't take any arguments and returns a value of type R.
type unarySupplierFunc[R any] func() R

func tryUnarySupplier[R any](supply unarySupplierFunc[R]) (res result[R]) {
	defer func() {
		if r := recover(); r != nil {
			res.panicked = true
		}
	}()
	got := supply()
	res.optional = optional[R]{value: got, valid: true}
	return
}

const (
	idle state = iota
	running
	done
	paused
	broken
)

const (
	start event = iota
	finish
	pause
	resume
	fail
)

type state uint

func (s state) String() string {
	switch s {
	case idle:
		return "idle"
	case running:
		return "running"
	case done:
		return "done"
	case paused:
		return "paused"
	case broken:
		return "broken"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

type event uint

func (e event) String() string {
	switch e {
	case start:
		return "start"
	case finish:
		return "finish"
	case pause:
		return "pause"
	case resume:
		return "resume"
	case fail:
		return "fail"
	default:
		return fmt.Sprintf("event(%d)", e)
	}
}

// scene is the context the test machines operate on. It records every hook call.
type scene struct {
	calls []string
}

func (s *scene) record(hook string, id state) {
	s.calls = append(s.calls, fmt.Sprintf("%s(%v)", hook, id))
}

type (
	testMachine = Machine[state, event, *scene]
	testState   = StateFuncs[state, event, *scene]
)

// tracked returns a state recording its Enter, Update and Exit calls on the scene before delegating to f.
func tracked(id state, f testState) *testState {
	return &testState{
		OnEnter: func(ctx context.Context, m *testMachine) error {
			m.Context().record("enter", id)
			if f.OnEnter != nil {
				return f.OnEnter(ctx, m)
			}
			return nil
		},
		OnUpdate: func(ctx context.Context, m *testMachine) error {
			m.Context().record("update", id)
			if f.OnUpdate != nil {
				return f.OnUpdate(ctx, m)
			}
			return nil
		},
		OnExit: func(ctx context.Context, m *testMachine) error {
			m.Context().record("exit", id)
			if f.OnExit != nil {
				return f.OnExit(ctx, m)
			}
			return nil
		},
		OnError:      f.OnError,
		OnGuardEvent: f.OnGuardEvent,
		OnGuardPop:   f.OnGuardPop,
	}
}

// newTestMachine creates a machine whose states all record their hook calls. Behaviour for specific states can be
// given in overrides.
func newTestMachine(overrides map[state]testState, opts ...Option) (*testMachine, *scene) {
	sc := &scene{}
	m := New[state, event](sc, opts...)
	m.RegisterStateFactory(func(id state) State[state, event, *scene] {
		return tracked(id, overrides[id])
	})
	return m, sc
}

// sendEvent is for hooks which cannot fail the test directly.
func sendEvent(m *testMachine, e event) error {
	accepted, err := m.SendEvent(e)
	if err != nil {
		return err
	}
	if !accepted {
		return fmt.Errorf("event (%v) rejected in state (%s)", e, m.CurrentStateName())
	}
	return nil
}
