package tickfsm

import (
	"context"
	"fmt"
)

// UpdatePhase tells where in the update lifecycle a machine currently is.
type UpdatePhase int32

const (
	PhaseIdle UpdatePhase = iota
	PhaseEntering
	PhaseUpdating
	PhaseExiting
)

func (p UpdatePhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEntering:
		return "entering"
	case PhaseUpdating:
		return "updating"
	case PhaseExiting:
		return "exiting"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

func (p UpdatePhase) hook() string {
	switch p {
	case PhaseEntering:
		return "Enter"
	case PhaseUpdating:
		return "Update"
	case PhaseExiting:
		return "Exit"
	default:
		return p.String()
	}
}

// State is a unit of behaviour driven by a Machine. At most one state is active per machine at a time. Every hook
// receives the machine driving it, which gives access to the owning context and lets the state request transitions.
type State[S, E comparable, C any] interface {
	// Enter is called when the state becomes the current state.
	Enter(ctx context.Context, m *Machine[S, E, C]) error
	// Update is called once per Machine.Update while the state is current and no transition is pending.
	Update(ctx context.Context, m *Machine[S, E, C]) error
	// Exit is called when the state stops being the current state.
	Exit(ctx context.Context, m *Machine[S, E, C]) error
	// Error is offered hook failures when the machine runs in CatchStateError mode. It reports whether the error
	// was handled.
	Error(ctx context.Context, m *Machine[S, E, C], err error) bool
	// GuardEvent vetoes an event sent while the state is current when it returns true.
	GuardEvent(m *Machine[S, E, C], event E) bool
	// GuardPop vetoes popping the state stack while the state is current when it returns true.
	GuardPop(m *Machine[S, E, C]) bool
}

// Action is the signature of the Enter, Update and Exit hooks.
type Action[S, E comparable, C any] func(ctx context.Context, m *Machine[S, E, C]) error

// StateFactory builds the state instance for an id. It returns nil when it does not know the id.
type StateFactory[S, E comparable, C any] func(id S) State[S, E, C]

// BaseState implements State with no behaviour. Embed it to only override the hooks a state needs.
type BaseState[S, E comparable, C any] struct{}

func (BaseState[S, E, C]) Enter(context.Context, *Machine[S, E, C]) error { return nil }

func (BaseState[S, E, C]) Update(context.Context, *Machine[S, E, C]) error { return nil }

func (BaseState[S, E, C]) Exit(context.Context, *Machine[S, E, C]) error { return nil }

func (BaseState[S, E, C]) Error(context.Context, *Machine[S, E, C], error) bool { return false }

func (BaseState[S, E, C]) GuardEvent(*Machine[S, E, C], E) bool { return false }

func (BaseState[S, E, C]) GuardPop(*Machine[S, E, C]) bool { return false }

// StateFuncs is a State assembled from functions. Nil fields behave like BaseState.
type StateFuncs[S, E comparable, C any] struct {
	OnEnter      Action[S, E, C]
	OnUpdate     Action[S, E, C]
	OnExit       Action[S, E, C]
	OnError      func(ctx context.Context, m *Machine[S, E, C], err error) bool
	OnGuardEvent func(m *Machine[S, E, C], event E) bool
	OnGuardPop   func(m *Machine[S, E, C]) bool
}

func (f *StateFuncs[S, E, C]) Enter(ctx context.Context, m *Machine[S, E, C]) error {
	if f.OnEnter == nil {
		return nil
	}
	return f.OnEnter(ctx, m)
}

func (f *StateFuncs[S, E, C]) Update(ctx context.Context, m *Machine[S, E, C]) error {
	if f.OnUpdate == nil {
		return nil
	}
	return f.OnUpdate(ctx, m)
}

func (f *StateFuncs[S, E, C]) Exit(ctx context.Context, m *Machine[S, E, C]) error {
	if f.OnExit == nil {
		return nil
	}
	return f.OnExit(ctx, m)
}

func (f *StateFuncs[S, E, C]) Error(ctx context.Context, m *Machine[S, E, C], err error) bool {
	if f.OnError == nil {
		return false
	}
	return f.OnError(ctx, m, err)
}

func (f *StateFuncs[S, E, C]) GuardEvent(m *Machine[S, E, C], event E) bool {
	if f.OnGuardEvent == nil {
		return false
	}
	return f.OnGuardEvent(m, event)
}

func (f *StateFuncs[S, E, C]) GuardPop(m *Machine[S, E, C]) bool {
	if f.OnGuardPop == nil {
		return false
	}
	return f.OnGuardPop(m)
}

// stateEntry is the cached singleton of a state id together with its outgoing transitions.
type stateEntry[S, E comparable, C any] struct {
	id          S
	name        string
	state       State[S, E, C]
	transitions map[E]*stateEntry[S, E, C]
	// placeholder is set while state is the BaseState fallback. RegisterState and later factories may replace it
	// until the machine starts.
	placeholder bool
}

func newStateEntry[S, E comparable, C any](id S, state State[S, E, C]) *stateEntry[S, E, C] {
	return &stateEntry[S, E, C]{
		id:          id,
		name:        fmt.Sprintf("%v", id),
		state:       state,
		transitions: make(map[E]*stateEntry[S, E, C]),
	}
}
