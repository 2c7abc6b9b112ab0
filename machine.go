// Package tickfsm provides a generic, tick-driven state machine for Go.
//
// A Machine drives an owning context through states connected by event-triggered transitions. The host calls
// Update once per tick and SendEvent whenever a transition should be requested; transitions are staged by
// SendEvent and applied by the next Update.
//
// Features:
//   - Per-state transition tables plus wildcard (any-state) transitions.
//   - Enter/Update/Exit lifecycle hooks with event and pop guards.
//   - Transition chains requested from Enter are drained within the same Update.
//   - A state stack with push/pop semantics.
//   - Three policies for hook failures: return, hand to a handler, or hand to the current state.
//   - Detection of recursive and concurrent Update calls.
//
// Usage:
//
//	type State uint
//	type Event uint
//
//	m := tickfsm.New[State, Event](scene)
//	_ = m.RegisterState(Loading, &loadingState{})
//	_ = m.AddTransition(Loading, Playing, Loaded)
//	_ = m.AddAnyTransition(Paused, Pause)
//	_ = m.SetStartState(Loading)
//
//	for range ticker.C {
//		if err := m.Update(ctx); err != nil {
//			// .. handle error ..
//		}
//	}
package tickfsm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Machine is a state machine instance. It owns its transition tables, its state instances and its state stack.
//
// A Machine is not safe for concurrent use. It detects concurrent and recursive Update calls and rejects them,
// but it never synchronises callers.
type Machine[S, E comparable, C any] struct {
	id      uuid.UUID
	context C

	phase      atomic.Int32
	activePass atomic.Pointer[uuid.UUID]
	lastOwner  atomic.Pointer[uuid.UUID]

	states    map[S]*stateEntry[S, E, C]
	order     []*stateEntry[S, E, C]
	anyState  *stateEntry[S, E, C]
	factories []factoryEntry[S, E, C]
	handlers  []UnhandledErrorHandler

	current *stateEntry[S, E, C]
	next    *stateEntry[S, E, C]
	stack   []*stateEntry[S, E, C]

	lastEvent    E
	hasLastEvent bool
	closed       bool

	allowRetransition bool
	mode              UnhandledErrorMode
	logger            *slog.Logger
	tracer            trace.Tracer
}

type factoryEntry[S, E comparable, C any] struct {
	id      uuid.UUID
	factory StateFactory[S, E, C]
}

// New creates a state machine operating on subject, the object every state works with. It panics if subject is nil.
func New[S, E comparable, C any](subject C, opts ...Option) *Machine[S, E, C] {
	if isNil(subject) {
		panic("state machine context must not be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	var zero S
	return &Machine[S, E, C]{
		id:                id,
		context:           subject,
		states:            make(map[S]*stateEntry[S, E, C]),
		anyState:          &stateEntry[S, E, C]{id: zero, name: "AnyState", transitions: make(map[E]*stateEntry[S, E, C])},
		allowRetransition: o.allowRetransition,
		mode:              o.mode,
		logger:            o.logger.With(slog.String("machine", id.String())),
		tracer:            o.tracer,
	}
}

// ID returns the identity of the machine.
func (m *Machine[S, E, C]) ID() uuid.UUID {
	return m.id
}

// Context returns the object the machine operates on.
func (m *Machine[S, E, C]) Context() C {
	return m.context
}

// Running reports whether the machine has a current state.
func (m *Machine[S, E, C]) Running() bool {
	return m.current != nil
}

// Updating reports whether the machine is running and in the middle of an Update.
func (m *Machine[S, E, C]) Updating() bool {
	return m.Running() && m.Phase() != PhaseIdle
}

// Phase returns the update phase the machine is in.
func (m *Machine[S, E, C]) Phase() UpdatePhase {
	return UpdatePhase(m.phase.Load())
}

// CurrentState returns the id of the current state. The boolean is false when the machine is not running.
func (m *Machine[S, E, C]) CurrentState() (S, bool) {
	if m.current == nil {
		var zero S
		return zero, false
	}
	return m.current.id, true
}

// IsCurrentState reports whether id is the current state.
func (m *Machine[S, E, C]) IsCurrentState(id S) bool {
	return m.current != nil && m.current.id == id
}

// CurrentStateName returns the printed id of the current state, or an empty string when the machine is not running.
func (m *Machine[S, E, C]) CurrentStateName() string {
	if m.current == nil {
		return ""
	}
	return m.current.name
}

// StackDepth returns the number of states on the state stack.
func (m *Machine[S, E, C]) StackDepth() int {
	return len(m.stack)
}

// LastAcceptedEvent returns the last event accepted by SendEvent. The boolean is false if none was accepted yet.
func (m *Machine[S, E, C]) LastAcceptedEvent() (E, bool) {
	return m.lastEvent, m.hasLastEvent
}

// LastUpdateOwner returns the owner of the last Update call. It is the owner attached with WithOwner, or a fresh
// id per Update when the caller's context has none. It is uuid.Nil before the first Update.
func (m *Machine[S, E, C]) LastUpdateOwner() uuid.UUID {
	if owner := m.lastOwner.Load(); owner != nil {
		return *owner
	}
	return uuid.Nil
}

// AllowRetransition reports whether a staged transition may be replaced before it is applied.
func (m *Machine[S, E, C]) AllowRetransition() bool {
	return m.allowRetransition
}

// SetAllowRetransition sets whether a staged transition may be replaced before it is applied.
func (m *Machine[S, E, C]) SetAllowRetransition(allow bool) {
	m.allowRetransition = allow
}

// UnhandledErrorMode returns how hook failures are dispatched.
func (m *Machine[S, E, C]) UnhandledErrorMode() UnhandledErrorMode {
	return m.mode
}

// SetUnhandledErrorMode sets how hook failures are dispatched.
func (m *Machine[S, E, C]) SetUnhandledErrorMode(mode UnhandledErrorMode) {
	m.mode = mode
}

// RegisterUnhandledErrorHandler adds a handler offered hook failures in CatchError mode. Handlers are called in
// registration order until one reports the error handled.
func (m *Machine[S, E, C]) RegisterUnhandledErrorHandler(handler UnhandledErrorHandler) {
	if handler == nil {
		panic("unhandled error handler must not be nil")
	}
	m.handlers = append(m.handlers, handler)
}

// Close releases every state instance owned by the machine. States implementing io.Closer are closed in the order
// they were instantiated. Every operation on a closed machine fails with ErrClosed.
func (m *Machine[S, E, C]) Close() error {
	if m.closed {
		return ErrClosed
	}
	if !m.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseExiting)) {
		return ErrUpdateInProgress
	}
	defer m.phase.Store(int32(PhaseIdle))

	var errs []error
	for _, entry := range m.order {
		if closer, ok := entry.state.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	m.closed = true
	m.states = nil
	m.order = nil
	m.factories = nil
	m.handlers = nil
	m.current = nil
	m.next = nil
	m.stack = nil
	return errors.Join(errs...)
}

func (m *Machine[S, E, C]) ensureRunning() error {
	if m.closed {
		return ErrClosed
	}
	if m.current == nil {
		return ErrNotRunning
	}
	return nil
}

type ownerKey struct{}

// WithOwner returns a copy of ctx naming the execution context that calls Update.
func WithOwner(ctx context.Context, owner uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the owner attached to ctx with WithOwner.
func OwnerFromContext(ctx context.Context) (uuid.UUID, bool) {
	owner, ok := ctx.Value(ownerKey{}).(uuid.UUID)
	return owner, ok
}

// passKey marks contexts handed to hooks during an Update of a specific machine.
type passKey struct {
	machine uuid.UUID
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
