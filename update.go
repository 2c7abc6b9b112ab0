package tickfsm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Update advances the machine by one tick.
//
// The first call enters the start state. Later calls run the Update hook of the current state when no transition is
// staged. Staged transitions are then applied by calling Exit on the current state and Enter on the next one,
// repeatedly, until no transition is staged anymore. Transitions requested from Enter are therefore applied within
// the same call.
//
// Hook failures, panics included, are dispatched according to the UnhandledErrorMode. The machine is idle again
// when Update returns, whatever the outcome. When the very first Enter fails the machine stays stopped and the next
// Update retries the start state.
//
// The ctx handed to hooks is derived from ctx and marks the running pass. A second Update while one is running is
// told apart by that mark only: called with the hook's ctx it fails with ErrRecursiveUpdate, called with any other
// ctx it fails with ErrConcurrentUpdate, even from a hook on the same goroutine. Hooks that call Update must pass on
// the ctx they were given to be reported as recursive.
func (m *Machine[S, E, C]) Update(ctx context.Context) (err error) {
	if m.closed {
		return ErrClosed
	}
	pass, err := m.acquire(ctx)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, passKey{machine: m.id}, pass)
	ctx, span := m.tracer.Start(ctx, "tickfsm.Update",
		trace.WithAttributes(attribute.String("tickfsm.machine", m.id.String())),
	)
	defer func() {
		span.SetAttributes(attribute.String("tickfsm.state", m.CurrentStateName()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if m.current == nil {
		if m.next == nil {
			m.release()
			return ErrNoStartState
		}

		m.current, m.next = m.next, nil
		m.logger.DebugContext(ctx, "starting state machine", slog.String("state", m.current.name))
		span.AddEvent("tickfsm.start", trace.WithAttributes(attribute.String("tickfsm.to", m.current.name)))

		m.phase.Store(int32(PhaseEntering))
		if err := m.invoke(ctx, PhaseEntering, m.current, m.current.state.Enter); err != nil {
			// Not started yet: keep the start state staged so the next Update retries it.
			m.next, m.current = m.current, nil
			m.release()
			return m.handleError(ctx, span, err)
		}
		if m.next == nil {
			m.release()
			return nil
		}
	}

	if err := m.drain(ctx, span); err != nil {
		m.release()
		return m.handleError(ctx, span, err)
	}
	m.release()
	return nil
}

func (m *Machine[S, E, C]) drain(ctx context.Context, span trace.Span) error {
	if m.next == nil {
		m.phase.Store(int32(PhaseUpdating))
		if err := m.invoke(ctx, PhaseUpdating, m.current, m.current.state.Update); err != nil {
			return err
		}
	}

	for m.next != nil {
		m.phase.Store(int32(PhaseExiting))
		if err := m.invoke(ctx, PhaseExiting, m.current, m.current.state.Exit); err != nil {
			return err
		}

		from := m.current
		m.current, m.next = m.next, nil
		m.logger.DebugContext(ctx, "transition", slog.String("from", from.name), slog.String("to", m.current.name))
		span.AddEvent("tickfsm.transition", trace.WithAttributes(
			attribute.String("tickfsm.from", from.name),
			attribute.String("tickfsm.to", m.current.name),
		))

		m.phase.Store(int32(PhaseEntering))
		if err := m.invoke(ctx, PhaseEntering, m.current, m.current.state.Enter); err != nil {
			return err
		}
	}
	return nil
}

// SendEvent stages the transition registered for event, looked up on the current state first and on the any-state
// transitions second. It reports whether the event was accepted. The transition is applied by Update.
//
// The event is rejected when the current state's GuardEvent vetoes it, when a transition is already staged and
// retransition is not allowed, or when no transition is registered for it. Sending an event before the machine has
// started or while a state is exiting is a protocol violation.
func (m *Machine[S, E, C]) SendEvent(event E) (bool, error) {
	if err := m.ensureRunning(); err != nil {
		return false, fmt.Errorf("sending event (%v): %w", event, err)
	}
	if m.Phase() == PhaseExiting {
		return false, fmt.Errorf("sending event (%v) to state (%s): %w", event, m.current.name, ErrSendDuringExit)
	}

	if m.current.state.GuardEvent(m, event) {
		return false, nil
	}
	if m.next != nil && !m.allowRetransition {
		return false, nil
	}
	next, ok := m.current.transitions[event]
	if !ok {
		if next, ok = m.anyState.transitions[event]; !ok {
			return false, nil
		}
	}

	m.next = next
	m.lastEvent = event
	m.hasLastEvent = true
	m.logger.Debug("event accepted",
		slog.Any("event", event),
		slog.String("from", m.current.name),
		slog.String("to", next.name),
	)
	return true, nil
}

func (m *Machine[S, E, C]) acquire(ctx context.Context) (uuid.UUID, error) {
	if !m.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseUpdating)) {
		if pass, ok := ctx.Value(passKey{machine: m.id}).(uuid.UUID); ok {
			if active := m.activePass.Load(); active != nil && *active == pass {
				return uuid.Nil, ErrRecursiveUpdate
			}
		}
		return uuid.Nil, fmt.Errorf("update in progress by owner (%s): %w", m.LastUpdateOwner(), ErrConcurrentUpdate)
	}

	pass := uuid.New()
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		owner = pass
	}
	m.activePass.Store(&pass)
	m.lastOwner.Store(&owner)
	return pass, nil
}

func (m *Machine[S, E, C]) release() {
	m.activePass.Store(nil)
	m.phase.Store(int32(PhaseIdle))
}

func (m *Machine[S, E, C]) invoke(ctx context.Context, phase UpdatePhase, entry *stateEntry[S, E, C], hook Action[S, E, C]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookError{Hook: phase.hook(), State: entry.name, Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()
	if err := hook(ctx, m); err != nil {
		return &HookError{Hook: phase.hook(), State: entry.name, Err: err}
	}
	return nil
}

// handleError runs with the machine idle, so handlers and Error hooks may send events and use the stack.
func (m *Machine[S, E, C]) handleError(ctx context.Context, span trace.Span, err error) error {
	switch m.mode {
	case CatchError:
		for _, handler := range m.handlers {
			if handler(ctx, err) {
				m.logHandled(ctx, span, err, "handler")
				return nil
			}
		}
	case CatchStateError:
		if m.current == nil {
			break
		}
		handled, hookErr := m.offerToState(ctx, m.current, err)
		if hookErr != nil {
			return errors.Join(err, hookErr)
		}
		if handled {
			m.logHandled(ctx, span, err, "state")
			return nil
		}
	}
	return err
}

func (m *Machine[S, E, C]) offerToState(ctx context.Context, entry *stateEntry[S, E, C], err error) (handled bool, hookErr error) {
	defer func() {
		if r := recover(); r != nil {
			handled = false
			hookErr = &HookError{Hook: "Error", State: entry.name, Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()
	return entry.state.Error(ctx, m, err), nil
}

func (m *Machine[S, E, C]) logHandled(ctx context.Context, span trace.Span, err error, by string) {
	m.logger.WarnContext(ctx, "state hook failure handled",
		slog.String("handled_by", by),
		slog.String("state", m.CurrentStateName()),
		slog.Any("error", err),
	)
	span.AddEvent("tickfsm.error_handled", trace.WithAttributes(
		attribute.String("tickfsm.handled_by", by),
		attribute.String("error", err.Error()),
	))
}
