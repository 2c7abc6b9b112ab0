package tickfsm

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

// AddTransition registers a transition from one state to another, taken when event is sent while from is current.
//
// It fails with ErrAlreadyRunning once the machine has started and with ErrDuplicateTransition if from already has
// a transition for event. States named here are instantiated on first reference and cached for the lifetime of the
// machine.
func (m *Machine[S, E, C]) AddTransition(from, to S, event E) error {
	if err := m.checkConfigurable(); err != nil {
		return fmt.Errorf("adding transition from state (%v) to (%v) on event (%v): %w", from, to, event, err)
	}
	return m.addTransition(m.getOrCreateState(from), m.getOrCreateState(to), event)
}

// AddAnyTransition registers a transition into to, taken when event is sent and the current state has no transition
// of its own for it.
func (m *Machine[S, E, C]) AddAnyTransition(to S, event E) error {
	if err := m.checkConfigurable(); err != nil {
		return fmt.Errorf("adding any-state transition to (%v) on event (%v): %w", to, event, err)
	}
	return m.addTransition(m.anyState, m.getOrCreateState(to), event)
}

func (m *Machine[S, E, C]) addTransition(from, to *stateEntry[S, E, C], event E) error {
	if existing, ok := from.transitions[event]; ok {
		m.logger.Error("transition already registered",
			slog.String("from", from.name),
			slog.String("to", existing.name),
			slog.Any("event", event),
		)
		return fmt.Errorf("adding transition from state (%s) to (%s) on event (%v): %w", from.name, to.name, event, ErrDuplicateTransition)
	}
	from.transitions[event] = to
	return nil
}

// SetStartState designates the state entered by the first Update. It may be called again to change the start state
// until the machine has started.
func (m *Machine[S, E, C]) SetStartState(id S) error {
	if err := m.checkConfigurable(); err != nil {
		return fmt.Errorf("setting start state (%v): %w", id, err)
	}
	m.next = m.getOrCreateState(id)
	return nil
}

// RegisterState sets the instance used for id. A state named in a transition before any factory knew it may still
// be registered. It fails with ErrDuplicateState if id already has an instance from an earlier RegisterState or from
// a factory.
func (m *Machine[S, E, C]) RegisterState(id S, state State[S, E, C]) error {
	if isNil(state) {
		panic(fmt.Sprintf("state (%v) must not be nil", id))
	}
	if err := m.checkConfigurable(); err != nil {
		return fmt.Errorf("registering state (%v): %w", id, err)
	}
	if entry, ok := m.states[id]; ok {
		if !entry.placeholder {
			return fmt.Errorf("registering state (%v): %w", id, ErrDuplicateState)
		}
		entry.state, entry.placeholder = state, false
		return nil
	}
	m.cacheState(newStateEntry(id, state))
	return nil
}

// RegisterStateFactory adds a factory consulted when a state id is referenced for the first time. Factories are
// consulted in registration order and the first non-nil state wins. When no factory knows an id, a BaseState
// placeholder is used, which factories registered later replace as long as the machine has not started. The
// returned function removes the factory.
func (m *Machine[S, E, C]) RegisterStateFactory(factory StateFactory[S, E, C]) (unregister func()) {
	if factory == nil {
		panic("state factory must not be nil")
	}
	id := uuid.New()
	m.factories = append(m.factories, factoryEntry[S, E, C]{id: id, factory: factory})
	if !m.closed && !m.Running() {
		for _, entry := range m.order {
			if !entry.placeholder {
				continue
			}
			if s := factory(entry.id); !isNil(s) {
				entry.state, entry.placeholder = s, false
			}
		}
	}
	return func() {
		m.factories = slices.DeleteFunc(m.factories, func(f factoryEntry[S, E, C]) bool {
			return f.id == id
		})
	}
}

func (m *Machine[S, E, C]) checkConfigurable() error {
	if m.closed {
		return ErrClosed
	}
	if m.Running() {
		return ErrAlreadyRunning
	}
	return nil
}

func (m *Machine[S, E, C]) getOrCreateState(id S) *stateEntry[S, E, C] {
	if entry, ok := m.states[id]; ok {
		return entry
	}

	var state State[S, E, C]
	for _, f := range m.factories {
		if s := f.factory(id); !isNil(s) {
			state = s
			break
		}
	}
	entry := newStateEntry(id, state)
	if state == nil {
		m.logger.Debug("state instantiated without behaviour", slog.Any("state", id))
		entry.state, entry.placeholder = BaseState[S, E, C]{}, true
	}
	m.cacheState(entry)
	return entry
}

func (m *Machine[S, E, C]) cacheState(entry *stateEntry[S, E, C]) {
	m.states[entry.id] = entry
	m.order = append(m.order, entry)
}
