package tickfsm

import (
	"fmt"
)

// Edge is a transition of a Graph. Any is set for any-state transitions, in which case From is meaningless.
type Edge[S, E comparable] struct {
	From  S
	Any   bool
	Event E
	To    S
}

type edgeKey[S, E comparable] struct {
	from  S
	any   bool
	event E
}

type graphBuilder[S, E comparable] struct {
	edges    []Edge[S, E]
	start    S
	hasStart bool

	/* ------------------------ Builder Chaining Helpers ------------------------ */
	// Enables tracking of completed transition definitions, so their .done() methods can be called when building
	// the graph.
	transitionToBuilders []*transitionToBuilder[S, E]
	// Enables panicking if not all transition definitions are completed, by comparing the number of started
	// transition definitions with the number of completed ones ( len(transitionToBuilders) ).
	numTransitionDefinitionsStarted int
}

// NewGraphBuilder creates a builder for a transition graph that can be installed into any number of machines.
func NewGraphBuilder[S, E comparable]() *graphBuilder[S, E] {
	return &graphBuilder[S, E]{}
}

// Transition begins the definition of a new transition.
func (b *graphBuilder[S, E]) Transition() *transitionBuilder[S, E] {
	b.numTransitionDefinitionsStarted++
	return &transitionBuilder[S, E]{
		b: b,
	}
}

// Start sets the start state of the graph.
func (b *graphBuilder[S, E]) Start(state S) *graphBuilder[S, E] {
	b.start = state
	b.hasStart = true
	return b
}

// Build finalizes the graph. It panics when a transition definition is incomplete or when two transitions leave
// the same state on the same event.
func (b *graphBuilder[S, E]) Build() *Graph[S, E] {
	if b.numTransitionDefinitionsStarted != len(b.transitionToBuilders) {
		panic("not all transition definitions were completed")
	}

	seen := make(map[edgeKey[S, E]]struct{}, len(b.transitionToBuilders))
	for _, tb := range b.transitionToBuilders {
		edge := tb.done()
		key := edgeKey[S, E]{from: edge.From, any: edge.Any, event: edge.Event}
		if _, ok := seen[key]; ok {
			if edge.Any {
				panic(fmt.Sprintf("any-state transition on event (%v) defined twice", edge.Event))
			}
			panic(fmt.Sprintf("transition from state (%v) on event (%v) defined twice", edge.From, edge.Event))
		}
		seen[key] = struct{}{}
		b.edges = append(b.edges, edge)
	}
	b.transitionToBuilders = nil // Remove circular references.

	return &Graph[S, E]{
		edges:    b.edges,
		start:    b.start,
		hasStart: b.hasStart,
	}
}

type transitionBuilder[S, E comparable] struct {
	b *graphBuilder[S, E]
}

// From sets the source state for the transition.
func (tb *transitionBuilder[S, E]) From(state S) *transitionFromBuilder[S, E] {
	return &transitionFromBuilder[S, E]{
		b:    tb.b,
		from: state,
	}
}

// FromAny makes the transition an any-state transition, taken when the current state has none of its own for the
// event.
func (tb *transitionBuilder[S, E]) FromAny() *transitionFromBuilder[S, E] {
	return &transitionFromBuilder[S, E]{
		b:   tb.b,
		any: true,
	}
}

type transitionFromBuilder[S, E comparable] struct {
	b    *graphBuilder[S, E]
	from S
	any  bool
}

// On sets the event for the transition.
func (fb *transitionFromBuilder[S, E]) On(event E) *transitionOnBuilder[S, E] {
	return &transitionOnBuilder[S, E]{
		b:     fb.b,
		from:  fb.from,
		any:   fb.any,
		event: event,
	}
}

type transitionOnBuilder[S, E comparable] struct {
	b     *graphBuilder[S, E]
	from  S
	any   bool
	event E
}

// To sets the target state for the transition.
func (ob *transitionOnBuilder[S, E]) To(state S) *transitionToBuilder[S, E] {
	toBuilder := &transitionToBuilder[S, E]{
		from:  ob.from,
		any:   ob.any,
		event: ob.event,
		to:    state,
	}
	ob.b.transitionToBuilders = append(ob.b.transitionToBuilders, toBuilder)
	return toBuilder
}

type transitionToBuilder[S, E comparable] struct {
	from  S
	any   bool
	event E
	to    S
}

func (tb *transitionToBuilder[S, E]) done() Edge[S, E] {
	return Edge[S, E]{From: tb.from, Any: tb.any, Event: tb.event, To: tb.to}
}

// Graph is a built transition graph. It is read-only, so one Graph may be installed into many machines, from many
// goroutines.
type Graph[S, E comparable] struct {
	edges    []Edge[S, E]
	start    S
	hasStart bool
}

// Edges returns a copy of the transitions of the graph in definition order.
func (g *Graph[S, E]) Edges() []Edge[S, E] {
	return append([]Edge[S, E](nil), g.edges...)
}

// StartState returns the start state of the graph. The boolean is false when none was set.
func (g *Graph[S, E]) StartState() (S, bool) {
	return g.start, g.hasStart
}

// Install registers every transition of g on m and sets its start state, if any. Nothing is registered when one of
// the transitions conflicts with a transition m already has.
func (m *Machine[S, E, C]) Install(g *Graph[S, E]) error {
	if err := m.checkConfigurable(); err != nil {
		return fmt.Errorf("installing graph: %w", err)
	}
	for _, edge := range g.edges {
		if m.hasTransition(edge) {
			if edge.Any {
				return fmt.Errorf("installing graph: any-state transition on event (%v): %w", edge.Event, ErrDuplicateTransition)
			}
			return fmt.Errorf("installing graph: transition from state (%v) on event (%v): %w", edge.From, edge.Event, ErrDuplicateTransition)
		}
	}

	for _, edge := range g.edges {
		var err error
		if edge.Any {
			err = m.AddAnyTransition(edge.To, edge.Event)
		} else {
			err = m.AddTransition(edge.From, edge.To, edge.Event)
		}
		if err != nil {
			return fmt.Errorf("installing graph: %w", err)
		}
	}
	if g.hasStart {
		if err := m.SetStartState(g.start); err != nil {
			return fmt.Errorf("installing graph: %w", err)
		}
	}
	return nil
}

func (m *Machine[S, E, C]) hasTransition(edge Edge[S, E]) bool {
	from := m.anyState
	if !edge.Any {
		entry, ok := m.states[edge.From]
		if !ok {
			return false
		}
		from = entry
	}
	_, ok := from.transitions[edge.Event]
	return ok
}
