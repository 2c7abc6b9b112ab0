package tickfsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGraphBuilder_Transition(t *testing.T) {
	// Test Types
	type (
		given struct {
			numTransitionCalls int
		}
		want struct {
			numTransitionDefinitionsStarted int
		}
	)

	// Test Cases
	tests := []struct {
		name  string
		given given
		want  want
	}{
		{
			name: "every call to Transition increments the numTransitionDefinitionsStarted counter",
			given: given{
				numTransitionCalls: 3,
			},
			want: want{
				numTransitionDefinitionsStarted: 3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			/* ---------------------------------- Given --------------------------------- */
			require := require.New(t)
			builder := NewGraphBuilder[state, event]()
			var got *transitionBuilder[state, event]

			/* ---------------------------------- When ---------------------------------- */
			for range tt.given.numTransitionCalls {
				got = builder.Transition()
			}

			/* ---------------------------------- Then ---------------------------------- */
			require.Equal(tt.want.numTransitionDefinitionsStarted, builder.numTransitionDefinitionsStarted, "Unexpected number of transition definitions started")
			require.Equal(builder, got.b, "Transition builder does not reference the correct graph builder")
		})
	}
}

func TestGraphBuilder_Build(t *testing.T) {
	// Test Types
	type (
		given struct {
			configure func(*graphBuilder[state, event])
		}
		want struct {
			panic    bool
			edges    []Edge[state, event]
			start    state
			hasStart bool
		}
	)

	// Test Cases
	tests := []struct {
		name  string
		given given
		want  want
	}{
		{
			name: "panics when incomplete transition is defined 1",
			given: given{
				configure: func(b *graphBuilder[state, event]) {
					b.Transition()
				},
			},
			want: want{
				panic: true,
			},
		},
		{
			name: "panics when incomplete transition is defined 2",
			given: given{
				configure: func(b *graphBuilder[state, event]) {
					b.Transition().From(idle)
				},
			},
			want: want{
				panic: true,
			},
		},
		{
			name: "panics when incomplete transition is defined 3",
			given: given{
				configure: func(b *graphBuilder[state, event]) {
					b.Transition().From(idle).On(start)
				},
			},
			want: want{
				panic: true,
			},
		},
		{
			name: "panics when a transition is defined twice",
			given: given{
				configure: func(b *graphBuilder[state, event]) {
					b.Transition().From(idle).On(start).To(running)
					b.Transition().From(idle).On(start).To(done)
				},
			},
			want: want{
				panic: true,
			},
		},
		{
			name: "panics when an any-state transition is defined twice",
			given: given{
				configure: func(b *graphBuilder[state, event]) {
					b.Transition().FromAny().On(fail).To(broken)
					b.Transition().FromAny().On(fail).To(idle)
				},
			},
			want: want{
				panic: true,
			},
		},
		{
			name: "any-state and direct transition on the same event",
			given: given{
				configure: func(b *graphBuilder[state, event]) {
					b.Transition().From(idle).On(fail).To(done)
					b.Transition().FromAny().On(fail).To(broken)
				},
			},
			want: want{
				edges: []Edge[state, event]{
					{From: idle, Event: fail, To: done},
					{Any: true, Event: fail, To: broken},
				},
			},
		},
		{
			name: "transitions and start state",
			given: given{
				configure: func(b *graphBuilder[state, event]) {
					b.Start(idle)
					b.Transition().From(idle).On(start).To(running)
					b.Transition().From(running).On(finish).To(done)
				},
			},
			want: want{
				edges: []Edge[state, event]{
					{From: idle, Event: start, To: running},
					{From: running, Event: finish, To: done},
				},
				start:    idle,
				hasStart: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			/* ---------------------------------- Given --------------------------------- */
			require := require.New(t)
			builder := NewGraphBuilder[state, event]()
			tt.given.configure(builder)

			/* ---------------------------------- When ---------------------------------- */
			res := tryUnarySupplier(func() *Graph[state, event] {
				return builder.Build()
			})

			/* ---------------------------------- Then ---------------------------------- */
			if tt.want.panic {
				require.True(res.panicked, "Expected panic but did not get one")
				require.False(res.optional.valid, "Expected optional value to be unset")
				return
			}
			require.True(res.optional.valid, "Expected optional value to be set")
			got := res.optional.value
			require.Equal(tt.want.edges, got.Edges())
			start, ok := got.StartState()
			require.Equal(tt.want.hasStart, ok)
			require.Equal(tt.want.start, start)
		})
	}
}

func TestMachine_Install(t *testing.T) {
	/* ---------------------------------- Given --------------------------------- */
	require := require.New(t)
	builder := NewGraphBuilder[state, event]()
	builder.Start(idle)
	builder.Transition().From(idle).On(start).To(running)
	builder.Transition().From(running).On(finish).To(done)
	builder.Transition().FromAny().On(fail).To(broken)
	graph := builder.Build()

	// One graph, many machines.
	first, _ := newTestMachine(nil)
	second, _ := newTestMachine(nil)

	/* ---------------------------------- When ---------------------------------- */
	require.NoError(first.Install(graph))
	require.NoError(second.Install(graph))

	/* ---------------------------------- Then ---------------------------------- */
	for _, m := range []*testMachine{first, second} {
		require.NoError(m.Update(t.Context()))
		require.True(m.IsCurrentState(idle))
		accepted, err := m.SendEvent(start)
		require.NoError(err)
		require.True(accepted)
		require.NoError(m.Update(t.Context()))
		accepted, err = m.SendEvent(fail)
		require.NoError(err)
		require.True(accepted)
		require.NoError(m.Update(t.Context()))
		require.True(m.IsCurrentState(broken))
	}

	/* ---------------------------------- When ---------------------------------- */
	err := first.Install(graph)

	/* ---------------------------------- Then ---------------------------------- */
	require.ErrorIs(err, ErrAlreadyRunning)
}

func TestMachine_Install_Conflict(t *testing.T) {
	// Test Types
	type (
		given struct {
			existing func(m *testMachine) error
		}
	)

	// Test Cases
	tests := []struct {
		name  string
		given given
	}{
		{
			name: "conflicting transition",
			given: given{
				existing: func(m *testMachine) error { return m.AddTransition(running, idle, finish) },
			},
		},
		{
			name: "conflicting any-state transition",
			given: given{
				existing: func(m *testMachine) error { return m.AddAnyTransition(idle, fail) },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			/* ---------------------------------- Given --------------------------------- */
			require := require.New(t)
			builder := NewGraphBuilder[state, event]()
			builder.Start(running)
			builder.Transition().From(idle).On(start).To(running)
			builder.Transition().From(running).On(finish).To(done)
			builder.Transition().FromAny().On(fail).To(broken)
			m, _ := newTestMachine(nil)
			require.NoError(tt.given.existing(m))
			instantiated := len(m.order)

			/* ---------------------------------- When ---------------------------------- */
			err := m.Install(builder.Build())

			/* ---------------------------------- Then ---------------------------------- */
			require.ErrorIs(err, ErrDuplicateTransition)
			require.ErrorContains(err, "installing graph")
			require.Len(m.order, instantiated, "Expected no state to be instantiated")
			_, ok := m.states[broken]
			require.False(ok)

			// The edges before the conflicting one must not have been registered either.
			require.NoError(m.SetStartState(idle))
			require.NoError(m.Update(t.Context()))
			accepted, err := m.SendEvent(start)
			require.NoError(err)
			require.False(accepted, "Expected the table to be unchanged after a failed install")
		})
	}
}
