// Benchmark for Machine.SendEvent and Machine.Update performance (CPU and memory)
package tickfsm

import (
	"context"
	"testing"
)

// Dummy states, events and context types for benchmarking
const (
	stateA = iota
	stateB
	stateC
	stateD
	stateE
	stateF
	stateG
	stateH
	stateI
	stateJ
	stateK
	stateL
	stateM
	stateN
	stateO
	stateP
	stateQ
	stateR
	stateS
	stateT
	stateU
	stateV
	stateW
	stateX
	stateY
	stateZ
)

const (
	eventA = iota
	eventB
)

type dummyContext struct{}

func setupBenchmarkMachine(b *testing.B) *Machine[uint, uint, dummyContext] {
	b.Helper()
	builder := NewGraphBuilder[uint, uint]()
	builder.Start(stateA)
	for from := uint(stateA); from < stateZ; from++ {
		builder.Transition().From(from).On(eventA).To(from + 1)
	}
	builder.Transition().From(stateZ).On(eventA).To(stateA) // Loop back to A
	builder.Transition().FromAny().On(eventB).To(stateA)

	m := New[uint, uint](dummyContext{})
	if err := m.Install(builder.Build()); err != nil {
		b.Fatal(err)
	}
	if err := m.Update(context.Background()); err != nil {
		b.Fatal(err)
	}
	return m
}

func BenchmarkUpdate(b *testing.B) {
	ctx := context.Background()
	m := setupBenchmarkMachine(b)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = m.SendEvent(eventA)
		_ = m.Update(ctx)
	}
}

func BenchmarkUpdate_NoTransition(b *testing.B) {
	ctx := context.Background()
	m := setupBenchmarkMachine(b)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = m.Update(ctx)
	}
}

func BenchmarkSendEvent_AnyState(b *testing.B) {
	m := setupBenchmarkMachine(b)
	m.SetAllowRetransition(true)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = m.SendEvent(eventB)
	}
}
