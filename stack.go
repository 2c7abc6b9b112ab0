package tickfsm

// PushState pushes the current state onto the state stack. It does not change the staged transition.
func (m *Machine[S, E, C]) PushState() error {
	if err := m.ensureRunning(); err != nil {
		return err
	}
	m.stack = append(m.stack, m.current)
	return nil
}

// PopState stages the state on top of the stack as the next state. The transition is applied by Update with the
// usual Exit and Enter hooks.
//
// It returns false when the stack is empty, when a transition is already staged and retransition is not allowed, or
// when the current state's GuardPop vetoes it.
func (m *Machine[S, E, C]) PopState() (bool, error) {
	if err := m.ensureRunning(); err != nil {
		return false, err
	}
	if len(m.stack) == 0 || (m.next != nil && !m.allowRetransition) || m.current.state.GuardPop(m) {
		return false, nil
	}
	m.next = m.pop()
	return true, nil
}

// PopAndDirectSetState makes the state on top of the stack the current state without calling any hooks. It returns
// false when the stack is empty or the current state's GuardPop vetoes it.
func (m *Machine[S, E, C]) PopAndDirectSetState() (bool, error) {
	if err := m.ensureRunning(); err != nil {
		return false, err
	}
	if len(m.stack) == 0 || m.current.state.GuardPop(m) {
		return false, nil
	}
	m.current = m.pop()
	return true, nil
}

// PopAndDropState discards the state on top of the stack. It does nothing when the stack is empty.
func (m *Machine[S, E, C]) PopAndDropState() {
	if len(m.stack) == 0 {
		return
	}
	m.pop()
}

// ClearStack empties the state stack.
func (m *Machine[S, E, C]) ClearStack() {
	clear(m.stack)
	m.stack = m.stack[:0]
}

func (m *Machine[S, E, C]) pop() *stateEntry[S, E, C] {
	last := len(m.stack) - 1
	top := m.stack[last]
	m.stack[last] = nil
	m.stack = m.stack[:last]
	return top
}
