package tickfsm

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is wrapped by every error caused by a malformed transition graph or by changing the graph of
	// a machine that is already running.
	ErrConfiguration = errors.New("configuration error")
	// ErrProtocolViolation is wrapped by every error caused by calling the machine outside of its contract.
	ErrProtocolViolation = errors.New("protocol violation")
)

var (
	ErrAlreadyRunning      = fmt.Errorf("%w: state machine is already running", ErrConfiguration)
	ErrDuplicateTransition = fmt.Errorf("%w: transition already registered", ErrConfiguration)
	ErrDuplicateState      = fmt.Errorf("%w: state already instantiated", ErrConfiguration)
	ErrNoStartState        = fmt.Errorf("%w: start state not set", ErrConfiguration)

	ErrNotRunning       = fmt.Errorf("%w: state machine has not started", ErrProtocolViolation)
	ErrSendDuringExit   = fmt.Errorf("%w: event sent while exiting a state", ErrProtocolViolation)
	ErrRecursiveUpdate  = fmt.Errorf("%w: update called recursively", ErrProtocolViolation)
	ErrConcurrentUpdate = fmt.Errorf("%w: update called concurrently", ErrProtocolViolation)
	ErrClosed           = fmt.Errorf("%w: state machine is closed", ErrProtocolViolation)
	ErrUpdateInProgress = fmt.Errorf("%w: state machine is updating", ErrProtocolViolation)
)

// HookError is returned when a state hook fails while the machine is updating. Hook is one of Enter, Update, Exit
// or Error.
type HookError struct {
	Hook  string
	State string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("invoking %s hook for state (%s): %v", e.Hook, e.State, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// PanicError carries the value of a panic recovered from a state hook.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error itself.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
