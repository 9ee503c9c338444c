package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/DorusKeijzer/Woonitor/internal/config"
)

// State of the hostile-response machine.
type State int

const (
	// StateNormal: the source is cooperating.
	StateNormal State = iota
	// StateBackoff: recent hostile responses; delays are lengthened.
	StateBackoff
	// StateHalted: the policy decided the run must stop.
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateBackoff:
		return "backoff"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// ErrHalted is returned once the machine decides the worker must stop.
// Callers propagate it up so the process exits nonzero.
var ErrHalted = errors.New("halted after hostile responses")

// backoffFactor stretches the politeness throttle while in StateBackoff.
const backoffFactor = 4

// defaultMaxStrikes is how many consecutive hostile responses the backoff
// policy tolerates before halting anyway.
const defaultMaxStrikes = 5

// Machine decides, per configured policy, whether a hostile response from the
// source (403/429 status or a verification page) aborts the run or merely
// slows it down. It is owned by a single worker goroutine and not safe for
// concurrent use.
type Machine struct {
	policy     string
	throttle   Throttle
	maxStrikes int

	state   State
	strikes int
}

// NewMachine builds a machine for the given policy ("abort" or "backoff")
// using throttle as the base delay for backoff sleeps.
func NewMachine(policy string, throttle Throttle) *Machine {
	return &Machine{
		policy:     policy,
		throttle:   throttle,
		maxStrikes: defaultMaxStrikes,
		state:      StateNormal,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Strikes returns the consecutive hostile-response count.
func (m *Machine) Strikes() int { return m.strikes }

// Hostile records one hostile response and transitions the machine.
// Under the abort policy the machine halts immediately; under the backoff
// policy it enters StateBackoff, halting only after maxStrikes consecutive
// hostile responses.
func (m *Machine) Hostile() State {
	if m.state == StateHalted {
		return m.state
	}

	m.strikes++

	if m.policy == config.PolicyAbort || m.strikes >= m.maxStrikes {
		m.state = StateHalted
		return m.state
	}

	m.state = StateBackoff
	return m.state
}

// Calm records a cooperative response: strikes reset and a backing-off
// machine returns to normal.
func (m *Machine) Calm() {
	if m.state == StateHalted {
		return
	}
	m.strikes = 0
	m.state = StateNormal
}

// Delay returns the next sleep for the current state: the plain randomized
// throttle when normal, a stretched one while backing off.
func (m *Machine) Delay() time.Duration {
	d := m.throttle.Delay()
	if m.state == StateBackoff {
		return d * backoffFactor
	}
	return d
}

// Wait applies Delay with context cancellation, or returns ErrHalted when the
// machine has already decided to stop.
func (m *Machine) Wait(ctx context.Context) error {
	if m.state == StateHalted {
		return ErrHalted
	}

	timer := time.NewTimer(m.Delay())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
