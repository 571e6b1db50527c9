package trading

// State is the lifecycle stage of one mutation.
type State string

const (
	StateIdle                 State = "IDLE"
	StateValidating           State = "VALIDATING"
	StateSubmitting           State = "SUBMITTING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateSucceeded            State = "SUCCEEDED"
	StateFailed               State = "FAILED"
)

// StateMachine enforces mutation lifecycle transitions. Transitions are
// strictly forward: a failed mutation is terminal and must be re-initiated
// from idle with corrected input, because a broadcast transaction cannot be
// safely re-submitted without fresh nonce and gas handling.
type StateMachine struct {
	allowedTransitions map[State][]State
}

// NewStateMachine creates a new state machine with allowed transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[State][]State{
			StateIdle:                 {StateValidating},
			StateValidating:           {StateSubmitting, StateFailed},
			StateSubmitting:           {StateAwaitingConfirmation, StateFailed},
			StateAwaitingConfirmation: {StateSucceeded, StateFailed},
			StateSucceeded:            {},
			StateFailed:               {},
		},
	}
}

// CanTransition checks if a state transition is allowed.
func (sm *StateMachine) CanTransition(from, to State) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next states for a given state.
func (sm *StateMachine) GetAllowedTransitions(from State) []State {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []State{}
	}
	return allowed
}
