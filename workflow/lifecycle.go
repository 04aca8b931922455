package workflow

// SessionLifecycle is the tagged state of a session's lifecycle machine.
//
// Contract:
//   - Terminal states are Completed, Failed, Cancelled.
//   - Transitions outside the allowed graph (see transition) are rejected
//     with ErrInvalidLifecycleTransition.
//   - A terminal state may re-enter Running when a new run is requested.
type SessionLifecycle string

const (
	// LifecycleIdle is the initial state: no run has started yet.
	LifecycleIdle SessionLifecycle = "idle"
	// LifecycleRunning indicates an active run is generating or executing tools.
	LifecycleRunning SessionLifecycle = "running"
	// LifecycleWaitingInput indicates the run produced a user-visible message
	// and is waiting for the next host turn.
	LifecycleWaitingInput SessionLifecycle = "waiting_input"
	// LifecyclePaused indicates a host Pause command suspended the run.
	LifecyclePaused SessionLifecycle = "paused"
	// LifecycleCancelling indicates a Cancel command was accepted and the
	// cancel fence has been (or is about to be) applied.
	LifecycleCancelling SessionLifecycle = "cancelling"
	// LifecycleCompleted is terminal: the run finished successfully.
	LifecycleCompleted SessionLifecycle = "completed"
	// LifecycleFailed is terminal: the run failed (see fail_run, §4.9.1).
	LifecycleFailed SessionLifecycle = "failed"
	// LifecycleCancelled is terminal: the run was cancelled.
	LifecycleCancelled SessionLifecycle = "cancelled"
)

// IsTerminal reports whether l is one of the three terminal states.
func (l SessionLifecycle) IsTerminal() bool {
	switch l {
	case LifecycleCompleted, LifecycleFailed, LifecycleCancelled:
		return true
	default:
		return false
	}
}

// lifecycleEdges enumerates the allowed transition graph from spec.md §3.
// Re-entering Running from any terminal state is handled separately in
// transition, since it is allowed from *every* terminal state uniformly
// (modeling "a new run is requested").
var lifecycleEdges = map[SessionLifecycle]map[SessionLifecycle]bool{
	LifecycleIdle: {
		LifecycleRunning: true,
	},
	LifecycleRunning: {
		LifecycleWaitingInput: true,
		LifecyclePaused:       true,
		LifecycleCancelling:   true,
		LifecycleCompleted:    true,
		LifecycleFailed:       true,
	},
	LifecycleWaitingInput: {
		LifecycleRunning:    true,
		LifecycleCancelling: true,
		LifecycleCompleted:  true,
		LifecycleFailed:     true,
	},
	LifecyclePaused: {
		LifecycleRunning:    true,
		LifecycleCancelling: true,
	},
	LifecycleCancelling: {
		LifecycleCancelled: true,
	},
}

// transition is the single mutator of state.Lifecycle. It is a no-op when
// current == next, otherwise it consults the allowed-transition table and
// returns an InvalidLifecycleTransitionError on violation.
func transition(s *SessionState, next SessionLifecycle) error {
	current := s.Lifecycle
	if current == next {
		return nil
	}
	if current.IsTerminal() && next == LifecycleRunning {
		s.Lifecycle = next
		return nil
	}
	if lifecycleEdges[current][next] {
		s.Lifecycle = next
		return nil
	}
	return &InvalidLifecycleTransitionError{From: current, To: next}
}

// applyCancelFence bumps both session_epoch and step_epoch by 1,
// invalidating in-flight expectations held by downstream systems. Called
// from Cancel host-command handling (spec.md §4.3, §5).
func applyCancelFence(s *SessionState) {
	s.SessionEpoch++
	s.StepEpoch++
}

// canApplyHostCommand is the gatekeeper for HostCommandReceived ingress
// (spec.md §4.3):
//   - Pause is allowed iff Running|WaitingInput.
//   - Resume is allowed iff Paused.
//   - Cancel is allowed iff non-terminal and not already Cancelled.
//   - anything else (Steer|FollowUp|LeaseHeartbeat|Noop) is allowed iff
//     non-terminal.
func canApplyHostCommand(s *SessionState, kind HostCommandKind) bool {
	switch kind {
	case HostCommandPause:
		return s.Lifecycle == LifecycleRunning || s.Lifecycle == LifecycleWaitingInput
	case HostCommandResume:
		return s.Lifecycle == LifecyclePaused
	case HostCommandCancel:
		return !s.Lifecycle.IsTerminal()
	default:
		return !s.Lifecycle.IsTerminal()
	}
}
